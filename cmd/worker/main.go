package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caiomeira/extractd/internal/bootstrap"
	"github.com/caiomeira/extractd/internal/config"
	"github.com/caiomeira/extractd/internal/core/domain"
	"github.com/caiomeira/extractd/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "worker", cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", workerMetrics.Handler())
		log.Printf("worker metrics on :%s", cfg.WorkerMetricsPort)
		if err := http.ListenAndServe(":"+cfg.WorkerMetricsPort, mux); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeExtractionJobs(ctx, func(handlerCtx context.Context, job domain.ExtractionJob) error {
		workerMetrics.StartJob()
		start := time.Now()
		if !job.SubmittedAt.IsZero() {
			workerMetrics.ObserveQueueLag(start.Sub(job.SubmittedAt))
		}
		err := processJob(handlerCtx, app, job)
		workerMetrics.FinishJob(string(job.Label), time.Since(start), err)
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func processJob(ctx context.Context, app *bootstrap.App, job domain.ExtractionJob) error {
	processCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	raw, err := os.ReadFile(job.Path)
	if err != nil {
		app.Logger.Error("job_read_failed", "path", job.Path, "error", err)
		return err
	}

	result, err := app.Extractor.Extract(processCtx, domain.ExtractionRequest{
		Label:    job.Label,
		Fields:   job.Fields,
		UseLLM:   job.UseLLM,
		Document: raw,
	})
	if err != nil {
		app.Logger.Error("job_extract_failed", "path", job.Path, "label", string(job.Label), "error", err)
		return err
	}

	app.Logger.Info("job_extract_done",
		"path", job.Path,
		"label", string(result.Label),
		"layout", string(result.Debug.LayoutFinal),
		"coverage_after", result.Debug.Coverage.After,
		"llm_requested", result.Debug.LLMRequested,
	)
	return nil
}
