package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caiomeira/extractd/internal/core/domain"
	"github.com/caiomeira/extractd/internal/core/ports"
	"github.com/caiomeira/extractd/internal/observability/metrics"
)

// 20 MB is generous for single-page documents.
const maxUploadBytes = 20 << 20

type Router struct {
	extractor ports.Extractor
	queue     ports.JobQueue
	metrics   *metrics.HTTPServerMetrics
	service   string
}

func NewRouter(extractor ports.Extractor, queue ports.JobQueue, m *metrics.HTTPServerMetrics, service string) *Router {
	return &Router{
		extractor: extractor,
		queue:     queue,
		metrics:   m,
		service:   service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/extract", rt.extract)
	mux.HandleFunc("/v1/extract/batch", rt.submitBatch)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type extractResponse struct {
	Label  domain.Label      `json:"label"`
	Keys   []string          `json:"keys"`
	Values map[string]string `json:"values"`
	Error  string            `json:"error,omitempty"`
	Debug  *domain.Debug     `json:"debug,omitempty"`
}

func (rt *Router) extract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	start := time.Now()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload"})
		return
	}

	label := strings.TrimSpace(r.FormValue("label"))
	if label == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'label' is required"})
		return
	}

	fields, err := parseFields(r.FormValue("fields"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'fields' must be a JSON array or comma-separated list"})
		return
	}

	req := domain.ExtractionRequest{
		Label:    domain.Label(label),
		Fields:   fields,
		UseLLM:   parseBool(r.FormValue("use_llm")),
		Document: raw,
	}
	includeDebug := parseBool(r.FormValue("debug"))

	result, err := rt.extractor.Extract(r.Context(), req)
	status := mapErrorToHTTPStatus(err)
	rt.recordExtraction(label, err, result, time.Since(start))

	if err != nil && status != http.StatusUnprocessableEntity {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	// An unreadable document still answers with the full key set so batch
	// consumers keep a uniform row shape.
	response := extractResponse{
		Label:  result.Label,
		Keys:   result.Keys,
		Values: result.Values,
	}
	if err != nil {
		response.Error = err.Error()
	}
	if includeDebug {
		debug := result.Debug
		response.Debug = &debug
	}
	writeJSON(w, status, response)
}

func (rt *Router) submitBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.queue == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "batch queue not configured"})
		return
	}

	var job domain.ExtractionJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(job.Path) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}
	if job.Label == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "label is required"})
		return
	}

	job.SubmittedAt = time.Now()
	if err := rt.queue.PublishExtractionJob(r.Context(), job); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (rt *Router) recordExtraction(label string, err error, result domain.ExtractionResult, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case result.Debug.LLMError != "":
		status = "degraded"
	}
	rt.metrics.RecordExtraction(rt.service, label, status, result.Debug.Coverage.After, duration)
}

func parseFields(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var fields []string
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, err
		}
		return fields, nil
	}
	var fields []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			fields = append(fields, part)
		}
	}
	return fields, nil
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
