// evalreport replays labeled documents through the heuristic pipeline and
// writes a per-field accuracy spreadsheet. The LLM fallback is left out so
// runs stay deterministic and free.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/caiomeira/extractd/internal/config"
	"github.com/caiomeira/extractd/internal/core/cache"
	"github.com/caiomeira/extractd/internal/core/domain"
	"github.com/caiomeira/extractd/internal/core/layout"
	"github.com/caiomeira/extractd/internal/core/normalize"
	"github.com/caiomeira/extractd/internal/core/resolve"
	"github.com/caiomeira/extractd/internal/core/usecase"
	"github.com/caiomeira/extractd/internal/infrastructure/cache/memstore"
	"github.com/caiomeira/extractd/internal/infrastructure/textsource/pdfsource"
	"github.com/caiomeira/extractd/internal/observability/logging"
	"github.com/caiomeira/extractd/internal/report"
)

type evalCase struct {
	Path     string            `json:"path"`
	Label    domain.Label      `json:"label"`
	Expected map[string]string `json:"expected"`
}

func main() {
	casesPath := flag.String("cases", "cases.jsonl", "JSONL file with one evaluation case per line")
	outPath := flag.String("out", "report.xlsx", "output spreadsheet path")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("evalreport", cfg.LogLevel)

	reg := layout.MustLoad()
	extractor := usecase.NewExtractUseCase(
		pdfsource.New(nil),
		nil,
		cache.NewService(memstore.New(), time.Hour, logger),
		reg,
		resolve.New(reg, cfg.FieldMinConfidence),
		logger,
		usecase.Options{
			CoverageThreshold: cfg.CoverageThreshold,
			ExtractorVersion:  cfg.ExtractorVersion,
		},
	)

	cases, err := loadCases(*casesPath)
	if err != nil {
		log.Fatalf("load cases: %v", err)
	}

	ctx := context.Background()
	var rows []report.Row
	for _, c := range cases {
		rows = append(rows, runCase(ctx, extractor, c)...)
	}

	if err := report.Write(*outPath, rows); err != nil {
		log.Fatalf("write report: %v", err)
	}
	log.Printf("report written: %s (%d comparisons)", *outPath, len(rows))
}

func runCase(ctx context.Context, extractor *usecase.ExtractUseCase, c evalCase) []report.Row {
	raw, err := os.ReadFile(c.Path)
	if err != nil {
		log.Printf("skip %s: %v", c.Path, err)
		return nil
	}

	// Expected values come hand-typed; run them through the same
	// canonicalization the pipeline applies so accents and spacing do not
	// count as mismatches.
	expected := normalize.All(c.Expected)

	fields := make([]string, 0, len(expected))
	for name := range expected {
		fields = append(fields, name)
	}

	result, err := extractor.Extract(ctx, domain.ExtractionRequest{
		Label:    c.Label,
		Fields:   fields,
		Document: raw,
	})
	if err != nil {
		log.Printf("extract %s: %v", c.Path, err)
	}

	rows := make([]report.Row, 0, len(result.Keys))
	for _, field := range result.Keys {
		got := result.Values[field]
		rows = append(rows, report.Row{
			Document: c.Path,
			Label:    string(c.Label),
			Field:    field,
			Expected: expected[field],
			Got:      got,
			Route:    string(result.Debug.PerField[field].Route),
			Match:    got == expected[field],
		})
	}
	return rows
}

func loadCases(path string) ([]evalCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cases []evalCase
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c evalCase
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, scanner.Err()
}
