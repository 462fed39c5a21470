package ports

import (
	"context"
	"time"

	"github.com/caiomeira/extractd/internal/core/domain"
)

// Extractor is the pipeline entry point exposed to the API and worker.
type Extractor interface {
	Extract(ctx context.Context, req domain.ExtractionRequest) (domain.ExtractionResult, error)
}

// TextSource turns raw document bytes into page text, an OCR flag and a
// stable content hash.
type TextSource interface {
	Load(ctx context.Context, raw []byte) (domain.DocumentText, error)
}

// FieldSolver is the LLM transport. The schema of the reply is constrained
// to exactly the given field names; missing names come back empty.
type FieldSolver interface {
	Solve(ctx context.Context, label domain.Label, fields []string, excerpt string, timeout time.Duration) (map[string]string, error)
}

// CacheStore is the abstract key->entry backend. Get returns (nil, nil) on
// absence; Put must be atomic per key.
type CacheStore interface {
	Get(ctx context.Context, key string) (*domain.CacheEntry, error)
	Put(ctx context.Context, entry domain.CacheEntry) error
}

// JobQueue publishes/consumes batch extraction jobs.
type JobQueue interface {
	PublishExtractionJob(ctx context.Context, job domain.ExtractionJob) error
	SubscribeExtractionJobs(ctx context.Context, handler func(context.Context, domain.ExtractionJob) error) error
}
