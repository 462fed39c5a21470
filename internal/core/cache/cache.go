// Package cache wraps the extraction pipeline with a deterministic,
// invalidatable result cache. Keys are derived from document content, the
// canonical schema signature, the extractor version and an operator salt;
// expiry is evaluated at read time; a per-key single-flight table
// guarantees at most one computation per key runs concurrently.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/caiomeira/extractd/internal/core/domain"
	"github.com/caiomeira/extractd/internal/core/ports"
)

// Key builds the cache identity. Signature must already be label-scoped
// and order-independent (schema.Request.Signature). Changing version or
// salt changes every key, invalidating the cache without touching stored
// entries.
func Key(contentHash string, label domain.Label, signature, version, salt string) string {
	sum := sha256.Sum256([]byte(contentHash + "|" + string(label) + "|" + signature + "|" + version + "|" + salt))
	return hex.EncodeToString(sum[:])
}

type flight struct {
	done   chan struct{}
	result domain.ExtractionResult
	err    error
}

// Service is the process-scoped cache with explicit initialization,
// injected into the pipeline rather than reached as ambient global state.
type Service struct {
	store  ports.CacheStore
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	inflight map[string]*flight
}

func NewService(store ports.CacheStore, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		inflight: make(map[string]*flight),
	}
}

// Event names reported to the caller for observability.
const (
	EventHit    = "hit"
	EventMiss   = "miss"
	EventStale  = "stale"
	EventBypass = "bypass"
	EventShared = "shared"
)

// Do returns the cached result for key or runs compute exactly once across
// concurrent callers, publishing the outcome to every waiter and to the
// store. Store failures degrade to a fresh computation with the put
// skipped; they are never surfaced. The computation itself runs regardless
// of the first caller's cancellation so that late waiters and the cache
// still receive the value.
func (s *Service) Do(ctx context.Context, key string, compute func(context.Context) (domain.ExtractionResult, error)) (domain.ExtractionResult, string, error) {
	cached, event, ok := s.lookup(ctx, key)
	if ok {
		return cached, event, nil
	}
	if event == EventBypass {
		result, err := compute(ctx)
		return result, EventBypass, err
	}

	s.mu.Lock()
	if f, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.result, EventShared, f.err
		case <-ctx.Done():
			return domain.ExtractionResult{}, EventShared, ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	s.inflight[key] = f
	s.mu.Unlock()

	// Detached from the caller: cancellation of one request must not
	// poison the shared computation or the cache write.
	detached := context.WithoutCancel(ctx)
	f.result, f.err = compute(detached)
	if f.err == nil {
		s.put(detached, key, f.result)
	}

	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
	close(f.done)

	return f.result, event, f.err
}

// lookup reports (result, event, found). A bypass event means the backend
// failed and the caller should compute without caching.
func (s *Service) lookup(ctx context.Context, key string) (domain.ExtractionResult, string, bool) {
	entry, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache_get_failed", "key", key, "error", err)
		return domain.ExtractionResult{}, EventBypass, false
	}
	if entry == nil {
		return domain.ExtractionResult{}, EventMiss, false
	}
	if entry.Expired(s.now()) {
		// Logically a miss; physical deletion is left to the backend.
		return domain.ExtractionResult{}, EventStale, false
	}
	return entry.Result, EventHit, true
}

func (s *Service) put(ctx context.Context, key string, result domain.ExtractionResult) {
	entry := domain.CacheEntry{
		Key:       key,
		Result:    result,
		CreatedAt: s.now(),
		TTL:       s.ttl,
	}
	if err := s.store.Put(ctx, entry); err != nil {
		s.logger.Warn("cache_put_failed", "key", key, "error", err)
	}
}
