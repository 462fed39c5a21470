package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caiomeira/extractd/internal/core/domain"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	getErr  error
	putErr  error
	puts    int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]domain.CacheEntry)}
}

func (s *memStore) Get(_ context.Context, key string) (*domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	out := entry
	return &out, nil
}

func (s *memStore) Put(ctx context.Context, entry domain.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[entry.Key] = entry
	s.puts++
	return nil
}

func result(v string) domain.ExtractionResult {
	return domain.ExtractionResult{
		Label:  domain.LabelCarteiraOAB,
		Keys:   []string{"nome"},
		Values: map[string]string{"nome": v},
	}
}

func TestKeyChangesWithEveryComponent(t *testing.T) {
	base := Key("hash", domain.LabelCarteiraOAB, "a|b", "1", "")
	for name, other := range map[string]string{
		"content":   Key("hash2", domain.LabelCarteiraOAB, "a|b", "1", ""),
		"label":     Key("hash", domain.LabelTelaSistema, "a|b", "1", ""),
		"signature": Key("hash", domain.LabelCarteiraOAB, "a|c", "1", ""),
		"version":   Key("hash", domain.LabelCarteiraOAB, "a|b", "2", ""),
		"salt":      Key("hash", domain.LabelCarteiraOAB, "a|b", "1", "s"),
	} {
		if other == base {
			t.Errorf("changing %s must change the key", name)
		}
	}
}

func TestDoMissComputesAndStores(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.Hour, nil)

	got, event, err := svc.Do(context.Background(), "k1", func(context.Context) (domain.ExtractionResult, error) {
		return result("MARIA"), nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if event != EventMiss {
		t.Fatalf("expected miss, got %s", event)
	}
	if got.Values["nome"] != "MARIA" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if store.puts != 1 {
		t.Fatalf("expected one put, got %d", store.puts)
	}
}

func TestDoHitSkipsCompute(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.Hour, nil)
	_, _, _ = svc.Do(context.Background(), "k1", func(context.Context) (domain.ExtractionResult, error) {
		return result("MARIA"), nil
	})

	got, event, err := svc.Do(context.Background(), "k1", func(context.Context) (domain.ExtractionResult, error) {
		t.Fatalf("compute must not run on a hit")
		return domain.ExtractionResult{}, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if event != EventHit {
		t.Fatalf("expected hit, got %s", event)
	}
	if got.Values["nome"] != "MARIA" {
		t.Fatalf("unexpected cached result: %+v", got)
	}
}

func TestDoExpiredEntryRecomputes(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.Minute, nil)

	now := time.Now()
	svc.now = func() time.Time { return now }
	_, _, _ = svc.Do(context.Background(), "k1", func(context.Context) (domain.ExtractionResult, error) {
		return result("OLD"), nil
	})

	svc.now = func() time.Time { return now.Add(2 * time.Minute) }
	got, event, err := svc.Do(context.Background(), "k1", func(context.Context) (domain.ExtractionResult, error) {
		return result("NEW"), nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if event != EventStale {
		t.Fatalf("expected stale, got %s", event)
	}
	if got.Values["nome"] != "NEW" {
		t.Fatalf("expected recomputed value, got %+v", got)
	}
}

func TestDoStoreFailureBypassesWithoutCaching(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("backend down")
	svc := NewService(store, time.Hour, nil)

	calls := 0
	for i := 0; i < 2; i++ {
		got, event, err := svc.Do(context.Background(), "k1", func(context.Context) (domain.ExtractionResult, error) {
			calls++
			return result("FRESH"), nil
		})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if event != EventBypass {
			t.Fatalf("expected bypass, got %s", event)
		}
		if got.Values["nome"] != "FRESH" {
			t.Fatalf("unexpected result: %+v", got)
		}
	}
	if calls != 2 {
		t.Fatalf("bypass must compute every call, got %d", calls)
	}
	if store.puts != 0 {
		t.Fatalf("bypass must not store, got %d puts", store.puts)
	}
}

func TestDoSingleFlightSharesOneComputation(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.Hour, nil)

	var computations int32
	release := make(chan struct{})
	compute := func(context.Context) (domain.ExtractionResult, error) {
		atomic.AddInt32(&computations, 1)
		<-release
		return result("SHARED"), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _, err := svc.Do(context.Background(), "k1", compute)
			if err != nil {
				t.Errorf("Do() error = %v", err)
				return
			}
			results[i] = got.Values["nome"]
		}(i)
	}

	// Let the goroutines pile onto the in-flight entry before releasing.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&computations); n != 1 {
		t.Fatalf("expected exactly one computation, got %d", n)
	}
	for i, v := range results {
		if v != "SHARED" {
			t.Fatalf("caller %d got %q", i, v)
		}
	}
}

func TestDoComputeSurvivesCallerCancellation(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, _, err := svc.Do(ctx, "k1", func(computeCtx context.Context) (domain.ExtractionResult, error) {
		if computeCtx.Err() != nil {
			t.Fatalf("compute context must be detached from the caller")
		}
		return result("DONE"), nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got.Values["nome"] != "DONE" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if store.puts != 1 {
		t.Fatalf("expected stored result, got %d puts", store.puts)
	}

	// The write must have landed for later callers despite the cancellation.
	later, event, err := svc.Do(context.Background(), "k1", func(context.Context) (domain.ExtractionResult, error) {
		t.Fatalf("compute must not run after a stored result")
		return domain.ExtractionResult{}, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if event != EventHit {
		t.Fatalf("expected hit, got %s", event)
	}
	if later.Values["nome"] != "DONE" {
		t.Fatalf("unexpected cached result: %+v", later)
	}
}
