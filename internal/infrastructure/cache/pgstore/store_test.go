package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/caiomeira/extractd/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &Store{db: db}, mock, func() { _ = db.Close() }
}

func TestGetReturnsNilOnAbsence(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT cache_key, result, created_at, ttl_seconds").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"cache_key", "result", "created_at", "ttl_seconds"}))

	entry, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry, got %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetDecodesStoredResult(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	createdAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"cache_key", "result", "created_at", "ttl_seconds"}).
		AddRow("k1", []byte(`{"label":"carteira_oab","keys":["nome"],"values":{"nome":"MARIA SILVA"},"debug":{"layout_final":"v1","coverage":{"threshold":0.9,"before":1,"after":1},"per_layout":null,"llm_requested":false,"ocr_used":false,"per_field":null}}`), createdAt, int64(3600))

	mock.ExpectQuery("SELECT cache_key, result, created_at, ttl_seconds").
		WithArgs("k1").
		WillReturnRows(rows)

	entry, err := store.Get(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry == nil {
		t.Fatalf("expected entry")
	}
	if entry.Result.Values["nome"] != "MARIA SILVA" {
		t.Fatalf("unexpected result: %+v", entry.Result)
	}
	if entry.TTL != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", entry.TTL)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPutUpsertsEntry(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO extraction_cache").
		WithArgs("k1", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(3600)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := domain.CacheEntry{
		Key:       "k1",
		Result:    domain.ExtractionResult{Label: domain.LabelCarteiraOAB},
		CreatedAt: time.Now(),
		TTL:       time.Hour,
	}
	if err := store.Put(context.Background(), entry); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPruneExpiredReportsDeletedCount(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM extraction_cache").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.PruneExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("PruneExpired() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pruned, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
