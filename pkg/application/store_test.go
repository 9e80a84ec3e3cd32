package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(StoreTypeFile); err != ErrInvalidConfig {
		t.Fatalf("file without dir: err = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewStore(StoreTypePostgres); err != ErrInvalidConfig {
		t.Fatalf("postgres without URL: err = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewStore(StoreType("bogus")); err != ErrInvalidStoreType {
		t.Fatalf("unknown type: err = %v, want ErrInvalidStoreType", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewStore(StoreTypeFile, WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	app := &Application{
		ID:        "app-1",
		JobID:     "123",
		JobTitle:  "Go Engineer",
		Status:    StatusSubmitted,
		Method:    MethodEasyApply,
		AppliedAt: now,
		UpdatedAt: now,
	}
	if err := store.Put(ctx, app); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "app-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.JobTitle != "Go Engineer" || !got.AppliedAt.Equal(now) {
		t.Fatalf("got = %+v", got)
	}

	byJob, err := store.GetByJob(ctx, "123")
	if err != nil {
		t.Fatalf("GetByJob: %v", err)
	}
	if byJob == nil || byJob.ID != "app-1" {
		t.Fatalf("byJob = %+v", byJob)
	}
}

func TestFileStoreMissingIsNotAnError(t *testing.T) {
	store, err := NewStore(StoreTypeFile, WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if app, err := store.Get(ctx, "nope"); err != nil || app != nil {
		t.Fatalf("Get missing = (%v, %v), want (nil, nil)", app, err)
	}
	if app, err := store.GetByJob(ctx, "nope"); err != nil || app != nil {
		t.Fatalf("GetByJob missing = (%v, %v), want (nil, nil)", app, err)
	}
}

func TestFileStoreMalformedRecordIsMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(StoreTypeFile, WithDir(dir))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if err := os.WriteFile(filepath.Join(dir, "bad"+recordSuffix), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if app, err := store.Get(context.Background(), "bad"); err != nil || app != nil {
		t.Fatalf("Get malformed = (%v, %v), want (nil, nil)", app, err)
	}
}
