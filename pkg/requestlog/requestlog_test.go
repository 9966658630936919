package requestlog

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "requests.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(id string, at time.Time) Record {
	return Record{
		ID:        id,
		RequestID: "req-" + id,
		Time:      at,
		Method:    "POST",
		Path:      "/v1/chat/completions",
		Status:    200,
		Duration:  1250 * time.Millisecond,
		Model:     "qwen2.5-7b-instruct",
		Streamed:  true,
		Origin:    "vscode-webview://abc",
	}
}

func TestStore(t *testing.T) {
	t.Run("insert and read back", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()

		if err := store.Insert(ctx, sampleRecord("a", time.Now())); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		records, err := store.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("recent failed: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}
		rec := records[0]
		if rec.Model != "qwen2.5-7b-instruct" || !rec.Streamed || rec.Status != 200 {
			t.Errorf("unexpected record %+v", rec)
		}
		if rec.Duration != 1250*time.Millisecond {
			t.Errorf("expected duration preserved, got %v", rec.Duration)
		}
	})

	t.Run("delete before cutoff", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()
		now := time.Now()

		if err := store.Insert(ctx, sampleRecord("old", now.AddDate(0, 0, -10))); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if err := store.Insert(ctx, sampleRecord("new", now)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		deleted, err := store.DeleteBefore(ctx, now.AddDate(0, 0, -7))
		if err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if deleted != 1 {
			t.Errorf("expected 1 deleted, got %d", deleted)
		}

		count, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 remaining, got %d", count)
		}
	})
}

func TestRecorder(t *testing.T) {
	t.Run("writes asynchronously and drains on close", func(t *testing.T) {
		store := newTestStore(t)
		recorder := NewRecorder(store, testLogger())

		for i := 0; i < 5; i++ {
			recorder.Record(sampleRecord("", time.Now()))
		}
		if err := recorder.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		count, err := store.Count(context.Background())
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 5 {
			t.Errorf("expected 5 records after drain, got %d", count)
		}
	})

	t.Run("assigns unique IDs", func(t *testing.T) {
		store := newTestStore(t)
		recorder := NewRecorder(store, testLogger())

		recorder.Record(sampleRecord("", time.Now()))
		recorder.Record(sampleRecord("", time.Now()))
		_ = recorder.Close()

		records, err := store.Recent(context.Background(), 10)
		if err != nil {
			t.Fatalf("recent failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if records[0].ID == "" || records[0].ID == records[1].ID {
			t.Errorf("expected distinct non-empty IDs, got %q and %q", records[0].ID, records[1].ID)
		}
	})
}

func TestPruner(t *testing.T) {
	t.Run("prunes outside the retention window", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()
		now := time.Now()

		_ = store.Insert(ctx, sampleRecord("ancient", now.AddDate(0, 0, -40)))
		_ = store.Insert(ctx, sampleRecord("recent", now.AddDate(0, 0, -5)))

		pruner := NewPruner(store, 30, testLogger())
		deleted, err := pruner.Prune(ctx)
		if err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if deleted != 1 {
			t.Errorf("expected 1 pruned, got %d", deleted)
		}
	})

	t.Run("zero retention disables pruning", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()

		_ = store.Insert(ctx, sampleRecord("ancient", time.Now().AddDate(0, 0, -400)))

		pruner := NewPruner(store, 0, testLogger())
		deleted, err := pruner.Prune(ctx)
		if err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if deleted != 0 {
			t.Errorf("expected nothing pruned, got %d", deleted)
		}
	})
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	store := newTestStore(t)
	pruner := NewPruner(store, 30, testLogger())

	s := NewScheduler(pruner, "not a cron expression", testLogger())
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}

	empty := NewScheduler(pruner, "", testLogger())
	if err := empty.Start(); err != nil {
		t.Fatalf("expected empty schedule to be a no-op, got %v", err)
	}
	empty.Stop()
}
