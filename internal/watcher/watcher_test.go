package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testDebounce = 50 * time.Millisecond

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func contentFingerprint(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewCorpusWatcher_requiresCallback(t *testing.T) {
	if _, err := NewCorpusWatcher("corpus.txt", nil); err == nil {
		t.Error("expected error for nil callback")
	}
}

func TestCorpusWatcher_DebouncesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := writeFile(path, "a %% b"); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var calls []string
	w, err := NewCorpusWatcher(path, func(_ context.Context, p string) error {
		mu.Lock()
		calls = append(calls, p)
		mu.Unlock()
		return nil
	}, WithDebounce(testDebounce))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 3; i++ {
		if err := writeFile(path, "a %% b\nc %% d"); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { return w.Runs() >= 1 })
	time.Sleep(4 * testDebounce)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Errorf("expected one debounced call, got %d", len(calls))
	}
	if calls[0] != w.Path() {
		t.Errorf("callback path = %q, want %q", calls[0], w.Path())
	}
}

func TestCorpusWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.txt")
	if err := writeFile(path, "a %% b"); err != nil {
		t.Fatal(err)
	}
	w, err := NewCorpusWatcher(path, func(context.Context, string) error { return nil }, WithDebounce(testDebounce))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "notes.txt"), "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(6 * testDebounce)
	if w.Runs() != 0 {
		t.Errorf("Runs = %d, want 0", w.Runs())
	}
}

func TestCorpusWatcher_SkipsUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := writeFile(path, "a %% b"); err != nil {
		t.Fatal(err)
	}
	w, err := NewCorpusWatcher(path, func(context.Context, string) error { return nil },
		WithDebounce(testDebounce), WithFingerprint(contentFingerprint, "a %% b"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Same bytes rewritten.
	if err := writeFile(path, "a %% b"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(6 * testDebounce)
	if w.Runs() != 0 {
		t.Fatalf("unchanged content should be skipped, Runs = %d", w.Runs())
	}

	if err := writeFile(path, "a %% c"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return w.Runs() == 1 })
}

func TestCorpusWatcher_FailedRebuildRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := writeFile(path, "v1"); err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	attempts := 0
	w, err := NewCorpusWatcher(path, func(context.Context, string) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("boom")
		}
		return nil
	}, WithDebounce(testDebounce), WithFingerprint(contentFingerprint, "v1"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(path, "v2"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 1
	})
	// The failed digest is not remembered, so the same content triggers again.
	if err := writeFile(path, "v2"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return w.Runs() == 1 })
}

func TestCorpusWatcher_SerializesSlowRebuilds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := writeFile(path, "v1"); err != nil {
		t.Fatal(err)
	}
	var active, peak, calls atomic.Int32
	var mu sync.Mutex
	var seen []string
	w, err := NewCorpusWatcher(path, func(_ context.Context, p string) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		calls.Add(1)
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, string(content))
		mu.Unlock()
		time.Sleep(12 * testDebounce)
		return nil
	}, WithDebounce(testDebounce), WithFingerprint(contentFingerprint, "v1"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(path, "v2"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return active.Load() == 1 })
	// Two settled changes while the first rebuild is still running.
	if err := writeFile(path, "v3"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(3 * testDebounce)
	if err := writeFile(path, "v4"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return w.Runs() == 2 })
	time.Sleep(4 * testDebounce)

	if got := peak.Load(); got != 1 {
		t.Errorf("peak concurrent rebuilds = %d, want 1", got)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("rebuilds = %d, want 2 (one queued follow-up)", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "v2" || seen[1] != "v4" {
		t.Errorf("rebuilt contents = %v, want [v2 v4]", seen)
	}
}

func TestCorpusWatcher_StartMissingDirectory(t *testing.T) {
	w, err := NewCorpusWatcher(filepath.Join(t.TempDir(), "nope", "corpus.txt"), func(context.Context, string) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestCorpusWatcher_StopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	w, err := NewCorpusWatcher(path, func(context.Context, string) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
