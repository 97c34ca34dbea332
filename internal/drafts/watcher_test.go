package drafts

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/vssflow/internal/storage"
	"github.com/starford/vssflow/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(kind, path string) {
	l.mu.Lock()
	l.events = append(l.events, kind+":"+path)
	l.mu.Unlock()
}

func (l *eventLog) has(e string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, got := range l.events {
		if got == e {
			return true
		}
	}
	return false
}

func (l *eventLog) count(e string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, got := range l.events {
		if got == e {
			n++
		}
	}
	return n
}

func startWatch(t *testing.T) (string, *eventLog) {
	dir, _, log := startWatchStore(t)
	return dir, log
}

func startWatchStore(t *testing.T) (string, storage.Provider, *eventLog) {
	t.Helper()
	dir, store := testutil.TestDrafts(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-done
	})

	log := &eventLog{}
	go func() {
		defer close(done)
		_ = Watch(ctx, store, logger, log.add)
	}()
	time.Sleep(100 * time.Millisecond)
	return dir, store, log
}

func TestWatcher_CreateUpdateDelete(t *testing.T) {
	dir, log := startWatch(t)
	p := filepath.Join(dir, "cap.yaml")

	_ = os.WriteFile(p, []byte("name: cap\n"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("created:cap.yaml")
	}, "created event not emitted")

	_ = os.WriteFile(p, []byte("name: cap v2\n"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("updated:cap.yaml")
	}, "updated event not emitted")

	_ = os.Remove(p)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("deleted:cap.yaml")
	}, "deleted event not emitted")
}

func TestWatcher_IgnoresNonDrafts(t *testing.T) {
	dir, log := startWatch(t)
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "real.yaml"), []byte("name: r\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("created:real.yaml")
	}, "draft not reported")
	if log.has("created:notes.txt") {
		t.Error("non-draft file reported")
	}
}

func TestWatcher_UnchangedContentNotReported(t *testing.T) {
	_, store, log := startWatchStore(t)
	if err := store.Write("same.yaml", []byte("name: same\n")); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("created:same.yaml")
	}, "created event not emitted")
	time.Sleep(100 * time.Millisecond)
	before := log.count("updated:same.yaml")

	// Atomic rewrite with identical bytes.
	if err := store.Write("same.yaml", []byte("name: same\n")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if n := log.count("updated:same.yaml"); n != before {
		t.Errorf("updated events = %d, want %d", n, before)
	}
	if n := log.count("created:same.yaml"); n != 1 {
		t.Errorf("created events = %d, want 1", n)
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir, log := startWatch(t)
	sub := filepath.Join(dir, "line-b")
	_ = os.MkdirAll(sub, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(sub, "gate.yaml"), []byte("name: gate\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("created:line-b/gate.yaml")
	}, "draft in new subdirectory not reported")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, log := startWatch(t)
	oldPath := filepath.Join(dir, "old.yaml")
	_ = os.WriteFile(oldPath, []byte("name: moved\n"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("created:old.yaml")
	}, "created event not emitted")

	_ = os.Rename(oldPath, filepath.Join(dir, "new.yaml"))
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("deleted:old.yaml") && log.has("created:new.yaml")
	}, "rename not reconciled")
}
