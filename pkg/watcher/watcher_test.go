package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalescingSamePath(t *testing.T) {
	w := New(t.TempDir(), WithDebounce(30*time.Millisecond))
	ch := w.Subscribe()

	// rapid events on one path within the window
	w.record(Event{Path: "/team/team.md", Op: fsnotify.Create, Time: time.Now()})
	w.record(Event{Path: "/team/team.md", Op: fsnotify.Write, Time: time.Now()})
	w.record(Event{Path: "/team/team.md", Op: fsnotify.Write, Time: time.Now()})

	select {
	case batch := <-ch:
		require.Len(t, batch.Events, 1)
		assert.Equal(t, "/team/team.md", batch.Events[0].Path)
		assert.Equal(t, fsnotify.Write, batch.Events[0].Op, "most recent op wins")
		assert.NotEmpty(t, batch.ID)
	case <-time.After(time.Second):
		t.Fatal("expected exactly one batch")
	}

	// no second batch follows
	select {
	case batch := <-ch:
		t.Fatalf("unexpected second batch: %+v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDistinctPathsBatchTogether(t *testing.T) {
	w := New(t.TempDir(), WithDebounce(30*time.Millisecond))
	ch := w.Subscribe()

	w.record(Event{Path: "a.md", Op: fsnotify.Write})
	w.record(Event{Path: "b.md", Op: fsnotify.Remove})

	select {
	case batch := <-ch:
		assert.Len(t, batch.Events, 2)
	case <-time.After(time.Second):
		t.Fatal("expected a batch")
	}
}

func TestTimerReArmedByLaterEvents(t *testing.T) {
	w := New(t.TempDir(), WithDebounce(80*time.Millisecond))
	ch := w.Subscribe()

	w.record(Event{Path: "a.md", Op: fsnotify.Write})
	time.Sleep(40 * time.Millisecond)
	w.record(Event{Path: "b.md", Op: fsnotify.Write})

	// the first event alone must not have flushed at the original deadline
	select {
	case <-ch:
		t.Fatal("flush fired before the re-armed window elapsed")
	case <-time.After(60 * time.Millisecond):
	}

	select {
	case batch := <-ch:
		assert.Len(t, batch.Events, 2)
	case <-time.After(time.Second):
		t.Fatal("expected the re-armed batch")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	tmp := t.TempDir()
	w := New(tmp, WithDebounce(20*time.Millisecond))

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx), "starting a started watcher is a no-op")

	w.Stop()
	w.Stop() // stopping a stopped watcher is a no-op
}

func TestWatchesFilesystemChanges(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "sessions"), 0o755))

	w := New(tmp, WithDebounce(50*time.Millisecond))
	ch := w.Subscribe()
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "sessions", "2026-02-12-topic.md"), []byte("x"), 0o644))
	// non-markdown files are filtered out
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "sessions", "scratch.txt"), []byte("x"), 0o644))

	select {
	case batch := <-ch:
		require.Len(t, batch.Events, 1)
		assert.Equal(t, filepath.Join(tmp, "sessions", "2026-02-12-topic.md"), batch.Events[0].Path)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a batch from the filesystem watcher")
	}
}
