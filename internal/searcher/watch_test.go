package searcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/index"
)

func TestIndexChanged(t *testing.T) {
	tests := []struct {
		name string
		file string
		op   fsnotify.Op
		want bool
	}{
		{"renamed into place", index.TermInfoFile, fsnotify.Create, true},
		{"rewritten", index.TermInfoFile, fsnotify.Write, true},
		{"removed", index.TermInfoFile, fsnotify.Remove, false},
		{"chmod", index.TermInfoFile, fsnotify.Chmod, false},
		{"temp file", index.TermInfoFile + ".tmp", fsnotify.Create, false},
		{"postings file", index.TermIndexFile, fsnotify.Create, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := fsnotify.Event{Name: filepath.Join("out", tt.file), Op: tt.op}
			assert.Equal(t, tt.want, indexChanged(ev))
		})
	}
}

func TestWatchDirDebouncesReplacements(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchDir(ctx, dir, 100*time.Millisecond, slog.Default(), func(context.Context) {
			calls.Add(1)
		})
	}()
	// give the watcher time to register
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 3; i++ {
		tmp := filepath.Join(dir, index.TermInfoFile+".tmp")
		require.NoError(t, os.WriteFile(tmp, []byte("1\t0\t1\t1\n"), 0o644))
		require.NoError(t, os.Rename(tmp, filepath.Join(dir, index.TermInfoFile)))
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestWatchDirCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not", "yet")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, watchDir(ctx, dir, time.Millisecond, slog.Default(), func(context.Context) {}))
	assert.DirExists(t, dir)
}
