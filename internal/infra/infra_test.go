package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestRecoverSwallowsPanic(t *testing.T) {
	t.Parallel()

	var got any
	func() {
		defer Recover(log.WithField("test", t.Name()), func(r any) { got = r })
		panic("boom")
	}()
	if got != "boom" {
		t.Fatalf("unexpected panic value %v", got)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	dir, err := EnsureDir(t.TempDir(), "a", "b")
	if err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if stat, err := os.Stat(dir); err != nil || !stat.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestMonitorFileDetectsChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bin")
	if err := os.WriteFile(path, []byte("v1"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := monitorFile(ctx, path, 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatalf("change not detected")
	}
}
