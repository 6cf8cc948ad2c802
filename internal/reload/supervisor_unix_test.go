//go:build unix

package reload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestSupervisorStopsChildGracefully(t *testing.T) {
	watchDir := t.TempDir()
	signalDir := t.TempDir()
	var starts atomic.Int32

	s := New(Config{Dirs: []string{watchDir}, Debounce: 50 * time.Millisecond, GracePeriod: 5 * time.Second},
		helperCommand(&starts, false, "JOURNIV_HELPER_SIGNAL_DIR="+signalDir))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, "child to install its SIGTERM handler", func() bool {
		_, err := os.Stat(filepath.Join(signalDir, "ready"))
		return err == nil
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	restarts, err := os.ReadFile(filepath.Join(signalDir, "graceful"))
	if err != nil {
		t.Fatalf("child did not shut down through its SIGTERM handler: %v", err)
	}
	if string(restarts) != "0" {
		t.Errorf("first child saw %s=%q, want 0", RestartsEnvVar, restarts)
	}
}

func TestSupervisorPassesRestartCount(t *testing.T) {
	watchDir := t.TempDir()
	signalDir := t.TempDir()
	var starts atomic.Int32

	s := New(Config{Dirs: []string{watchDir}, Debounce: 50 * time.Millisecond, GracePeriod: 5 * time.Second},
		helperCommand(&starts, false, "JOURNIV_HELPER_SIGNAL_DIR="+signalDir))
	runSupervisor(t, s)

	ready := filepath.Join(signalDir, "ready")
	waitFor(t, "first child", func() bool {
		_, err := os.Stat(ready)
		return err == nil
	})
	if err := os.Remove(ready); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(watchDir, "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	waitFor(t, "second child", func() bool {
		_, err := os.Stat(ready)
		return err == nil
	})
	if got, _ := os.ReadFile(ready); string(got) != "1" {
		t.Errorf("second child saw %s=%q, want 1", RestartsEnvVar, got)
	}
	if got := s.Restarts(); got != 1 {
		t.Errorf("Restarts() = %d, want 1", got)
	}
	if got := starts.Load(); got != 2 {
		t.Errorf("starts = %d, want 2", got)
	}
}
