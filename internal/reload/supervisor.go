package reload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"journiv/internal/logging"
)

const (
	DefaultDebounce    = 300 * time.Millisecond
	DefaultGracePeriod = 5 * time.Second
)

// RestartsEnvVar tells a supervised child how many restarts preceded it.
const RestartsEnvVar = "JOURNIV_RELOAD_RESTARTS"

// skippedDirs are never watched.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
}

// CommandFunc builds the child command for every start. restarts is 0 for
// the first child. The command must not be bound to a context: the
// supervisor stops children itself, SIGTERM first.
type CommandFunc func(restarts int) *exec.Cmd

// ParseRestarts reads a RestartsEnvVar value. Anything invalid is 0.
func ParseRestarts(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Config holds supervisor settings.
type Config struct {
	Dirs        []string
	Debounce    time.Duration
	GracePeriod time.Duration
	// Ignore reports paths whose changes do not trigger a restart.
	Ignore func(path string) bool
}

// Supervisor restarts a child process on file changes.
type Supervisor struct {
	cfg     Config
	command CommandFunc

	mu       sync.Mutex
	child    *exec.Cmd
	exited   chan struct{}
	restarts int
}

// New creates a supervisor for the command built by command.
func New(cfg Config, command CommandFunc) *Supervisor {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	return &Supervisor{cfg: cfg, command: command}
}

// Restarts returns how many times the child was restarted after a change.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Run starts the child and supervises it until ctx is cancelled. The child
// is sent SIGTERM and given the grace period to exit before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.cfg.Dirs) == 0 {
		return errors.New("reload: no directories to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reload: failed to create watcher: %w", err)
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range s.cfg.Dirs {
		n, err := addRecursive(watcher, dir)
		if err != nil {
			return err
		}
		watched += n
	}
	logging.Info("Reload: watching %d directories under %s", watched, strings.Join(s.cfg.Dirs, ", "))

	if err := s.start(0); err != nil {
		return err
	}
	defer s.stop()

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(event) {
				continue
			}
			logging.Debug("Reload: %s %s", event.Op, event.Name)

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if _, err := addRecursive(watcher, event.Name); err != nil {
						logging.Warn("Reload: %v", err)
					}
				}
			}

			if debounce == nil {
				debounce = time.NewTimer(s.cfg.Debounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(s.cfg.Debounce)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			logging.Info("Reload: change detected, restarting server")
			s.stop()
			s.mu.Lock()
			s.restarts++
			n := s.restarts
			s.mu.Unlock()
			if err := s.start(n); err != nil {
				logging.Error("Reload: restart failed: %v", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Reload: watcher error: %v", err)
		}
	}
}

func (s *Supervisor) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return false
	}
	if s.cfg.Ignore != nil && s.cfg.Ignore(event.Name) {
		return false
	}
	return true
}

func (s *Supervisor) start(restarts int) error {
	cmd := s.command(restarts)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("reload: failed to start %s: %w", cmd.Path, err)
	}

	exited := make(chan struct{})
	s.mu.Lock()
	s.child = cmd
	s.exited = exited
	s.mu.Unlock()

	logging.Info("Reload: started server (pid %d)", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		close(exited)
		if err != nil {
			logging.Warn("Reload: server exited: %v; waiting for changes", err)
		} else {
			logging.Info("Reload: server exited; waiting for changes")
		}
	}()
	return nil
}

// stop terminates the current child, escalating to a kill after the grace
// period. It is a no-op when the child already exited.
func (s *Supervisor) stop() {
	s.mu.Lock()
	cmd, exited := s.child, s.exited
	s.child, s.exited = nil, nil
	s.mu.Unlock()

	if cmd == nil {
		return
	}

	select {
	case <-exited:
		return
	default:
	}

	if err := terminate(cmd.Process); err != nil {
		logging.Debug("Reload: terminate: %v", err)
	}

	select {
	case <-exited:
	case <-time.After(s.cfg.GracePeriod):
		logging.Warn("Reload: server did not stop within %v, killing", s.cfg.GracePeriod)
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logging.Warn("Reload: kill: %v", err)
		}
		<-exited
	}
}

// addRecursive watches root and every directory below it.
func addRecursive(w *fsnotify.Watcher, root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (skippedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("reload: failed to watch %s: %w", path, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("reload: failed to watch %s: %w", root, err)
	}
	return count, nil
}
