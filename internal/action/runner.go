// Package action launches the command bound to a hotkey.
package action

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hotkeyd/hotkeys"
	"hotkeyd/internal/config"
	"hotkeyd/internal/procutil"
)

// Runner starts binding commands as detached children and reaps them in the
// background. Start returns as soon as the child is running, so a slow or
// long-lived command never delays the next hotkey.
type Runner struct {
	// onExit, if set, is called from the reaper goroutine when a child exits.
	onExit func(name string, err error)

	wg      sync.WaitGroup
	running atomic.Int64
	started atomic.Int64
}

// NewRunner returns an idle Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Command builds the child process for b without starting it.
func Command(b config.Binding) (*exec.Cmd, error) {
	if len(b.Command) == 0 || strings.TrimSpace(b.Command[0]) == "" {
		return nil, fmt.Errorf("binding %q has no command", b.Name)
	}
	cmd := exec.Command(b.Command[0], b.Command[1:]...)
	cmd.Dir = b.Workdir
	if len(b.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), b.Env)
	}
	procutil.Detach(cmd)
	return cmd, nil
}

// Run starts the command for b. It does not wait for the command to finish.
func (r *Runner) Run(b config.Binding) error {
	cmd, err := Command(b)
	if err != nil {
		return err
	}
	begin := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q for binding %q: %w", b.Command[0], b.Name, err)
	}
	r.started.Add(1)
	r.running.Add(1)
	slog.Debug("[DEBUG-ACTION] command started", "binding", b.Name, "pid", cmd.Process.Pid)

	r.wg.Go(func() {
		defer r.running.Add(-1)
		waitErr := cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case waitErr == nil:
			slog.Debug("[DEBUG-ACTION] command exited", "binding", b.Name, "elapsed", time.Since(begin))
		case errors.As(waitErr, &exitErr):
			slog.Warn("[WARN-ACTION] command exited with error", "binding", b.Name,
				"exitCode", exitErr.ExitCode(), "elapsed", time.Since(begin))
		default:
			slog.Warn("[WARN-ACTION] failed to wait for command", "binding", b.Name, "error", waitErr)
		}
		if r.onExit != nil {
			r.onExit(b.Name, waitErr)
		}
	})
	return nil
}

// Action returns a hotkeys.Action that runs b and logs start failures.
func (r *Runner) Action(b config.Binding) hotkeys.Action {
	return func() {
		if err := r.Run(b); err != nil {
			slog.Warn("[WARN-ACTION] hotkey action failed", "binding", b.Name, "error", err)
		}
	}
}

// Running returns the number of started children that have not exited yet.
func (r *Runner) Running() int {
	return int(r.running.Load())
}

// Started returns the number of children started since the Runner was created.
func (r *Runner) Started() int {
	return int(r.started.Load())
}

// wait blocks until every started child has exited or timeout elapses, and
// reports whether all children exited.
func (r *Runner) wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// mergeEnv overlays overrides onto base. Keys compare case-insensitively on
// Windows, where environment names are case-insensitive.
func mergeEnv(base []string, overrides map[string]string) []string {
	norm := func(k string) string { return k }
	if runtime.GOOS == "windows" {
		norm = strings.ToUpper
	}
	replaced := make(map[string]bool, len(overrides))
	for k := range overrides {
		replaced[norm(k)] = true
	}

	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if ok && key != "" && replaced[norm(key)] {
			continue
		}
		out = append(out, kv)
	}
	for k, v := range overrides {
		out = append(out, k+"="+v)
	}
	return out
}
