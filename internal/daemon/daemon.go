// Package daemon runs the hotkeyd supervisor: it claims every configured
// binding, launches commands when hotkeys fire, and swaps in a fresh
// Listener whenever the configuration is reloaded.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"hotkeyd/hotkeys"
	"hotkeyd/internal/action"
	"hotkeyd/internal/config"
	"hotkeyd/internal/eventlog"
	"hotkeyd/internal/ipc"
	"hotkeyd/internal/watch"
	"hotkeyd/internal/workerutil"
)

// reloadTimeout bounds how long a control client waits for a reload.
const reloadTimeout = 10 * time.Second

// ErrNotRunning is returned when a request reaches a daemon whose Run loop
// has not started or has already returned.
var ErrNotRunning = errors.New("daemon is not running")

// Options configures a Daemon. Zero values select the production defaults.
type Options struct {
	ConfigPath string

	// NewListener creates the Listener for each configuration generation.
	// Defaults to hotkeys.New.
	NewListener func() (*hotkeys.Listener, error)
	// ActionFor builds the action bound to a binding. Defaults to
	// Runner.Action.
	ActionFor func(b config.Binding) hotkeys.Action
	Runner    *action.Runner

	// Level, if set, follows the log_level of each loaded configuration.
	Level *slog.LevelVar
	// Events, if set, supplies the recent warnings reported by status.
	Events *eventlog.Ring

	// Endpoint is the control endpoint; empty means ipc.DefaultEndpoint().
	Endpoint   string
	DisableIPC bool

	Watch    bool
	Debounce time.Duration
}

type reloadRequest struct {
	reply chan<- error
}

type generation struct {
	number   int
	runID    string
	listener *hotkeys.Listener
}

// Daemon supervises one hotkey Listener per configuration generation.
type Daemon struct {
	opts Options

	reloadCh chan reloadRequest
	stopCh   chan struct{}
	stopOnce sync.Once
	started  chan struct{}
	exiting  chan struct{}
	done     chan struct{}

	mu         sync.Mutex
	cfg        config.Config
	generation int
	runID      string
	bindings   []ipc.BindingStatus
	lastReload error
}

// New loads the configuration at opts.ConfigPath and returns a Daemon ready
// to Run. A missing file yields the default configuration.
func New(opts Options) (*Daemon, error) {
	if opts.ConfigPath == "" {
		return nil, errors.New("daemon: config path required")
	}
	if opts.NewListener == nil {
		opts.NewListener = hotkeys.New
	}
	if opts.Runner == nil {
		opts.Runner = action.NewRunner()
	}
	if opts.ActionFor == nil {
		opts.ActionFor = opts.Runner.Action
	}
	if opts.Debounce <= 0 {
		opts.Debounce = watch.DefaultDebounce
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	return &Daemon{
		opts:     opts,
		cfg:      cfg,
		reloadCh: make(chan reloadRequest, 1),
		stopCh:   make(chan struct{}),
		started:  make(chan struct{}),
		exiting:  make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Run claims the configured bindings and serves hotkeys until ctx is
// cancelled or Stop is called, reloading on request. It returns nil on a
// requested shutdown and an error when no Listener can be created or the
// notification source fails. Run may be called once.
func (d *Daemon) Run(ctx context.Context) error {
	select {
	case <-d.started:
		return errors.New("daemon: Run called twice")
	default:
	}
	close(d.started)
	defer close(d.done)

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !d.opts.DisableIPC {
		srv := ipc.NewServer(d.opts.Endpoint, d)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start control server: %w", err)
		}
		defer srv.Stop()
	}
	if d.opts.Watch {
		workerutil.RunWithPanicRecovery(ctx, "config-watch", &wg, func(ctx context.Context) {
			if err := watch.File(ctx, d.opts.ConfigPath, d.opts.Debounce, d.Reload); err != nil {
				slog.Warn("[WARN-DAEMON] config watcher stopped, automatic reload disabled", "error", err)
			}
		}, workerutil.RecoveryOptions{})
	}

	err := d.loop(ctx)
	close(d.exiting)
	if n := d.opts.Runner.Running(); n > 0 {
		slog.Info("[DEBUG-DAEMON] leaving launched commands running", "count", n)
	}
	return err
}

// loop runs configuration generations back to back until shutdown.
func (d *Daemon) loop(ctx context.Context) error {
	d.mu.Lock()
	cfg := d.cfg
	d.mu.Unlock()

	var reply chan<- error
	for {
		gen, err := d.startGeneration(cfg)
		if reply != nil {
			reply <- err
			reply = nil
		}
		if err != nil {
			return err
		}

		listenErr := make(chan error, 1)
		go func() { listenErr <- gen.listener.Listen(ctx) }()

		next, nextReply, runErr, listenDone := d.serve(ctx, listenErr)
		if closeErr := gen.listener.Close(); closeErr != nil {
			slog.Warn("[WARN-DAEMON] failed to close listener", "generation", gen.number, "runID", gen.runID, "error", closeErr)
		}
		if !listenDone {
			<-listenErr
		}
		slog.Debug("[DEBUG-DAEMON] generation stopped", "generation", gen.number, "runID", gen.runID)

		if next == nil {
			return runErr
		}
		cfg, reply = *next, nextReply
	}
}

// serve waits for the current generation to end. It returns the next
// configuration on a successful reload, or nil when the daemon should exit.
func (d *Daemon) serve(ctx context.Context, listenErr <-chan error) (next *config.Config, reply chan<- error, err error, listenDone bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, nil, nil, false
		case <-d.stopCh:
			return nil, nil, nil, false
		case err := <-listenErr:
			if ctx.Err() != nil {
				return nil, nil, nil, true
			}
			if err != nil {
				return nil, nil, fmt.Errorf("hotkey listener: %w", err), true
			}
			slog.Warn("[WARN-DAEMON] hotkey notification stream ended, shutting down")
			return nil, nil, nil, true
		case req := <-d.reloadCh:
			cfg, err := config.Load(d.opts.ConfigPath)
			d.mu.Lock()
			d.lastReload = err
			d.mu.Unlock()
			if err != nil {
				slog.Warn("[WARN-DAEMON] reload rejected, keeping current bindings", "error", err)
				if req.reply != nil {
					req.reply <- err
				}
				continue
			}
			slog.Info("[DEBUG-DAEMON] configuration reloaded", "path", d.opts.ConfigPath, "bindings", len(cfg.Bindings))
			return &cfg, req.reply, nil, false
		}
	}
}

// startGeneration creates a Listener for cfg and claims every enabled
// binding. Claims that fail are logged and reported by status; they do not
// prevent the others from being served.
func (d *Daemon) startGeneration(cfg config.Config) (*generation, error) {
	listener, err := d.opts.NewListener()
	if err != nil {
		return nil, fmt.Errorf("create hotkey listener: %w", err)
	}

	d.mu.Lock()
	number := d.generation + 1
	d.mu.Unlock()
	gen := &generation{number: number, runID: uuid.NewString(), listener: listener}

	if d.opts.Level != nil {
		d.opts.Level.Set(cfg.Level())
	}

	statuses := make([]ipc.BindingStatus, 0, len(cfg.Bindings))
	active := 0
	for _, b := range cfg.Bindings {
		st := ipc.BindingStatus{Name: b.Name, Hotkey: b.Hotkey}
		if parsed, err := hotkeys.ParseBinding(b.Hotkey); err == nil {
			st.Hotkey = parsed.Normalized()
		}
		if b.Disabled {
			st.State = ipc.StateDisabled
			statuses = append(statuses, st)
			continue
		}
		id, err := listener.RegisterBinding(b.Hotkey, d.opts.ActionFor(b))
		if err != nil {
			slog.Warn("[WARN-DAEMON] binding registration failed",
				"binding", b.Name, "hotkey", st.Hotkey, "runID", gen.runID, "error", err)
			st.State = ipc.StateFailed
			st.Error = err.Error()
		} else {
			st.State = ipc.StateActive
			st.ID = int32(id)
			active++
		}
		statuses = append(statuses, st)
	}

	d.mu.Lock()
	d.cfg = cfg
	d.generation = number
	d.runID = gen.runID
	d.bindings = statuses
	d.mu.Unlock()

	slog.Info("[DEBUG-DAEMON] generation started",
		"generation", number, "runID", gen.runID, "active", active, "configured", len(cfg.Bindings))
	return gen, nil
}

// Reload asks the Run loop to re-read the configuration. Requests made while
// one is already pending are coalesced.
func (d *Daemon) Reload() {
	select {
	case d.reloadCh <- reloadRequest{}:
	default:
		slog.Debug("[DEBUG-DAEMON] reload already pending")
	}
}

// reloadAndWait requests a reload and waits for the new generation to start.
func (d *Daemon) reloadAndWait(timeout time.Duration) error {
	select {
	case <-d.started:
	default:
		return ErrNotRunning
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	reply := make(chan error, 1)
	select {
	case d.reloadCh <- reloadRequest{reply: reply}:
	case <-d.exiting:
		return ErrNotRunning
	case <-timer.C:
		return errors.New("timed out queueing reload")
	}
	select {
	case err := <-reply:
		return err
	case <-d.exiting:
		return ErrNotRunning
	case <-timer.C:
		return errors.New("timed out waiting for reload")
	}
}

// Stop asks the Run loop to release every hotkey and return.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Done is closed when Run returns.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Status returns the current generation number and its binding states.
func (d *Daemon) Status() (int, []ipc.BindingStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation, append([]ipc.BindingStatus(nil), d.bindings...)
}

// Handle implements ipc.Handler.
func (d *Daemon) Handle(req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return d.statusResponse("")
	case ipc.CommandReload:
		if err := d.reloadAndWait(reloadTimeout); err != nil {
			resp := d.statusResponse("")
			resp.OK = false
			resp.Message = "reload failed: " + err.Error()
			return resp
		}
		return d.statusResponse("reloaded")
	case ipc.CommandStop:
		d.Stop()
		return ipc.Response{OK: true, Message: "stopping"}
	default:
		return ipc.Response{Message: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (d *Daemon) statusResponse(prefix string) ipc.Response {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := map[string]int{}
	for _, b := range d.bindings {
		counts[b.State]++
	}
	msg := fmt.Sprintf("generation %d (run %s): %d active, %d failed, %d disabled",
		d.generation, d.runID, counts[ipc.StateActive], counts[ipc.StateFailed], counts[ipc.StateDisabled])
	msg += fmt.Sprintf("; %d commands launched, %d running", d.opts.Runner.Started(), d.opts.Runner.Running())
	if d.lastReload != nil {
		msg += "; last reload failed: " + d.lastReload.Error()
	}
	if prefix != "" {
		msg = prefix + "; " + msg
	}
	return ipc.Response{
		OK:       true,
		Message:  msg,
		Bindings: append([]ipc.BindingStatus(nil), d.bindings...),
		Events:   d.recentEvents(),
	}
}

func (d *Daemon) recentEvents() []ipc.Event {
	if d.opts.Events == nil {
		return nil
	}
	captured := d.opts.Events.Snapshot()
	events := make([]ipc.Event, 0, len(captured))
	for _, ev := range captured {
		events = append(events, ipc.Event{Time: ev.Time, Level: ev.Level.String(), Message: ev.Message})
	}
	return events
}
