// Command hotkeyd runs commands when global hotkeys are pressed.
//
// Usage:
//
//	hotkeyd [-config path] [-log-level level]   run the daemon
//	hotkeyd -init [-config path]                write a starter config
//	hotkeyd -signal reload|status|stop          control a running daemon
//	hotkeyd -autostart on|off|status [-config path]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"hotkeyd/internal/autostart"
	"hotkeyd/internal/config"
	"hotkeyd/internal/daemon"
	"hotkeyd/internal/eventlog"
	"hotkeyd/internal/ipc"
	"hotkeyd/internal/singleinstance"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var (
	signalCommands    = []string{ipc.CommandReload, ipc.CommandStatus, ipc.CommandStop}
	autostartCommands = []string{"on", "off", "status"}
)

type cliOptions struct {
	configPath string
	logLevel   string
	signal     string
	autostart  string
	init       bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("hotkeyd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "config file path (default "+config.DefaultPath()+")")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides log_level in the config)")
	fs.StringVar(&opts.signal, "signal", "", "send reload, status or stop to the running daemon and exit")
	fs.StringVar(&opts.autostart, "autostart", "", "on, off or status: manage starting hotkeyd at login and exit")
	fs.BoolVar(&opts.init, "init", false, "write a starter config if none exists and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.signal != "" && !slices.Contains(signalCommands, opts.signal) {
		return opts, fmt.Errorf("-signal must be one of %v, got %q", signalCommands, opts.signal)
	}
	if opts.autostart != "" && !slices.Contains(autostartCommands, opts.autostart) {
		return opts, fmt.Errorf("-autostart must be one of %v, got %q", autostartCommands, opts.autostart)
	}
	modes := 0
	for _, set := range []bool{opts.signal != "", opts.init, opts.autostart != ""} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return opts, errors.New("-signal, -init and -autostart are mutually exclusive")
	}
	if opts.logLevel != "" {
		if _, ok := config.ParseLogLevel(opts.logLevel); !ok {
			return opts, fmt.Errorf("unknown -log-level %q", opts.logLevel)
		}
	}
	if opts.configPath == "" {
		opts.configPath = config.DefaultPath()
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, "hotkeyd:", err)
		return exitUsage
	}

	level := new(slog.LevelVar)
	if opts.logLevel != "" {
		l, _ := config.ParseLogLevel(opts.logLevel)
		level.Set(l)
	}
	events := eventlog.NewRing(eventlog.DefaultCapacity)
	base := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(eventlog.NewTeeHandler(base, slog.LevelWarn, events.Add)))
	for _, warning := range config.ConsumeDefaultPathWarnings() {
		slog.Warn("[WARN-CONFIG] " + warning)
	}

	switch {
	case opts.init:
		return runInit(opts, stdout)
	case opts.signal != "":
		return runSignal(opts.signal, stdout, stderr)
	case opts.autostart != "":
		return runAutostart(opts, stdout, stderr)
	}

	lock, err := singleinstance.TryLock(singleinstance.DefaultName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		slog.Error("[DEBUG-SINGLE] hotkeyd is already running; use -signal to control it")
		return exitError
	}
	if err != nil {
		slog.Warn("[DEBUG-SINGLE] instance lock failed, proceeding without single-instance guard", "error", err)
	}
	if lock != nil {
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				slog.Warn("[DEBUG-SINGLE] instance lock release failed", "error", releaseErr)
			}
		}()
	}

	dopts := daemon.Options{ConfigPath: opts.configPath, Watch: true, Events: events}
	if opts.logLevel == "" {
		dopts.Level = level
	}
	d, err := daemon.New(dopts)
	if err != nil {
		slog.Error("[DEBUG-DAEMON] failed to load config", "path", opts.configPath, "error", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	stopReload := notifyReload(d.Reload)
	defer stopReload()

	slog.Info("[DEBUG-DAEMON] hotkeyd starting", "config", opts.configPath, "pid", os.Getpid())
	if err := d.Run(ctx); err != nil {
		slog.Error("[DEBUG-DAEMON] hotkeyd stopped with error", "error", err)
		return exitError
	}
	slog.Info("[DEBUG-DAEMON] hotkeyd stopped")
	return exitOK
}

func runInit(opts cliOptions, stdout io.Writer) int {
	if _, err := config.EnsureFile(opts.configPath); err != nil {
		slog.Error("[WARN-CONFIG] failed to initialize config", "path", opts.configPath, "error", err)
		return exitError
	}
	fmt.Fprintln(stdout, opts.configPath)
	return exitOK
}

func runAutostart(opts cliOptions, stdout, stderr io.Writer) int {
	switch opts.autostart {
	case "on":
		exe, err := os.Executable()
		if err != nil {
			fmt.Fprintln(stderr, "hotkeyd: resolve executable:", err)
			return exitError
		}
		configPath, err := filepath.Abs(opts.configPath)
		if err != nil {
			fmt.Fprintln(stderr, "hotkeyd: resolve config path:", err)
			return exitError
		}
		if err := autostart.Enable([]string{exe, "-config", configPath}); err != nil {
			fmt.Fprintln(stderr, "hotkeyd:", err)
			return exitError
		}
	case "off":
		removed, err := autostart.Disable()
		if err != nil {
			fmt.Fprintln(stderr, "hotkeyd:", err)
			return exitError
		}
		if !removed {
			fmt.Fprintln(stdout, "autostart was not enabled")
			return exitOK
		}
	}

	st, err := autostart.Current()
	if err != nil {
		fmt.Fprintln(stderr, "hotkeyd:", err)
		return exitError
	}
	if !st.Enabled {
		fmt.Fprintln(stdout, "autostart disabled")
		return exitOK
	}
	fmt.Fprintf(stdout, "autostart enabled (%s)\n  %s\n", st.Location, st.Command)
	return exitOK
}

func runSignal(command string, stdout, stderr io.Writer) int {
	resp, err := ipc.Send("", ipc.Request{Command: command})
	if ipc.IsConnectionError(err) {
		fmt.Fprintln(stderr, "hotkeyd: no running daemon found")
		return exitError
	}
	if err != nil {
		fmt.Fprintln(stderr, "hotkeyd:", err)
		return exitError
	}
	printResponse(stdout, resp)
	if !resp.OK {
		return exitError
	}
	return exitOK
}

func printResponse(w io.Writer, resp ipc.Response) {
	if resp.Message != "" {
		fmt.Fprintln(w, resp.Message)
	}
	if len(resp.Bindings) > 0 {
		printBindings(w, resp.Bindings)
	}
	if len(resp.Events) == 0 {
		return
	}
	fmt.Fprintln(w, "\nrecent warnings:")
	for _, ev := range resp.Events {
		fmt.Fprintf(w, "%s %-5s %s\n", ev.Time.Local().Format(time.DateTime), ev.Level, ev.Message)
	}
}

func printBindings(w io.Writer, bindings []ipc.BindingStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tHOTKEY\tSTATE\tID\tERROR")
	for _, b := range bindings {
		id := "-"
		if b.ID != 0 {
			id = fmt.Sprint(b.ID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.Name, b.Hotkey, b.State, id, b.Error)
	}
	tw.Flush()
}
