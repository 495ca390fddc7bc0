package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"hotkeyd/internal/ipc"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    cliOptions
		wantErr string
	}{
		{
			name: "signal with explicit config",
			args: []string{"-config", "/tmp/hk.yaml", "-signal", "reload"},
			want: cliOptions{configPath: "/tmp/hk.yaml", signal: "reload"},
		},
		{
			name: "init with log level",
			args: []string{"-init", "-log-level", "debug", "-config", "/tmp/hk.yaml"},
			want: cliOptions{configPath: "/tmp/hk.yaml", logLevel: "debug", init: true},
		},
		{name: "unknown signal", args: []string{"-signal", "restart"}, wantErr: "-signal must be one of"},
		{name: "signal and init", args: []string{"-signal", "stop", "-init"}, wantErr: "mutually exclusive"},
		{name: "init and autostart", args: []string{"-init", "-autostart", "on"}, wantErr: "mutually exclusive"},
		{name: "unknown autostart", args: []string{"-autostart", "maybe"}, wantErr: "-autostart must be one of"},
		{
			name: "autostart status",
			args: []string{"-autostart", "status", "-config", "/tmp/hk.yaml"},
			want: cliOptions{configPath: "/tmp/hk.yaml", autostart: "status"},
		},
		{name: "unknown log level", args: []string{"-log-level", "loud"}, wantErr: "unknown -log-level"},
		{name: "positional args", args: []string{"extra"}, wantErr: "unexpected arguments"},
		{name: "unknown flag", args: []string{"-verbose"}, wantErr: "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			got, err := parseFlags(tt.args, &stderr)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseFlags error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlags: %v", err)
			}
			if got != tt.want {
				t.Fatalf("parseFlags = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFlagsDefaultsConfigPath(t *testing.T) {
	got, err := parseFlags(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if got.configPath == "" || filepath.Base(got.configPath) != "config.yaml" {
		t.Fatalf("configPath = %q, want default config.yaml path", got.configPath)
	}
}

func TestRunUsageErrorExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-signal", "bogus"}, &stdout, &stderr); code != exitUsage {
		t.Fatalf("exit code = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr.String(), "-signal must be one of") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunHelpExitsZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-h"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, want %d", code, exitOK)
	}
	if !strings.Contains(stderr.String(), "-signal") {
		t.Fatalf("usage output missing flags: %q", stderr.String())
	}
}

func TestRunInitWritesConfigOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-init", "-config", path}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != path {
		t.Fatalf("stdout = %q, want %q", stdout.String(), path)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(first), "bindings") {
		t.Fatalf("initial config missing bindings:\n%s", first)
	}

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if code := run([]string{"-init", "-config", path}, &bytes.Buffer{}, &bytes.Buffer{}); code != exitOK {
		t.Fatalf("second init exit code = %d", code)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(second) != "log_level: debug\n" {
		t.Fatalf("init overwrote existing config:\n%s", second)
	}
}

func TestRunSignalWithoutDaemon(t *testing.T) {
	t.Setenv("HOTKEYD_ENDPOINT", testEndpoint(t))
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-signal", "status"}, &stdout, &stderr); code != exitError {
		t.Fatalf("exit code = %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr.String(), "no running daemon") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunSignalPrintsStatus(t *testing.T) {
	endpoint := testEndpoint(t)
	t.Setenv("HOTKEYD_ENDPOINT", endpoint)

	var (
		mu  sync.Mutex
		got []string
	)
	srv := ipc.NewServer(endpoint, ipc.HandlerFunc(func(req ipc.Request) ipc.Response {
		mu.Lock()
		got = append(got, req.Command)
		mu.Unlock()
		if req.Command == ipc.CommandReload {
			return ipc.Response{Message: "reload failed: bindings[0]: command is required"}
		}
		return ipc.Response{
			OK:      true,
			Message: "generation 1: 1 active, 1 failed, 0 disabled",
			Bindings: []ipc.BindingStatus{
				{Name: "term", Hotkey: "Ctrl+Alt+T", ID: 1, State: ipc.StateActive},
				{Name: "shot", Hotkey: "Ctrl+PRINT_SCREEN", State: ipc.StateFailed, Error: "already registered"},
			},
		}
	}))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-signal", "status"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("status exit code = %d, stderr = %q", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"generation 1", "NAME", "term", "Ctrl+Alt+T", "active", "shot", "failed", "already registered"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	stdout.Reset()
	if code := run([]string{"-signal", "reload"}, &stdout, &stderr); code != exitError {
		t.Fatalf("failed reload exit code = %d, want %d", code, exitError)
	}
	if !strings.Contains(stdout.String(), "command is required") {
		t.Fatalf("reload output = %q", stdout.String())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != ipc.CommandStatus || got[1] != ipc.CommandReload {
		t.Fatalf("server saw commands %v", got)
	}
}

func TestPrintResponseMarksUnclaimedID(t *testing.T) {
	var buf bytes.Buffer
	printResponse(&buf, ipc.Response{Bindings: []ipc.BindingStatus{{Name: "off", Hotkey: "Ctrl+A", State: ipc.StateDisabled}}})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if fields := strings.Fields(lines[1]); len(fields) != 4 || fields[3] != "-" {
		t.Fatalf("row = %q, want placeholder ID", lines[1])
	}
}

func TestPrintResponseListsEvents(t *testing.T) {
	var buf bytes.Buffer
	printResponse(&buf, ipc.Response{
		OK:     true,
		Events: []ipc.Event{{Time: time.Now(), Level: "WARN", Message: "[WARN-ACTION] command exited with error binding=term"}},
	})
	out := buf.String()
	if !strings.Contains(out, "recent warnings:") || !strings.Contains(out, "binding=term") {
		t.Fatalf("output = %q", out)
	}
	if strings.Contains(out, "NAME") {
		t.Fatalf("binding table printed without bindings: %q", out)
	}
}
