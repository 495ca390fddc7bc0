package action

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"hotkeyd/internal/config"
	"hotkeyd/internal/testutil"
)

// TestHelperProcess is not a real test; it is the child launched by the
// runner tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("HOTKEYD_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 0 {
		args = args[1:]
	}
	switch {
	case len(args) == 2 && args[0] == "write-env":
		wd, _ := os.Getwd()
		os.WriteFile(args[1], []byte(os.Getenv("HOTKEYD_TEST_VALUE")+"\n"+wd), 0o600)
		os.Exit(0)
	case len(args) == 1 && args[0] == "fail":
		os.Exit(3)
	}
	os.Exit(0)
}

func helperBinding(name string, args ...string) config.Binding {
	command := append([]string{os.Args[0], "-test.run=TestHelperProcess", "--"}, args...)
	return config.Binding{
		Name:    name,
		Hotkey:  "Ctrl+Alt+T",
		Command: command,
		Env:     map[string]string{"HOTKEYD_HELPER_PROCESS": "1"},
	}
}

type exitRecorder struct {
	mu    sync.Mutex
	exits map[string]error
	done  chan string
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{exits: make(map[string]error), done: make(chan string, 8)}
}

func (r *exitRecorder) record(name string, err error) {
	r.mu.Lock()
	r.exits[name] = err
	r.mu.Unlock()
	r.done <- name
}

func (r *exitRecorder) wait(t *testing.T, name string) error {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case got := <-r.done:
			if got == name {
				r.mu.Lock()
				defer r.mu.Unlock()
				return r.exits[name]
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q to exit", name)
			return nil
		}
	}
}

func TestRunnerPassesEnvAndWorkdir(t *testing.T) {
	workdir := t.TempDir()
	out := filepath.Join(t.TempDir(), "out.txt")

	b := helperBinding("env", "write-env", out)
	b.Env["HOTKEYD_TEST_VALUE"] = "from-binding"
	b.Workdir = workdir

	rec := newExitRecorder()
	r := NewRunner()
	r.onExit = rec.record

	if err := r.Run(b); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := rec.wait(t, "env"); err != nil {
		t.Fatalf("child exit err = %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.SplitN(string(raw), "\n", 2)
	if lines[0] != "from-binding" {
		t.Fatalf("env value = %q, want from-binding", lines[0])
	}
	gotDir := testutil.ResolvePath(lines[1])
	wantDir := testutil.ResolvePath(workdir)
	if !strings.EqualFold(gotDir, wantDir) {
		t.Fatalf("workdir = %q, want %q", gotDir, wantDir)
	}
	if r.Started() != 1 {
		t.Fatalf("Started() = %d, want 1", r.Started())
	}
}

func TestRunnerReportsExitFailure(t *testing.T) {
	rec := newExitRecorder()
	r := NewRunner()
	r.onExit = rec.record

	if err := r.Run(helperBinding("fail", "fail")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := rec.wait(t, "fail"); err == nil {
		t.Fatal("child exit err = nil, want exit status 3")
	}
	if !r.wait(5 * time.Second) {
		t.Fatal("Wait timed out")
	}
	if r.Running() != 0 {
		t.Fatalf("Running() = %d, want 0", r.Running())
	}
}

func TestRunnerStartFailure(t *testing.T) {
	r := NewRunner()
	b := config.Binding{Name: "missing", Command: []string{filepath.Join(t.TempDir(), "no-such-program")}}
	err := r.Run(b)
	if err == nil {
		t.Fatal("Run succeeded for missing program")
	}
	if !strings.Contains(err.Error(), `binding "missing"`) {
		t.Fatalf("error = %q, want binding name", err)
	}
	if r.Started() != 0 || r.Running() != 0 {
		t.Fatalf("counters = (%d, %d), want zero", r.Started(), r.Running())
	}
}

func TestActionSwallowsStartFailure(t *testing.T) {
	r := NewRunner()
	action := r.Action(config.Binding{Name: "missing", Command: []string{filepath.Join(t.TempDir(), "nope")}})
	// Must not panic.
	action()
}

func TestCommandRequiresProgram(t *testing.T) {
	for _, argv := range [][]string{nil, {""}, {"  "}} {
		if _, err := Command(config.Binding{Name: "x", Command: argv}); err == nil {
			t.Fatalf("Command(%q) succeeded", argv)
		}
	}
}

func TestCommandInheritsEnvironmentWithoutOverrides(t *testing.T) {
	cmd, err := Command(config.Binding{Name: "x", Command: []string{"prog", "a b", "c"}})
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if cmd.Env != nil {
		t.Fatalf("Env = %v, want nil (inherit)", cmd.Env)
	}
	if want := []string{"prog", "a b", "c"}; !slices.Equal(cmd.Args, want) {
		t.Fatalf("Args = %q, want %q", cmd.Args, want)
	}
	if cmd.SysProcAttr == nil {
		t.Fatal("SysProcAttr not configured")
	}
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/home/u", "Mixed=1", "=C:=C:\\"}
	got := mergeEnv(base, map[string]string{"HOME": "/tmp", "NEW": "v", "MIXED": "2"})
	slices.Sort(got)

	want := []string{"=C:=C:\\", "HOME=/tmp", "MIXED=2", "Mixed=1", "NEW=v", "PATH=/bin"}
	if runtime.GOOS == "windows" {
		want = []string{"=C:=C:\\", "HOME=/tmp", "MIXED=2", "NEW=v", "PATH=/bin"}
	}
	if !slices.Equal(got, want) {
		t.Fatalf("mergeEnv() = %q, want %q", got, want)
	}
}

func TestRunnerConcurrentRuns(t *testing.T) {
	r := NewRunner()
	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Go(func() {
			errs <- r.Run(helperBinding(fmt.Sprintf("ok-%d", i)))
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if !r.wait(10 * time.Second) {
		t.Fatal("Wait timed out")
	}
	if r.Started() != n {
		t.Fatalf("Started() = %d, want %d", r.Started(), n)
	}
}
