//go:build windows

package autostart

import (
	"fmt"
	"os"
	"testing"

	"golang.org/x/sys/windows/registry"
)

func useScratchRunKey(t *testing.T) {
	t.Helper()
	orig := runKeyPath
	runKeyPath = fmt.Sprintf(`Software\hotkeyd-test-%d`, os.Getpid())
	t.Cleanup(func() {
		registry.DeleteKey(registry.CURRENT_USER, runKeyPath)
		runKeyPath = orig
	})
}

func TestEnableDisableRunValue(t *testing.T) {
	useScratchRunKey(t)

	st, err := Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if st.Enabled {
		t.Fatalf("scratch key already enabled: %+v", st)
	}

	args := []string{`C:\Program Files\hotkeyd\hotkeyd.exe`, "-config", `C:\Users\me\hotkeyd\config.yaml`}
	if err := Enable(args); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	st, err = Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	want := `"C:\Program Files\hotkeyd\hotkeyd.exe" -config C:\Users\me\hotkeyd\config.yaml`
	if !st.Enabled || st.Command != want {
		t.Fatalf("Current = %+v, want command %q", st, want)
	}

	removed, err := Disable()
	if err != nil || !removed {
		t.Fatalf("Disable = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = Disable()
	if err != nil || removed {
		t.Fatalf("second Disable = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestEnableRequiresExecutable(t *testing.T) {
	useScratchRunKey(t)
	if err := Enable(nil); err == nil {
		t.Fatal("Enable(nil) succeeded, want error")
	}
}
