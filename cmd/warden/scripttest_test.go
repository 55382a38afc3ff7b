package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"rsc.io/script"
	"rsc.io/script/scripttest"
)

func TestScripts(t *testing.T) {
	// Build the warden binary
	exeName := "warden"
	if runtime.GOOS == "windows" {
		exeName += ".exe"
	}
	exe := filepath.Join(t.TempDir(), exeName)
	if err := exec.Command("go", "build", "-o", exe, ".").Run(); err != nil {
		t.Fatal(err)
	}

	// Use longer timeout on Windows for slower process startup and I/O
	timeout := 2 * time.Second
	if runtime.GOOS == "windows" {
		timeout = 5 * time.Second
	}
	engine := script.NewEngine()
	engine.Cmds["warden"] = script.Program(exe, nil, timeout)

	// Every script must hold against both storage backends. The backend is
	// injected through the environment so the scripts stay backend-agnostic;
	// the scrubbed env also keeps host WARDEN_* settings from leaking in.
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			env := []string{
				"WARDEN_BACKEND=" + backend,
				"PATH=" + filepath.Dir(exe) + string(os.PathListSeparator) + os.Getenv("PATH"),
			}
			scripttest.Test(t, context.Background(), engine, env, "testdata/*.txt")
		})
	}
}
