package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "MODAL_RUNNER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the directory reports are kept under when no --output is
// given. MODAL_RUNNER_HOME wins; an installed binary (<root>/bin/modal-runner)
// uses <root>; a binary run from anywhere else uses the working directory.
// The answer is computed once per process.
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetReportsDir is <home>/reports. Each run creates a timestamped
// directory below it.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}
	if exe, err := os.Executable(); err == nil {
		if root, ok := installRoot(exe); ok {
			return root
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// installRoot returns <root> for an executable at <root>/bin/<name>,
// following symlinks first.
func installRoot(exe string) (string, bool) {
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	if filepath.Base(dir) != "bin" {
		return "", false
	}
	return filepath.Dir(dir), true
}

// ResetHome forgets the computed home so tests can change MODAL_RUNNER_HOME.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
