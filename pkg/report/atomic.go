package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// atomicWriteJSON writes v as indented JSON via a temp file and rename, so
// readers polling report.json never see a partial file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(path, data, 0o644)
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}

	// On Windows, rename fails if target exists
	if runtime.GOOS == "windows" {
		os.Remove(path)
	}
	return os.Rename(tmpPath, path)
}

// ReadReport reads report.json from reportDir.
func ReadReport(reportDir string) (*Report, error) {
	path := filepath.Join(reportDir, "report.json")
	data, err := os.ReadFile(path) //#nosec G304 -- report directory from config
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &r, nil
}
