package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
)

// SaveResultLocal stores a merged PDF in the local results directory and
// returns the filesystem path. Directory defaults to ./uploads/results.
func SaveResultLocal(dir, jobID string, pdf []byte) (string, error) {
	if dir == "" {
		dir = filepath.Join("uploads", "results")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, fmt.Sprintf("%s_merged.pdf", jobID))
	if err := os.WriteFile(p, pdf, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// LoadResultLocal reads a previously saved merged PDF by job id.
func LoadResultLocal(dir, jobID string) ([]byte, error) {
	if dir == "" {
		dir = filepath.Join("uploads", "results")
	}
	return os.ReadFile(filepath.Join(dir, fmt.Sprintf("%s_merged.pdf", jobID)))
}
