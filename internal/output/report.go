package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report is the envelope of a saved result file.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Result    any       `json:"result"`
}

// WriteReport writes result into dir as {kind}-{YYYYMMDD-HHMMSS}.json,
// creating dir when needed, and returns the file path.
func WriteReport(dir, kind string, now time.Time, result any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", kind, now.UTC().Format("20060102-150405")))

	b, err := json.MarshalIndent(Report{Timestamp: now.UTC(), Kind: kind, Result: result}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
