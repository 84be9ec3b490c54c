package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jgueth/campaign-automation/internal/logging"
)

const (
	JSONFile     = "campaign_report.json"
	MarkdownFile = "campaign_report.md"
)

// ErrNoReport is returned by Latest when no report exists yet.
var ErrNoReport = errors.New("no campaign report found")

// Write stores the report as JSON and markdown under dir and returns the JSON path.
func Write(r *Report, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	jsonPath := filepath.Join(dir, JSONFile)
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MarkdownFile), []byte(Render(r)), 0644); err != nil {
		return "", fmt.Errorf("failed to write markdown report: %w", err)
	}

	logging.Get(logging.CategoryReport).Info("Report saved to %s (status %s)", jsonPath, r.Status)
	return jsonPath, nil
}

// Load reads a report written by Write.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}

// Latest returns the most recently written report JSON under outputDir,
// looking one campaign directory deep and at outputDir itself.
func Latest(outputDir string) (string, error) {
	candidates, err := filepath.Glob(filepath.Join(outputDir, "*", JSONFile))
	if err != nil {
		return "", err
	}
	candidates = append(candidates, filepath.Join(outputDir, JSONFile))

	var best string
	var bestTime time.Time
	for _, c := range candidates {
		info, err := os.Stat(c)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if best == "" || info.ModTime().After(bestTime) {
			best, bestTime = c, info.ModTime()
		}
	}
	if best == "" {
		return "", ErrNoReport
	}
	return best, nil
}
