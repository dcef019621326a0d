// Package output persists deal results and renders them for people.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gpu-hunter/pkg/models"
)

const DefaultPath = "gpu_deals.json"

// WriteJSON replaces path with results as an indented JSON array. The data is
// written to a temporary file next to path and renamed over it, so readers
// see either the old file or the new one.
func WriteJSON(path string, results []models.DealResult) error {
	if results == nil {
		results = []models.DealResult{}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("output: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(results); err != nil {
		tmp.Close()
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("output: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("output: replace %s: %w", path, err)
	}
	return nil
}

// ReadJSON loads a file written by WriteJSON.
func ReadJSON(path string) ([]models.DealResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	var results []models.DealResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("output: decode %s: %w", path, err)
	}
	if results == nil {
		results = []models.DealResult{}
	}
	return results, nil
}

// WriteRecords writes arbitrary values, typically market records from a mix
// run, as an indented JSON array.
func WriteRecords[T any](path string, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}
