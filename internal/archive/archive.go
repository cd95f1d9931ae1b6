package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Categories of archived exchange records, each its own directory.
const (
	CategoryRequests  = "requests"
	CategoryResponses = "responses"
	CategorySessions  = "sessions"
)

var categories = []string{CategoryRequests, CategoryResponses, CategorySessions}

// Archive mirrors exchange records to JSON files on disk, one file per
// record, grouped by category. The files feed /storage/stats and are
// subject to the same retention sweep as the database rows.
type Archive struct {
	baseDir string
}

func New(baseDir string) (*Archive, error) {
	for _, category := range categories {
		dir := filepath.Join(baseDir, category)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir %s failed: %w", dir, err)
		}
	}
	return &Archive{baseDir: baseDir}, nil
}

func (a *Archive) BaseDir() string {
	return a.baseDir
}

// WriteJSON stores one record under <base>/<category>/<name>.json.
func (a *Archive) WriteJSON(category, name string, record any) error {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive record failed: %w", err)
	}

	path := filepath.Join(a.baseDir, category, name+".json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write archive file failed: %w", err)
	}
	return nil
}

type CategoryStats struct {
	FileCount int     `json:"file_count"`
	SizeBytes int64   `json:"size_bytes"`
	SizeMB    float64 `json:"size_mb"`
}

// Stats walks each category directory and totals its JSON files.
func (a *Archive) Stats() (map[string]CategoryStats, int64) {
	stats := make(map[string]CategoryStats, len(categories))
	var totalSize int64

	for _, category := range categories {
		var cs CategoryStats
		entries, err := os.ReadDir(filepath.Join(a.baseDir, category))
		if err == nil {
			for _, entry := range entries {
				if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
					continue
				}
				info, infoErr := entry.Info()
				if infoErr != nil {
					continue
				}
				cs.FileCount++
				cs.SizeBytes += info.Size()
			}
		}
		cs.SizeMB = roundMB(cs.SizeBytes)
		stats[category] = cs
		totalSize += cs.SizeBytes
	}
	return stats, totalSize
}

// Directories maps category name to its absolute-ish path for introspection.
func (a *Archive) Directories() map[string]string {
	dirs := map[string]string{"base": a.baseDir}
	for _, category := range categories {
		dirs[category] = filepath.Join(a.baseDir, category)
	}
	return dirs
}

// CleanupOlderThan deletes archive files last modified before the cutoff.
// Returns deleted and error counts.
func (a *Archive) CleanupOlderThan(cutoff time.Time) (deleted, errored int) {
	for _, category := range categories {
		dir := filepath.Join(a.baseDir, category)
		entries, err := os.ReadDir(dir)
		if err != nil {
			errored++
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			info, infoErr := entry.Info()
			if infoErr != nil {
				errored++
				continue
			}
			if info.ModTime().Before(cutoff) {
				if rmErr := os.Remove(filepath.Join(dir, entry.Name())); rmErr != nil {
					errored++
					continue
				}
				deleted++
			}
		}
	}
	return deleted, errored
}

func roundMB(bytes int64) float64 {
	return float64(int64(float64(bytes)/(1024*1024)*100+0.5)) / 100
}
