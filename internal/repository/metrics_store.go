package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"RiskCast/internal/domain/models"
	domrepo "RiskCast/internal/domain/repository"
)

var _ domrepo.MetricsStore = (*FileMetricsStore)(nil)

const (
	metricsPrefix    = "metrics_"
	metricsLayout    = "20060102_150405"
	maxMetricsSuffix = 99
)

// FileMetricsStore writes one metrics_<timestamp>.json per training run.
type FileMetricsStore struct {
	dir string
	now func() time.Time
}

func NewFileMetricsStore(dir string) *FileMetricsStore {
	return &FileMetricsStore{dir: dir, now: time.Now}
}

// SetClock overrides the timestamp source.
func (s *FileMetricsStore) SetClock(now func() time.Time) { s.now = now }

// Save writes the report and returns its path. The report timestamp is filled
// in when empty. A run in the same second as an earlier one gets a _NN suffix
// instead of overwriting it.
func (s *FileMetricsStore) Save(_ context.Context, report *models.MetricsReport) (string, error) {
	if report == nil {
		return "", fmt.Errorf("%w: nil metrics report", models.ErrInvalidInput)
	}
	ts := s.now().UTC().Format(metricsLayout)
	if report.Timestamp == "" {
		report.Timestamp = ts
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("save metrics: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("save metrics: %w", err)
	}
	for n := 0; n <= maxMetricsSuffix; n++ {
		name := metricsPrefix + ts
		if n > 0 {
			name = fmt.Sprintf("%s_%02d", name, n)
		}
		path := filepath.Join(s.dir, name+".json")
		err := writeExclusive(path, data)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("save metrics: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("save metrics: suffixes exhausted for %s", ts)
}

// writeExclusive creates path and fails with fs.ErrExist if it is already there.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// Latest returns the report with the greatest file name.
func (s *FileMetricsStore) Latest(_ context.Context) (*models.MetricsReport, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("latest metrics: %w", err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, metricsPrefix) && strings.HasSuffix(n, ".json") {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no metrics found", models.ErrNotFound)
	}
	sort.Strings(names)
	data, err := os.ReadFile(filepath.Join(s.dir, names[len(names)-1]))
	if err != nil {
		return nil, fmt.Errorf("latest metrics: %w", err)
	}
	var report models.MetricsReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("latest metrics %s: %w", names[len(names)-1], err)
	}
	return &report, nil
}
