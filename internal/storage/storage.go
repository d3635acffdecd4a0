package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"modelprobe/internal/models"
)

const (
	filePrefix = "model_test_results_"
	fileLayout = "20060102_150405"
	fileExt    = ".json"
)

// ErrNoReports is returned by Latest when the directory holds no report.
var ErrNoReports = errors.New("no stored reports")

// ReportStorage persists sweep reports as individual JSON files.
type ReportStorage struct {
	mu  sync.Mutex
	dir string
}

// NewReportStorage creates a storage rooted at dir, creating it if needed.
func NewReportStorage(dir string) (*ReportStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure output directory: %w", err)
	}
	return &ReportStorage{dir: dir}, nil
}

// Dir returns the output directory.
func (s *ReportStorage) Dir() string {
	return s.dir
}

// FileName returns the base file name for a sweep started at t.
func FileName(t time.Time) string {
	return filePrefix + t.Local().Format(fileLayout) + fileExt
}

// Save writes report and returns the path of the new file.
func (s *ReportStorage) Save(report models.SweepReport) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	path, err := s.freePath(FileName(report.StartedAt))
	if err != nil {
		return "", err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return "", fmt.Errorf("write temp report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("replace report file: %w", err)
	}
	return path, nil
}

// freePath appends _1, _2, ... to name until no file of that name exists.
func (s *ReportStorage) freePath(name string) (string, error) {
	base := strings.TrimSuffix(name, fileExt)
	candidate := filepath.Join(s.dir, name)
	for i := 1; ; i++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check report path: %w", err)
		}
		candidate = filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", base, i, fileExt))
	}
}

// List returns the stored report file names, oldest first.
func (s *ReportStorage) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read output directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		bi, si := splitName(names[i])
		bj, sj := splitName(names[j])
		if bi != bj {
			return bi < bj
		}
		return si < sj
	})
	return names, nil
}

// splitName separates the timestamp part of a report file name from its
// collision suffix. Names without a suffix get 0.
func splitName(name string) (string, int) {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt)
	if len(stem) <= len(fileLayout) || stem[len(fileLayout)] != '_' {
		return stem, 0
	}
	n, err := strconv.Atoi(stem[len(fileLayout)+1:])
	if err != nil {
		return stem, 0
	}
	return stem[:len(fileLayout)], n
}

// Load reads one stored report by file name.
func (s *ReportStorage) Load(name string) (models.SweepReport, error) {
	if name != filepath.Base(name) {
		return models.SweepReport{}, fmt.Errorf("invalid report name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return models.SweepReport{}, fmt.Errorf("read report: %w", err)
	}
	var report models.SweepReport
	if err := json.Unmarshal(data, &report); err != nil {
		return models.SweepReport{}, fmt.Errorf("parse report: %w", err)
	}
	return report, nil
}

// Latest returns the most recently written report.
func (s *ReportStorage) Latest() (models.SweepReport, error) {
	names, err := s.List()
	if err != nil {
		return models.SweepReport{}, err
	}
	if len(names) == 0 {
		return models.SweepReport{}, ErrNoReports
	}
	return s.Load(names[len(names)-1])
}
