// Package runservice coordinates conversions and run history for the HTTP
// and MCP front ends.
package runservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/starford/xmltable/internal/apperr"
	"github.com/starford/xmltable/internal/convert"
)

// DefaultOutputLimit caps ReadOutput when no limit is given.
const DefaultOutputLimit = 1 << 20

// RunStore is the read side of the run manifest.
type RunStore interface {
	GetRun(id string) (*convert.Report, error)
	ListRuns(limit int) ([]convert.Report, error)
	RunFiles(runID string) ([]convert.FileReport, error)
}

// Output is a (possibly truncated) read of the CSV file.
type Output struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Truncated bool   `json:"truncated"`
	Content   string `json:"content"`
}

// Service serializes conversions and answers run queries. Without a store
// only the most recent run is known.
type Service struct {
	conv   *convert.Converter
	runs   RunStore
	logger *slog.Logger

	mu      sync.Mutex
	pending atomic.Bool

	lastMu sync.RWMutex
	last   *convert.Report
}

// NewService creates a run service. runs may be nil.
func NewService(conv *convert.Converter, runs RunStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{conv: conv, runs: runs, logger: logger}
}

// Convert runs one conversion. It fails with apperr.ErrConversionRunning
// when another conversion holds the output.
func (s *Service) Convert(ctx context.Context) (*convert.Report, error) {
	if !s.mu.TryLock() {
		return nil, apperr.ErrConversionRunning
	}
	defer func() {
		s.mu.Unlock()
		if s.pending.Load() {
			go s.Reconvert(context.WithoutCancel(ctx))
		}
	}()
	return s.convertLocked(ctx)
}

// Reconvert runs a conversion, or, when one is in progress, asks it to run
// once more after it finishes. Used by the input watcher.
func (s *Service) Reconvert(ctx context.Context) {
	s.pending.Store(true)
	for s.pending.Load() {
		if !s.mu.TryLock() {
			return
		}
		for s.pending.Swap(false) {
			if _, err := s.convertLocked(ctx); err != nil {
				s.logger.Error("re-conversion failed", slog.String("error", err.Error()))
			}
		}
		s.mu.Unlock()
	}
}

func (s *Service) convertLocked(ctx context.Context) (*convert.Report, error) {
	rep, err := s.conv.Convert(ctx)
	if rep != nil {
		s.lastMu.Lock()
		s.last = rep
		s.lastMu.Unlock()
	}
	return rep, err
}

// Last returns the most recent run of this process, if any.
func (s *Service) Last() *convert.Report {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// ListRuns returns recent runs, newest first.
func (s *Service) ListRuns(_ context.Context, limit int) ([]convert.Report, error) {
	if s.runs != nil {
		return s.runs.ListRuns(limit)
	}
	if last := s.Last(); last != nil {
		return []convert.Report{*last}, nil
	}
	return []convert.Report{}, nil
}

// GetRun returns a run by ID.
func (s *Service) GetRun(_ context.Context, id string) (*convert.Report, error) {
	if s.runs != nil {
		return s.runs.GetRun(id)
	}
	if last := s.Last(); last != nil && last.ID == id {
		return last, nil
	}
	return nil, apperr.ErrNotFound
}

// RunFiles returns the per-file reports of a run.
func (s *Service) RunFiles(ctx context.Context, id string) ([]convert.FileReport, error) {
	if s.runs == nil {
		if _, err := s.GetRun(ctx, id); err != nil {
			return nil, err
		}
		return []convert.FileReport{}, nil
	}
	if _, err := s.runs.GetRun(id); err != nil {
		return nil, err
	}
	return s.runs.RunFiles(id)
}

// Columns returns the output column names in order.
func (s *Service) Columns() []string {
	return s.conv.Columns().Names()
}

// OutputPath returns the CSV path.
func (s *Service) OutputPath() string {
	return s.conv.OutputPath()
}

// ReadOutput returns at most limit bytes of the current CSV snapshot.
func (s *Service) ReadOutput(_ context.Context, limit int64) (*Output, error) {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	path := s.conv.OutputPath()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, err
	}
	return &Output{
		Path:      path,
		Size:      info.Size(),
		Truncated: info.Size() > int64(len(data)),
		Content:   string(data),
	}, nil
}
