package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/config"
	"github.com/JonMunkholm/sheetclean/internal/logging"
	"github.com/google/uuid"
)

// ErrResultNotFound is returned for unknown or expired result IDs.
var ErrResultNotFound = errors.New("clean result not found")

// ErrNoFile is returned when a request carries no upload.
var ErrNoFile = errors.New("no file provided")

// historyTimeout bounds the best-effort history write after a job.
const historyTimeout = 5 * time.Second

// CleanRequest is one uploaded workbook to clean.
type CleanRequest struct {
	FileName string
	Reader   io.Reader

	// Sheet overrides the configured worksheet. Empty uses the configured
	// sheet, or the first sheet when none is configured.
	Sheet string
}

// CleanResult is a cleaned table and its ledger, cached until ExpiresAt.
type CleanResult struct {
	ID           string
	FileName     string
	Format       Format
	Cleaned      Table
	Ledger       ChangeLedger
	ChangedCells int
	Duration     time.Duration
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Service runs clean jobs and keeps their results for download.
type Service struct {
	cfg     *config.Config
	limiter *JobLimiter
	history HistoryStore
	now     func() time.Time

	mu      sync.RWMutex
	results map[string]*CleanResult
}

// NewService creates a Service. A nil history discards run summaries.
func NewService(cfg *config.Config, history HistoryStore) *Service {
	if history == nil {
		history = NopHistory{}
	}
	return &Service{
		cfg:     cfg,
		limiter: NewJobLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		history: history,
		now:     time.Now,
		results: make(map[string]*CleanResult),
	}
}

// Clean loads req, normalizes every cell and caches the result.
func (s *Service) Clean(ctx context.Context, req CleanRequest) (*CleanResult, error) {
	if req.Reader == nil {
		return nil, ErrNoFile
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.Timeout)
	defer cancel()

	id := uuid.New().String()
	logger := logging.WithFields(ctx, "job_id", id, "file", req.FileName)
	start := s.now()

	format, err := DetectFormat(req.FileName)
	if err != nil {
		return nil, err
	}

	sheet := req.Sheet
	if sheet == "" {
		sheet = s.cfg.Clean.Sheet
	}

	table, err := LoadTable(req.Reader, req.FileName, LoadOptions{Sheet: sheet})
	if err != nil {
		logger.Warn("load failed", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("clean %s: %w", req.FileName, err)
	}

	cleaned, ledger := Normalize(table)

	now := s.now()
	result := &CleanResult{
		ID:           id,
		FileName:     req.FileName,
		Format:       format,
		Cleaned:      cleaned,
		Ledger:       ledger,
		ChangedCells: ledger.Len(),
		Duration:     now.Sub(start),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.Upload.ResultTTL),
	}

	s.mu.Lock()
	s.results[id] = result
	s.mu.Unlock()

	logger.Info("clean completed",
		"rows", cleaned.RowCount(),
		"columns", len(cleaned.Columns),
		"changed_cells", result.ChangedCells,
		"changed_columns", len(ledger.Columns()),
		"duration_ms", result.Duration.Milliseconds(),
	)

	s.recordRun(ctx, result)

	return result, nil
}

// recordRun writes a history entry. Failures are logged, never returned.
func (s *Service) recordRun(ctx context.Context, res *CleanResult) {
	run := Run{
		ID:             res.ID,
		FileName:       res.FileName,
		Format:         res.Format,
		Rows:           res.Cleaned.RowCount(),
		Columns:        len(res.Cleaned.Columns),
		ChangedCells:   res.ChangedCells,
		ChangedColumns: len(res.Ledger.Columns()),
		DurationMS:     res.Duration.Milliseconds(),
		IPAddress:      GetIPAddressFromContext(ctx),
		UserAgent:      GetUserAgentFromContext(ctx),
		CreatedAt:      res.CreatedAt,
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	if err := s.history.Record(hctx, run); err != nil {
		logging.FromContext(ctx).Warn("history record failed", "job_id", res.ID, "error", err)
	}
}

// Result returns a cached result that has not yet expired.
func (s *Service) Result(id string) (*CleanResult, error) {
	s.mu.RLock()
	res, ok := s.results[id]
	s.mu.RUnlock()

	if !ok || !s.now().Before(res.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, id)
	}
	return res, nil
}

// Forget drops a cached result. Unknown IDs are ignored.
func (s *Service) Forget(id string) {
	s.mu.Lock()
	delete(s.results, id)
	s.mu.Unlock()
}

// ResultCount returns the number of cached results, expired ones included.
func (s *Service) ResultCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// History returns the most recent runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.history.Recent(ctx, limit)
}

func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForJobs blocks until running clean jobs finish or ctx is done.
func (s *Service) WaitForJobs(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
