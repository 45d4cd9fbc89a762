package core

// scheduler.go runs periodic maintenance:
//  1. Drop cached results whose download window has passed
//  2. Purge history older than the configured retention
//
// Failures are logged and the loop keeps going.

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper runs one sweep immediately, then every interval until ctx
// is cancelled.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("sweeper started",
		"interval", interval.String(),
		"result_ttl", s.cfg.Upload.ResultTTL.String(),
		"history_retention", s.cfg.Database.HistoryRetention.String(),
	)

	s.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	if n := s.expireResults(); n > 0 {
		slog.Debug("expired clean results", "count", n)
	}

	if s.cfg.Database.HistoryRetention <= 0 {
		return
	}

	cutoff := s.now().Add(-s.cfg.Database.HistoryRetention)
	purged, err := s.history.PurgeBefore(ctx, cutoff)
	if err != nil {
		slog.Error("history purge failed", "error", err)
		return
	}
	if purged > 0 {
		slog.Info("purged old clean runs", "count", purged, "cutoff", cutoff)
	}
}

// expireResults removes cached results past ExpiresAt and returns how many.
func (s *Service) expireResults() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, res := range s.results {
		if !now.Before(res.ExpiresAt) {
			delete(s.results, id)
			n++
		}
	}
	return n
}
