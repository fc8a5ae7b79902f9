// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/classpoll/metrics"
)

// Sweeper expires overdue questions on a fixed interval so questions close
// even when nobody touches them.
type Sweeper struct {
	m        *Manager
	interval time.Duration
}

func NewSweeper(m *Manager, interval time.Duration) *Sweeper {
	return &Sweeper{m: m, interval: interval}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("expiry sweeper started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep expires every active question whose window has passed and returns
// how many this sweep flipped. Failures are logged per question.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.m.clock()
	overdue, err := s.m.store.OverdueQuestions(ctx, now)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("sweep failed to list overdue questions", "error", err)
		}
		return 0
	}

	flipped := 0
	for i := range overdue {
		q := &overdue[i]
		_, ok, err := s.m.expire(ctx, q, metrics.TriggerSweeper)
		if err != nil {
			slog.Error("sweep failed to expire question",
				"question_id", q.ID,
				"error", err,
			)
			continue
		}
		if ok {
			flipped++
		}
	}

	if flipped > 0 {
		slog.Info("sweep expired questions",
			"count", humanize.Comma(int64(flipped)),
			"overdue", len(overdue),
		)
	}
	return flipped
}
