// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/datamira/internal/platform/constants"
)

// # Session Sweeper

// Sweeper periodically transitions overdue ACTIVE sessions to EXPIRED so the
// session table reflects reality even for sessions nobody presents again.
// Lazy expiry in [Service.ValidateSession] remains the authoritative guard;
// the sweeper is housekeeping.
type Sweeper struct {
	sessionRepository SessionRepository
	interval          time.Duration
	logger            *slog.Logger
}

// NewSweeper constructs a sweeper. A zero interval falls back to the
// platform default.
func NewSweeper(sessionRepo SessionRepository, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = constants.SessionSweepInterval
	}
	return &Sweeper{
		sessionRepository: sessionRepo,
		interval:          interval,
		logger:            logger,
	}
}

// Name identifies the sweeper inside the runtime system.
func (sweeper *Sweeper) Name() string { return "session-sweeper" }

/*
Run executes the sweep loop until the context is cancelled.

Parameters:
  - context: context.Context
*/
func (sweeper *Sweeper) Run(context context.Context) {
	ticker := time.NewTicker(sweeper.interval)
	defer ticker.Stop()

	for {
		select {
		case <-context.Done():
			return
		case <-ticker.C:
			sweeper.sweep(context)
		}
	}
}

// sweep performs one pass. Failures are logged and retried next tick.
func (sweeper *Sweeper) sweep(context context.Context) {
	swept, err := sweeper.sessionRepository.MarkExpiredBefore(context, time.Now())
	if err != nil {
		sweeper.logger.Warn("session_sweep_failed", slog.Any("error", err))
		return
	}
	if swept > 0 {
		sweeper.logger.Info("session_sweep_completed", slog.Int("expired", swept))
	}
}
