// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance: audit log retention and
// SQLite housekeeping.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/store"
)

// Job names.
const (
	JobPurgeEvents = "purge-events"
	JobOptimizeDB  = "optimize-db"
)

// Default schedules.
const (
	DefaultPurgeSchedule    = "0 3 * * *"
	DefaultOptimizeSchedule = "30 3 * * *"
)

const jobTimeout = 5 * time.Minute

// EventStore is the part of the event service the scheduler needs.
type EventStore interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
	LogSystemEvent(ctx context.Context, level, message string, metadata map[string]any) error
}

// Options configures the maintenance jobs. A zero EventRetention keeps
// events forever.
type Options struct {
	EventRetention   time.Duration
	PurgeSchedule    string
	OptimizeSchedule string
}

// Scheduler runs maintenance jobs on a cron instance.
type Scheduler struct {
	db       *sql.DB
	events   EventStore
	opts     Options
	cron     *cron.Cron
	registry *Registry
	logger   *slog.Logger
}

// New creates a new scheduler instance.
func New(db *sql.DB, events EventStore, opts Options, logger *slog.Logger) *Scheduler {
	c := cron.New()
	return &Scheduler{
		db:       db,
		events:   events,
		opts:     opts,
		cron:     c,
		registry: NewRegistry(c, logger),
		logger:   logger,
	}
}

// Registry exposes the registered jobs.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Start registers the maintenance jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.opts.EventRetention > 0 {
		err := s.registry.Register(JobPurgeEvents, "Delete audit events past the retention period",
			DefaultPurgeSchedule, s.opts.PurgeSchedule, s.runPurgeEvents)
		if err != nil {
			return err
		}
	}

	err := s.registry.Register(JobOptimizeDB, "Run SQLite PRAGMA optimize",
		DefaultOptimizeSchedule, s.opts.OptimizeSchedule, s.runOptimize)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runPurgeEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.purgeEvents(ctx); err != nil {
		s.logger.Error("failed to purge old events", "error", err)
	}
}

// purgeEvents deletes events older than the retention period.
func (s *Scheduler) purgeEvents(ctx context.Context) error {
	n, err := s.events.DeleteOldEvents(ctx, s.opts.EventRetention)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	s.logger.Info("purged old events", "count", n, "retention", s.opts.EventRetention)
	_ = s.events.LogSystemEvent(ctx, model.EventLevelInfo, "Old events purged", map[string]any{
		"deleted":        n,
		"retention_days": int(s.opts.EventRetention.Hours() / 24),
	})
	return nil
}

func (s *Scheduler) runOptimize() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := store.Optimize(ctx, s.db); err != nil {
		s.logger.Error("failed to optimize database", "error", err)
		return
	}
	s.logger.Debug("database optimized", "duration", time.Since(start))
}
