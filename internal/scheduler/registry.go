// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// Registry errors.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrTriggerLimited  = errors.New("rate limit exceeded, try again in a few seconds")
	ErrInvalidSchedule = errors.New("invalid cron expression")
)

// manualTriggerInterval bounds how often a single job may be run by hand.
const manualTriggerInterval = 10 * time.Second

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// registeredJob holds metadata about a registered cron job.
type registeredJob struct {
	name            string
	description     string
	defaultSchedule string
	schedule        string // effective schedule (override or default)
	entryID         cron.EntryID
	jobFunc         func()
	limiter         *rate.Limiter
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name            string
	Description     string
	DefaultSchedule string
	Schedule        string
	IsOverridden    bool
	LastRun         time.Time
	NextRun         time.Time
}

// Registry tracks the jobs added to one cron instance.
type Registry struct {
	cron   *cron.Cron
	logger *slog.Logger
	mu     sync.RWMutex
	jobs   map[string]*registeredJob
}

// NewRegistry creates a registry bound to cronInst.
func NewRegistry(cronInst *cron.Cron, logger *slog.Logger) *Registry {
	return &Registry{
		cron:   cronInst,
		logger: logger,
		jobs:   make(map[string]*registeredJob),
	}
}

// Register adds jobFunc to the cron instance under name. A non-empty
// override replaces defaultSchedule.
func (r *Registry) Register(name, description, defaultSchedule, override string, jobFunc func()) error {
	schedule := defaultSchedule
	if override != "" {
		schedule = override
	}
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return fmt.Errorf("%w %q for job %s: %w", ErrInvalidSchedule, schedule, name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.jobs[name]; ok {
		r.cron.Remove(old.entryID)
	}

	entryID, err := r.cron.AddFunc(schedule, jobFunc)
	if err != nil {
		return fmt.Errorf("scheduling job %s: %w", name, err)
	}

	r.jobs[name] = &registeredJob{
		name:            name,
		description:     description,
		defaultSchedule: defaultSchedule,
		schedule:        schedule,
		entryID:         entryID,
		jobFunc:         jobFunc,
		limiter:         rate.NewLimiter(rate.Every(manualTriggerInterval), 1),
	}

	r.logger.Debug("registered scheduled job", "name", name, "schedule", schedule)
	return nil
}

// List returns all registered jobs sorted by name.
func (r *Registry) List() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]JobInfo, 0, len(r.jobs))
	for _, job := range r.jobs {
		entry := r.cron.Entry(job.entryID)
		result = append(result, JobInfo{
			Name:            job.name,
			Description:     job.description,
			DefaultSchedule: job.defaultSchedule,
			Schedule:        job.schedule,
			IsOverridden:    job.schedule != job.defaultSchedule,
			LastRun:         entry.Prev,
			NextRun:         entry.Next,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// TriggerNow runs a job synchronously. Manual runs of the same job are
// limited to one per manualTriggerInterval.
func (r *Registry) TriggerNow(name string) error {
	r.mu.RLock()
	job, ok := r.jobs[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !job.limiter.Allow() {
		return ErrTriggerLimited
	}

	r.logger.Info("manually triggering job", "name", name)
	job.jobFunc()
	return nil
}

// UpdateSchedule replaces the cron entry of a job with newSchedule.
func (r *Registry) UpdateSchedule(name, newSchedule string) error {
	if _, err := scheduleParser.Parse(newSchedule); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, newSchedule, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	r.cron.Remove(job.entryID)
	entryID, err := r.cron.AddFunc(newSchedule, job.jobFunc)
	if err != nil {
		// Re-add with old schedule on failure
		fallbackID, fallbackErr := r.cron.AddFunc(job.schedule, job.jobFunc)
		if fallbackErr != nil {
			return fmt.Errorf("critical: failed to restore schedule after update failure: %w (original: %w)", fallbackErr, err)
		}
		job.entryID = fallbackID
		return fmt.Errorf("failed to apply new schedule: %w", err)
	}

	job.entryID = entryID
	job.schedule = newSchedule

	r.logger.Info("updated job schedule", "name", name, "schedule", newSchedule)
	return nil
}
