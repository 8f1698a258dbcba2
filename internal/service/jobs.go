// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/policy"
	"github.com/olegiv/otask-go/internal/scheduler"
)

// JobRegistry is the part of the scheduler registry exposed to admins.
type JobRegistry interface {
	List() []scheduler.JobInfo
	TriggerNow(name string) error
	UpdateSchedule(name, schedule string) error
}

// JobService lets admins inspect, run and reschedule maintenance jobs.
type JobService struct {
	registry JobRegistry
	policy   policy.Policy
	events   *EventService
}

// NewJobService creates a JobService.
func NewJobService(registry JobRegistry, pol policy.Policy, events *EventService) *JobService {
	return &JobService{registry: registry, policy: pol, events: events}
}

func (s *JobService) authorize(identity *model.Identity, action policy.Action) error {
	if identity == nil {
		return model.ErrUnauthenticated
	}
	if !s.policy.Can(identity, action, policy.Resource{}) {
		return model.ErrForbidden
	}
	return nil
}

// List returns the registered jobs sorted by name.
func (s *JobService) List(_ context.Context, identity *model.Identity) ([]scheduler.JobInfo, error) {
	if err := s.authorize(identity, policy.ActionListJobs); err != nil {
		return nil, err
	}
	return s.registry.List(), nil
}

// Run executes a job immediately and waits for it to finish.
func (s *JobService) Run(ctx context.Context, identity *model.Identity, name string) error {
	if err := s.authorize(identity, policy.ActionRunJob); err != nil {
		return err
	}
	if err := jobError(s.registry.TriggerNow(name), ""); err != nil {
		return err
	}

	_ = s.events.LogEvent(ctx, model.EventLevelInfo, model.EventCategorySystem, "Job run manually", identity.UserID,
		map[string]any{"job": name})
	return nil
}

// Reschedule replaces the cron expression of a job until the next restart
// and returns the updated job.
func (s *JobService) Reschedule(ctx context.Context, identity *model.Identity, name, schedule string) (*scheduler.JobInfo, error) {
	if err := s.authorize(identity, policy.ActionScheduleJob); err != nil {
		return nil, err
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, model.NewValidationError("schedule", "Schedule is required")
	}
	if err := jobError(s.registry.UpdateSchedule(name, schedule), "schedule"); err != nil {
		return nil, err
	}

	_ = s.events.LogEvent(ctx, model.EventLevelInfo, model.EventCategorySystem, "Job rescheduled", identity.UserID,
		map[string]any{"job": name, "schedule": schedule})

	for _, j := range s.registry.List() {
		if j.Name == name {
			return &j, nil
		}
	}
	return nil, fmt.Errorf("job %s: %w", name, model.ErrNotFound)
}

// jobError translates registry errors into service errors. field names the
// input that carried the cron expression, if any.
func jobError(err error, field string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, scheduler.ErrJobNotFound):
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	case errors.Is(err, scheduler.ErrTriggerLimited):
		return fmt.Errorf("%w: %w", model.ErrRateLimited, err)
	case errors.Is(err, scheduler.ErrInvalidSchedule) && field != "":
		return model.NewValidationError(field, "Invalid cron expression")
	default:
		return fmt.Errorf("running job operation: %w", err)
	}
}
