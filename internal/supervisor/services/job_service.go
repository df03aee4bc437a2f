// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package services

import (
	"context"
	"fmt"
)

// Job is a Start/Stop background loop such as *jobs.Periodic.
type Job interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// JobService adapts a Start/Stop job to suture's Serve pattern:
//  1. Start(ctx) launches the job's loop
//  2. Serve blocks until the context is cancelled
//  3. Stop() waits for the current run to finish
type JobService struct {
	job  Job
	name string
}

// NewJobService wraps job.
//
//	svc := services.NewJobService(booking.NewHoldExpiryJob(bookings, time.Minute))
//	tree.AddWorkerService(svc)
func NewJobService(job Job) *JobService {
	return &JobService{
		job:  job,
		name: "job:" + job.Name(),
	}
}

// Serve implements suture.Service. A Start failure is returned at once so
// suture retries with backoff.
func (s *JobService) Serve(ctx context.Context) error {
	if err := s.job.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.job.Stop(); err != nil {
		return fmt.Errorf("%s stop failed: %w", s.name, err)
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *JobService) String() string {
	return s.name
}
