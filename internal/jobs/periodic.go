// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

// Package jobs runs background work on a fixed interval with Start/Stop
// lifecycle, suitable for wrapping as a suture service.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bookpro/internal/logging"
)

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

// Periodic runs a Task immediately on Start and then every Interval until Stop.
// Runs never overlap.
type Periodic struct {
	name     string
	interval time.Duration
	task     Task
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	runMu   sync.Mutex
}

// NewPeriodic creates a job. interval must be positive.
func NewPeriodic(name string, interval time.Duration, task Task) *Periodic {
	return &Periodic{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logging.WithComponent(name),
	}
}

// Name returns the job name.
func (p *Periodic) Name() string {
	return p.name
}

// Start launches the loop. It returns an error if the job is already running.
func (p *Periodic) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", p.name)
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("%s already running", p.name)
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	p.logger.Info().Dur("interval", p.interval).Msg("Starting job")
	go p.run(ctx, stopCh, doneCh)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (p *Periodic) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)
	<-doneCh

	p.logger.Info().Msg("Job stopped")
	return nil
}

// RunOnce executes the task synchronously, waiting for any in-progress run.
func (p *Periodic) RunOnce(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	started := time.Now()
	err := p.task(ctx)
	if err != nil {
		p.logger.Error().Err(err).Dur("duration", time.Since(started)).Msg("Job run failed")
		return err
	}
	p.logger.Debug().Dur("duration", time.Since(started)).Msg("Job run completed")
	return nil
}

func (p *Periodic) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	// Cancel in-flight work when Stop is called.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Run immediately on start
	_ = p.RunOnce(runCtx)

	for {
		select {
		case <-ticker.C:
			_ = p.RunOnce(runCtx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
