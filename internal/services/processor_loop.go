package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"paluwagan/internal/core"
)

// PeriodicTask is one pass of a processor at the given instant.
type PeriodicTask func(ctx context.Context, now time.Time)

// Loop runs a PeriodicTask on a ticker until stopped.
type Loop struct {
	name     string
	interval time.Duration
	clock    core.Clock
	task     PeriodicTask

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewLoop(name string, interval time.Duration, clock core.Clock, task PeriodicTask) *Loop {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Loop{name: name, interval: interval, clock: clock, task: task}
}

// Start runs the task once and then on every tick. It returns an error if
// the loop is already running or the interval is not positive.
func (l *Loop) Start(ctx context.Context) error {
	if l.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive, got %s", l.name, l.interval)
	}
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("%s is already running", l.name)
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.mu.Unlock()

	go l.run(ctx)

	slog.InfoContext(ctx, "Processor started", "processor", l.name, "interval", l.interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	stopCh, doneCh := l.stopCh, l.doneCh
	l.running = false
	l.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Processor stopped gracefully", "processor", l.name)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Processor stop timed out", "processor", l.name)
		return ctx.Err()
	}
}

func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Done is closed once the loop has exited. It is nil before Start.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doneCh
}

func (l *Loop) run(ctx context.Context) {
	l.mu.Lock()
	stopCh, doneCh := l.stopCh, l.doneCh
	l.mu.Unlock()
	defer close(doneCh)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.task(ctx, l.clock.Now())

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.task(ctx, l.clock.Now())
		}
	}
}
