// Package refresh reloads the activity catalog on a cron schedule.
//
// Example usage:
//
//	trigger, err := refresh.NewTrigger("@every 1m", ctrl, logger)
//	if err != nil {
//	    return err
//	}
//	trigger.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()
//	<-trigger.Done()
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Loader is implemented by anything that can reload the catalog.
type Loader interface {
	LoadActivities(ctx context.Context) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) error

// LoadActivities calls f.
func (f LoaderFunc) LoadActivities(ctx context.Context) error {
	return f(ctx)
}

// Trigger calls a Loader according to a cron schedule.
type Trigger struct {
	spec     string
	schedule cron.Schedule
	loader   Loader
	logger   *slog.Logger

	startOnce sync.Once
	done      chan struct{}
}

// NewTrigger creates a Trigger. spec is a standard 5 field cron expression
// (minute, hour, day of month, month, day of week) or a descriptor such as "@hourly" or "@every 30s".
// Returns ErrInvalidCronSpec if the specification cannot be parsed.
func NewTrigger(spec string, loader Loader, logger *slog.Logger) (*Trigger, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	return &Trigger{
		spec:     spec,
		schedule: schedule,
		loader:   loader,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Spec returns the schedule the trigger was created with.
func (t *Trigger) Spec() string {
	return t.spec
}

// Start launches a goroutine that reloads according to the schedule.
// Returns immediately. The goroutine exits when ctx is cancelled. Later calls do nothing.
func (t *Trigger) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		go t.loop(ctx)
	})
}

// Done is closed once the scheduling goroutine has exited.
func (t *Trigger) Done() <-chan struct{} {
	return t.done
}

// NextRun returns the next scheduled reload from now.
func (t *Trigger) NextRun() time.Time {
	return t.schedule.Next(time.Now())
}

func (t *Trigger) loop(ctx context.Context) {
	defer close(t.done)

	for {
		nextRun := t.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(nextRun))

		t.logger.Debug("waiting for next scheduled refresh", "next_run", nextRun)

		select {
		case <-ctx.Done():
			timer.Stop()
			t.logger.Info("refresh trigger shutting down")
			return
		case <-timer.C:
			t.reload(ctx)
		}
	}
}

func (t *Trigger) reload(ctx context.Context) {
	if err := t.loader.LoadActivities(ctx); err != nil {
		t.logger.Warn("scheduled refresh failed", "error", err)
		return
	}
	t.logger.Debug("scheduled refresh completed")
}
