// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package schedule runs handlers at fixed wall-clock times of day.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Days selects on which days of the week a job fires.
type Days int

const (
	// EveryDay fires the job once per day.
	EveryDay Days = iota
	// Weekdays fires the job Monday through Friday only.
	Weekdays
)

// Matches reports whether t falls on a selected day.
func (d Days) Matches(t time.Time) bool {
	if d != Weekdays {
		return true
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// TimeOfDay is a wall-clock time in the runner's location.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %v", s, err)
		}
		vals[i] = v
	}
	td := TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if td.Hour > 23 || td.Minute > 59 || td.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return td, nil
}

func (td TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", td.Hour, td.Minute, td.Second)
}

// Job is a handler invoked once per matching wall-clock occurrence.
type Job struct {
	Name string
	At   TimeOfDay
	On   Days
	Run  func(context.Context) error
}

// Runner fires registered jobs at their wall-clock times. It runs
// independently of any watch loops in the same process; a long job never
// delays a poll and a slow poll never delays a job.
type Runner struct {
	slog *slog.Logger
	now  func() time.Time // mocked in tests

	mu      sync.Mutex
	jobs    []Job
	cancel  context.CancelFunc
	started bool
}

// NewRunner returns a Runner that logs to l.
func NewRunner(l *slog.Logger) *Runner {
	return &Runner{slog: l, now: time.Now}
}

// Register adds a job. It must be called before Start.
func (r *Runner) Register(j Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j)
}

// Start launches one timer goroutine per registered job and returns
// immediately.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for _, j := range r.jobs {
		go r.watch(ctx, j)
	}
}

// Stop requests shutdown and returns without waiting: in-flight job
// executions run to completion on their own.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) watch(ctx context.Context, j Job) {
	for {
		next := nextRun(r.now(), j.At, j.On)
		timer := time.NewTimer(next.Sub(r.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			// Detach the execution from the runner's lifetime so that Stop
			// doesn't abort a job mid-flight.
			go r.fire(context.WithoutCancel(ctx), j)
		}
	}
}

func (r *Runner) fire(ctx context.Context, j Job) {
	defer func() {
		if p := recover(); p != nil {
			r.slog.Error("job panicked", "job", j.Name, "panic", p)
		}
	}()
	r.slog.Debug("firing job", "job", j.Name)
	if err := j.Run(ctx); err != nil {
		// The job stays registered and fires again at its next occurrence.
		r.slog.Error("job failed", "job", j.Name, "error", err)
	}
}

// nextRun returns the first occurrence of at strictly after now that
// satisfies on.
func nextRun(now time.Time, at TimeOfDay, on Days) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, at.Second, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for !on.Matches(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
