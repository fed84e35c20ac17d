package core

// job_limiter.go bounds how many spreadsheet imports and exports run at once.
//
// Each job holds a slot in a buffered channel. When every slot is taken a
// new job waits up to maxWait and then fails with ErrTooManyJobs.
// WaitForDrain lets shutdown block until running jobs finish.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyJobs is returned when no job slot frees up in time.
var ErrTooManyJobs = errors.New("too many spreadsheet jobs running")

const (
	DefaultMaxConcurrentJobs = 4
	DefaultMaxJobWait        = 15 * time.Second
)

// JobLimiter is a counting semaphore for spreadsheet jobs.
type JobLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

// NewJobLimiter allows at most maxConcurrent jobs. Zero values pick the defaults.
func NewJobLimiter(maxConcurrent int, maxWait time.Duration) *JobLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxJobWait
	}
	return &JobLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must Release it.
func (l *JobLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyJobs
	}
}

// Release frees a slot taken by Acquire.
func (l *JobLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active is the number of running jobs.
func (l *JobLimiter) Active() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until no job is running or ctx ends.
func (l *JobLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// JobLimiterStatus is a point-in-time view of the limiter.
type JobLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *JobLimiter) Status() JobLimiterStatus {
	return JobLimiterStatus{
		Active:        l.Active(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
