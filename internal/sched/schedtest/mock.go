// Package schedtest provides test doubles for the sched package.
package schedtest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"optbrief/internal/sched"
)

// MockJob is a configurable test double for sched.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

// Compile-time interface check.
var _ sched.Job = (*MockJob)(nil)

// Name implements sched.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements sched.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements sched.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastCall returns the time of the last Run call.
func (m *MockJob) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// MockPipeline is a test double for sched.Pipeline.
type MockPipeline struct {
	RunFunc  func(ctx context.Context) error
	RunCalls atomic.Int32
}

// RunScheduled implements sched.Pipeline.
func (m *MockPipeline) RunScheduled(ctx context.Context) error {
	m.RunCalls.Add(1)
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// MockSweeper is a test double for sched.Sweeper.
type MockSweeper struct {
	SweepFunc  func(ctx context.Context, now time.Time) (int, int64, error)
	SweepCalls atomic.Int32
}

// Sweep implements sched.Sweeper.
func (m *MockSweeper) Sweep(ctx context.Context, now time.Time) (int, int64, error) {
	m.SweepCalls.Add(1)
	if m.SweepFunc != nil {
		return m.SweepFunc(ctx, now)
	}
	return 0, 0, nil
}
