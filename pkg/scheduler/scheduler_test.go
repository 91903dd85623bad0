package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreary/libreary/pkg/config"
	"github.com/libreary/libreary/pkg/manager"
)

type fakeChecker struct {
	calls atomic.Int32
	err   error
}

func (f *fakeChecker) CheckDue(ctx context.Context, deep, repair bool) (*manager.Report, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.Report{ResourcesChecked: 1, CopiesChecked: 2, Good: 2}, nil
}

func TestScheduledSweeps(t *testing.T) {
	checker := &fakeChecker{}
	s := New(checker, config.SchedulerConfig{Interval: 10 * time.Millisecond, Deep: true})

	s.Start(t.Context())
	require.Eventually(t, func() bool {
		return checker.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop(time.Second)

	sweeps, failed, last, lastRunAt := s.Stats()
	assert.GreaterOrEqual(t, sweeps, 2)
	assert.Zero(t, failed)
	require.NotNil(t, last)
	assert.Equal(t, 1, last.ResourcesChecked)
	assert.False(t, lastRunAt.IsZero())
}

func TestRunNow(t *testing.T) {
	checker := &fakeChecker{}
	s := New(checker, config.SchedulerConfig{Interval: time.Hour})

	report, err := s.RunNow(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, report.CopiesChecked)
	assert.Equal(t, int32(1), checker.calls.Load())
}

func TestSweepFailureCounted(t *testing.T) {
	checker := &fakeChecker{err: errors.New("catalog down")}
	s := New(checker, config.SchedulerConfig{Interval: time.Hour})

	_, err := s.RunNow(t.Context())
	require.Error(t, err)

	sweeps, failed, last, _ := s.Stats()
	assert.Equal(t, 1, sweeps)
	assert.Equal(t, 1, failed)
	assert.Nil(t, last)
}

func TestStopWithoutStart(t *testing.T) {
	s := New(&fakeChecker{}, config.SchedulerConfig{Interval: time.Hour})
	s.Stop(time.Second) // must not block or panic
}

func TestStartTwice(t *testing.T) {
	checker := &fakeChecker{}
	s := New(checker, config.SchedulerConfig{Interval: 10 * time.Millisecond})

	ctx := t.Context()
	s.Start(ctx)
	s.Start(ctx)
	s.Stop(time.Second)
}
