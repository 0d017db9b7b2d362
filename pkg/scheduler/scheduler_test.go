package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"github.com/JailtonJunior94/observable-service/pkg/observability/fake"
)

func TestRegister(t *testing.T) {
	s := New(fake.NewFakeLogger())
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register(NewFuncJob("probe", "@every 15s", noop)))
	assert.Equal(t, 1, s.Jobs())

	var jobErr *JobError
	err := s.Register(NewFuncJob("probe", "@every 15s", noop))
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "job already registered", jobErr.Message)

	err = s.Register(NewFuncJob("broken", "every now and then", noop))
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "invalid schedule", jobErr.Message)

	err = s.Register(NewFuncJob("", "@every 1s", noop))
	require.ErrorAs(t, err, &jobErr)
}

func TestRegisterAfterStart(t *testing.T) {
	s := New(fake.NewFakeLogger())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	err := s.Register(NewFuncJob("late", "@every 1s", func(context.Context) error { return nil }))
	assert.ErrorIs(t, err, ErrRunning)
	assert.ErrorIs(t, s.Start(context.Background()), ErrRunning)
}

func TestJobsFireOnSchedule(t *testing.T) {
	s := New(fake.NewFakeLogger())
	var runs atomic.Int32

	require.NoError(t, s.Register(NewFuncJob("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	})))
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Shutdown(context.Background()) }()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestRunJobRecoversPanics(t *testing.T) {
	logger := fake.NewFakeLogger()
	s := New(logger)

	s.runJob("explode", NewFuncJob("explode", "@every 1s", func(context.Context) error {
		panic("boom")
	}))

	entries := logger.EntriesWithMessage("job failed")
	require.Len(t, entries, 1)
	assert.Equal(t, observability.LogLevelError, entries[0].Level)
	value, ok := entries[0].Field("error")
	require.True(t, ok)
	assert.Contains(t, value.(error).Error(), "job panicked: boom")
	assert.Equal(t, 0, s.ActiveJobs())
}

func TestRunJobAppliesTimeout(t *testing.T) {
	s := New(fake.NewFakeLogger(), WithJobTimeout(20*time.Millisecond))

	var got error
	s.runJob("slow", NewFuncJob("slow", "@every 1s", func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	}))

	assert.True(t, errors.Is(got, context.DeadlineExceeded))
}

func TestShutdownCancelsRunningJobs(t *testing.T) {
	s := New(fake.NewFakeLogger())
	started := make(chan struct{})
	var once atomic.Bool

	require.NoError(t, s.Register(NewFuncJob("blocker", "@every 1s", func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	})))
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.ErrorIs(t, s.Shutdown(ctx), ErrNotRunning)
}
