package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/sp500_loader/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskWithRecover(t *testing.T) {
	s := &Scheduler{}

	var got string
	s.taskWithRecover(func(ctx context.Context) error {
		got = utils.GetRequestIDFromCtx(ctx)
		return nil
	}, "rqid")(context.Background())
	assert.NotEmpty(t, got)

	assert.NotPanics(t, func() {
		s.taskWithRecover(func(context.Context) error {
			panic("boom")
		}, "panics")(context.Background())
	})

	assert.NotPanics(t, func() {
		s.taskWithRecover(func(context.Context) error {
			return errors.New("failed")
		}, "fails")(context.Background())
	})
}

func TestIntervalJob_StartsImmediately(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	done := make(chan struct{}, 1)
	err = s.NewIntervalJob("export", func(context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}, time.Hour, true)
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestCrontabJob_InvalidExpression(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	err = s.NewCrontabJob("bad", func(context.Context) error { return nil }, "not a cron", false)
	assert.Error(t, err)
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	started := make(chan struct{})
	cancelled := make(chan struct{})
	err = s.NewIntervalJob("long export", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}, time.Hour, true)
	require.NoError(t, err)

	s.Start()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}

	stopped := time.Now()
	s.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled on stop")
	}
	assert.Less(t, time.Since(stopped), 5*time.Second)
}
