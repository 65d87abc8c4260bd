package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfstream/shelfstream/internal/logger"
)

func TestScheduler_RunOnStart(t *testing.T) {
	s, err := New(logger.Nop())
	require.NoError(t, err)
	defer s.Stop()

	var runs atomic.Int32
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "sweep",
		Name:       "Post-process sweep",
		Interval:   time.Hour,
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestScheduler_DuplicateIDRejected(t *testing.T) {
	s, err := New(logger.Nop())
	require.NoError(t, err)
	defer s.Stop()

	task := TaskConfig{
		ID: "search", Name: "Search batch", Interval: time.Hour,
		Func: func(ctx context.Context) error { return nil },
	}
	require.NoError(t, s.RegisterTask(task))
	assert.Error(t, s.RegisterTask(task))
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "no-interval", Name: "x",
		Func: func(ctx context.Context) error { return nil }}))
}

func TestScheduler_RunNow(t *testing.T) {
	s, err := New(logger.Nop())
	require.NoError(t, err)
	defer s.Stop()

	var runs atomic.Int32
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID: "search", Name: "Search batch", Interval: time.Hour,
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	assert.Error(t, s.RunNow("missing"))
	require.NoError(t, s.RunNow("search"))
	require.Eventually(t, func() bool { return runs.Load() == 1 },
		2*time.Second, 10*time.Millisecond)

	tasks := s.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "search", tasks[0].ID)
	assert.NotNil(t, tasks[0].LastRun)
}
