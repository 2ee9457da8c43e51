package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/accumanager/backend/internal/application/billing"
)

type fakeTickRunner struct {
	mu     sync.Mutex
	calls  int
	result *billing.TickResult
	err    error
	block  chan struct{}
}

func (f *fakeTickRunner) Tick(ctx context.Context, now time.Time) (*billing.TickResult, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &billing.TickResult{RunAt: now}, nil
}

func (f *fakeTickRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDefaultRecurringInvoiceSchedulerConfig(t *testing.T) {
	cfg := DefaultRecurringInvoiceSchedulerConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, time.Minute, cfg.TickInterval)
	assert.Equal(t, 5*time.Minute, cfg.TickTimeout)
}

func TestNewRecurringInvoiceScheduler(t *testing.T) {
	t.Run("rejects non-positive intervals", func(t *testing.T) {
		_, err := NewRecurringInvoiceScheduler(&fakeTickRunner{}, zap.NewNop(), RecurringInvoiceSchedulerConfig{
			Enabled:      true,
			TickInterval: 0,
			TickTimeout:  time.Minute,
		})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestRecurringInvoiceScheduler_StartStop(t *testing.T) {
	t.Run("disabled scheduler never runs", func(t *testing.T) {
		runner := &fakeTickRunner{}
		s, err := NewRecurringInvoiceScheduler(runner, zap.NewNop(), RecurringInvoiceSchedulerConfig{
			Enabled:      false,
			TickInterval: 10 * time.Millisecond,
			TickTimeout:  time.Second,
		})
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		assert.False(t, s.IsRunning())

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 0, runner.callCount())
	})

	t.Run("ticks repeatedly until stopped", func(t *testing.T) {
		runner := &fakeTickRunner{result: &billing.TickResult{Due: 1, Fired: 1}}
		s, err := NewRecurringInvoiceScheduler(runner, zap.NewNop(), RecurringInvoiceSchedulerConfig{
			Enabled:      true,
			TickInterval: 10 * time.Millisecond,
			TickTimeout:  time.Second,
		})
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		assert.True(t, s.IsRunning())

		assert.Eventually(t, func() bool {
			return runner.callCount() >= 2
		}, time.Second, 5*time.Millisecond)

		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, s.Stop(stopCtx))
		assert.False(t, s.IsRunning())
	})

	t.Run("start is idempotent", func(t *testing.T) {
		runner := &fakeTickRunner{}
		s, err := NewRecurringInvoiceScheduler(runner, zap.NewNop(), RecurringInvoiceSchedulerConfig{
			Enabled:      true,
			TickInterval: time.Hour,
			TickTimeout:  time.Second,
		})
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		require.NoError(t, s.Start(context.Background()))

		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, s.Stop(stopCtx))
	})
}

func TestRecurringInvoiceScheduler_TriggerImmediateTick(t *testing.T) {
	t.Run("runs a pass and returns the result", func(t *testing.T) {
		runner := &fakeTickRunner{result: &billing.TickResult{Due: 3, Fired: 2, Blocked: 1}}
		s, err := NewRecurringInvoiceScheduler(runner, zap.NewNop(), DefaultRecurringInvoiceSchedulerConfig())
		require.NoError(t, err)

		result, err := s.TriggerImmediateTick(context.Background(), time.Now())

		require.NoError(t, err)
		assert.Equal(t, 3, result.Due)
		assert.Equal(t, 2, result.Fired)
		assert.Equal(t, 1, runner.callCount())
	})

	t.Run("propagates tick errors", func(t *testing.T) {
		runner := &fakeTickRunner{err: errors.New("database down")}
		s, err := NewRecurringInvoiceScheduler(runner, zap.NewNop(), DefaultRecurringInvoiceSchedulerConfig())
		require.NoError(t, err)

		_, err = s.TriggerImmediateTick(context.Background(), time.Now())
		assert.Error(t, err)
	})

	t.Run("rejects overlapping passes", func(t *testing.T) {
		block := make(chan struct{})
		runner := &fakeTickRunner{block: block}
		s, err := NewRecurringInvoiceScheduler(runner, zap.NewNop(), DefaultRecurringInvoiceSchedulerConfig())
		require.NoError(t, err)

		firstDone := make(chan struct{})
		go func() {
			defer close(firstDone)
			_, _ = s.TriggerImmediateTick(context.Background(), time.Now())
		}()

		assert.Eventually(t, func() bool {
			return runner.callCount() == 1
		}, time.Second, 5*time.Millisecond)

		_, err = s.TriggerImmediateTick(context.Background(), time.Now())
		assert.ErrorIs(t, err, ErrTickInProgress)

		close(block)
		<-firstDone
	})
}
