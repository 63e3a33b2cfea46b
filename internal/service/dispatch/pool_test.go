package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
)

type blockingRunner struct {
	release chan struct{}
	mu      sync.Mutex
	ran     []int64
	err     error
}

func (b *blockingRunner) SendCampaign(_ context.Context, req dispatch.SendRequest) (*domain.DispatchResult, error) {
	if b.release != nil {
		<-b.release
	}
	b.mu.Lock()
	b.ran = append(b.ran, req.CampaignID)
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return &domain.DispatchResult{Success: true, CampaignID: req.CampaignID, SuccessfulSends: 1}, nil
}

func TestPoolRunsSubmittedSends(t *testing.T) {
	results := make(chan dispatch.TaskResult, 2)
	pool := dispatch.NewPool(&blockingRunner{}, dispatch.PoolConfig{
		Workers: 1, QueueSize: 4,
		OnResult: func(r dispatch.TaskResult) { results <- r },
	})

	ack, err := pool.Submit(dispatch.SendRequest{CampaignID: 7})
	require.NoError(t, err)
	assert.NotEmpty(t, ack.TaskID)
	assert.Equal(t, int64(7), ack.CampaignID)

	select {
	case r := <-results:
		assert.Equal(t, ack.TaskID, r.TaskID)
		require.NoError(t, r.Err)
		assert.Equal(t, 1, r.Result.SuccessfulSends)
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
}

func TestPoolReportsFailures(t *testing.T) {
	results := make(chan dispatch.TaskResult, 1)
	pool := dispatch.NewPool(&blockingRunner{err: dispatch.ErrQuotaExceeded}, dispatch.PoolConfig{
		OnResult: func(r dispatch.TaskResult) { results <- r },
	})
	_, err := pool.Submit(dispatch.SendRequest{CampaignID: 1})
	require.NoError(t, err)

	r := <-results
	assert.True(t, errors.Is(r.Err, domain.ErrQuotaExceeded))
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPoolQueueFull(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	pool := dispatch.NewPool(runner, dispatch.PoolConfig{Workers: 1, QueueSize: 1})

	// the worker may or may not have picked up the first task yet, so
	// submit until the queue refuses
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		_, err = pool.Submit(dispatch.SendRequest{CampaignID: int64(i)})
	}
	assert.ErrorIs(t, err, dispatch.ErrQueueFull)

	close(runner.release)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPoolShutdownDrainsAndRejects(t *testing.T) {
	runner := &blockingRunner{}
	pool := dispatch.NewPool(runner, dispatch.PoolConfig{Workers: 2, QueueSize: 8})
	for i := int64(1); i <= 4; i++ {
		_, err := pool.Submit(dispatch.SendRequest{CampaignID: i})
		require.NoError(t, err)
	}
	require.NoError(t, pool.Shutdown(context.Background()))

	runner.mu.Lock()
	assert.Len(t, runner.ran, 4)
	runner.mu.Unlock()

	_, err := pool.Submit(dispatch.SendRequest{CampaignID: 5})
	assert.ErrorIs(t, err, dispatch.ErrPoolClosed)
}

func TestPoolShutdownTimeout(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	pool := dispatch.NewPool(runner, dispatch.PoolConfig{})
	_, err := pool.Submit(dispatch.SendRequest{CampaignID: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)

	close(runner.release)
	require.NoError(t, pool.Shutdown(context.Background()))
}
