package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/precis/internal/common"
)

func TestPool_RunsAllJobs(t *testing.T) {
	pool := NewPool(4, common.GetLogger())
	pool.Start()

	var ran atomic.Int64
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	pool.Wait()

	assert.Equal(t, int64(20), ran.Load())
	assert.Empty(t, pool.Errors())
}

func TestPool_CollectsErrors(t *testing.T) {
	pool := NewPool(2, common.GetLogger())
	pool.Start()

	require.NoError(t, pool.Submit(func(context.Context) error { return errors.New("boom") }))
	require.NoError(t, pool.Submit(func(context.Context) error { return nil }))
	pool.Wait()

	require.Len(t, pool.Errors(), 1)
	assert.EqualError(t, pool.Errors()[0], "boom")
}

func TestPool_SubmitAfterWaitReturnsError(t *testing.T) {
	pool := NewPool(2, common.GetLogger())
	pool.Start()

	require.NoError(t, pool.Submit(func(context.Context) error { return nil }))
	pool.Wait()

	// The queue is closed now; a late submit must fail cleanly instead
	// of panicking
	err := pool.Submit(func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutting down")
}

func TestPool_WaitIsIdempotent(t *testing.T) {
	pool := NewPool(2, common.GetLogger())
	pool.Start()
	pool.Wait()
	pool.Wait()
}

func TestPool_SubmitAfterShutdownReturnsError(t *testing.T) {
	pool := NewPool(2, common.GetLogger())
	pool.Start()
	pool.Shutdown()

	err := pool.Submit(func(context.Context) error { return nil })
	assert.Error(t, err)
}
