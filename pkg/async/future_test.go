package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/waypoint/pkg/async"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_SettlesOnce(t *testing.T) {
	f, resolve, reject := async.New[int]()
	assert.False(t, f.Settled())

	resolve(1)
	resolve(2)
	reject(errors.New("late"))

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, f.Settled())
}

func TestGo_RunsOffCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	f := async.Go(func() (string, error) {
		close(started)
		<-release
		return "ok", nil
	})

	// If Go ran fn inline we would never get here.
	<-started
	assert.False(t, f.Settled())
	close(release)

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestGo_RecoversPanics(t *testing.T) {
	f := async.Go(func() (int, error) {
		panic("boom")
	})
	_, err := f.Await(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestAwait_HonoursContext(t *testing.T) {
	f, _, _ := async.New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThen(t *testing.T) {
	ctx := context.Background()
	doubled := async.Then(ctx, async.Resolved(21), func(v int) (int, error) { return v * 2, nil })
	v, err := doubled.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	failed := async.Then(ctx, async.Rejected[int](errors.New("nope")), func(v int) (int, error) {
		t.Error("fn must not run for a rejected future")
		return 0, nil
	})
	_, err = failed.Await(ctx)
	assert.EqualError(t, err, "nope")
}
