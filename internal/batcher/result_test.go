package batcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_ResolveOnce(t *testing.T) {
	r := newResult("id-1")
	assert.False(t, r.Settled())

	require.True(t, r.resolve([]byte(`{"ok":true}`)))
	assert.False(t, r.resolve([]byte(`{"ok":false}`)))
	assert.False(t, r.reject(errors.New("late")))
	assert.True(t, r.Settled())

	value, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(value))
	assert.Equal(t, "id-1", r.ID())
}

func TestResult_RejectOnce(t *testing.T) {
	r := newResult("id-2")
	boom := errors.New("boom")

	require.True(t, r.reject(boom))
	assert.False(t, r.resolve([]byte(`1`)))

	value, err := r.Wait(context.Background())
	assert.Nil(t, value)
	assert.ErrorIs(t, err, boom)
}

func TestResult_WaitContextDone(t *testing.T) {
	r := newResult("id-3")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, r.Settled(), "giving up must not settle the result")

	// the handle still settles later
	require.True(t, r.resolve([]byte(`2`)))
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed")
	}
}
