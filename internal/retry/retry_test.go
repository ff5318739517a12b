package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsOnFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(error) bool { return true }, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	orig := Delays
	Delays = []time.Duration{time.Millisecond, time.Millisecond}
	defer func() { Delays = orig }()

	calls := 0
	err := Do(context.Background(), func(error) bool { return true }, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsRetriesAndReturnsLastError(t *testing.T) {
	orig := Delays
	Delays = []time.Duration{time.Millisecond}
	defer func() { Delays = orig }()

	calls := 0
	err := Do(context.Background(), func(error) bool { return true }, func(ctx context.Context) error {
		calls++
		return errors.New("persistent")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_NonRetryableReturnsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(error) bool { return false }, func(ctx context.Context) error {
		calls++
		return errors.New("fatal")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	orig := Delays
	Delays = []time.Duration{time.Hour}
	defer func() { Delays = orig }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(error) bool { return true }, func(ctx context.Context) error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
