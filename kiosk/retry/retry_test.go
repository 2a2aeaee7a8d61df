package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), Policy{Attempts: 5, Delay: time.Millisecond}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errBusy
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDoExhausts(t *testing.T) {
	calls := 0
	start := time.Now()
	_, err := Do(context.Background(), Policy{Attempts: 4, Delay: 10 * time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errBusy
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 4, calls)
	// three waits between four attempts, none after the last
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDoPermanent(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Default, func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(errBusy)
	})

	assert.ErrorIs(t, err, errBusy)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{Attempts: 10, Delay: time.Hour}, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errBusy
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errBusy
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}
