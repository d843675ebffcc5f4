package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	waits []time.Duration
}

func (f *fakeClock) sleep(_ context.Context, d time.Duration) error {
	f.waits = append(f.waits, d)
	return nil
}

func (f *fakeClock) total() time.Duration {
	var sum time.Duration
	for _, w := range f.waits {
		sum += w
	}
	return sum
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	clock := &fakeClock{}
	boom := errors.New("boom")
	calls := 0

	_, err := Do(context.Background(), Policy{Sleep: clock.sleep}, 5, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 5, calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, clock.waits)
	require.LessOrEqual(t, clock.total(), 31*time.Second)
}

func TestDoReturnsLastErrorUnchanged(t *testing.T) {
	clock := &fakeClock{}
	errs := []error{errors.New("first"), errors.New("second"), errors.New("third")}
	calls := 0

	_, err := Do(context.Background(), Policy{Sleep: clock.sleep}, 3, func(context.Context) (string, error) {
		e := errs[calls]
		calls++
		return "", e
	})

	require.Same(t, errs[2], err)
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	clock := &fakeClock{}
	calls := 0

	got, err := Do(context.Background(), Policy{Sleep: clock.sleep}, 5, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 3, calls)
	require.Len(t, clock.waits, 2)
}

func TestDoHonorsCeiling(t *testing.T) {
	clock := &fakeClock{}
	calls := 0

	// 1,2,4,8,16,32 are all within the ceiling; 64 is not.
	_, err := Do(context.Background(), Policy{Sleep: clock.sleep}, 100, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("down")
	})

	require.Error(t, err)
	require.Equal(t, 7, calls)
	require.Equal(t, 32*time.Second, clock.waits[len(clock.waits)-1])
}

func TestDoSingleAttemptNeverSleeps(t *testing.T) {
	clock := &fakeClock{}
	_, err := Do(context.Background(), Policy{Sleep: clock.sleep}, 1, func(context.Context) (int, error) {
		return 0, errors.New("once")
	})
	require.Error(t, err)
	require.Empty(t, clock.waits)
}

func TestDoStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	err := Run(ctx, Policy{Initial: time.Second}, 5, func(context.Context) error {
		calls++
		return errors.New("fail")
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestDoReportsRetries(t *testing.T) {
	clock := &fakeClock{}
	var attempts []int
	p := Policy{
		Sleep:   clock.sleep,
		OnRetry: func(attempt int, _ time.Duration, _ error) { attempts = append(attempts, attempt) },
	}

	_ = Run(context.Background(), p, 3, func(context.Context) error { return errors.New("x") })

	require.Equal(t, []int{1, 2}, attempts)
}
