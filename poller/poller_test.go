package poller_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-fermax-cloud/poller"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	return r.err
}

func runPoller(t *testing.T, p *poller.Poller) (cancel func()) {
	t.Helper()

	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return func() {
		cancelCtx()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("poller did not stop")
		}
	}
}

func TestRun_RefreshesImmediatelyAndOnInterval(t *testing.T) {
	refresher := &countingRefresher{}
	p := poller.New(refresher, 10*time.Millisecond, poller.WithLogger(zerolog.Nop()))

	stop := runPoller(t, p)
	defer stop()

	require.Eventually(t, func() bool { return refresher.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestRun_TriggerRefresh(t *testing.T) {
	refresher := &countingRefresher{}
	p := poller.New(refresher, time.Hour, poller.WithLogger(zerolog.Nop()))

	stop := runPoller(t, p)
	defer stop()

	require.Eventually(t, func() bool { return refresher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	p.TriggerRefresh()
	require.Eventually(t, func() bool { return refresher.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRun_KeepsPollingAfterFailure(t *testing.T) {
	refresher := &countingRefresher{err: errors.New("cloud unavailable")}
	p := poller.New(refresher, 10*time.Millisecond, poller.WithLogger(zerolog.Nop()))

	stop := runPoller(t, p)
	defer stop()

	require.Eventually(t, func() bool { return refresher.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestTriggerRefresh_Coalesces(t *testing.T) {
	refresher := &countingRefresher{}
	p := poller.New(refresher, time.Hour, poller.WithLogger(zerolog.Nop()))

	p.TriggerRefresh()
	p.TriggerRefresh()
	p.TriggerRefresh()

	stop := runPoller(t, p)
	require.Eventually(t, func() bool { return refresher.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	stop()

	require.Equal(t, int32(2), refresher.calls.Load())
}

func TestRun_WithoutInitialRefresh(t *testing.T) {
	refresher := &countingRefresher{}
	p := poller.New(refresher, time.Hour, poller.WithLogger(zerolog.Nop()), poller.WithoutInitialRefresh())

	stop := runPoller(t, p)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int32(0), refresher.calls.Load())

	p.TriggerRefresh()
	require.Eventually(t, func() bool { return refresher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	stop()
}
