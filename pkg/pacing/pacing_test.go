package pacing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/promoscout/pkg/page"
)

// loadStatePage records WaitForLoadState calls and fails the states listed
// in fail.
type loadStatePage struct {
	page.Page
	fail  map[page.LoadState]error
	calls []loadCall
}

type loadCall struct {
	state   page.LoadState
	timeout time.Duration
}

func (p *loadStatePage) WaitForLoadState(_ context.Context, state page.LoadState, timeout time.Duration) error {
	p.calls = append(p.calls, loadCall{state, timeout})
	return p.fail[state]
}

func recordingSleeper(slept *[]time.Duration) Option {
	return WithSleeper(func(_ context.Context, d time.Duration) {
		*slept = append(*slept, d)
	})
}

func TestDuration_WithinRange(t *testing.T) {
	p := New(WithSeed(7))
	for range 200 {
		d := p.Duration(Default)
		require.GreaterOrEqual(t, d, Default.Min)
		require.LessOrEqual(t, d, Default.Max)
	}
}

func TestDuration_Fixed(t *testing.T) {
	p := New()
	require.Equal(t, 800*time.Millisecond, p.Duration(MenuReveal))
}

func TestDuration_Scale(t *testing.T) {
	p := New(WithScale(0))
	require.Zero(t, p.Duration(AfterSubmit))

	half := New(WithScale(0.5))
	require.Equal(t, 400*time.Millisecond, half.Duration(MenuReveal))
}

func TestDuration_Seeded(t *testing.T) {
	a := New(WithSeed(42))
	b := New(WithSeed(42))
	for range 10 {
		require.Equal(t, a.Duration(AfterNavigate), b.Duration(AfterNavigate))
	}
}

func TestPause_SkipsZero(t *testing.T) {
	var slept []time.Duration
	p := New(WithScale(0), recordingSleeper(&slept))
	p.Pause(context.Background(), Default)
	require.Empty(t, slept)
}

func TestSettle_NetworkIdle(t *testing.T) {
	var slept []time.Duration
	pg := &loadStatePage{}
	p := New(WithSeed(1), recordingSleeper(&slept))

	p.Settle(context.Background(), pg, AfterTrigger)

	require.Len(t, slept, 1)
	require.GreaterOrEqual(t, slept[0], AfterTrigger.Min)
	require.LessOrEqual(t, slept[0], AfterTrigger.Max)
	require.Equal(t, []loadCall{{page.LoadNetworkIdle, NetworkIdleBudget}}, pg.calls)
}

func TestSettle_FallsBackToDOMReady(t *testing.T) {
	pg := &loadStatePage{fail: map[page.LoadState]error{
		page.LoadNetworkIdle: page.ErrTimeout,
	}}
	p := New(WithScale(0))

	p.Settle(context.Background(), pg, Default)

	require.Equal(t, []loadCall{
		{page.LoadNetworkIdle, NetworkIdleBudget},
		{page.LoadDOMContentLoaded, DOMReadyBudget},
	}, pg.calls)
}

func TestSettle_AbsorbsEveryFailure(t *testing.T) {
	pg := &loadStatePage{fail: map[page.LoadState]error{
		page.LoadNetworkIdle:      page.ErrTimeout,
		page.LoadDOMContentLoaded: errors.New("target crashed"),
	}}
	p := New(WithScale(0))

	require.NotPanics(t, func() {
		p.Settle(context.Background(), pg, Default)
	})
	require.Len(t, pg.calls, 2)
}

func TestSettle_CanceledContextSkipsWaits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pg := &loadStatePage{}
	New(WithScale(0)).Settle(ctx, pg, Default)
	require.Empty(t, pg.calls)
}
