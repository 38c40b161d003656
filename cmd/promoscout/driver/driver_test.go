package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/promoscout/pkg/page"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		want any
	}{
		{"", &ChromedpLauncher{}},
		{NameChromedp, &ChromedpLauncher{}},
		{NameRod, &RodLauncher{}},
		{NamePlaywright, &PlaywrightLauncher{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(Config{Name: tt.name, ChromePath: "/usr/bin/chromium"})
			require.NoError(t, err)
			require.IsType(t, tt.want, l)
		})
	}

	_, err := New(Config{Name: "selenium"})
	require.ErrorContains(t, err, "unknown driver: selenium")
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{ChromePath: "/opt/chrome"}.withDefaults()
	require.Equal(t, NameChromedp, cfg.Name)
	require.Equal(t, DefaultConfig().UserAgent, cfg.UserAgent)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, "/opt/chrome", cfg.ChromePath)
	require.True(t, DefaultConfig().Headless)
}

func TestValid(t *testing.T) {
	require.True(t, Valid(NameRod))
	require.False(t, Valid("phantomjs"))
}

func TestArgs(t *testing.T) {
	got := args([]chromeFlag{{"disable-blink-features", "AutomationControlled"}, {"no-sandbox", ""}})
	require.Equal(t, []string{"--disable-blink-features=AutomationControlled", "--no-sandbox"}, got)

	require.Contains(t, args(chromeFlags()), "--disable-blink-features=AutomationControlled")
}

type fakeElement struct {
	page.Element
	visible bool
	err     error
}

func (f *fakeElement) Visible(context.Context) (bool, error) {
	return f.visible, f.err
}

func TestWaitFor(t *testing.T) {
	hidden := &fakeElement{}
	gone := &fakeElement{err: page.ErrDetached}
	shown := &fakeElement{visible: true}

	el, err := waitFor(context.Background(), time.Second, true, func(context.Context) ([]page.Element, error) {
		return []page.Element{hidden, gone, shown}, nil
	})
	require.NoError(t, err)
	require.Same(t, shown, el)

	el, err = waitFor(context.Background(), time.Second, false, func(context.Context) ([]page.Element, error) {
		return []page.Element{hidden}, nil
	})
	require.NoError(t, err)
	require.Same(t, hidden, el)

	_, err = waitFor(context.Background(), 50*time.Millisecond, true, func(context.Context) ([]page.Element, error) {
		return []page.Element{hidden}, nil
	})
	require.True(t, page.IsTimeout(err))
}

func TestNormalize(t *testing.T) {
	require.NoError(t, normalize(context.Background(), nil))

	err := normalize(context.Background(), context.DeadlineExceeded)
	require.True(t, page.IsTimeout(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, normalize(ctx, errors.New("cdp: closed")), context.Canceled)

	boom := errors.New("boom")
	require.Equal(t, boom, normalize(context.Background(), boom))
}

func TestBudget(t *testing.T) {
	require.Equal(t, time.Second, budget(context.Background(), time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.LessOrEqual(t, budget(ctx, time.Minute), 100*time.Millisecond)
}

func TestLoadReached(t *testing.T) {
	tests := []struct {
		state page.LoadState
		ready string
		idle  bool
		want  bool
	}{
		{page.LoadDOMContentLoaded, "loading", true, false},
		{page.LoadDOMContentLoaded, "interactive", false, true},
		{page.LoadDOMContentLoaded, "complete", false, true},
		{page.LoadDOMContentLoaded, "", true, false},
		{page.LoadLoad, "interactive", true, false},
		{page.LoadLoad, "complete", false, true},
		{page.LoadNetworkIdle, "complete", false, false},
		{page.LoadNetworkIdle, "complete", true, true},
		{page.LoadNetworkIdle, "interactive", true, false},
	}
	for _, tt := range tests {
		got := loadReached(tt.state, tt.ready, tt.idle)
		require.Equal(t, tt.want, got, "state=%v ready=%q idle=%v", tt.state, tt.ready, tt.idle)
	}
}

func TestFindChromePath_EnvOverride(t *testing.T) {
	t.Setenv("PROMOSCOUT_CHROME_PATH", "")
	t.Setenv("CHROME_PATH", "/opt/chromium/chrome")
	require.Equal(t, "/opt/chromium/chrome", FindChromePath())

	t.Setenv("PROMOSCOUT_CHROME_PATH", "/custom/chrome")
	require.Equal(t, "/custom/chrome", FindChromePath())
}

func TestChromeCandidates(t *testing.T) {
	require.Contains(t, chromeCandidates("darwin"), "/Applications/Chromium.app/Contents/MacOS/Chromium")
	require.Contains(t, chromeCandidates("linux"), "/snap/bin/chromium")
	require.NotContains(t, chromeCandidates("linux"), `C:\Program Files\Google\Chrome\Application\chrome.exe`)
}
