package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/jmylchreest/promoscout/pkg/campaign"
	"github.com/jmylchreest/promoscout/pkg/fetcher"
	"github.com/jmylchreest/promoscout/pkg/flow"
	"github.com/jmylchreest/promoscout/pkg/pacing"
	"github.com/jmylchreest/promoscout/pkg/page"
	"github.com/jmylchreest/promoscout/pkg/page/htmlpage"
	"github.com/jmylchreest/promoscout/pkg/site"
)

const base = "https://shop.test"

const homePage = `<html><body><div class="header"><a href="/giris">Giriş Yap</a></div></body></html>`

const loginPage = `<html><body><form action="/hesabim">
<input type="email" name="email">
<input type="password" name="password">
<button type="submit">Giriş</button>
</form></body></html>`

const accountPage = `<html><body><nav><a href="/kampanyalar">Kampanyalar</a></nav></body></html>`

var (
	creds   = flow.Credentials{Identifier: "cheese@example.com", Secret: "s3cret"}
	fixedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
)

type product struct {
	title, original, reduced string
}

func promosPage(products []product) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="campaign">`)
	for i, p := range products {
		fmt.Fprintf(&b, `<div class="product" id="p%d"><h3 class="title">%s</h3>`, i, p.title)
		fmt.Fprintf(&b, `<span class="old-price"><span class="amount">%s ₺</span></span>`, p.original)
		fmt.Fprintf(&b, `<span class="sale-price"><span class="amount">%s ₺</span></span>`, p.reduced)
		b.WriteString(`<span class="stock in">Stokta</span></div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

var fiveProducts = []product{
	{"Ezine Peyniri", "100,00", "80,00"},
	{"Kars Kaşarı", "200,00", "150,00"},
	{"Tulum", "50,00", "45,00"},
	{"Lor", "80,00", "60,00"},
	{"Çökelek", "300,00", "200,00"},
}

func shop(overrides map[string]string) map[string]string {
	docs := map[string]string{
		base:                  homePage,
		base + "/giris":       loginPage,
		base + "/hesabim":     accountPage,
		base + "/kampanyalar": promosPage(fiveProducts),
	}
	for k, v := range overrides {
		docs[k] = v
	}
	return docs
}

func testProfile() site.Profile {
	p := site.Default()
	p.BaseURL = base
	return p
}

func newHarvester(t *testing.T, b page.Browser, opts ...Option) *Harvester {
	t.Helper()
	all := []Option{
		WithProfile(testProfile()),
		WithLauncher(LauncherFunc(func(context.Context) (page.Browser, error) { return b, nil })),
		WithPacer(pacing.New(pacing.WithScale(0))),
		WithClock(func() time.Time { return fixedAt }),
		WithRunID(func() string { return "run-1" }),
	}
	h, err := New(append(all, opts...)...)
	require.NoError(t, err)
	return h
}

func f(v float64) *float64 { return &v }

func TestRun_EndToEnd(t *testing.T) {
	b := htmlpage.NewBrowser(shop(nil))
	got, err := newHarvester(t, b).Run(context.Background(), creds)
	require.NoError(t, err)

	want := &campaign.Result{
		RunID: "run-1",
		Entities: []campaign.Entity{
			{Index: 0, Label: "Ezine Peyniri", OriginalValue: "100.00", ReducedValue: "80.00", DiscountDelta: f(20), Available: true},
			{Index: 1, Label: "Kars Kaşarı", OriginalValue: "200.00", ReducedValue: "150.00", DiscountDelta: f(25), Available: true},
			{Index: 2, Label: "Tulum", OriginalValue: "50.00", ReducedValue: "45.00", DiscountDelta: f(10), Available: true},
			{Index: 3, Label: "Lor", OriginalValue: "80.00", ReducedValue: "60.00", DiscountDelta: f(25), Available: true},
			{Index: 4, Label: "Çökelek", OriginalValue: "300.00", ReducedValue: "200.00", DiscountDelta: f(33.33), Available: true},
		},
		Metrics: campaign.Metrics{
			Total:           5,
			AvailableCount:  5,
			AverageDiscount: f(22.67),
			MaxDiscount:     f(33.33),
		},
		CapturedAt: fixedAt,
		Route:      string(flow.RouteDirectLink),
		SourceURL:  base + "/kampanyalar",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, b.Closes())
}

func TestRun_ReleasesBrowserWhenTriggerMissing(t *testing.T) {
	b := htmlpage.NewBrowser(shop(map[string]string{
		base: `<html><body><div class="header"><p>Hoş geldiniz</p></div></body></html>`,
	}))
	_, err := newHarvester(t, b).Run(context.Background(), creds)

	require.ErrorIs(t, err, flow.ErrAuthTriggerNotFound)
	var re *RunError
	require.ErrorAs(t, err, &re)
	require.Equal(t, CategoryAuthTriggerNotFound, re.Category)
	require.Equal(t, PhaseAuthenticate, re.Phase)
	require.Equal(t, 1, b.Closes())
}

func TestRun_FailureCategories(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		docs     map[string]string
		fault    htmlpage.FaultFunc
		category Category
		phase    Phase
	}{
		{
			name: "navigation failure",
			docs: map[string]string{
				base + "/hesabim":     `<html><body><p>Hesabım</p></body></html>`,
				base + "/kampanyalar": "",
			},
			category: CategoryNavigationFailed,
			phase:    PhaseNavigate,
		},
		{
			name: "login click fails",
			fault: func(op htmlpage.Op, n *html.Node) error {
				if op == htmlpage.OpClick {
					return boom
				}
				return nil
			},
			category: CategoryInteractionFailed,
			phase:    PhaseAuthenticate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []htmlpage.Option
			if tt.fault != nil {
				opts = append(opts, htmlpage.WithFault(tt.fault))
			}
			docs := shop(nil)
			for k, v := range tt.docs {
				if v == "" {
					delete(docs, k)
					continue
				}
				docs[k] = v
			}
			b := htmlpage.NewBrowser(docs, opts...)
			_, err := newHarvester(t, b).Run(context.Background(), creds)

			var re *RunError
			require.ErrorAs(t, err, &re)
			require.Equal(t, tt.category, re.Category)
			require.Equal(t, tt.phase, re.Phase)
			require.Equal(t, 1, b.Closes())
		})
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := htmlpage.NewBrowser(shop(nil))
	_, err := newHarvester(t, b).Run(ctx, creds)
	require.Equal(t, CategoryCanceled, CategoryOf(err))
}

func TestRun_LaunchFailure(t *testing.T) {
	h, err := New(
		WithProfile(testProfile()),
		WithLauncher(LauncherFunc(func(context.Context) (page.Browser, error) {
			return nil, errors.New("chrome not found")
		})),
	)
	require.NoError(t, err)

	_, err = h.Run(context.Background(), creds)
	require.Equal(t, CategoryBrowserUnavailable, CategoryOf(err))
	require.ErrorContains(t, err, "chrome not found")

	h, err = New(WithProfile(testProfile()))
	require.NoError(t, err)
	_, err = h.Run(context.Background(), creds)
	require.ErrorIs(t, err, ErrNoLauncher)
}

type stubFetcher struct{ err error }

func (s stubFetcher) Fetch(_ context.Context, url string) (fetcher.Content, error) {
	return fetcher.Content{URL: url, StatusCode: 403}, s.err
}

func (s stubFetcher) Type() string { return "stub" }

func TestRun_PreflightBlocksLaunch(t *testing.T) {
	b := htmlpage.NewBrowser(shop(nil))
	h := newHarvester(t, b, WithPreflight(stubFetcher{err: fmt.Errorf("%w: cloudflare", fetcher.ErrAntiBot)}))

	_, err := h.Run(context.Background(), creds)
	require.Equal(t, CategoryPreflightFailed, CategoryOf(err))
	require.ErrorIs(t, err, fetcher.ErrAntiBot)
	require.Zero(t, b.Closes())
	require.Empty(t, b.Pages())
}

func TestRun_DumpHTMLThenReplay(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "snap", "kampanyalar.html")
	b := htmlpage.NewBrowser(shop(nil))
	h := newHarvester(t, b, WithHTMLDump(dump))

	live, err := h.Run(context.Background(), creds)
	require.NoError(t, err)
	require.FileExists(t, dump)

	replayed, err := h.ReplayFile(context.Background(), dump)
	require.NoError(t, err)
	require.Equal(t, string(flow.RouteSnapshot), replayed.Route)
	if diff := cmp.Diff(live.Entities, replayed.Entities); diff != "" {
		t.Errorf("replay mismatch (-live +replay):\n%s", diff)
	}
	require.Equal(t, live.Metrics, replayed.Metrics)
}

func TestReplayFile_Missing(t *testing.T) {
	h := newHarvester(t, htmlpage.NewBrowser(nil))
	_, err := h.ReplayFile(context.Background(), filepath.Join(t.TempDir(), "nope.html"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReplay_EmptyGrid(t *testing.T) {
	pg, err := htmlpage.Load(base+"/kampanyalar", `<html><body><p>Kampanya yok</p></body></html>`)
	require.NoError(t, err)

	got, err := newHarvester(t, htmlpage.NewBrowser(nil)).Replay(context.Background(), pg)
	require.NoError(t, err)
	require.Empty(t, got.Entities)
	require.NotNil(t, got.Entities)
	require.Equal(t, campaign.Metrics{}, got.Metrics)
}

func TestRun_ScreenshotUnsupportedIsSoft(t *testing.T) {
	dir := t.TempDir()
	b := htmlpage.NewBrowser(shop(map[string]string{base: `<html><body></body></html>`}))
	_, err := newHarvester(t, b, WithScreenshotDir(dir)).Run(context.Background(), creds)

	require.Equal(t, CategoryAuthTriggerNotFound, CategoryOf(err))
	entries, rerr := os.ReadDir(dir)
	require.NoError(t, rerr)
	require.Empty(t, entries)
}

func TestNew_InvalidProfile(t *testing.T) {
	p := testProfile()
	p.BaseURL = "ftp://shop.test"
	_, err := New(WithProfile(p))
	require.Error(t, err)
}

func TestCategoryOf(t *testing.T) {
	require.Equal(t, Category(""), CategoryOf(nil))
	require.Equal(t, CategoryInternal, CategoryOf(errors.New("x")))
	wrapped := fmt.Errorf("outer: %w", &RunError{Category: CategorySessionStateInvalid, Phase: PhaseHarvest, Err: flow.ErrSessionStateInvalid})
	require.Equal(t, CategorySessionStateInvalid, CategoryOf(wrapped))
	require.Equal(t, "harvest failed (session_state_invalid): session is not authenticated", errors.Unwrap(wrapped).Error())
}
