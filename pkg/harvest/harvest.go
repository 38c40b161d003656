// Package harvest runs the authenticate, navigate, harvest and aggregate
// phases against one browser and returns a campaign.Result. Fatal failures
// come back as *RunError; the browser is released exactly once on every
// exit path.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/pkg/aggregate"
	"github.com/jmylchreest/promoscout/pkg/campaign"
	"github.com/jmylchreest/promoscout/pkg/extract"
	"github.com/jmylchreest/promoscout/pkg/flow"
	"github.com/jmylchreest/promoscout/pkg/locator"
	"github.com/jmylchreest/promoscout/pkg/pacing"
	"github.com/jmylchreest/promoscout/pkg/page"
	"github.com/jmylchreest/promoscout/pkg/page/htmlpage"
)

// screenshotTimeout bounds the failure screenshot, which may be taken after
// the run context is done.
const screenshotTimeout = 5 * time.Second

// ErrNoLauncher is returned by Run when no Launcher is configured.
var ErrNoLauncher = errors.New("no browser launcher configured")

// Harvester is the main entry point for a harvest run.
type Harvester struct {
	config   Config
	auth     *flow.Authenticator
	nav      *flow.Navigator
	pipeline *extract.Pipeline
	log      *slog.Logger
}

// New creates a Harvester. The profile is validated up front.
func New(opts ...Option) (*Harvester, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	if cfg.Pacer == nil {
		cfg.Pacer = pacing.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Component("harvest")
	}

	resolverOpts := []locator.Option{locator.WithPacer(cfg.Pacer)}
	if cfg.Healer != nil {
		resolverOpts = append(resolverOpts, locator.WithHealer(cfg.Healer))
	}
	resolver := locator.New(resolverOpts...)
	flowOpts := []flow.Option{flow.WithResolver(resolver), flow.WithPacer(cfg.Pacer)}

	return &Harvester{
		config:   cfg,
		auth:     flow.NewAuthenticator(cfg.Profile, flowOpts...),
		nav:      flow.NewNavigator(cfg.Profile, flowOpts...),
		pipeline: extract.New(cfg.Profile, extract.WithPacer(cfg.Pacer)),
		log:      cfg.Logger,
	}, nil
}

// Run performs one full harvest with creds.
func (h *Harvester) Run(ctx context.Context, creds flow.Credentials) (result *campaign.Result, err error) {
	runID := h.config.RunID()
	log := h.log.With("run_id", runID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = &RunError{Category: CategoryInternal, Err: fmt.Errorf("panic: %v", r)}
			result = nil
		}
		if err != nil {
			log.Error("run failed", "error", err, "category", CategoryOf(err), "duration", time.Since(start))
		}
	}()

	if h.config.Preflight != nil {
		content, err := h.config.Preflight.Fetch(ctx, h.config.Profile.BaseURL)
		if err != nil {
			return nil, newRunError(ctx, PhasePreflight, err)
		}
		log.Info("preflight ok", "status", content.StatusCode, "duration", content.Duration)
	}

	if h.config.Launcher == nil {
		return nil, &RunError{Category: CategoryBrowserUnavailable, Phase: PhaseLaunch, Err: ErrNoLauncher}
	}
	browser, err := h.config.Launcher.Launch(ctx)
	if err != nil {
		return nil, newRunError(ctx, PhaseLaunch, err)
	}
	release := sync.OnceFunc(func() {
		if err := browser.Close(); err != nil {
			log.Warn("browser close failed", "error", err)
			return
		}
		log.Debug("browser released")
	})
	defer release()

	pg, err := browser.NewPage(ctx)
	if err != nil {
		return nil, newRunError(ctx, PhaseLaunch, err)
	}

	session, err := h.auth.Authenticate(ctx, pg, creds)
	if err != nil {
		return nil, h.fail(ctx, pg, runID, PhaseAuthenticate, err)
	}
	route, err := h.nav.Navigate(ctx, pg, session)
	if err != nil {
		return nil, h.fail(ctx, pg, runID, PhaseNavigate, err)
	}
	if h.config.HTMLDumpPath != "" {
		h.dump(ctx, pg, log)
	}

	entities, err := h.pipeline.Harvest(ctx, pg, session)
	if err != nil {
		return nil, h.fail(ctx, pg, runID, PhaseHarvest, err)
	}

	result = h.assemble(runID, entities, route, pg.URL())
	log.Info("run complete",
		"route", route,
		"entities", result.Metrics.Total,
		"available", result.Metrics.AvailableCount,
		"duration", time.Since(start))
	return result, nil
}

// Replay runs extraction and aggregation over an already loaded campaign
// page without authenticating.
func (h *Harvester) Replay(ctx context.Context, pg page.Page) (*campaign.Result, error) {
	runID := h.config.RunID()
	entities, err := h.pipeline.Harvest(ctx, pg, flow.Replayed(string(flow.RouteSnapshot)))
	if err != nil {
		return nil, newRunError(ctx, PhaseHarvest, err)
	}
	result := h.assemble(runID, entities, flow.RouteSnapshot, pg.URL())
	h.log.Info("replay complete", "run_id", runID, "entities", result.Metrics.Total)
	return result, nil
}

// ReplayFile replays a saved campaign page. The snapshot is served at the
// profile's campaign URL so relative links resolve as they did live.
func (h *Harvester) ReplayFile(ctx context.Context, path string) (*campaign.Result, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	pg, err := htmlpage.Load(h.config.Profile.CampaignURL(), string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	defer pg.Close()
	return h.Replay(ctx, pg)
}

func (h *Harvester) assemble(runID string, entities []campaign.Entity, route flow.Route, source string) *campaign.Result {
	if entities == nil {
		entities = []campaign.Entity{}
	}
	return &campaign.Result{
		RunID:      runID,
		Entities:   entities,
		Metrics:    aggregate.Compute(entities),
		CapturedAt: h.config.Clock().UTC(),
		Route:      string(route),
		SourceURL:  source,
	}
}

// fail wraps err and captures a screenshot when configured.
func (h *Harvester) fail(ctx context.Context, pg page.Page, runID string, phase Phase, err error) error {
	re := newRunError(ctx, phase, err)
	if h.config.ScreenshotDir == "" {
		return re
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()
	png, serr := pg.Screenshot(sctx)
	if serr != nil {
		h.log.Debug("failure screenshot unavailable", "error", serr)
		return re
	}
	path := filepath.Join(h.config.ScreenshotDir, fmt.Sprintf("promoscout-%s-%s.png", runID, phase))
	if werr := writeFile(path, png); werr != nil {
		h.log.Warn("failed to save screenshot", "path", path, "error", werr)
		return re
	}
	h.log.Info("failure screenshot saved", "path", path)
	return re
}

func (h *Harvester) dump(ctx context.Context, pg page.Page, log *slog.Logger) {
	body, err := pg.HTML(ctx)
	if err != nil {
		log.Warn("failed to read page html", "error", err)
		return
	}
	if err := writeFile(h.config.HTMLDumpPath, []byte(body)); err != nil {
		log.Warn("failed to save page html", "path", h.config.HTMLDumpPath, "error", err)
		return
	}
	log.Info("campaign page saved", "path", h.config.HTMLDumpPath, "bytes", len(body))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
