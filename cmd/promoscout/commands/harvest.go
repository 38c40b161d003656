package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/promoscout/cmd/promoscout/driver"
	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/internal/version"
	"github.com/jmylchreest/promoscout/pkg/fetcher"
	"github.com/jmylchreest/promoscout/pkg/flow"
	"github.com/jmylchreest/promoscout/pkg/harvest"
	"github.com/jmylchreest/promoscout/pkg/heal"
	"github.com/jmylchreest/promoscout/pkg/llm"
	"github.com/jmylchreest/promoscout/pkg/pacing"
)

// ErrMissingCredentials is returned before launch when either credential is
// unset.
var ErrMissingCredentials = errors.New("missing credentials: set PROMOSCOUT_IDENTIFIER and PROMOSCOUT_PASSWORD")

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Sign in and harvest the campaign listing",
	Long: `Launch a browser, sign in, open the campaign listing and extract
every promotional item.

Credentials are read from the environment or the config file
(identifier/password keys); the password has no flag so it never
appears in the process list. PROMOSCOUT_IDENTIFIER/PROMOSCOUT_PASSWORD
and MTP_USR/MTP_PWD are both accepted.

When a locator cascade is exhausted, --heal-provider lets an LLM propose
one replacement XPath from the live page. "auto" picks the provider from
OPENROUTER_API_KEY, ANTHROPIC_API_KEY or OPENAI_API_KEY.

A fatal failure exits non-zero; --exit-zero logs it and exits 0.

Examples:
  promoscout harvest
  promoscout harvest --driver playwright --headless=false --pace-scale 2
  promoscout harvest --preflight --screenshot-dir ./failures -f jsonl
  promoscout harvest --heal-provider auto --heal-max-content 32KB`,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	flags := harvestCmd.Flags()

	// Browser settings
	flags.String("driver", driver.NameChromedp, "browser driver: "+strings.Join(driver.Names, ", "))
	flags.Bool("headless", true, "run the browser without a window")
	flags.String("user-agent", fetcher.DefaultUserAgent, "browser user agent")
	flags.Duration("timeout", 30*time.Second, "navigation timeout")
	flags.String("chrome-path", "", "browser executable (default: search the system)")

	// Credentials
	flags.String("identifier", "", "login identifier (or PROMOSCOUT_IDENTIFIER)")

	// Run settings
	flags.Bool("preflight", false, "probe the storefront with a static request before launching")
	flags.String("dump-html", "", "save the campaign page HTML to this file for replay")
	flags.String("screenshot-dir", "", "save a screenshot here when the run fails")
	flags.Float64("pace-scale", 1, "multiply every pacing delay (0 disables pauses)")
	flags.Bool("exit-zero", false, "exit 0 even when the run fails")

	// Selector healing
	flags.String("heal-provider", "", "LLM provider for selector healing: auto, "+strings.Join(llm.AvailableProviders(), ", "))
	flags.String("heal-model", "", "healing model (provider-specific)")
	flags.String("heal-api-key", "", "healing API key (or provider env var)")
	flags.String("heal-max-content", humanize.IBytes(heal.DefaultMaxContentSize), "max page HTML sent when healing (e.g., 48KB)")

	for _, key := range []string{
		"driver", "headless", "user-agent", "timeout", "chrome-path", "identifier",
		"preflight", "dump-html", "screenshot-dir", "pace-scale", "exit-zero",
		"heal-provider", "heal-model", "heal-api-key", "heal-max-content",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}
}

func runHarvest(cmd *cobra.Command, args []string) error {
	ctx, cancel := setup()
	defer cancel()

	logger.Debug("harvest command starting")

	creds, err := credentials()
	if err != nil {
		return err
	}
	opts, err := harvestOptions()
	if err != nil {
		return err
	}

	h, err := harvest.New(opts...)
	if err != nil {
		return err
	}

	result, err := h.Run(ctx, creds)
	if err != nil {
		if viper.GetBool("exit-zero") {
			logger.Warn("run failed, exiting zero", "category", harvest.CategoryOf(err))
			return nil
		}
		return err
	}
	return writeResult(cmd, result)
}

func credentials() (flow.Credentials, error) {
	creds := flow.Credentials{
		Identifier: strings.TrimSpace(viper.GetString("identifier")),
		Secret:     viper.GetString("password"),
	}
	if creds.Empty() {
		return flow.Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}

// harvestOptions builds the harvester from the viper keys.
func harvestOptions() ([]harvest.Option, error) {
	profile, err := loadProfile()
	if err != nil {
		return nil, err
	}

	name := viper.GetString("driver")
	if !driver.Valid(name) {
		return nil, fmt.Errorf("unknown driver: %s (available: %v)", name, driver.Names)
	}
	launcher, err := driver.New(driver.Config{
		Name:       name,
		Headless:   viper.GetBool("headless"),
		UserAgent:  viper.GetString("user-agent"),
		Timeout:    viper.GetDuration("timeout"),
		ChromePath: viper.GetString("chrome-path"),
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("driver selected", "driver", name, "headless", viper.GetBool("headless"))

	scale := viper.GetFloat64("pace-scale")
	if scale < 0 {
		return nil, fmt.Errorf("invalid pace-scale: %v", scale)
	}

	opts := []harvest.Option{
		harvest.WithProfile(profile),
		harvest.WithLauncher(launcher),
		harvest.WithPacer(pacing.New(pacing.WithScale(scale))),
		harvest.WithScreenshotDir(viper.GetString("screenshot-dir")),
		harvest.WithHTMLDump(viper.GetString("dump-html")),
	}

	if viper.GetBool("preflight") {
		opts = append(opts, harvest.WithPreflight(fetcher.NewStatic(fetcher.StaticConfig{
			UserAgent: viper.GetString("user-agent"),
		})))
	}

	healer, err := newHealer()
	if err != nil {
		return nil, err
	}
	if healer != nil {
		opts = append(opts, harvest.WithHealer(healer))
	}
	return opts, nil
}

// newHealer returns nil when healing is not configured.
func newHealer() (*heal.Healer, error) {
	name := viper.GetString("heal-provider")
	if name == "" {
		return nil, nil
	}

	apiKey := viper.GetString("heal-api-key")
	if name == "auto" {
		var detectedKey string
		name, detectedKey = llm.DetectProvider()
		if name == "" {
			return nil, fmt.Errorf("heal-provider auto: no provider API key found in environment")
		}
		if apiKey == "" {
			apiKey = detectedKey
		}
	}
	if apiKey == "" {
		apiKey = llm.APIKeyFromEnv(name)
	}

	maxContent := heal.DefaultMaxContentSize
	if s := strings.TrimSpace(viper.GetString("heal-max-content")); s != "" && s != "0" {
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("invalid heal-max-content %q: %w", s, err)
		}
		maxContent = int(n)
	}

	cfg := llm.DefaultConfig()
	cfg.APIKey = apiKey
	cfg.Model = viper.GetString("heal-model")
	cfg.Attribution = version.UserAgentSuffix()
	provider, err := llm.NewProvider(name, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("selector healing enabled", "provider", provider.Name(), "model", provider.Model(), "max_content", humanize.IBytes(uint64(maxContent)))

	return heal.New(provider, heal.WithMaxContentSize(maxContent)), nil
}
