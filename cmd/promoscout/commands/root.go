// Package commands implements the CLI commands for promoscout.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/internal/output"
	"github.com/jmylchreest/promoscout/pkg/campaign"
	"github.com/jmylchreest/promoscout/pkg/site"
)

var rootCmd = &cobra.Command{
	Use:   "promoscout",
	Short: "Harvest promotional campaign listings behind a storefront login",
	Long: `Promoscout signs in to a storefront with a real browser, opens the
campaign listing and reports every promotional item with its prices,
discount and stock state.

Selectors, fallback texts and URLs come from a site profile, so markup
changes are handled by editing YAML rather than code.

Examples:
  # Harvest with credentials from the environment
  PROMOSCOUT_IDENTIFIER=me@example.com PROMOSCOUT_PASSWORD=... promoscout harvest

  # Use go-rod, keep the campaign page and write JSON
  promoscout harvest --driver rod --dump-html campaign.html -f json -o result.json

  # Re-run extraction over the saved page
  promoscout replay --snapshot campaign.html

  # Check the storefront is reachable and not behind a challenge
  promoscout probe`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.promoscout.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")
	flags.StringP("profile", "P", "", "site profile file, YAML or JSON (default: built-in profile)")
	flags.StringP("format", "f", string(output.FormatText), "output format: text, json, jsonl, yaml")
	flags.StringP("output", "o", "", "output file (default: stdout)")

	for _, key := range []string{"config", "debug", "quiet", "log-json", "profile", "format", "output"} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".promoscout")
		viper.SetConfigType("yaml")
	}

	// Environment variables: PROMOSCOUT_DUMP_HTML maps to dump-html
	viper.SetEnvPrefix("PROMOSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Credentials also honour the variable names used by existing deployments
	_ = viper.BindEnv("identifier", "PROMOSCOUT_IDENTIFIER", "MTP_USR")
	_ = viper.BindEnv("password", "PROMOSCOUT_PASSWORD", "MTP_PWD")

	// Read config file (ignore error if not found)
	if err := viper.ReadInConfig(); err == nil {
		logger.Debug("config loaded", "file", viper.ConfigFileUsed())
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup applies the logging flags and returns a context canceled on
// SIGINT or SIGTERM.
func setup() (context.Context, context.CancelFunc) {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log-json"),
	})
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// loadProfile returns the configured site profile or the built-in one.
func loadProfile() (site.Profile, error) {
	path := viper.GetString("profile")
	if path == "" {
		return site.Default(), nil
	}
	p, err := site.FromFile(path)
	if err != nil {
		return site.Profile{}, err
	}
	logger.Debug("profile loaded", "path", path, "base_url", p.BaseURL)
	return p, nil
}

// writeResult renders r in the configured format to stdout or --output.
func writeResult(cmd *cobra.Command, r *campaign.Result) (err error) {
	format, err := output.ParseFormat(viper.GetString("format"))
	if err != nil {
		return err
	}

	var dst io.Writer = cmd.OutOrStdout()
	if path := viper.GetString("output"); path != "" && path != "-" {
		f, cerr := os.Create(path)
		if cerr != nil {
			return fmt.Errorf("failed to create output file: %w", cerr)
		}
		defer closeOutput(f, &err)
		dst = f
		logger.Debug("writing result", "path", path, "format", format)
	}

	w, err := output.NewWriter(dst, format)
	if err != nil {
		return err
	}
	if err := w.Write(r); err != nil {
		return err
	}
	if path := viper.GetString("output"); path != "" && path != "-" {
		logInfo(cmd, "wrote %d entities to %s", r.Metrics.Total, path)
	}
	return nil
}

// closeOutput closes c and reports its error through err unless an earlier
// error is already set. Buffered file data can fail to flush on close.
func closeOutput(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close output file: %w", cerr)
	}
}

// logInfo prints a progress line to stderr unless quiet.
func logInfo(cmd *cobra.Command, format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	}
}
