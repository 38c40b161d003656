package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/promoscout/pkg/fetcher"
)

var probeCmd = &cobra.Command{
	Use:   "probe [url]",
	Short: "Check the storefront is reachable without launching a browser",
	Long: `Fetch a page once with a plain HTTP client and report its status,
title and any anti-bot or CAPTCHA interstitial. Challenges are reported,
never solved. The URL defaults to the profile's base URL.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().Duration("probe-timeout", 15*time.Second, "request timeout")
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, cancel := setup()
	defer cancel()

	target := ""
	if len(args) == 1 {
		target = args[0]
	} else {
		profile, err := loadProfile()
		if err != nil {
			return err
		}
		target = profile.BaseURL
	}

	timeout, _ := cmd.Flags().GetDuration("probe-timeout")
	content, err := fetcher.NewStatic(fetcher.StaticConfig{Timeout: timeout}).Fetch(ctx, target)

	out := cmd.OutOrStdout()
	if content.StatusCode != 0 {
		fmt.Fprintf(out, "%s  %d  %s  %s  %d links\n",
			content.URL, content.StatusCode, humanize.IBytes(uint64(len(content.HTML))),
			content.Duration.Round(time.Millisecond), len(content.Links))
		if content.FinalURL != "" && content.FinalURL != content.URL {
			fmt.Fprintf(out, "redirected to: %s\n", content.FinalURL)
		}
		if content.Title != "" {
			fmt.Fprintf(out, "title: %s\n", content.Title)
		}
	}
	if content.Challenge != fetcher.ChallengeNone {
		fmt.Fprintf(out, "challenge: %s\n", content.Challenge)
	}
	return err
}
