package commands

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/pkg/harvest"
	"github.com/jmylchreest/promoscout/pkg/pacing"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Extract from a saved campaign page",
	Long: `Run extraction and aggregation over a campaign page saved with
'harvest --dump-html'. No browser is launched and no login happens, which
makes this the quickest way to check an edited site profile.

Examples:
  promoscout replay --snapshot campaign.html
  promoscout replay --snapshot campaign.html -P edited.yaml -f yaml`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringP("snapshot", "s", "", "saved campaign page HTML (required)")
	_ = replayCmd.MarkFlagRequired("snapshot")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, cancel := setup()
	defer cancel()

	profile, err := loadProfile()
	if err != nil {
		return err
	}
	// Offline pages need no think-time.
	h, err := harvest.New(
		harvest.WithProfile(profile),
		harvest.WithPacer(pacing.New(pacing.WithScale(0))),
	)
	if err != nil {
		return err
	}

	snapshot, _ := cmd.Flags().GetString("snapshot")
	logger.Debug("replaying snapshot", "path", snapshot)
	result, err := h.ReplayFile(ctx, snapshot)
	if err != nil {
		return err
	}
	return writeResult(cmd, result)
}
