package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/promoscout/pkg/site"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print or validate a site profile",
	Long: `Print the active site profile (the built-in one unless --profile is
given) as YAML. Save it, edit the selectors and pass it back with
--profile. With --validate FILE the file is checked and nothing is
printed on success.

Examples:
  promoscout profile > site.yaml
  promoscout profile --validate site.yaml`,
	RunE: runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)

	profileCmd.Flags().String("validate", "", "validate this profile file and exit")
}

func runProfile(cmd *cobra.Command, args []string) error {
	if path, _ := cmd.Flags().GetString("validate"); path != "" {
		if _, err := site.FromFile(path); err != nil {
			return err
		}
		logInfo(cmd, "%s: ok", path)
		return nil
	}

	profile, err := loadProfile()
	if err != nil {
		return err
	}
	data, err := profile.YAML()
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
