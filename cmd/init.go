package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/codereview/internal/models"
	"github.com/joescharf/codereview/internal/settings"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Start using code review for this repository",
	Long: `Write .codereview.yaml at the repository root and create the review branch.

An existing settings file is never overwritten. Flag defaults come from
CODEREVIEW_BRANCH, CODEREVIEW_SCORING and CODEREVIEW_STRATEGY or the user
config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initRun(models.Settings{
			Branch:   viper.GetString("branch"),
			Scoring:  viper.GetInt("scoring"),
			Strategy: models.Strategy(viper.GetString("strategy")),
		})
	},
}

func init() {
	initCmd.Flags().String("branch", settings.DefaultBranch, "Target meta branch to use")
	initCmd.Flags().Int("scoring", settings.DefaultScoring, "Scoring scale to use; at least 1, scores run from -N to +N")
	initCmd.Flags().String("strategy", string(settings.DefaultStrategy), "Merge strategy to use: merge, rebase")
	_ = viper.BindPFlag("branch", initCmd.Flags().Lookup("branch"))
	_ = viper.BindPFlag("scoring", initCmd.Flags().Lookup("scoring"))
	_ = viper.BindPFlag("strategy", initCmd.Flags().Lookup("strategy"))
	rootCmd.AddCommand(initCmd)
}

func initRun(want models.Settings) error {
	gc, root, err := getGit()
	if err != nil {
		return err
	}
	path := settings.Path(root)

	if dryRun {
		if err := settings.Validate(want); err != nil {
			return err
		}
		data, err := settings.Encode(want)
		if err != nil {
			return err
		}
		ui.DryRunMsg("Would write settings file %s", path)
		fmt.Fprint(ui.Out, string(data))
		ui.DryRunMsg("Would create branch %s if missing", want.Branch)
		return nil
	}

	s, err := settings.Initialize(path, want)
	if err != nil {
		return err
	}
	ui.Success("Wrote settings file %s", path)

	exists, err := gc.RefExists(s.Branch)
	if err != nil {
		return err
	}
	if exists {
		ui.VerboseLog("Branch %s already exists", s.Branch)
		return nil
	}
	if err := gc.CreateOrphanBranch(s.Branch, "Start code review"); err != nil {
		return err
	}
	ui.Success("Created review branch %s", s.Branch)
	return nil
}
