package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/codereview/internal/catalog"
	"github.com/joescharf/codereview/internal/output"
	"github.com/joescharf/codereview/internal/review"
)

var (
	listOpen   bool
	listClosed bool
	listTable  bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List reviews",
	Long: `List every review on the review branch, open reviews first.

Numbers are positions in the full list, so they stay valid for
'codereview show' when filtering with --open or --closed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listOpen && listClosed {
			return fmt.Errorf("--open and --closed are mutually exclusive")
		}
		state := catalog.StateAll
		switch {
		case listOpen:
			state = catalog.StateOpen
		case listClosed:
			state = catalog.StateClosed
		}
		return listRun(state)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listOpen, "open", false, "Only open reviews")
	listCmd.Flags().BoolVar(&listClosed, "closed", false, "Only merged or abandoned reviews")
	listCmd.Flags().BoolVar(&listTable, "table", false, "Render as a table")
	rootCmd.AddCommand(listCmd)
}

func listRun(state catalog.State) error {
	c, _, err := loadCatalog()
	if err != nil {
		return err
	}

	entries := c.Filter(state)
	if len(entries) == 0 {
		ui.Info("No reviews on %s", c.Ref)
		return nil
	}

	if listTable {
		table := ui.Table([]string{"#", "Title", "From", "Onto", "Status"})
		for _, e := range entries {
			s := review.Summarize(e.Index, e.Review)
			_ = table.Append([]string{
				strconv.Itoa(s.Index),
				s.Title,
				s.SourceBranch,
				s.TargetBranch,
				output.StatusColor(s.Status),
			})
		}
		return table.Render()
	}

	for _, e := range entries {
		fmt.Fprintln(ui.Out, summaryLine(review.Summarize(e.Index, e.Review)))
	}
	return nil
}

// summaryLine renders "N) title (from:onto, STATUS)". Open reviews carry no status.
func summaryLine(s review.Summary) string {
	line := output.Faint(fmt.Sprintf("%d) ", s.Index)) +
		output.Yellow(s.Title) +
		output.Faint(" (") +
		output.Blue(s.SourceBranch) +
		output.Faint(":") +
		output.Cyan(s.TargetBranch)
	if tag := output.StatusColor(s.Status); tag != "" {
		line += output.Faint(", ") + tag
	}
	return line + output.Faint(")")
}
