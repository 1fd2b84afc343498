package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/codereview/internal/output"
	"github.com/joescharf/codereview/internal/review"
)

// nowFunc is the clock used for review ages, replaceable in tests.
var nowFunc = time.Now

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Detailed view of a review",
	Long:  "Show a review's summary, author, body and reviewer scores. The id is the number printed by 'codereview list' and defaults to 1.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid review id %q: must be a number", args[0])
			}
			id = n
		}
		return showRun(id)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func showRun(id int) error {
	c, s, err := loadCatalog()
	if err != nil {
		return err
	}

	r, err := c.Get(id)
	if err != nil {
		return err
	}

	names, err := getResolver()
	if err != nil {
		return err
	}

	d := review.Describe(id, r, names, nowFunc())
	if err := names.Err(); err != nil {
		ui.VerboseLog("Author lookup failed, showing identities: %v", err)
	}

	fmt.Fprintln(ui.Out, summaryLine(d.Summary))
	fmt.Fprintf(ui.Out, "Added by %s %s\n", output.Cyan(d.AuthorName), output.Magenta(output.Age(d.Age)))
	fmt.Fprintln(ui.Out)
	if d.Body != "" {
		fmt.Fprintln(ui.Out, d.Body)
		fmt.Fprintln(ui.Out)
	}

	for _, line := range d.Reviewers {
		fmt.Fprintf(ui.Out, "%s%s%s\n", output.Cyan(line.Name), output.Faint(": "), output.ScoreColor(line.Class, line.Display))
	}

	t := review.Tally(r.Reviewers, s.Scoring)
	if len(d.Reviewers) > 0 {
		fmt.Fprintln(ui.Out)
	}
	fmt.Fprintf(ui.Out, "%s %s %s\n", output.Bold("Verdict:"), verdictColor(t.Verdict), output.Faint(fmt.Sprintf("(scale ±%d)", t.Scale)))
	if len(t.OutOfRange) > 0 {
		ui.Warning("Scores outside ±%d from %s", t.Scale, strings.Join(t.OutOfRange, ", "))
	}
	return nil
}

func verdictColor(v review.Verdict) string {
	switch v {
	case review.VerdictApproved:
		return output.Green(string(v))
	case review.VerdictRejected:
		return output.Red(string(v))
	default:
		return output.Yellow(string(v))
	}
}
