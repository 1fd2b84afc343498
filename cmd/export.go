package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/codereview/internal/catalog"
	"github.com/joescharf/codereview/internal/models"
	"github.com/joescharf/codereview/internal/review"
)

var (
	exportFormat string
	exportDBPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reviews as JSON, CSV, Markdown, or a SQLite snapshot",
	Long: `Export the loaded review list in catalog order.

--format sqlite appends a snapshot to the database at --db (default
.git/codereview.db) so review history can be queried offline with
'codereview snapshots'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun(cmd.Context())
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv, markdown, sqlite")
	exportCmd.Flags().StringVar(&exportDBPath, "db", "", "SQLite database path for --format sqlite")
	rootCmd.AddCommand(exportCmd)
}

// exportRecord is the flat JSON shape of one review.
type exportRecord struct {
	review.Summary
	Author    string                 `json:"author"`
	CreatedAt time.Time              `json:"created_at"`
	Body      string                 `json:"body"`
	Reviewers []models.ReviewerScore `json:"reviewers"`
	Verdict   review.Verdict         `json:"verdict"`
}

func exportRun(ctx context.Context) error {
	c, s, err := loadCatalog()
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		return exportJSON(c, s)
	case "csv":
		return exportCSV(c, s)
	case "markdown":
		return exportMarkdown(c)
	case "sqlite":
		return exportSQLite(ctx, c)
	default:
		return fmt.Errorf("unknown format: %s (use: json, csv, markdown, sqlite)", exportFormat)
	}
}

func exportJSON(c *catalog.Catalog, s models.Settings) error {
	records := make([]exportRecord, 0, c.Len())
	for i, r := range c.Reviews() {
		reviewers := r.Reviewers
		if reviewers == nil {
			reviewers = []models.ReviewerScore{}
		}
		records = append(records, exportRecord{
			Summary:   review.Summarize(i+1, r),
			Author:    r.Author,
			CreatedAt: r.CreatedAt,
			Body:      strings.TrimSpace(r.Body),
			Reviewers: reviewers,
			Verdict:   review.Tally(r.Reviewers, s.Scoring).Verdict,
		})
	}

	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func exportCSV(c *catalog.Catalog, s models.Settings) error {
	w := csv.NewWriter(ui.Out)
	_ = w.Write([]string{"ID", "Title", "From", "Onto", "Status", "Author", "Created", "Reviewers", "Verdict"})
	for i, r := range c.Reviews() {
		scores := make([]string, len(r.Reviewers))
		for j, rs := range r.Reviewers {
			scores[j] = rs.Identity + "=" + review.FormatScore(rs.Score)
		}
		_ = w.Write([]string{
			strconv.Itoa(i + 1),
			r.Title,
			r.SourceBranch,
			r.TargetBranch,
			string(r.Status()),
			r.Author,
			r.CreatedAt.Format(time.RFC3339),
			strings.Join(scores, ";"),
			string(review.Tally(r.Reviewers, s.Scoring).Verdict),
		})
	}
	w.Flush()
	return w.Error()
}

func exportMarkdown(c *catalog.Catalog) error {
	fmt.Fprintf(ui.Out, "# Reviews on %s\n", c.Ref)
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, "| # | Title | From | Onto | Status | Author |")
	fmt.Fprintln(ui.Out, "|---|-------|------|------|--------|--------|")
	for i, r := range c.Reviews() {
		fmt.Fprintf(ui.Out, "| %d | %s | %s | %s | %s | %s |\n",
			i+1, markdownCell(r.Title), markdownCell(r.SourceBranch), markdownCell(r.TargetBranch), r.Status(), markdownCell(r.Author))
	}
	return nil
}

func markdownCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func exportSQLite(ctx context.Context, c *catalog.Catalog) error {
	dbPath, err := snapshotDBPath(exportDBPath)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would write snapshot of %d reviews to %s", c.Len(), dbPath)
		return nil
	}

	db, err := openStore(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	snap := &models.Snapshot{Ref: c.Ref, Reviews: c.Reviews()}
	if err := db.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	ui.Success("Saved snapshot %s (%d reviews) to %s", snap.ID, len(snap.Reviews), dbPath)
	return nil
}
