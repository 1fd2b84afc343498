package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/codereview/internal/models"
)

// NameResolver turns an identity token into a display name.
type NameResolver interface {
	Resolve(token string) string
}

// Summary is the one-line view of a review. Index is supplied by the caller.
type Summary struct {
	Index        int                 `json:"id"`
	Title        string              `json:"title"`
	SourceBranch string              `json:"from"`
	TargetBranch string              `json:"onto"`
	Status       models.ReviewStatus `json:"status"`
	Open         bool                `json:"open"`
}

// ReviewerLine is one reviewer's score ready for display.
type ReviewerLine struct {
	Identity string            `json:"identity"`
	Name     string            `json:"name"`
	Score    int               `json:"score"`
	Display  string            `json:"display"`
	Class    models.ScoreClass `json:"class"`
}

// Detail is the full view of a review as shown by `codereview show`.
type Detail struct {
	Summary
	Author     string         `json:"author"`
	AuthorName string         `json:"author_name"`
	CreatedAt  time.Time      `json:"created_at"`
	Age        time.Duration  `json:"age"`
	Body       string         `json:"body"`
	Reviewers  []ReviewerLine `json:"reviewers"`
}

// Summarize builds the summary for r at the given 1-based position.
func Summarize(index int, r *models.Review) Summary {
	return Summary{
		Index:        index,
		Title:        r.Title,
		SourceBranch: r.SourceBranch,
		TargetBranch: r.TargetBranch,
		Status:       r.Status(),
		Open:         r.Open(),
	}
}

// Describe builds the detail view. now is passed in so ages do not depend on the wall clock.
func Describe(index int, r *models.Review, names NameResolver, now time.Time) Detail {
	d := Detail{
		Summary:    Summarize(index, r),
		Author:     r.Author,
		AuthorName: names.Resolve(r.Author),
		CreatedAt:  r.CreatedAt,
		Age:        now.Sub(r.CreatedAt),
		Body:       strings.TrimSpace(r.Body),
		Reviewers:  make([]ReviewerLine, 0, len(r.Reviewers)),
	}
	for _, rs := range r.Reviewers {
		d.Reviewers = append(d.Reviewers, ReviewerLine{
			Identity: rs.Identity,
			Name:     names.Resolve(rs.Identity),
			Score:    rs.Score,
			Display:  FormatScore(rs.Score),
			Class:    ClassifyScore(rs.Score),
		})
	}
	return d
}

// ClassifyScore buckets a score into positive, zero or negative.
func ClassifyScore(score int) models.ScoreClass {
	switch {
	case score >= 1:
		return models.ScoreClassPositive
	case score == 0:
		return models.ScoreClassZero
	default:
		return models.ScoreClassNegative
	}
}

// FormatScore renders a score, with an explicit plus sign on positive values.
func FormatScore(score int) string {
	if score >= 1 {
		return fmt.Sprintf("+%d", score)
	}
	return fmt.Sprintf("%d", score)
}
