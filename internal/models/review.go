package models

import "time"

// ReviewStatus is the lifecycle tag shown next to a review.
type ReviewStatus string

const (
	ReviewStatusNone      ReviewStatus = "NONE"
	ReviewStatusMerged    ReviewStatus = "MERGED"
	ReviewStatusAbandoned ReviewStatus = "ABANDONED"
)

// ScoreClass buckets a reviewer score for display.
type ScoreClass string

const (
	ScoreClassPositive ScoreClass = "POSITIVE"
	ScoreClassZero     ScoreClass = "ZERO"
	ScoreClassNegative ScoreClass = "NEGATIVE"
)

// ReviewerScore is one reviewer's vote, kept in the order the document declares it.
type ReviewerScore struct {
	Identity string `json:"identity"`
	Score    int    `json:"score"`
}

// Review is a review record parsed from one document on the review branch.
type Review struct {
	Path         string // file path on the review branch
	Title        string
	SourceBranch string
	TargetBranch string
	Body         string
	Author       string
	CreatedAt    time.Time
	Reviewers    []ReviewerScore
	Merged       bool
	Abandoned    bool
}

// Open reports whether the review is neither merged nor abandoned.
func (r *Review) Open() bool {
	return !(r.Merged || r.Abandoned)
}

// Status returns the display tag. Merged wins when a document sets both flags.
func (r *Review) Status() ReviewStatus {
	switch {
	case r.Merged:
		return ReviewStatusMerged
	case r.Abandoned:
		return ReviewStatusAbandoned
	default:
		return ReviewStatusNone
	}
}
