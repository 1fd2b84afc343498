package review

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/codereview/internal/models"
)

// ErrMissingField is wrapped by MalformedRecordError when a required key is absent.
var ErrMissingField = errors.New("missing required field")

// MalformedRecordError reports a review document that cannot become a Review.
type MalformedRecordError struct {
	Path  string
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	var b strings.Builder
	b.WriteString("malformed review")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// document mirrors the stored YAML. Pointers distinguish absent keys from zero values.
type document struct {
	Title *string `yaml:"title"`
	From  *struct {
		Branch *string `yaml:"branch"`
	} `yaml:"from"`
	Onto  *string `yaml:"onto"`
	By    *string `yaml:"by"`
	Body  *string `yaml:"body"`
	Dates *struct {
		Created *string `yaml:"created"`
	} `yaml:"dates"`
	Reviewers yaml.Node `yaml:"reviewers"`
	Merged    *bool     `yaml:"merged"`
	Abandoned *bool     `yaml:"abandoned"`
}

// Parse decodes one stored review document. path is only used for error reporting.
func Parse(path string, data []byte) (*models.Review, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedRecordError{Path: path, Err: err}
	}

	missing := func(field string) error {
		return &MalformedRecordError{Path: path, Field: field, Err: ErrMissingField}
	}

	if doc.Title == nil || strings.TrimSpace(*doc.Title) == "" {
		return nil, missing("title")
	}
	if doc.From == nil || doc.From.Branch == nil {
		return nil, missing("from.branch")
	}
	if doc.Onto == nil {
		return nil, missing("onto")
	}
	if doc.Dates == nil || doc.Dates.Created == nil {
		return nil, missing("dates.created")
	}
	if doc.By == nil {
		return nil, missing("by")
	}
	if doc.Body == nil {
		return nil, missing("body")
	}
	if doc.Reviewers.Kind == 0 {
		return nil, missing("reviewers")
	}
	if doc.Merged == nil {
		return nil, missing("merged")
	}

	created, err := ParseTimestamp(*doc.Dates.Created)
	if err != nil {
		return nil, &MalformedRecordError{Path: path, Field: "dates.created", Err: err}
	}

	reviewers, err := parseReviewers(&doc.Reviewers)
	if err != nil {
		return nil, &MalformedRecordError{Path: path, Field: "reviewers", Err: err}
	}

	r := &models.Review{
		Path:         path,
		Title:        *doc.Title,
		SourceBranch: *doc.From.Branch,
		TargetBranch: *doc.Onto,
		Body:         *doc.Body,
		Author:       *doc.By,
		CreatedAt:    created,
		Reviewers:    reviewers,
		Merged:       *doc.Merged,
	}
	if doc.Abandoned != nil {
		r.Abandoned = *doc.Abandoned
	}
	return r, nil
}

// parseReviewers walks the mapping node directly so declaration order survives.
func parseReviewers(node *yaml.Node) ([]models.ReviewerScore, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of identity to score (line %d)", node.Line)
	}

	scores := make([]models.ReviewerScore, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return nil, fmt.Errorf("duplicate reviewer %q (line %d)", key.Value, key.Line)
		}
		seen[key.Value] = true

		var score int
		if err := val.Decode(&score); err != nil {
			return nil, fmt.Errorf("score for %q: %w", key.Value, err)
		}
		scores = append(scores, models.ReviewerScore{Identity: key.Value, Score: score})
	}
	return scores, nil
}

// timestampLayouts covers RFC 3339, ISO 8601 offsets written as +hhmm or
// +hh, the space-separated forms YAML timestamps commonly take, and the
// compact basic format.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999 Z07:00",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"20060102T150405Z0700",
	"20060102T150405",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601-like string. Values without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
