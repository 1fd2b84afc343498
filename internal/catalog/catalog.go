package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/joescharf/codereview/internal/git"
	"github.com/joescharf/codereview/internal/models"
	"github.com/joescharf/codereview/internal/review"
)

var (
	// ErrStoreNotFound means the review branch does not exist yet.
	ErrStoreNotFound = errors.New("review store not found")
	// ErrIndexOutOfRange means a review id outside 1..Len() was requested.
	ErrIndexOutOfRange = errors.New("review index out of range")
)

// Source is the read side of the version-control collaborator.
type Source interface {
	ListFiles(ref string) ([]string, error)
	ReadFile(ref, path string) ([]byte, error)
}

// State selects reviews by lifecycle.
type State string

const (
	StateAll    State = "all"
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// ParseState validates a state name. The empty string means all.
func ParseState(s string) (State, error) {
	switch State(s) {
	case "", StateAll:
		return StateAll, nil
	case StateOpen, StateClosed:
		return State(s), nil
	default:
		return "", fmt.Errorf("unknown state %q (use: all, open, closed)", s)
	}
}

// Catalog is the ordered set of reviews found at one ref: open reviews
// first, otherwise in the order the ref lists its files.
type Catalog struct {
	Ref     string
	reviews []*models.Review
}

// Entry is a review together with its 1-based position in the catalog.
type Entry struct {
	Index  int
	Review *models.Review
}

// Load reads and parses every file at ref. Any malformed document fails the
// whole load; no partial catalog is returned.
func Load(src Source, ref string) (*Catalog, error) {
	paths, err := src.ListFiles(ref)
	if err != nil {
		if errors.Is(err, git.ErrRefNotFound) {
			return nil, fmt.Errorf("%w: branch %s does not exist (run 'codereview init' first): %w", ErrStoreNotFound, ref, err)
		}
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	reviews := make([]*models.Review, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := src.ReadFile(ref, p)
		if err != nil {
			return nil, fmt.Errorf("read review %s: %w", p, err)
		}
		r, err := review.Parse(p, data)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}

	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].Open() && !reviews[j].Open()
	})

	return &Catalog{Ref: ref, reviews: reviews}, nil
}

// Len returns the number of reviews.
func (c *Catalog) Len() int { return len(c.reviews) }

// Reviews returns the reviews in catalog order.
func (c *Catalog) Reviews() []*models.Review {
	out := make([]*models.Review, len(c.reviews))
	copy(out, c.reviews)
	return out
}

// Get returns the review at the 1-based position index. Positions are only
// meaningful for this load; they shift when the branch changes.
func (c *Catalog) Get(index int) (*models.Review, error) {
	if index < 1 || index > len(c.reviews) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(c.reviews))
	}
	return c.reviews[index-1], nil
}

// Filter returns the entries matching state, keeping their catalog positions.
func (c *Catalog) Filter(state State) []Entry {
	var entries []Entry
	for i, r := range c.reviews {
		switch {
		case state == StateOpen && !r.Open():
			continue
		case state == StateClosed && r.Open():
			continue
		}
		entries = append(entries, Entry{Index: i + 1, Review: r})
	}
	return entries
}

// Loader binds a Source and ref so callers can reload on demand.
type Loader struct {
	src Source
	ref string
}

// NewLoader returns a Loader for ref.
func NewLoader(src Source, ref string) *Loader {
	return &Loader{src: src, ref: ref}
}

// Load rebuilds the catalog from scratch.
func (l *Loader) Load() (*Catalog, error) {
	return Load(l.src, l.ref)
}
