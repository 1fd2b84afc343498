package review

import "github.com/joescharf/codereview/internal/models"

// Verdict is the aggregate outcome of a review's scores on the configured scale.
type Verdict string

const (
	VerdictApproved Verdict = "APPROVED"
	VerdictRejected Verdict = "REJECTED"
	VerdictPending  Verdict = "PENDING"
)

// TallyResult holds the verdict and any identities whose score lies outside the scale.
type TallyResult struct {
	Verdict    Verdict  `json:"verdict"`
	Scale      int      `json:"scale"`
	OutOfRange []string `json:"out_of_range,omitempty"`
}

// Tally computes the verdict for scores against scale (scores span -scale..+scale).
// A single score at -scale or below rejects; otherwise a score at +scale or above approves.
func Tally(scores []models.ReviewerScore, scale int) TallyResult {
	if scale < 1 {
		scale = 1
	}
	res := TallyResult{Verdict: VerdictPending, Scale: scale}

	approved, rejected := false, false
	for _, s := range scores {
		if s.Score > scale || s.Score < -scale {
			res.OutOfRange = append(res.OutOfRange, s.Identity)
		}
		switch {
		case s.Score <= -scale:
			rejected = true
		case s.Score >= scale:
			approved = true
		}
	}

	switch {
	case rejected:
		res.Verdict = VerdictRejected
	case approved:
		res.Verdict = VerdictApproved
	}
	return res
}
