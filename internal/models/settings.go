package models

// Strategy is how accepted reviews are integrated into their target branch.
type Strategy string

const (
	StrategyMerge  Strategy = "merge"
	StrategyRebase Strategy = "rebase"
)

// Strategies lists every accepted strategy, in flag-help order.
var Strategies = []Strategy{StrategyMerge, StrategyRebase}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

// Settings is the per-repository configuration stored in .codereview.yaml.
type Settings struct {
	Branch   string   `yaml:"branch" json:"branch"`
	Scoring  int      `yaml:"scoring" json:"scoring"`
	Strategy Strategy `yaml:"strategy" json:"strategy"`
}
