// Package classifier decides which event categories a log line belongs to and
// extracts their fields.
//
// Two strategies implement the same contract. The sequential strategy runs
// every category's own expression against the line. The combined strategy
// folds all expressions into one alternation so a line that matches nothing
// costs a single scan. Both return identical results for identical input.
package classifier

import (
	"fmt"

	"github.com/ccollicutt/scrape/pkg/pattern"
)

// Strategy selects the matching implementation.
type Strategy string

const (
	// StrategyCombined evaluates one alternation of every pattern per line.
	StrategyCombined Strategy = "combined"
	// StrategySequential evaluates each pattern independently.
	StrategySequential Strategy = "sequential"
)

// Strategies lists the supported strategies.
var Strategies = []Strategy{StrategyCombined, StrategySequential}

// ParseStrategy converts a configuration name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyCombined, StrategySequential:
		return Strategy(s), nil
	case "standard":
		return StrategySequential, nil
	default:
		return "", fmt.Errorf("invalid strategy %q (must be combined or sequential)", s)
	}
}

// Match is one category matched by a line.
type Match struct {
	// Category is the index of the pattern in the set.
	Category int

	// Fields are the extracted values, aligned with the pattern's field specs.
	Fields pattern.Fields
}

// Classifier matches lines against a pattern set.
// Implementations are read-only after construction.
type Classifier interface {
	// Strategy returns the strategy the classifier implements.
	Strategy() Strategy

	// Classify appends to dst one Match per category whose pattern matches
	// line, in category order, and returns the extended slice.
	// A *pattern.FieldParseError is returned when a matching line carries a
	// value that does not convert to its declared kind.
	Classify(line []byte, dst []Match) ([]Match, error)
}

// New builds the classifier for the given strategy over set.
func New(strategy Strategy, set *pattern.Set) (Classifier, error) {
	if set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("classifier: empty pattern set")
	}

	switch strategy {
	case StrategyCombined:
		return newCombined(set)
	case StrategySequential:
		return newSequential(set), nil
	default:
		return nil, fmt.Errorf("classifier: unknown strategy %q", strategy)
	}
}
