package classifier

import "github.com/ccollicutt/scrape/pkg/pattern"

// Sequential runs each pattern's own expression against the line.
type Sequential struct {
	patterns []*pattern.Compiled
}

func newSequential(set *pattern.Set) *Sequential {
	return &Sequential{patterns: set.Patterns()}
}

// Strategy returns StrategySequential.
func (s *Sequential) Strategy() Strategy {
	return StrategySequential
}

// Classify implements Classifier.
func (s *Sequential) Classify(line []byte, dst []Match) ([]Match, error) {
	for i, p := range s.patterns {
		loc := p.Regexp().FindSubmatchIndex(line)
		if loc == nil {
			continue
		}

		fields, err := p.Extract(line, loc, 0)
		if err != nil {
			return dst, err
		}
		dst = append(dst, Match{Category: i, Fields: fields})
	}
	return dst, nil
}
