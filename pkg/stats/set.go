package stats

import (
	"fmt"

	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/pattern"
)

// Set holds one Accumulator per category plus the counters shared by all of
// them.
type Set struct {
	accs []*Accumulator

	totalLines   uint64
	matchedLines uint64
	skippedLines uint64
}

// NewSet creates an empty Set with one accumulator per pattern in ps.
func NewSet(ps *pattern.Set) *Set {
	s := &Set{accs: make([]*Accumulator, ps.Len())}
	for i := range s.accs {
		s.accs[i] = NewAccumulator(ps.At(i))
	}
	return s
}

// Len returns the number of categories.
func (s *Set) Len() int {
	return len(s.accs)
}

// TotalLines returns the number of lines seen so far.
func (s *Set) TotalLines() uint64 {
	return s.totalLines
}

// RecordLine counts one input line. It is called once per line whether or not
// the line matches anything.
func (s *Set) RecordLine() {
	s.totalLines++
}

// RecordSkipped counts a line whose matches were dropped.
func (s *Set) RecordSkipped() {
	s.skippedLines++
}

// RecordMatch folds a single match into its category.
func (s *Set) RecordMatch(category int, fields pattern.Fields) error {
	return s.Apply([]classifier.Match{{Category: category, Fields: fields}})
}

// Apply folds every match of one line into the set. Either all matches are
// recorded or, on error, none are.
func (s *Set) Apply(matches []classifier.Match) error {
	if len(matches) == 0 {
		return nil
	}

	for _, m := range matches {
		if m.Category < 0 || m.Category >= len(s.accs) {
			return fmt.Errorf("category %d out of range", m.Category)
		}
		if err := s.accs[m.Category].check(m.Fields); err != nil {
			return fmt.Errorf("category %q: %w", s.accs[m.Category].name, err)
		}
	}

	for _, m := range matches {
		s.accs[m.Category].record(m.Fields)
	}
	s.matchedLines++

	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Set) Snapshot() *Snapshot {
	snap := &Snapshot{
		TotalLines:   s.totalLines,
		MatchedLines: s.matchedLines,
		SkippedLines: s.skippedLines,
		Categories:   make([]CategorySnapshot, len(s.accs)),
	}
	for i, a := range s.accs {
		snap.Categories[i] = a.Snapshot(s.totalLines)
	}
	return snap
}
