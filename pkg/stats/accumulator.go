// Package stats accumulates per-category statistics over a single pass of a
// log stream and produces read-only snapshots for reporting.
//
// Nothing in this package is safe for concurrent use. One goroutine owns a Set
// for the whole pass.
package stats

import (
	"errors"
	"math/bits"

	"github.com/influxdata/tdigest"

	"github.com/ccollicutt/scrape/pkg/pattern"
)

// ErrSumOverflow is returned when adding a value would overflow a category's
// 64-bit sum.
var ErrSumOverflow = errors.New("sum overflows uint64")

// digestCompression keeps roughly 100 centroids per digest.
const digestCompression = 100

// Accumulator is the running state of one category.
type Accumulator struct {
	name      string
	label     string
	aggregate pattern.AggregateKind

	rangeField int
	sumField   int
	keyField   int

	rangeLabel string
	sumLabel   string

	matches uint64

	// numeric
	hasRange bool
	min      uint64
	max      uint64
	sum      uint64
	digest   *tdigest.TDigest
	quantile []float64

	// histogram
	freq map[string]uint64
}

// NewAccumulator creates the accumulator for a compiled pattern.
func NewAccumulator(p *pattern.Compiled) *Accumulator {
	a := &Accumulator{
		name:       p.Name,
		label:      p.DisplayLabel(),
		aggregate:  p.Aggregate,
		rangeField: p.FieldIndex(pattern.RoleRange),
		sumField:   p.FieldIndex(pattern.RoleSum),
		keyField:   p.FieldIndex(pattern.RoleKey),
	}

	if a.rangeField >= 0 {
		a.rangeLabel = p.Fields[a.rangeField].DisplayLabel()
	}
	if a.sumField >= 0 {
		a.sumLabel = p.Fields[a.sumField].DisplayLabel()
	}

	switch p.Aggregate {
	case pattern.AggregateHistogram:
		a.freq = make(map[string]uint64)
	case pattern.AggregateNumeric:
		if len(p.Quantiles) > 0 {
			a.digest = tdigest.NewWithCompression(digestCompression)
			a.quantile = append([]float64(nil), p.Quantiles...)
		}
	}

	return a
}

// Name returns the category name.
func (a *Accumulator) Name() string {
	return a.name
}

// Matches returns the number of recorded matches.
func (a *Accumulator) Matches() uint64 {
	return a.matches
}

// check reports whether recording fields would fail, without mutating state.
func (a *Accumulator) check(fields pattern.Fields) error {
	if a.aggregate != pattern.AggregateNumeric || a.sumField < 0 {
		return nil
	}
	if _, carry := bits.Add64(a.sum, fields[a.sumField].Int, 0); carry != 0 {
		return ErrSumOverflow
	}
	return nil
}

// Record folds one match into the accumulator.
func (a *Accumulator) Record(fields pattern.Fields) error {
	if err := a.check(fields); err != nil {
		return err
	}
	a.record(fields)
	return nil
}

func (a *Accumulator) record(fields pattern.Fields) {
	a.matches++

	switch a.aggregate {
	case pattern.AggregateNumeric:
		if a.rangeField >= 0 {
			v := fields[a.rangeField].Int
			if !a.hasRange {
				a.min, a.max, a.hasRange = v, v, true
			} else {
				if v < a.min {
					a.min = v
				}
				if v > a.max {
					a.max = v
				}
			}
		}
		if a.sumField >= 0 {
			v := fields[a.sumField].Int
			a.sum += v
			if a.digest != nil {
				a.digest.Add(float64(v), 1)
			}
		}
	case pattern.AggregateHistogram:
		a.freq[fields[a.keyField].Text]++
	}
}

// Snapshot returns a read-only copy of the accumulator's state.
func (a *Accumulator) Snapshot(totalLines uint64) CategorySnapshot {
	s := CategorySnapshot{
		Name:       a.name,
		Label:      a.label,
		Aggregate:  a.aggregate,
		Matches:    a.matches,
		TotalLines: totalLines,
		RangeLabel: a.rangeLabel,
		SumLabel:   a.sumLabel,
	}

	switch a.aggregate {
	case pattern.AggregateNumeric:
		if a.hasRange {
			lo, hi := a.min, a.max
			s.Min, s.Max = &lo, &hi
		}
		if a.sumField >= 0 {
			sum := a.sum
			s.Sum = &sum
		}
		if a.digest != nil && a.matches > 0 {
			for _, q := range a.quantile {
				s.Quantiles = append(s.Quantiles, Quantile{Q: q, Value: a.digest.Quantile(q)})
			}
		}
	case pattern.AggregateHistogram:
		s.Frequencies = make(map[string]uint64, len(a.freq))
		for k, v := range a.freq {
			s.Frequencies[k] = v
		}
	}

	return s
}
