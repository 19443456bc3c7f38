package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ccollicutt/scrape/pkg/pattern"
)

// catchAll is the last alternative of every combined expression. It makes
// every line match so that "no category" shows up as no populated slot rather
// than a failed match.
const catchAll = `(?s:.*)`

// slot is the reserved group range of one category inside a combined
// expression. group is the wrapper group; the pattern's own groups follow it.
type slot struct {
	category int
	group    int
}

// stage is a combined expression over the categories from some index to the
// end of the set.
type stage struct {
	re    *regexp.Regexp
	slots []slot
}

// Combined evaluates a single alternation of every pattern per line.
//
// An alternation reports only its first matching branch, so after a line
// matches category j it is rescanned with the precompiled stage covering
// categories j+1 and later. Lines that match nothing take one scan.
type Combined struct {
	patterns []*pattern.Compiled
	stages   []stage
}

func newCombined(set *pattern.Set) (*Combined, error) {
	c := &Combined{patterns: set.Patterns()}

	c.stages = make([]stage, len(c.patterns))
	for k := range c.patterns {
		st, err := buildStage(c.patterns, k)
		if err != nil {
			return nil, err
		}
		c.stages[k] = st
	}
	return c, nil
}

func buildStage(patterns []*pattern.Compiled, from int) (stage, error) {
	var b strings.Builder
	slots := make([]slot, 0, len(patterns)-from)

	b.WriteString("^(?:")
	group := 1
	for i := from; i < len(patterns); i++ {
		p := patterns[i]
		slots = append(slots, slot{category: i, group: group})

		// The lazy prefix lets an unanchored pattern start anywhere while the
		// whole alternation stays anchored at the start of the line.
		b.WriteString("((?s:.*?)(?:")
		b.WriteString(p.Expr)
		b.WriteString("))|")

		group += 1 + p.NumGroups()
	}
	b.WriteString(catchAll)
	b.WriteString(")")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return stage{}, &pattern.PatternError{
			Pattern: patterns[from].Name,
			Expr:    b.String(),
			Err:     fmt.Errorf("building combined expression: %w", err),
		}
	}

	return stage{re: re, slots: slots}, nil
}

// Strategy returns StrategyCombined.
func (c *Combined) Strategy() Strategy {
	return StrategyCombined
}

// Expression returns the combined expression covering every category.
func (c *Combined) Expression() string {
	return c.stages[0].re.String()
}

// Classify implements Classifier.
func (c *Combined) Classify(line []byte, dst []Match) ([]Match, error) {
	for k := 0; k < len(c.stages); {
		st := &c.stages[k]

		loc := st.re.FindSubmatchIndex(line)
		if loc == nil {
			break
		}

		matched := -1
		for i, s := range st.slots {
			if loc[2*s.group] >= 0 {
				matched = i
				break
			}
		}
		if matched < 0 {
			break
		}

		s := st.slots[matched]
		fields, err := c.patterns[s.category].Extract(line, loc, s.group)
		if err != nil {
			return dst, err
		}
		dst = append(dst, Match{Category: s.category, Fields: fields})

		k = s.category + 1
	}
	return dst, nil
}
