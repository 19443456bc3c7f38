package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Compiled is an EventPattern with its expression compiled.
type Compiled struct {
	EventPattern

	re *regexp.Regexp
}

// Regexp returns the compiled expression.
func (c *Compiled) Regexp() *regexp.Regexp {
	return c.re
}

// NumGroups returns the number of capture groups in the expression.
func (c *Compiled) NumGroups() int {
	return c.re.NumSubexp()
}

// Extract builds the declared fields from a submatch index slice as returned by
// regexp's FindSubmatchIndex. base is the group number that corresponds to
// group 0 of this pattern: 0 when the pattern's own regexp produced loc, or the
// offset of the pattern inside a larger expression.
// Groups that did not participate extract as empty text, which fails to parse
// for integer fields.
func (c *Compiled) Extract(line []byte, loc []int, base int) (Fields, error) {
	fields := make(Fields, len(c.Fields))
	for i, spec := range c.Fields {
		g := base + spec.Group
		var raw []byte
		if 2*g+1 < len(loc) && loc[2*g] >= 0 {
			raw = line[loc[2*g]:loc[2*g+1]]
		}

		switch spec.Kind {
		case KindInteger:
			n, err := strconv.ParseUint(string(raw), 10, 64)
			if err != nil {
				return nil, &FieldParseError{
					Pattern: c.Name,
					Field:   spec.Name,
					Value:   string(raw),
					Err:     err,
				}
			}
			fields[i] = Value{Kind: KindInteger, Int: n}
		default:
			fields[i] = Value{Kind: KindText, Text: string(raw)}
		}
	}
	return fields, nil
}

// Set is an ordered, immutable collection of compiled patterns. The position of
// a pattern in the set is its category index.
type Set struct {
	patterns []*Compiled
	byName   map[string]int
}

// Compile validates and compiles the given patterns into a Set.
// Any failure is returned as a *PatternError.
func Compile(patterns ...EventPattern) (*Set, error) {
	if len(patterns) == 0 {
		return nil, &PatternError{Err: errors.New("no patterns defined")}
	}

	s := &Set{
		patterns: make([]*Compiled, 0, len(patterns)),
		byName:   make(map[string]int, len(patterns)),
	}

	for _, p := range patterns {
		if p.Name == "" {
			return nil, &PatternError{Expr: p.Expr, Err: errors.New("name is required")}
		}
		if _, dup := s.byName[p.Name]; dup {
			return nil, &PatternError{Pattern: p.Name, Err: errors.New("duplicate pattern name")}
		}

		c, err := compileOne(p)
		if err != nil {
			return nil, &PatternError{Pattern: p.Name, Expr: p.Expr, Err: err}
		}

		s.byName[p.Name] = len(s.patterns)
		s.patterns = append(s.patterns, c)
	}

	return s, nil
}

func compileOne(p EventPattern) (*Compiled, error) {
	if p.Expr == "" {
		return nil, errors.New("expression is required")
	}

	re, err := regexp.Compile(p.Expr)
	if err != nil {
		return nil, err
	}

	// Copy the slices so later mutation by the caller cannot reach the set.
	p.Fields = append([]FieldSpec(nil), p.Fields...)
	p.Quantiles = append([]float64(nil), p.Quantiles...)

	if err := validateFields(p, re.NumSubexp()); err != nil {
		return nil, err
	}

	return &Compiled{EventPattern: p, re: re}, nil
}

func validateFields(p EventPattern, groups int) error {
	if len(p.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	roles := make(map[FieldRole]int)
	names := make(map[string]bool)
	for i, f := range p.Fields {
		if f.Name == "" {
			return fmt.Errorf("fields[%d]: name is required", i)
		}
		if names[f.Name] {
			return fmt.Errorf("fields[%d]: duplicate field name %q", i, f.Name)
		}
		names[f.Name] = true

		if f.Group < 1 || f.Group > groups {
			return fmt.Errorf("field %q: group %d out of range (expression has %d capture groups)", f.Name, f.Group, groups)
		}
		roles[f.Role]++
	}

	switch p.Aggregate {
	case AggregateNumeric:
		for _, f := range p.Fields {
			if f.Kind != KindInteger {
				return fmt.Errorf("field %q: numeric patterns only take integer fields", f.Name)
			}
			if f.Role != RoleRange && f.Role != RoleSum {
				return fmt.Errorf("field %q: invalid role %q for numeric pattern (must be range or sum)", f.Name, f.Role)
			}
		}
		if roles[RoleRange] > 1 || roles[RoleSum] > 1 {
			return errors.New("numeric patterns take at most one range field and one sum field")
		}
		if len(p.Quantiles) > 0 && roles[RoleSum] == 0 {
			return errors.New("quantiles require a sum field")
		}
		for _, q := range p.Quantiles {
			if q <= 0 || q >= 1 {
				return fmt.Errorf("quantile %v out of range (0, 1)", q)
			}
		}
	case AggregateHistogram:
		if len(p.Fields) != 1 || p.Fields[0].Kind != KindText || p.Fields[0].Role != RoleKey {
			return errors.New("histogram patterns take exactly one text field with role key")
		}
		if len(p.Quantiles) > 0 {
			return errors.New("quantiles are only supported on numeric patterns")
		}
	default:
		return fmt.Errorf("invalid aggregate %q (must be numeric or histogram)", p.Aggregate)
	}

	return nil
}

// Len returns the number of patterns in the set.
func (s *Set) Len() int {
	return len(s.patterns)
}

// At returns the pattern for category i.
func (s *Set) At(i int) *Compiled {
	return s.patterns[i]
}

// Patterns returns the compiled patterns in category order.
func (s *Set) Patterns() []*Compiled {
	return append([]*Compiled(nil), s.patterns...)
}

// Names returns the category names in order.
func (s *Set) Names() []string {
	names := make([]string, len(s.patterns))
	for i, p := range s.patterns {
		names[i] = p.Name
	}
	return names
}

// Lookup returns the category index of the named pattern.
func (s *Set) Lookup(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// Select returns a new Set holding only the named categories, in the order
// they appear in s. An empty list selects everything.
func (s *Set) Select(names []string) (*Set, error) {
	if len(names) == 0 {
		return s, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := s.byName[n]; !ok {
			return nil, &PatternError{Pattern: n, Err: errors.New("unknown category")}
		}
		want[n] = true
	}

	out := &Set{byName: make(map[string]int, len(want))}
	for _, p := range s.patterns {
		if want[p.Name] {
			out.byName[p.Name] = len(out.patterns)
			out.patterns = append(out.patterns, p)
		}
	}
	return out, nil
}
