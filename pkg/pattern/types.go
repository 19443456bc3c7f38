// Package pattern defines the event patterns that classify log lines and the
// typed fields extracted from matching lines.
package pattern

import "fmt"

// FieldKind is the declared type of a captured field.
type FieldKind int

const (
	// KindInteger fields are parsed as unsigned 64-bit integers.
	KindInteger FieldKind = iota
	// KindText fields are kept as the raw captured text.
	KindText
)

// String returns the configuration name of the kind.
func (k FieldKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// ParseFieldKind converts a configuration name into a FieldKind.
func ParseFieldKind(s string) (FieldKind, error) {
	switch s {
	case "integer", "int":
		return KindInteger, nil
	case "text", "string":
		return KindText, nil
	default:
		return 0, fmt.Errorf("invalid field kind %q (must be integer or text)", s)
	}
}

// FieldRole says which aggregate a field feeds.
type FieldRole string

const (
	// RoleRange fields feed the min/max aggregates.
	RoleRange FieldRole = "range"
	// RoleSum fields feed the running sum.
	RoleSum FieldRole = "sum"
	// RoleKey fields are the histogram key.
	RoleKey FieldRole = "key"
)

// AggregateKind is how a category aggregates its matches.
type AggregateKind string

const (
	// AggregateNumeric tracks min, max and sum over integer fields.
	AggregateNumeric AggregateKind = "numeric"
	// AggregateHistogram counts occurrences of a text key.
	AggregateHistogram AggregateKind = "histogram"
)

// FieldSpec maps one capture group of a pattern to a typed field.
type FieldSpec struct {
	// Name identifies the field, e.g. "offset".
	Name string

	// Label is the human-readable name used in reports. Defaults to Name.
	Label string

	// Group is the 1-based capture group index within the pattern's expression.
	Group int

	// Kind is the declared type of the captured text.
	Kind FieldKind

	// Role is the aggregate the field feeds.
	Role FieldRole
}

// DisplayLabel returns Label, falling back to Name.
func (f FieldSpec) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// EventPattern describes one recognizable log line shape and the category it
// feeds.
type EventPattern struct {
	// Name identifies the category, e.g. "append".
	Name string

	// Label is used in report headers ("<label> events"). Defaults to Name.
	Label string

	// Expr is the regular expression matched against each line.
	Expr string

	// Aggregate selects numeric or histogram accumulation.
	Aggregate AggregateKind

	// Fields declares the meaningful capture groups, in order.
	Fields []FieldSpec

	// Quantiles requests percentile estimates of the sum field (numeric only).
	Quantiles []float64
}

// DisplayLabel returns Label, falling back to Name.
func (p EventPattern) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Name
}

// FieldIndex returns the position in Fields of the field with the given role,
// or -1.
func (p EventPattern) FieldIndex(role FieldRole) int {
	for i, f := range p.Fields {
		if f.Role == role {
			return i
		}
	}
	return -1
}

// Value is one extracted field value.
type Value struct {
	Kind FieldKind
	Int  uint64
	Text string
}

// String renders the value the way it appeared in the line.
func (v Value) String() string {
	if v.Kind == KindInteger {
		return fmt.Sprintf("%d", v.Int)
	}
	return v.Text
}

// Fields holds the values extracted from one matching line, aligned with the
// pattern's FieldSpecs.
type Fields []Value
