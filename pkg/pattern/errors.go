package pattern

import "fmt"

// PatternError reports a pattern that cannot be compiled or whose field
// declarations are inconsistent with its expression.
type PatternError struct {
	Pattern string
	Expr    string
	Err     error
}

func (e *PatternError) Error() string {
	if e.Expr == "" {
		return fmt.Sprintf("pattern %q: %v", e.Pattern, e.Err)
	}
	return fmt.Sprintf("pattern %q (%s): %v", e.Pattern, e.Expr, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// FieldParseError reports a captured value that does not convert to its
// declared kind.
type FieldParseError struct {
	Pattern string
	Field   string
	Value   string
	Err     error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("pattern %q: field %q: cannot parse %q: %v", e.Pattern, e.Field, e.Value, e.Err)
}

func (e *FieldParseError) Unwrap() error {
	return e.Err
}
