package parser

import "fmt"

// InputError reports a source that cannot be opened or read, or a line that
// cannot be decoded as text.
type InputError struct {
	Source  string
	LineNum int // 0 when the failure is not tied to a line
	Err     error
}

func (e *InputError) Error() string {
	if e.LineNum > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Source, e.LineNum, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}
