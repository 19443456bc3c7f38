package scrape

import (
	"fmt"
	"time"

	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/stats"
)

// Result is the outcome of one pass.
type Result struct {
	// Snapshot is the final state of every category.
	Snapshot *stats.Snapshot

	// Strategy is the matching strategy used.
	Strategy classifier.Strategy

	// Sources lists the inputs that produced at least one line, in order.
	Sources []string

	// Duration is the wall time of the pass.
	Duration time.Duration

	// Interrupted is set when the pass stopped before the end of input.
	Interrupted bool

	// InvalidLines counts lines the source dropped as undecodable.
	InvalidLines uint64
}

// LineError attaches the input position to an error raised while processing
// a line.
type LineError struct {
	Source  string
	LineNum int
	Err     error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Source, e.LineNum, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
