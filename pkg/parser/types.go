// Package parser reads log input as a single ordered stream of raw lines.
package parser

// Line is one raw input line.
type Line struct {
	// Bytes is the line content without the trailing newline. It is only
	// valid until the next call to Next.
	Bytes []byte

	// Source is the file path this line came from ("-" for stdin).
	Source string

	// LineNum is the 1-based line number in the source file.
	LineNum int
}
