package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// ErrInvalidUTF8 is wrapped by the InputError returned for a line that is not
// valid UTF-8.
var ErrInvalidUTF8 = errors.New("line is not valid UTF-8")

// DefaultMaxLineSize is the longest line the source accepts.
const DefaultMaxLineSize = 1024 * 1024

// SourceOption configures a FileSource.
type SourceOption func(*FileSource)

// WithSkipInvalidUTF8 drops lines that are not valid UTF-8 instead of failing.
// Dropped lines are not returned and not counted by callers.
func WithSkipInvalidUTF8(skip bool) SourceOption {
	return func(s *FileSource) {
		s.skipInvalidUTF8 = skip
	}
}

// WithMaxLineSize sets the longest accepted line in bytes.
func WithMaxLineSize(n int) SourceOption {
	return func(s *FileSource) {
		if n > 0 {
			s.maxLineSize = n
		}
	}
}

// WithStdin sets the reader used for the "-" path. Defaults to os.Stdin.
func WithStdin(r io.Reader) SourceOption {
	return func(s *FileSource) {
		s.stdin = r
	}
}

// FileSource implements LineSource by reading files back to back as one
// stream.
type FileSource struct {
	files           []string
	skipInvalidUTF8 bool
	maxLineSize     int
	stdin           io.Reader

	currentFile    io.ReadCloser
	currentScanner *bufio.Scanner
	currentSource  string
	currentLine    int
	fileIndex      int

	line    Line
	skipped int
}

// NewFileSource creates a LineSource that reads the given files in order.
func NewFileSource(files []string, opts ...SourceOption) *FileSource {
	s := &FileSource{
		files:       files,
		maxLineSize: DefaultMaxLineSize,
		stdin:       os.Stdin,
		fileIndex:   -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next line.
// The returned Line and its Bytes are reused by the following call.
// Returns io.EOF when all files have been exhausted.
func (s *FileSource) Next(ctx context.Context) (*Line, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if s.currentScanner == nil {
			if err := s.openNextFile(); err != nil {
				return nil, err
			}
		}

		if s.currentScanner.Scan() {
			s.currentLine++
			b := s.currentScanner.Bytes()

			if !utf8.Valid(b) {
				if s.skipInvalidUTF8 {
					s.skipped++
					continue
				}
				return nil, &InputError{Source: s.currentSource, LineNum: s.currentLine, Err: ErrInvalidUTF8}
			}

			s.line = Line{
				Bytes:   b,
				Source:  s.currentSource,
				LineNum: s.currentLine,
			}
			return &s.line, nil
		}

		if err := s.currentScanner.Err(); err != nil {
			return nil, &InputError{Source: s.currentSource, LineNum: s.currentLine + 1, Err: fmt.Errorf("reading: %w", err)}
		}

		// Current file exhausted, try next
		if err := s.closeCurrentFile(); err != nil {
			return nil, &InputError{Source: s.currentSource, Err: err}
		}
	}
}

// Skipped returns the number of lines dropped for invalid UTF-8.
func (s *FileSource) Skipped() int {
	return s.skipped
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

func (s *FileSource) openNextFile() error {
	s.fileIndex++
	if s.fileIndex >= len(s.files) {
		return io.EOF
	}

	path := s.files[s.fileIndex]
	rc, err := openInput(path, s.stdin)
	if err != nil {
		return &InputError{Source: path, Err: fmt.Errorf("opening log file: %w", err)}
	}

	s.currentFile = rc
	s.currentScanner = bufio.NewScanner(rc)
	// The scanner accepts tokens up to the larger of cap(buf) and max.
	s.currentScanner.Buffer(make([]byte, 0, min(64*1024, s.maxLineSize)), s.maxLineSize)
	s.currentSource = path
	s.currentLine = 0

	return nil
}

func (s *FileSource) closeCurrentFile() error {
	if s.currentFile != nil {
		err := s.currentFile.Close()
		s.currentFile = nil
		s.currentScanner = nil
		return err
	}
	s.currentScanner = nil
	return nil
}
