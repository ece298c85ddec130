package ast

import "fmt"

// Position represents a position in source code.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Span represents a source code location span.
type Span struct {
	Start Position
	End   Position
	File  string // Source file name or module identifier
}

// IsValid reports whether the span points into a source.
func (s Span) IsValid() bool {
	return s.Start.Line > 0
}

// String formats the span start as file:line:column.
func (s Span) String() string {
	if s.File != "" {
		return fmt.Sprintf("%s:%d:%d", s.File, s.Start.Line, s.Start.Column)
	}
	return fmt.Sprintf("%d:%d", s.Start.Line, s.Start.Column)
}

// ExtendTo returns a span from the start of s to the end of other.
func (s Span) ExtendTo(other Span) Span {
	s.End = other.End
	if s.End.Line == 0 {
		s.End = other.Start
	}
	return s
}
