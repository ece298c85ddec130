package ast

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind identifies the compilation phase that produced an Error.
type ErrorKind uint8

const (
	ErrLex ErrorKind = iota
	ErrParse
	ErrSemantic
	ErrBackend
)

// String returns the phase name.
func (k ErrorKind) String() string {
	switch k {
	case ErrLex:
		return "lex"
	case ErrParse:
		return "parse"
	case ErrSemantic:
		return "semantic"
	case ErrBackend:
		return "backend"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error is a located diagnostic produced by the lexer, parser, sanitizer or
// a backend.
type Error struct {
	Kind    ErrorKind
	Span    Span
	Message string

	// Expected and Found are set for parse errors.
	Expected string
	Found    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if !e.Span.IsValid() {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error at %s: %s", e.Kind, e.Span, e.Message)
}

// FormatWithContext returns the error message with source context.
// Shows the problematic line with a caret pointing to the error location.
func (e *Error) FormatWithContext(source string) string {
	if source == "" || !e.Span.IsValid() {
		return e.Error()
	}

	lines := strings.Split(source, "\n")
	lineNum := e.Span.Start.Line
	if lineNum < 1 || lineNum > len(lines) {
		return e.Error()
	}

	line := lines[lineNum-1]
	col := e.Span.Start.Column
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}

	width := 1
	if e.Span.End.Line == lineNum && e.Span.End.Column > col {
		width = e.Span.End.Column - col
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s error: %s\n", e.Kind, e.Message)
	fmt.Fprintf(&sb, "  --> line %d:%d\n", lineNum, col)
	sb.WriteString("   |\n")
	fmt.Fprintf(&sb, "%3d| %s\n", lineNum, line)
	fmt.Fprintf(&sb, "   | %s%s\n", strings.Repeat(" ", col-1), strings.Repeat("^", width))

	return sb.String()
}

// Errorf creates an Error with a formatted message.
func Errorf(kind ErrorKind, span Span, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Span:    span,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
