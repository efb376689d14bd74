// Package stream implements the Structured-Output Stream Parser
// (spec.md §4.1): it consumes arbitrary byte chunks from a child
// process's stdout/stderr, frames them into lines, strips terminal
// escape sequences, decodes one of three vendor JSON dialects, and
// reconstructs the hierarchical subagent call tree for one iteration.
package stream

import "time"

// LineKind discriminates the three outputs the parser can produce for
// a single framed line, per spec.md §4.1.
type LineKind string

const (
	KindLineText  LineKind = "line_text"
	KindStructured LineKind = "structured"
	KindParseError LineKind = "parse_error"
)

// StructuredKind is the normalized shape every dialect decoder
// produces, regardless of vendor wire format.
type StructuredKind string

const (
	StructuredSpawn  StructuredKind = "spawn"
	StructuredResult StructuredKind = "result"
	StructuredText   StructuredKind = "text"
	StructuredOther  StructuredKind = "other"
)

// StructuredEvent is the common normalized shape described in
// spec.md §4.1: `{kind, tool, call_id, input?, output?, status?, ts}`.
type StructuredEvent struct {
	Kind    StructuredKind
	Vendor  Dialect
	Tool    string
	CallID  string
	Input   map[string]any
	Output  string
	IsError bool
	Text    string
	TS      time.Time
}

// Event is one emitted unit from the Parser's pull-style Next() API.
// Exactly one of the three payload fields is non-zero, selected by
// Kind — LineText for unstructured lines, Structured for decoded
// dialect events, ParseErr for lines that looked like they should
// parse but didn't.
type Event struct {
	Kind       LineKind
	LineText   string
	Structured *StructuredEvent
	ParseErr   *ParseError
}

// ParseError describes one line the parser could not interpret. It is
// never fatal to the stream: parsing resumes at the next newline.
type ParseError struct {
	Raw    string
	Reason string
}
