package merge

import "fmt"

// InvalidDocumentError reports a source document that cannot take part in a
// merge: zero or negative page count, or an unreadable payload.
type InvalidDocumentError struct {
	Name     string
	Position int // zero-based position in the input list
	Reason   string
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid document %q at position %d: %s", e.Name, e.Position, e.Reason)
}

// DocumentReadError reports a page-read failure on a source document.
// The whole merge is aborted; no partial output is produced.
type DocumentReadError struct {
	Name     string
	Position int
	Page     int // 1-based page within the document, 0 if unknown
	Err      error
}

func (e *DocumentReadError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("reading %q (position %d) page %d: %v", e.Name, e.Position, e.Page, e.Err)
	}
	return fmt.Sprintf("reading %q (position %d): %v", e.Name, e.Position, e.Err)
}

func (e *DocumentReadError) Unwrap() error { return e.Err }

// TocOverflowError reports more contents entries than a single contents page
// can hold. The merge is rejected rather than drawing past the bottom margin.
type TocOverflowError struct {
	Entries  int
	Capacity int
}

func (e *TocOverflowError) Error() string {
	return fmt.Sprintf("contents page overflow: %d entries, capacity %d", e.Entries, e.Capacity)
}

// IndexMismatchError signals that a document landed on a different page index
// than the planner computed. This is a logic bug, never expected input.
type IndexMismatchError struct {
	Name string
	Want int
	Got  int
}

func (e *IndexMismatchError) Error() string {
	return fmt.Sprintf("internal index mismatch for %q: planned %d, assembled %d", e.Name, e.Want, e.Got)
}

// SerializationError reports a failure encoding or re-validating the
// assembled output.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing merged output: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
