package merge

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

// SourceDocument is one input to a merge: a display name (also used as the
// bookmark label), a page count, and a seekable reader over the raw PDF
// bytes. A SourceDocument belongs to exactly one merge call.
type SourceDocument struct {
	Name      string
	PageCount int
	Reader    io.ReadSeeker
}

// NewSourceDocument wraps raw PDF bytes as a SourceDocument, deriving the
// page count with pdfcpu.
func NewSourceDocument(name string, data []byte) (SourceDocument, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return SourceDocument{}, fmt.Errorf("read %q: %w", name, err)
	}
	// pdfcpu derives the page count during validation, not at read time.
	if err := api.ValidateContext(ctx); err != nil {
		return SourceDocument{}, fmt.Errorf("validate %q: %w", name, err)
	}
	return SourceDocument{
		Name:      name,
		PageCount: ctx.PageCount,
		Reader:    bytes.NewReader(data),
	}, nil
}

// TocEntry is one line of the contents page: the document title and its
// human-facing start page. Page 1 is the contents page itself, so the first
// document always starts at human page 2.
type TocEntry struct {
	Title          string
	HumanStartPage int
}

// Plan holds the page accounting for one merge: per document, the contents
// entry and the zero-based index of its first page in the assembled output.
// Both slices are parallel to the input document list and satisfy
// StartIndices[i]+1 == Entries[i].HumanStartPage for every i.
type Plan struct {
	Entries      []TocEntry
	StartIndices []int
	TotalPages   int // output page count including the contents page
}

// BuildPlan computes start pages and assembled indices for docs in order.
// The cursor starts at 1, standing for the contents page already placed;
// each document begins on the page right after everything placed so far.
// A document with a non-positive page count is rejected: accepting it would
// silently shift every index that follows.
func BuildPlan(docs []SourceDocument) (*Plan, error) {
	p := &Plan{
		Entries:      make([]TocEntry, 0, len(docs)),
		StartIndices: make([]int, 0, len(docs)),
	}

	seen := make(map[string]int, len(docs))
	cursor := 1
	for i, d := range docs {
		if d.PageCount < 1 {
			return nil, &InvalidDocumentError{Name: d.Name, Position: i, Reason: fmt.Sprintf("page count %d", d.PageCount)}
		}
		if prev, ok := seen[d.Name]; ok {
			log.Warn().Str("name", d.Name).Int("position", i).Int("first_seen", prev).Msg("duplicate document name; bookmarks will repeat the label")
		} else {
			seen[d.Name] = i
		}
		p.Entries = append(p.Entries, TocEntry{Title: d.Name, HumanStartPage: cursor + 1})
		p.StartIndices = append(p.StartIndices, cursor)
		cursor += d.PageCount
	}
	p.TotalPages = cursor

	return p, nil
}
