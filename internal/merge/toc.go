package merge

import (
	"fmt"

	"codeberg.org/go-pdf/fpdf"
)

// Layout fixes the geometry of the contents page. All values are points and
// all vertical distances are measured from the top edge; recorded entry
// geometry comes back in PDF coordinates (origin bottom-left) so link
// rectangles line up with the drawn text without any transformation.
type Layout struct {
	TitleText     string
	TitleInset    float64 // x of the heading baseline start
	TitleDrop     float64 // heading baseline distance below the top edge
	TitleFontSize float64
	EntryInset    float64 // x of each entry line
	EntryFontSize float64
	FirstDrop     float64 // first entry baseline below the top edge
	LinePitch     float64 // vertical distance between entry baselines
	BottomMargin  float64 // no baseline may sit below pageHeight-BottomMargin
	LinkInset     float64 // left and right inset of the clickable band
	LinkBelow     float64 // band extends this far below an entry baseline
	LinkAbove     float64 // and this far above
}

// DefaultLayout returns the standard A4 contents layout.
func DefaultLayout() Layout {
	return Layout{
		TitleText:     "Table of Contents",
		TitleInset:    72,
		TitleDrop:     72,
		TitleFontSize: 18,
		EntryInset:    80,
		EntryFontSize: 12,
		FirstDrop:     110,
		LinePitch:     18,
		BottomMargin:  72,
		LinkInset:     70,
		LinkBelow:     2,
		LinkAbove:     12,
	}
}

// Capacity returns how many entries fit on a single contents page of the
// given height.
func (l Layout) Capacity(pageHeight float64) int {
	if l.LinePitch <= 0 {
		return 0
	}
	return int((pageHeight - l.FirstDrop - l.BottomMargin) / l.LinePitch)
}

// EntryGeometry records where one contents line was drawn, in PDF
// coordinates (origin bottom-left): the text baseline and the horizontal
// extent of the clickable band. It only lives long enough for the assembler
// to place the matching link annotation.
type EntryGeometry struct {
	Baseline float64
	Left     float64
	Right    float64
}

// RenderTocPage appends the contents page to f and draws the heading plus
// one line per entry. Entries in excess of the single-page capacity are
// never drawn; the whole merge is rejected with TocOverflowError instead of
// clipping or running past the bottom margin.
func RenderTocPage(f *fpdf.Fpdf, entries []TocEntry, l Layout) ([]EntryGeometry, float64, error) {
	pageW, pageH := f.GetPageSize()

	if c := l.Capacity(pageH); len(entries) > c {
		return nil, 0, &TocOverflowError{Entries: len(entries), Capacity: c}
	}

	tr := f.UnicodeTranslatorFromDescriptor("")

	f.AddPage()
	f.SetFont("Helvetica", "B", l.TitleFontSize)
	f.Text(l.TitleInset, l.TitleDrop, tr(l.TitleText))

	f.SetFont("Helvetica", "", l.EntryFontSize)

	geo := make([]EntryGeometry, 0, len(entries))
	drop := l.FirstDrop
	for i, e := range entries {
		line := fmt.Sprintf("%d. %s  ......  p. %d", i+1, e.Title, e.HumanStartPage)
		f.Text(l.EntryInset, drop, tr(line))
		geo = append(geo, EntryGeometry{
			Baseline: pageH - drop,
			Left:     l.LinkInset,
			Right:    pageW - l.LinkInset,
		})
		drop += l.LinePitch
	}

	if f.Err() {
		return nil, 0, &SerializationError{Err: f.Error()}
	}
	return geo, pageW, nil
}
