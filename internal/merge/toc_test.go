package merge

import (
	"errors"
	"fmt"
	"testing"

	"codeberg.org/go-pdf/fpdf"
)

func tocEntries(n int) []TocEntry {
	entries := make([]TocEntry, 0, n)
	page := 2
	for i := 0; i < n; i++ {
		entries = append(entries, TocEntry{Title: fmt.Sprintf("doc-%d.pdf", i), HumanStartPage: page})
		page += 3
	}
	return entries
}

func TestRenderTocPage_Geometry(t *testing.T) {
	f := fpdf.New("P", "pt", "A4", "")
	layout := DefaultLayout()

	geo, pageW, err := RenderTocPage(f, tocEntries(5), layout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(geo) != 5 {
		t.Fatalf("expected 5 geometry records, got %d", len(geo))
	}

	_, pageH := f.GetPageSize()
	wantBaseline := pageH - layout.FirstDrop
	for i, g := range geo {
		if g.Baseline != wantBaseline {
			t.Errorf("entry %d: expected baseline %.2f, got %.2f", i, wantBaseline, g.Baseline)
		}
		if g.Left != layout.LinkInset || g.Right != pageW-layout.LinkInset {
			t.Errorf("entry %d: unexpected band [%.2f, %.2f]", i, g.Left, g.Right)
		}
		// The band must stay inside the page.
		if g.Baseline-layout.LinkBelow < 0 || g.Baseline+layout.LinkAbove > pageH {
			t.Errorf("entry %d: band around baseline %.2f leaves the page", i, g.Baseline)
		}
		wantBaseline -= layout.LinePitch
	}
}

func TestRenderTocPage_BaselinesAboveBottomMargin(t *testing.T) {
	f := fpdf.New("P", "pt", "A4", "")
	layout := DefaultLayout()
	_, pageH := f.GetPageSize()

	n := layout.Capacity(pageH)
	geo, _, err := RenderTocPage(f, tocEntries(n), layout)
	if err != nil {
		t.Fatalf("a full page of entries must render: %v", err)
	}
	last := geo[len(geo)-1].Baseline
	if last < layout.BottomMargin {
		t.Errorf("last baseline %.2f sits below the bottom margin %.2f", last, layout.BottomMargin)
	}
}

func TestRenderTocPage_Overflow(t *testing.T) {
	f := fpdf.New("P", "pt", "A4", "")
	layout := DefaultLayout()
	_, pageH := f.GetPageSize()

	n := layout.Capacity(pageH) + 1
	_, _, err := RenderTocPage(f, tocEntries(n), layout)
	var ov *TocOverflowError
	if !errors.As(err, &ov) {
		t.Fatalf("expected TocOverflowError for %d entries, got %v", n, err)
	}
	if ov.Entries != n || ov.Capacity != n-1 {
		t.Errorf("expected %d entries against capacity %d, got %d/%d", n, n-1, ov.Entries, ov.Capacity)
	}
}

func TestLayout_Capacity(t *testing.T) {
	layout := DefaultLayout()
	// A4 is 841.89pt tall: (841.89 - 110 - 72) / 18 rounds down to 36.
	if got := layout.Capacity(841.89); got != 36 {
		t.Errorf("expected capacity 36 on A4, got %d", got)
	}
	if got := layout.Capacity(layout.FirstDrop + layout.BottomMargin); got != 0 {
		t.Errorf("expected zero capacity on a page with no room, got %d", got)
	}
}

func TestRenderTocPage_EmptyEntries(t *testing.T) {
	f := fpdf.New("P", "pt", "A4", "")
	geo, _, err := RenderTocPage(f, nil, DefaultLayout())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(geo) != 0 {
		t.Errorf("expected no geometry for an empty contents, got %d", len(geo))
	}
	if f.PageCount() != 1 {
		t.Errorf("expected the contents page to be added, have %d pages", f.PageCount())
	}
}
