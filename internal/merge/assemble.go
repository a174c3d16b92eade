package merge

import (
	"bytes"
	"fmt"
	"io"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

// Options controls a single merge call.
type Options struct {
	// Links places a clickable band over each contents line, targeting the
	// first page of the matching document.
	Links bool
	// Layout overrides the contents page geometry. Nil means DefaultLayout.
	Layout *Layout
}

// Result is the outcome of a successful merge.
type Result struct {
	PDF          []byte
	Entries      []TocEntry
	StartIndices []int
	PageCount    int
}

// Merge assembles docs into a single PDF: the generated contents page first,
// then every document's pages in input order, a flat bookmark per document,
// and (with Options.Links) an internal link per contents line. It either
// returns the fully serialized document or an error; there is no partial
// output.
func Merge(docs []SourceDocument, opts Options) (*Result, error) {
	layout := DefaultLayout()
	if opts.Layout != nil {
		layout = *opts.Layout
	}

	plan, err := BuildPlan(docs)
	if err != nil {
		return nil, err
	}

	f := fpdf.New("P", "pt", "A4", "")
	f.SetAutoPageBreak(false, 0)
	f.SetCreator("pdfbinder", true)

	geo, _, err := RenderTocPage(f, plan.Entries, layout)
	if err != nil {
		return nil, err
	}

	// Link rectangles go onto the contents page while it is current; the
	// targets are bound after the destination pages exist.
	_, pageH := f.GetPageSize()
	var links []int
	if opts.Links {
		links = make([]int, len(geo))
		for i, g := range geo {
			links[i] = f.AddLink()
			top := pageH - (g.Baseline + layout.LinkAbove)
			f.Link(g.Left, top, g.Right-g.Left, layout.LinkAbove+layout.LinkBelow, links[i])
		}
	}

	tr := f.UnicodeTranslatorFromDescriptor("")
	for i, d := range docs {
		if got := f.PageNo(); got != plan.StartIndices[i] {
			return nil, &IndexMismatchError{Name: d.Name, Want: plan.StartIndices[i], Got: got}
		}
		if err := appendDocument(f, d, i); err != nil {
			return nil, err
		}
		// The document's first assembled page is plan.StartIndices[i], i.e.
		// 1-based page plan.StartIndices[i]+1 == Entries[i].HumanStartPage.
		f.SetPage(plan.Entries[i].HumanStartPage)
		f.Bookmark(tr(d.Name), 0, 0)
		if opts.Links {
			f.SetLink(links[i], 0, plan.Entries[i].HumanStartPage)
		}
		f.SetPage(f.PageCount())
	}

	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		return nil, &SerializationError{Err: err}
	}

	if err := verifyOutput(buf.Bytes(), plan.TotalPages); err != nil {
		return nil, err
	}

	log.Debug().Int("documents", len(docs)).Int("pages", plan.TotalPages).Bool("links", opts.Links).Msg("merge assembled")

	return &Result{
		PDF:          buf.Bytes(),
		Entries:      plan.Entries,
		StartIndices: plan.StartIndices,
		PageCount:    plan.TotalPages,
	}, nil
}

// appendDocument imports every page of d, in order, onto fresh pages sized
// to the source MediaBox. gofpdi signals parse failures by panicking, so the
// import runs behind a recover that converts them into DocumentReadError.
func appendDocument(f *fpdf.Fpdf, d SourceDocument, pos int) (err error) {
	page := 0
	defer func() {
		if r := recover(); r != nil {
			err = &DocumentReadError{Name: d.Name, Position: pos, Page: page, Err: fmt.Errorf("%v", r)}
		}
	}()

	if _, serr := d.Reader.Seek(0, io.SeekStart); serr != nil {
		return &DocumentReadError{Name: d.Name, Position: pos, Err: serr}
	}

	imp := gofpdi.NewImporter()
	rs := d.Reader
	for page = 1; page <= d.PageCount; page++ {
		tpl := imp.ImportPageFromStream(f, &rs, page, "/MediaBox")
		w, h := importedPageSize(imp, page)
		if w <= 0 || h <= 0 {
			return &DocumentReadError{Name: d.Name, Position: pos, Page: page, Err: fmt.Errorf("missing /MediaBox")}
		}
		f.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		imp.UseImportedTemplate(f, tpl, 0, 0, w, h)
	}
	if f.Err() {
		return &DocumentReadError{Name: d.Name, Position: pos, Err: f.Error()}
	}
	return nil
}

func importedPageSize(imp *gofpdi.Importer, page int) (w, h float64) {
	sizes := imp.GetPageSizes()
	if dims, ok := sizes[page]; ok {
		if mb, ok := dims["/MediaBox"]; ok {
			w = mb["w"]
			h = mb["h"]
		}
	}
	return
}

// verifyOutput re-reads the serialized document with pdfcpu and checks that
// the assembled page count matches the plan.
func verifyOutput(out []byte, wantPages int) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(out), conf)
	if err != nil {
		return &SerializationError{Err: err}
	}
	if err := api.ValidateContext(ctx); err != nil {
		return &SerializationError{Err: err}
	}
	if ctx.PageCount != wantPages {
		return &IndexMismatchError{Name: "merged output", Want: wantPages, Got: ctx.PageCount}
	}
	return nil
}
