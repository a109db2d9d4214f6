package annotate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/winsonsd1123/pdfano/fonts"
	"github.com/winsonsd1123/pdfano/ir/raw"
	"github.com/winsonsd1123/pdfano/observability"
	"github.com/winsonsd1123/pdfano/parser"
	"github.com/winsonsd1123/pdfano/writer"
)

// sourcePDF builds a two-page source document through the writer, so the
// assembler tests exercise the real parse path.
func sourcePDF(t *testing.T) []byte {
	t.Helper()
	doc := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object), Version: "1.7"}
	cat := raw.Dict()
	cat.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	cat.Set(raw.NameLiteral("Pages"), raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = cat

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(3, 0), raw.Ref(4, 0)))
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(2))
	doc.Objects[raw.ObjectRef{Num: 2}] = pages

	for num := 3; num <= 4; num++ {
		page := raw.Dict()
		page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
		page.Set(raw.NameLiteral("Parent"), raw.Ref(2, 0))
		page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
			raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792)))
		doc.Objects[raw.ObjectRef{Num: num}] = page
	}

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(1, 0))
	doc.Trailer = trailer

	out, err := writer.Write(doc, writer.Config{})
	if err != nil {
		t.Fatalf("build source: %v", err)
	}
	return out
}

func newAssembler() *Assembler {
	return &Assembler{Clock: func() time.Time { return testClock }}
}

// annotObjects reparses out and returns every annotation dictionary.
func annotObjects(t *testing.T, out []byte) []*raw.DictObj {
	t.Helper()
	doc, err := parser.Parse(context.Background(), out, parser.Config{})
	if err != nil {
		t.Fatalf("reparse output: %v", err)
	}
	var found []*raw.DictObj
	for _, obj := range doc.Objects {
		if d, ok := obj.(*raw.DictObj); ok && d.Name("Type") == "Annot" {
			found = append(found, d)
		}
	}
	return found
}

func TestAssembleManualHighlight(t *testing.T) {
	// Scenario: single manual highlight, unadjusted y.
	ann := highlightAnn("a1", RoleManualAnnotator, nil)
	out, count, err := newAssembler().Assemble(context.Background(), sourcePDF(t), []FrontendAnnotation{ann})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	annots := annotObjects(t, out)
	if len(annots) != 1 {
		t.Fatalf("output has %d annotations, want 1", len(annots))
	}
	a := annots[0]
	if a.Name("Subtype") != "Highlight" {
		t.Errorf("subtype = %q", a.Name("Subtype"))
	}
	rect := a.KV["Rect"].(*raw.ArrayObj)
	if y := rect.Items[1].(raw.NumberObj).Float(); y != 200 {
		t.Errorf("manual highlight y = %v, want unadjusted 200", y)
	}
	if !strings.Contains(string(out), "/Annots") {
		t.Error("page has no /Annots array")
	}
}

func TestAssembleAIOffset(t *testing.T) {
	ann := highlightAnn("a1", RoleAIAssistant, nil)
	out, _, err := newAssembler().Assemble(context.Background(), sourcePDF(t), []FrontendAnnotation{ann})
	if err != nil {
		t.Fatal(err)
	}
	annots := annotObjects(t, out)
	if len(annots) != 1 {
		t.Fatalf("annotations = %d", len(annots))
	}
	rect := annots[0].KV["Rect"].(*raw.ArrayObj)
	if y := rect.Items[1].(raw.NumberObj).Float(); y != 180 {
		t.Errorf("AI highlight y = %v, want 180 (200 - 20)", y)
	}
}

func TestAssembleNoteWithReplies(t *testing.T) {
	ann := highlightAnn("a1", RoleManualAnnotator, []Reply{
		{ID: "r1", Author: Author{Name: "Sam"}, Content: "agree", Timestamp: "2026-03-01T11:00:00Z"},
		{ID: "r2", Author: Author{Name: "Kim"}, Content: "also", Timestamp: "2026-03-01T12:00:00Z"},
	})
	ann.Type = TypeNote
	out, count, err := newAssembler().Assemble(context.Background(), sourcePDF(t), []FrontendAnnotation{ann})
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	annots := annotObjects(t, out)
	if len(annots) != 3 {
		t.Fatalf("annotations = %d, want 3", len(annots))
	}
	var primaryRef raw.ObjectRef
	var replies []*raw.DictObj
	doc, _ := parser.Parse(context.Background(), out, parser.Config{})
	for ref, obj := range doc.Objects {
		d, ok := obj.(*raw.DictObj)
		if !ok || d.Name("Type") != "Annot" {
			continue
		}
		if _, isReply := d.Get(raw.NameLiteral("IRT")); isReply {
			replies = append(replies, d)
		} else {
			primaryRef = ref
		}
	}
	if len(replies) != 2 {
		t.Fatalf("reply objects = %d, want 2", len(replies))
	}
	for _, r := range replies {
		irt := r.KV["IRT"].(raw.RefObj)
		if irt.R != primaryRef {
			t.Errorf("reply IRT = %v, want parent %v", irt.R, primaryRef)
		}
		if r.Name("RT") != "R" {
			t.Errorf("RT = %q", r.Name("RT"))
		}
		if r.Name("Subtype") != "Text" {
			t.Errorf("reply subtype = %q, want Text", r.Name("Subtype"))
		}
	}
}

func TestAssembleOrphanReplyDropped(t *testing.T) {
	ann := highlightAnn("a1", RoleManualAnnotator, nil)
	orphanParent := highlightAnn("ghost", RoleManualAnnotator, []Reply{{ID: "r1", Content: "lost"}})
	orphanParent.ID = "ghost"
	orphanParent.Type = "squiggle" // primary skipped, so its reply orphans
	out, count, err := newAssembler().Assemble(context.Background(), sourcePDF(t),
		[]FrontendAnnotation{ann, orphanParent})
	if err != nil {
		t.Fatalf("orphan reply must not fail the export: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (orphan and unknown type dropped)", count)
	}
	if got := len(annotObjects(t, out)); got != 1 {
		t.Errorf("annotations = %d, want 1", got)
	}
}

func TestAssembleMalformedSource(t *testing.T) {
	_, _, err := newAssembler().Assemble(context.Background(), []byte("not a pdf at all"), nil)
	var loadErr *DocumentLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err = %v, want DocumentLoadError", err)
	}
	if !errors.Is(err, parser.ErrNotPDF) {
		t.Errorf("cause = %v, want ErrNotPDF", err)
	}
}

func TestAssembleOutOfRangePageDropped(t *testing.T) {
	ann := highlightAnn("a1", RoleManualAnnotator, nil)
	ann.PageIndex = 10 // source has 2 pages
	out, count, err := newAssembler().Assemble(context.Background(), sourcePDF(t), []FrontendAnnotation{ann})
	if err != nil {
		t.Fatalf("out-of-range page must not fail: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if got := len(annotObjects(t, out)); got != 0 {
		t.Errorf("annotations = %d, want 0", got)
	}
}

func TestAssembleSecondPagePlacement(t *testing.T) {
	ann := highlightAnn("a1", RoleManualAnnotator, nil)
	ann.PageIndex = 1
	out, _, err := newAssembler().Assemble(context.Background(), sourcePDF(t), []FrontendAnnotation{ann})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := parser.Parse(context.Background(), out, parser.Config{})
	if err != nil {
		t.Fatal(err)
	}
	pages, err := parser.Pages(doc)
	if err != nil {
		t.Fatal(err)
	}
	first := doc.Objects[pages[0]].(*raw.DictObj)
	second := doc.Objects[pages[1]].(*raw.DictObj)
	if _, ok := first.Get(raw.NameLiteral("Annots")); ok {
		t.Error("first page should have no /Annots")
	}
	annots, ok := second.Get(raw.NameLiteral("Annots"))
	if !ok {
		t.Fatal("second page missing /Annots")
	}
	if doc.Resolve(annots).(*raw.ArrayObj).Len() != 1 {
		t.Error("second page /Annots should hold one entry")
	}
}

func TestAssembleStampsMetadata(t *testing.T) {
	ann := highlightAnn("a1", RoleManualAnnotator, nil)
	out, _, err := newAssembler().Assemble(context.Background(), sourcePDF(t), []FrontendAnnotation{ann})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	for _, want := range []string{
		"/Producer (pdfano)",
		"/Creator (pdfano export engine)",
		"/CreationDate (D:20260301150405Z)",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q", want)
		}
	}
	doc, _ := parser.Parse(context.Background(), out, parser.Config{})
	if doc.Metadata.Producer != "pdfano" {
		t.Errorf("reparsed producer = %q", doc.Metadata.Producer)
	}
}

func TestAssembleUnicodeContentSurvives(t *testing.T) {
	ann := highlightAnn("a1", RoleManualAnnotator, nil)
	ann.Content = "中文批注"
	out, _, err := newAssembler().Assemble(context.Background(), sourcePDF(t), []FrontendAnnotation{ann})
	if err != nil {
		t.Fatal(err)
	}
	annots := annotObjects(t, out)
	if len(annots) != 1 {
		t.Fatalf("annotations = %d", len(annots))
	}
	contents := annots[0].KV["Contents"].(raw.String)
	b := contents.Value()
	if len(b) < 2 || b[0] != 0xFE || b[1] != 0xFF {
		t.Fatalf("contents not UTF-16BE with BOM: % X", b)
	}
}

// warnCapture records Warn calls while swallowing everything else.
type warnCapture struct {
	observability.NopLogger
	warnings []string
}

func (w *warnCapture) Warn(msg string, _ ...observability.Field) {
	w.warnings = append(w.warnings, msg)
}

func TestAssembleWarnsOnUncoveredText(t *testing.T) {
	font, err := fonts.LoadTrueType("GoRegular", goregular.TTF)
	if err != nil {
		t.Fatalf("load font: %v", err)
	}
	ann := highlightAnn("a1", RoleManualAnnotator, nil)
	ann.Content = "中文批注" // outside the Latin face's coverage

	log := &warnCapture{}
	a := &Assembler{Font: font, Logger: log, Clock: func() time.Time { return testClock }}
	if _, _, err := a.Assemble(context.Background(), sourcePDF(t), []FrontendAnnotation{ann}); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(log.warnings) != 1 {
		t.Fatalf("warnings = %d, want 1 coverage warning", len(log.warnings))
	}
}

func TestAssembleCoveredTextDoesNotWarn(t *testing.T) {
	font, err := fonts.LoadTrueType("GoRegular", goregular.TTF)
	if err != nil {
		t.Fatalf("load font: %v", err)
	}
	ann := highlightAnn("a1", RoleManualAnnotator, nil)

	log := &warnCapture{}
	a := &Assembler{Font: font, Logger: log, Clock: func() time.Time { return testClock }}
	if _, _, err := a.Assemble(context.Background(), sourcePDF(t), []FrontendAnnotation{ann}); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(log.warnings) != 0 {
		t.Errorf("unexpected warnings: %v", log.warnings)
	}
}
