package annotate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/winsonsd1123/pdfano/fonts"
	"github.com/winsonsd1123/pdfano/ir/raw"
	"github.com/winsonsd1123/pdfano/observability"
	"github.com/winsonsd1123/pdfano/parser"
	"github.com/winsonsd1123/pdfano/writer"
)

// DocumentLoadError marks source bytes that could not be parsed as a PDF.
// The service maps it to a client-facing load failure instead of a generic
// internal error.
type DocumentLoadError struct {
	Err error
}

func (e *DocumentLoadError) Error() string { return fmt.Sprintf("load document: %v", e.Err) }
func (e *DocumentLoadError) Unwrap() error { return e.Err }

// annotFontKey names the embedded font in each annotated page's resources.
const annotFontKey = "AnnoF1"

// Assembler merges annotations into source documents. Font is optional and
// immutable; one Assembler serves concurrent exports.
type Assembler struct {
	Font   *fonts.Embedded
	Logger observability.Logger

	// Clock supplies the export timestamp; nil means time.Now.
	Clock func() time.Time
}

func (a *Assembler) logger() observability.Logger {
	if a.Logger == nil {
		return observability.NopLogger{}
	}
	return a.Logger
}

func (a *Assembler) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

// docRegistrar appends new objects after the source document's highest
// object number, generation 0.
type docRegistrar struct {
	doc  *raw.Document
	next int
}

func (r *docRegistrar) Register(obj raw.Object) raw.ObjectRef {
	r.next++
	ref := raw.ObjectRef{Num: r.next}
	r.doc.Objects[ref] = obj
	return ref
}

// Assemble parses src, merges the annotation set, and serializes the
// annotated document. It returns the output bytes and the number of
// annotation objects written (orphan replies and unknown types excluded).
func (a *Assembler) Assemble(ctx context.Context, src []byte, anns []FrontendAnnotation) ([]byte, int, error) {
	doc, err := parser.Parse(ctx, src, parser.Config{})
	if err != nil {
		return nil, 0, &DocumentLoadError{Err: err}
	}
	pages, err := parser.Pages(doc)
	if err != nil {
		return nil, 0, &DocumentLoadError{Err: err}
	}

	now := a.now()
	records := Flatten(anns)
	byPage := make(map[int][]Record)
	for _, rec := range records {
		byPage[rec.Page] = append(byPage[rec.Page], rec)
	}
	pageNums := make([]int, 0, len(byPage))
	for p := range byPage {
		pageNums = append(pageNums, p)
	}
	sort.Ints(pageNums)

	reg := &docRegistrar{doc: doc, next: doc.MaxObjNum()}

	var fontRef *raw.ObjectRef
	if a.Font != nil && len(records) > 0 {
		if uncovered := a.uncoveredRecords(records); uncovered > 0 {
			a.logger().Warn("annotation text not fully covered by embedded font",
				observability.Int("records", uncovered),
				observability.String("font", a.Font.BaseName))
		}
		ref, err := a.Font.Embed(reg)
		if err != nil {
			return nil, 0, fmt.Errorf("embed font: %w", err)
		}
		fontRef = &ref
	}

	count := 0
	dropped := 0
	for _, pageNum := range pageNums {
		if pageNum < 1 || pageNum > len(pages) {
			// Best-effort: records addressing pages the source does not
			// have are dropped like orphan replies.
			dropped += len(byPage[pageNum])
			continue
		}
		pageRef := pages[pageNum-1]
		page, ok := doc.Objects[pageRef].(*raw.DictObj)
		if !ok {
			dropped += len(byPage[pageNum])
			continue
		}
		annots, err := pageAnnots(doc, page)
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: %w", pageNum, err)
		}
		if fontRef != nil {
			attachFont(doc, page, *fontRef)
		}
		written := linkPage(reg, pageRef, annots, byPage[pageNum], now)
		count += written
		dropped += len(byPage[pageNum]) - written
	}

	a.stampMetadata(doc, reg, now)

	out, err := writer.Write(doc, writer.Config{})
	if err != nil {
		return nil, 0, fmt.Errorf("serialize document: %w", err)
	}
	a.logger().Info("annotations merged",
		observability.Int("written", count),
		observability.Int("dropped", dropped),
		observability.Int("pages", len(pageNums)))
	return out, count, nil
}

// uncoveredRecords counts records whose text the embedded font cannot fully
// render. Such records still export; viewers fall back to substitute fonts,
// but the gap is worth a warning.
func (a *Assembler) uncoveredRecords(records []Record) int {
	n := 0
	for _, rec := range records {
		if !a.Font.Covers(rec.Content) || !a.Font.Covers(rec.SelectedText) {
			n++
		}
	}
	return n
}

// pageAnnots returns the page's /Annots array, following an indirect
// reference or creating the entry when absent.
func pageAnnots(doc *raw.Document, page *raw.DictObj) (*raw.ArrayObj, error) {
	obj, ok := page.Get(raw.NameLiteral("Annots"))
	if !ok {
		arr := raw.NewArray()
		page.Set(raw.NameLiteral("Annots"), arr)
		return arr, nil
	}
	arr, ok := doc.Resolve(obj).(*raw.ArrayObj)
	if !ok {
		return nil, fmt.Errorf("existing /Annots is not an array")
	}
	return arr, nil
}

// attachFont registers the embedded font under the page's /Resources /Font
// so viewers rendering rich text resolve its glyphs.
func attachFont(doc *raw.Document, page *raw.DictObj, fontRef raw.ObjectRef) {
	resObj, ok := page.Get(raw.NameLiteral("Resources"))
	var res *raw.DictObj
	if ok {
		res, _ = doc.ResolveDict(resObj)
	}
	if res == nil {
		res = raw.Dict()
		page.Set(raw.NameLiteral("Resources"), res)
	}
	var fontDict *raw.DictObj
	if fObj, ok := res.Get(raw.NameLiteral("Font")); ok {
		fontDict, _ = doc.ResolveDict(fObj)
	}
	if fontDict == nil {
		fontDict = raw.Dict()
		res.Set(raw.NameLiteral("Font"), fontDict)
	}
	fontDict.Set(raw.NameLiteral(annotFontKey), raw.Ref(fontRef.Num, fontRef.Gen))
}

// stampMetadata replaces the Info dictionary so the output identifies
// itself as an annotated derivative of the source.
func (a *Assembler) stampMetadata(doc *raw.Document, reg *docRegistrar, now time.Time) {
	title := doc.Metadata.Title
	if title == "" {
		title = "Annotated Document"
	} else {
		title += " (Annotated)"
	}
	info := raw.Dict()
	info.Set(raw.NameLiteral("Title"), textString(title))
	info.Set(raw.NameLiteral("Subject"), textString("PDF review annotations"))
	info.Set(raw.NameLiteral("Keywords"), textString("annotations,review,export"))
	info.Set(raw.NameLiteral("Producer"), textString("pdfano"))
	info.Set(raw.NameLiteral("Creator"), textString("pdfano export engine"))
	date := raw.Str([]byte(pdfDate(now)))
	info.Set(raw.NameLiteral("CreationDate"), date)
	info.Set(raw.NameLiteral("ModDate"), date)

	ref := reg.Register(info)
	if trailer, ok := doc.Trailer.(*raw.DictObj); ok {
		trailer.Set(raw.NameLiteral("Info"), raw.Ref(ref.Num, ref.Gen))
	}
	doc.Metadata.Title = title
	doc.Metadata.Producer = "pdfano"
}
