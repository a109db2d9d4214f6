package writer

import (
	"context"
	"strings"
	"testing"

	"github.com/winsonsd1123/pdfano/ir/raw"
	"github.com/winsonsd1123/pdfano/parser"
)

func minimalDoc() *raw.Document {
	doc := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object), Version: "1.7"}
	cat := raw.Dict()
	cat.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	cat.Set(raw.NameLiteral("Pages"), raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = cat

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(3, 0)))
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(1))
	doc.Objects[raw.ObjectRef{Num: 2}] = pages

	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("Parent"), raw.Ref(2, 0))
	page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792)))
	doc.Objects[raw.ObjectRef{Num: 3}] = page

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(1, 0))
	doc.Trailer = trailer
	return doc
}

func TestWriteMinimalDocument(t *testing.T) {
	out, err := Write(minimalDoc(), Config{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	s := string(out)
	for _, want := range []string{
		"%PDF-1.7\n",
		"1 0 obj\n<</Pages 2 0 R/Type /Catalog>>",
		"3 0 obj",
		"xref\n0 4\n0000000000 65535 f \n",
		"/Root 1 0 R",
		"/Size 4",
		"startxref\n",
		"%%EOF",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestWriteRoundTripsThroughParser(t *testing.T) {
	out, err := Write(minimalDoc(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := parser.Parse(context.Background(), out, parser.Config{})
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	pages, err := parser.Pages(doc)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 1 {
		t.Errorf("page count = %d", len(pages))
	}
}

func TestWriteStreamLengthNormalized(t *testing.T) {
	doc := minimalDoc()
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Length"), raw.Ref(99, 0)) // stale indirect length
	doc.Objects[raw.ObjectRef{Num: 4}] = raw.NewStream(dict, []byte("0123456789"))

	out, err := Write(doc, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "<</Length 10>>\nstream\n0123456789\nendstream") {
		t.Errorf("stream not normalized:\n%s", out)
	}
}

func TestWriteDropsObjectStreams(t *testing.T) {
	doc := minimalDoc()
	objStmDict := raw.Dict()
	objStmDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("ObjStm"))
	doc.Objects[raw.ObjectRef{Num: 9}] = raw.NewStream(objStmDict, []byte("zz"))
	xrefDict := raw.Dict()
	xrefDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XRef"))
	doc.Objects[raw.ObjectRef{Num: 10}] = raw.NewStream(xrefDict, []byte("zz"))

	out, err := Write(doc, Config{})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if strings.Contains(s, "/ObjStm") || strings.Contains(s, "9 0 obj") {
		t.Error("object stream container was written")
	}
	if strings.Contains(s, "/XRef") || strings.Contains(s, "10 0 obj") {
		t.Error("xref stream container was written")
	}
}

func TestWriteEscapesStrings(t *testing.T) {
	doc := minimalDoc()
	d := raw.Dict()
	d.Set(raw.NameLiteral("V"), raw.Str([]byte("a(b)\\c\nd")))
	doc.Objects[raw.ObjectRef{Num: 4}] = d
	out, err := Write(doc, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `(a\(b\)\\c\nd)`) {
		t.Errorf("string not escaped:\n%s", out)
	}
}

func TestWriteHexStringsUppercase(t *testing.T) {
	doc := minimalDoc()
	d := raw.Dict()
	d.Set(raw.NameLiteral("V"), raw.HexStr([]byte{0xFE, 0xFF, 0x4E, 0x2D}))
	doc.Objects[raw.ObjectRef{Num: 4}] = d
	out, err := Write(doc, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "<FEFF4E2D>") {
		t.Errorf("hex string not serialized:\n%s", out)
	}
}

func TestWriteRequiresRoot(t *testing.T) {
	doc := minimalDoc()
	doc.Trailer.(*raw.DictObj).Delete(raw.NameLiteral("Root"))
	if _, err := Write(doc, Config{}); err == nil {
		t.Fatal("want error for missing /Root")
	}
}

func TestWriteSparseNumberingSubsections(t *testing.T) {
	doc := minimalDoc()
	d := raw.Dict()
	doc.Objects[raw.ObjectRef{Num: 7}] = d
	out, err := Write(doc, Config{})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, "0 4\n") || !strings.Contains(s, "7 1\n") {
		t.Errorf("subsections not split for sparse numbering:\n%s", s)
	}
	if !strings.Contains(s, "/Size 8") {
		t.Errorf("size not max+1:\n%s", s)
	}
}
