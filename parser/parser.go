// Package parser turns PDF bytes into a raw.Document. It resolves the
// cross-reference table (repairing broken files by scanning for object
// headers), loads every reachable object, expands object streams so the
// writer can emit a plain uncompressed graph, and lifts the Info dictionary
// into document metadata.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/winsonsd1123/pdfano/filters"
	"github.com/winsonsd1123/pdfano/ir/raw"
	"github.com/winsonsd1123/pdfano/scanner"
	"github.com/winsonsd1123/pdfano/xref"
)

// ErrNotPDF reports input that does not carry a PDF header.
var ErrNotPDF = errors.New("not a PDF document")

type Config struct {
	Limits filters.Limits
}

// Parse builds the raw object graph for a complete in-memory PDF.
func Parse(ctx context.Context, data []byte, cfg Config) (*raw.Document, error) {
	version, ok := headerVersion(data)
	if !ok {
		return nil, ErrNotPDF
	}

	table, err := xref.Resolve(data)
	if err != nil {
		table, err = xref.Repair(data)
		if err != nil {
			return nil, fmt.Errorf("resolve cross-reference data: %w", err)
		}
	}

	l := newLoader(data, table)
	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Trailer: table.Trailer,
		Version: version,
	}
	for _, num := range table.Objects() {
		if num == 0 {
			continue
		}
		entry, _ := table.Lookup(num)
		obj, err := l.load(num)
		if err != nil {
			return nil, fmt.Errorf("load object %d: %w", num, err)
		}
		doc.Objects[raw.ObjectRef{Num: num, Gen: entry.Gen}] = obj
	}

	pipe := filters.NewPipeline(cfg.Limits)
	if err := expandObjectStreams(ctx, doc, pipe); err != nil {
		return nil, fmt.Errorf("expand object streams: %w", err)
	}
	recoverTrailer(doc)
	populateMetadata(doc)
	return doc, nil
}

// headerVersion finds the %PDF-M.N marker. Some producers prepend junk, so
// the header is accepted anywhere in the first KiB.
func headerVersion(data []byte) (string, bool) {
	window := data
	if len(window) > 1024 {
		window = window[:1024]
	}
	idx := bytes.Index(window, []byte("%PDF-"))
	if idx < 0 {
		return "", false
	}
	rest := data[idx+5:]
	end := 0
	for end < len(rest) && end < 8 && rest[end] != '\r' && rest[end] != '\n' && rest[end] != ' ' {
		end++
	}
	v := string(rest[:end])
	if v == "" {
		return "", false
	}
	return v, true
}

// expandObjectStreams decodes every /Type /ObjStm stream and registers the
// compressed objects it carries. Cross-reference stream files resolve
// through the repair scan, which only sees top-level objects; this pass
// recovers the rest.
func expandObjectStreams(ctx context.Context, doc *raw.Document, pipe *filters.Pipeline) error {
	var streams []*raw.StreamObj
	for _, obj := range doc.Objects {
		if stm, ok := obj.(*raw.StreamObj); ok && stm.Dict.Name("Type") == "ObjStm" {
			streams = append(streams, stm)
		}
	}
	for _, stm := range streams {
		decoded, err := pipe.DecodeStream(ctx, doc, stm)
		if err != nil {
			return err
		}
		n := int(resolveInt(doc, stm.Dict, "N"))
		first := resolveInt(doc, stm.Dict, "First")
		if n <= 0 || first <= 0 {
			continue
		}
		s := scanner.New(decoded, scanner.Config{})
		type slot struct {
			num    int
			offset int64
		}
		slots := make([]slot, 0, n)
		for i := 0; i < n; i++ {
			numTok, err := s.Next()
			if err != nil || numTok.Type != scanner.TokenNumber {
				return errors.New("malformed object stream header")
			}
			offTok, err := s.Next()
			if err != nil || offTok.Type != scanner.TokenNumber {
				return errors.New("malformed object stream header")
			}
			slots = append(slots, slot{num: int(numTok.Int), offset: offTok.Int})
		}
		for _, sl := range slots {
			pos := first + sl.offset
			if pos < 0 || pos >= int64(len(decoded)) {
				return errors.New("object stream offset out of range")
			}
			if err := s.SeekTo(pos); err != nil {
				return err
			}
			obj, err := readObject(s)
			if err != nil {
				return fmt.Errorf("compressed object %d: %w", sl.num, err)
			}
			ref := raw.ObjectRef{Num: sl.num, Gen: 0}
			if _, exists := doc.Objects[ref]; !exists {
				doc.Objects[ref] = obj
			}
		}
	}
	return nil
}

func resolveInt(doc *raw.Document, dict *raw.DictObj, key string) int64 {
	obj, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return 0
	}
	if n, ok := doc.Resolve(obj).(raw.NumberObj); ok {
		return n.Int()
	}
	return 0
}

// recoverTrailer fills trailer keys from /Type /XRef stream dictionaries
// when the repair scan found no trailer keyword. Higher-numbered streams
// belong to newer incremental sections and win.
func recoverTrailer(doc *raw.Document) {
	trailer, _ := doc.Trailer.(*raw.DictObj)
	if trailer == nil {
		trailer = raw.Dict()
		doc.Trailer = trailer
	}
	if _, ok := trailer.Get(raw.NameLiteral("Root")); ok {
		return
	}
	refs := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
	for _, ref := range refs {
		stm, ok := doc.Objects[ref].(*raw.StreamObj)
		if !ok || stm.Dict.Name("Type") != "XRef" {
			continue
		}
		for _, key := range []string{"Root", "Info", "ID", "Size", "Encrypt"} {
			if v, ok := stm.Dict.Get(raw.NameLiteral(key)); ok {
				trailer.Set(raw.NameLiteral(key), v)
			}
		}
	}
}

func populateMetadata(doc *raw.Document) {
	infoObj, ok := doc.Trailer.Get(raw.NameLiteral("Info"))
	if !ok {
		return
	}
	dict, ok := doc.ResolveDict(infoObj)
	if !ok {
		return
	}
	md := raw.DocumentMetadata{}
	get := func(key string) string {
		if s, ok := dict.KV[key].(raw.StringObj); ok {
			return string(s.Value())
		}
		return ""
	}
	md.Title = get("Title")
	md.Author = get("Author")
	md.Subject = get("Subject")
	md.Creator = get("Creator")
	md.Producer = get("Producer")
	if kw := get("Keywords"); kw != "" {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				md.Keywords = append(md.Keywords, k)
			}
		}
	}
	doc.Metadata = md
}
