// Package xref locates PDF objects. Resolve walks the classic cross-reference
// table chain from startxref; Repair reconstructs the table by scanning the
// whole buffer for object headers when the chain is broken or the file uses
// cross-reference streams.
package xref

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/winsonsd1123/pdfano/ir/raw"
	"github.com/winsonsd1123/pdfano/scanner"
)

// Entry locates one indirect object in the file.
type Entry struct {
	Offset int64
	Gen    int
}

// Table maps object numbers to file positions. Trailer carries the merged
// trailer dictionary (newest section wins).
type Table struct {
	entries map[int]Entry
	Trailer *raw.DictObj
}

func (t *Table) Lookup(num int) (Entry, bool) {
	e, ok := t.entries[num]
	return e, ok
}

func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

const maxPrevDepth = 64

// Resolve parses the classic xref table chain. It fails on files whose
// newest section is a cross-reference stream; callers fall back to Repair.
func Resolve(data []byte) (*Table, error) {
	start := bytes.LastIndex(data, []byte("startxref"))
	if start < 0 {
		return nil, errors.New("startxref not found")
	}
	offset, err := parseStartxref(data[start+len("startxref"):])
	if err != nil {
		return nil, err
	}

	t := &Table{entries: make(map[int]Entry)}
	seen := make(map[int64]bool)
	for depth := 0; ; depth++ {
		if depth >= maxPrevDepth {
			return nil, errors.New("xref /Prev chain too deep")
		}
		if offset <= 0 || offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}
		if seen[offset] {
			return nil, errors.New("xref /Prev chain loops")
		}
		seen[offset] = true

		trailer, err := parseSection(data, offset, t)
		if err != nil {
			return nil, err
		}
		if t.Trailer == nil {
			t.Trailer = trailer
		} else {
			// Older sections only contribute keys the newest lacks.
			for k, v := range trailer.KV {
				if _, ok := t.Trailer.KV[k]; !ok {
					t.Trailer.KV[k] = v
				}
			}
		}
		prev := trailer.Int("Prev")
		if prev == 0 {
			return t, nil
		}
		offset = prev
	}
}

func parseStartxref(rest []byte) (int64, error) {
	for _, line := range strings.SplitN(string(rest), "\n", 4) {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		val, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse startxref: %w", err)
		}
		return val, nil
	}
	return 0, errors.New("startxref value missing")
}

// parseSection reads one "xref ... trailer <<...>>" section at offset,
// merging its entries into t (newer sections win). Returns the section's
// trailer dictionary.
func parseSection(data []byte, offset int64, t *Table) (*raw.DictObj, error) {
	s := scanner.New(data, scanner.Config{})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenKeyword || tok.Str != "xref" {
		return nil, errors.New("xref keyword not found at offset")
	}

	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("truncated xref section: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, fmt.Errorf("invalid xref subsection header at %d", tok.Pos)
		}
		startObj := int(tok.Int)
		tok, err = s.Next()
		if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, errors.New("invalid xref subsection count")
		}
		count := int(tok.Int)

		for i := 0; i < count; i++ {
			off, gen, kind, err := readEntry(s)
			if err != nil {
				return nil, err
			}
			num := startObj + i
			if kind != 'n' {
				continue
			}
			if _, exists := t.entries[num]; !exists {
				t.entries[num] = Entry{Offset: off, Gen: gen}
			}
		}
	}

	obj, err := readObject(s)
	if err != nil {
		return nil, fmt.Errorf("parse trailer: %w", err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return dict, nil
}

// readEntry consumes one 20-byte-style "offset gen n|f" record. The scanner
// merges "N G R"-shaped triples, so entries whose type letter would make the
// pair look like a reference cannot occur ('n' and 'f' are not 'R').
func readEntry(s *scanner.Scanner) (int64, int, byte, error) {
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
		return 0, 0, 0, errors.New("invalid xref entry offset")
	}
	off := tok.Int
	tok, err = s.Next()
	if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
		return 0, 0, 0, errors.New("invalid xref entry generation")
	}
	gen := int(tok.Int)
	tok, err = s.Next()
	if err != nil || tok.Type != scanner.TokenKeyword || len(tok.Str) != 1 {
		return 0, 0, 0, errors.New("invalid xref entry type")
	}
	return off, gen, tok.Str[0], nil
}

// readObject builds a direct object from the token stream. It covers the
// shapes trailer dictionaries use: dicts, arrays, names, numbers, strings,
// booleans, null, and indirect references. Streams are the loader's job.
func readObject(s *scanner.Scanner) (raw.Object, error) {
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	return objectFromToken(s, tok)
}

func objectFromToken(s *scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenDict:
		return readDict(s)
	case scanner.TokenArray:
		return readArray(s)
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenString:
		return raw.Str(tok.Bytes), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	}
	return nil, fmt.Errorf("unexpected token at offset %d", tok.Pos)
}

func readDict(s *scanner.Scanner) (*raw.DictObj, error) {
	dict := raw.Dict()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return dict, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("dictionary key is not a name at offset %d", tok.Pos)
		}
		val, err := readObject(s)
		if err != nil {
			return nil, err
		}
		dict.Set(raw.NameLiteral(tok.Str), val)
	}
}

func readArray(s *scanner.Scanner) (*raw.ArrayObj, error) {
	arr := raw.NewArray()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		item, err := objectFromToken(s, tok)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}
