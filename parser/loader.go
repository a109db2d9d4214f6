package parser

import (
	"errors"
	"fmt"

	"github.com/winsonsd1123/pdfano/ir/raw"
	"github.com/winsonsd1123/pdfano/scanner"
	"github.com/winsonsd1123/pdfano/xref"
)

// loader materializes indirect objects from their xref offsets. Results are
// memoized; a loading set guards against /Length cycles.
type loader struct {
	data    []byte
	table   *xref.Table
	objects map[raw.ObjectRef]raw.Object
	loading map[int]bool
}

func newLoader(data []byte, table *xref.Table) *loader {
	return &loader{
		data:    data,
		table:   table,
		objects: make(map[raw.ObjectRef]raw.Object),
		loading: make(map[int]bool),
	}
}

func (l *loader) load(num int) (raw.Object, error) {
	entry, ok := l.table.Lookup(num)
	if !ok {
		return nil, fmt.Errorf("object %d not in xref table", num)
	}
	ref := raw.ObjectRef{Num: num, Gen: entry.Gen}
	if obj, ok := l.objects[ref]; ok {
		return obj, nil
	}
	if l.loading[num] {
		return nil, fmt.Errorf("object %d references itself", num)
	}
	l.loading[num] = true
	defer delete(l.loading, num)

	obj, err := l.parseAt(entry.Offset, num)
	if err != nil {
		return nil, err
	}
	l.objects[ref] = obj
	return obj, nil
}

func (l *loader) parseAt(offset int64, wantNum int) (raw.Object, error) {
	s := scanner.New(l.data, scanner.Config{})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	numTok, err := s.Next()
	if err != nil {
		return nil, err
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt {
		return nil, fmt.Errorf("no object header at offset %d", offset)
	}
	if int(numTok.Int) != wantNum {
		return nil, fmt.Errorf("xref points object %d at object %d", wantNum, numTok.Int)
	}
	genTok, err := s.Next()
	if err != nil || genTok.Type != scanner.TokenNumber {
		return nil, fmt.Errorf("malformed object header at offset %d", offset)
	}
	kwTok, err := s.Next()
	if err != nil || kwTok.Type != scanner.TokenKeyword || kwTok.Str != "obj" {
		return nil, fmt.Errorf("obj keyword missing at offset %d", offset)
	}

	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenDict {
		return objectFromToken(s, tok)
	}

	dict, err := readDict(s)
	if err != nil {
		return nil, err
	}

	// A stream keyword may follow. Resolve /Length first so the scanner can
	// slice the payload exactly instead of searching for endstream.
	if length, ok := l.streamLength(dict); ok {
		s.SetNextStreamLength(length)
	}
	next, err := s.Next()
	if err != nil {
		// Dict at end of buffer with no endobj; accept it.
		return dict, nil
	}
	s.SetNextStreamLength(-1)
	if next.Type == scanner.TokenStream {
		return raw.NewStream(dict, next.Bytes), nil
	}
	return dict, nil
}

// streamLength resolves the /Length entry, loading it when indirect.
func (l *loader) streamLength(dict *raw.DictObj) (int64, bool) {
	obj, ok := dict.Get(raw.NameLiteral("Length"))
	if !ok {
		return 0, false
	}
	switch v := obj.(type) {
	case raw.NumberObj:
		if v.IsInteger() && v.Int() >= 0 {
			return v.Int(), true
		}
	case raw.RefObj:
		target, err := l.load(v.R.Num)
		if err != nil {
			return 0, false
		}
		if n, ok := target.(raw.NumberObj); ok && n.IsInteger() && n.Int() >= 0 {
			return n.Int(), true
		}
	}
	return 0, false
}

// objectFromToken builds a direct object starting from an already-consumed
// token, recursing into containers.
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

func readObject(s *scanner.Scanner) (raw.Object, error) {
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	return objectFromToken(s, tok)
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
		if tok.Type == scanner.TokenKeyword {
			return nil, errors.New("keyword inside array")
		}
		item, err := objectFromToken(s, tok)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}
