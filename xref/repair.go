package xref

import (
	"errors"
	"io"

	"github.com/winsonsd1123/pdfano/ir/raw"
	"github.com/winsonsd1123/pdfano/scanner"
)

// Repair rebuilds the table by scanning the whole buffer for
// "<num> <gen> obj" headers and trailer dictionaries. Later definitions of
// the same object number win, matching incremental-update semantics. This is
// also the path for files whose newest xref section is a cross-reference
// stream: every top-level object is found here, and the loader recovers the
// trailer from the /XRef stream dictionary when no trailer keyword exists.
func Repair(data []byte) (*Table, error) {
	s := scanner.New(data, scanner.Config{})
	entries := make(map[int]Entry)
	var trailer *raw.DictObj

	for {
		pos := s.Position()
		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Garbage between objects is expected in damaged files. The
			// scanner does not always advance past the byte it rejects, so
			// step over it here or the scan would retry the same offset.
			if err := s.SeekTo(pos + 1); err != nil {
				break
			}
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			num := int(tok.Int)
			genPos := s.Position()
			genTok, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					goto done
				}
				if err := s.SeekTo(genPos + 1); err != nil {
					goto done
				}
				continue
			}
			if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
				// The second token may itself start an object header.
				if err := s.SeekTo(genTok.Pos); err != nil {
					return nil, err
				}
				continue
			}
			kwPos := s.Position()
			kwTok, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					goto done
				}
				if err := s.SeekTo(kwPos + 1); err != nil {
					goto done
				}
				continue
			}
			if kwTok.Type == scanner.TokenKeyword && kwTok.Str == "obj" {
				entries[num] = Entry{Offset: tok.Pos, Gen: int(genTok.Int)}
				continue
			}
			if err := s.SeekTo(genTok.Pos); err != nil {
				return nil, err
			}

		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			obj, err := readObject(s)
			if err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					trailer = dict
				}
			}
		}
	}

done:
	if len(entries) == 0 {
		return nil, errors.New("repair found no objects")
	}
	if trailer == nil {
		trailer = raw.Dict()
		trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(len(entries)+1)))
	}
	return &Table{entries: entries, Trailer: trailer}, nil
}
