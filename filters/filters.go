// Package filters decodes PDF stream filters. The loader uses it to expand
// object streams and decode cross-reference streams; the font embedder uses
// Flate encoding for the embedded font program.
package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	stdascii85 "encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/winsonsd1123/pdfano/ir/raw"
)

type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params raw.Dictionary) ([]byte, error)
}

// Limits bounds decode work so a hostile upload cannot exhaust memory.
type Limits struct {
	MaxDecompressedSize int64
}

type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

// NewPipeline returns a pipeline with the standard decoder set.
func NewPipeline(limits Limits) *Pipeline {
	p := &Pipeline{decoders: make(map[string]Decoder), limits: limits}
	for _, d := range []Decoder{
		flateDecoder{limits},
		asciiHexDecoder{},
		ascii85Decoder{},
		runLengthDecoder{},
	} {
		p.decoders[d.Name()] = d
	}
	return p
}

// Decode runs the named filter chain over input in order. Predictors named
// in DecodeParms are applied after the corresponding filter.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []raw.Dictionary) ([]byte, error) {
	data := input
	for i, name := range filterNames {
		dec, ok := p.decoders[name]
		if !ok {
			return nil, errors.New("unsupported filter: " + name)
		}
		var param raw.Dictionary
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if param != nil {
			out, err = applyPredictor(out, param)
			if err != nil {
				return nil, fmt.Errorf("%s predictor: %w", name, err)
			}
		}
		data = out
	}
	return data, nil
}

// DecodeStream decodes a stream object using its own Filter/DecodeParms
// entries, resolving indirect values through doc.
func (p *Pipeline) DecodeStream(ctx context.Context, doc *raw.Document, stm *raw.StreamObj) ([]byte, error) {
	names, params := ExtractFilters(doc, stm.Dict)
	return p.Decode(ctx, stm.Data, names, params)
}

type flateDecoder struct{ limits Limits }

func (flateDecoder) Name() string { return "FlateDecode" }

func (d flateDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	// FlateDecode payloads are zlib-wrapped; some producers emit raw
	// deflate, so fall back when the zlib header is absent.
	var r io.ReadCloser
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		r = flate.NewReader(bytes.NewReader(in))
	} else {
		r = zr
	}
	defer r.Close()

	var out bytes.Buffer
	limit := d.limits.MaxDecompressedSize
	if limit <= 0 {
		limit = 256 << 20
	}
	n, err := io.Copy(&out, io.LimitReader(r, limit+1))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	if n > limit {
		return nil, errors.New("decompressed size exceeds limit")
	}
	return out.Bytes(), nil
}

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	var compact []byte
	for _, c := range in {
		if c == '>' {
			break
		}
		switch c {
		case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
			continue
		}
		compact = append(compact, c)
	}
	if len(compact)%2 == 1 {
		compact = append(compact, '0')
	}
	out := make([]byte, hex.DecodedLen(len(compact)))
	n, err := hex.Decode(out, compact)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	if bytes.HasPrefix(trimmed, []byte("<~")) {
		trimmed = trimmed[2:]
	}
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}
	out := make([]byte, len(trimmed)*4/5+4)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(in); {
		length := in[i]
		i++
		switch {
		case length == 128:
			return out.Bytes(), nil
		case length < 128:
			n := int(length) + 1
			if i+n > len(in) {
				return nil, errors.New("literal run past end of data")
			}
			out.Write(in[i : i+n])
			i += n
		default:
			if i >= len(in) {
				return nil, errors.New("repeat run past end of data")
			}
			n := 257 - int(length)
			for j := 0; j < n; j++ {
				out.WriteByte(in[i])
			}
			i++
		}
	}
	return out.Bytes(), nil
}

// FlateEncode compresses data with zlib at the default level, the encoding
// used for embedded font programs.
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
