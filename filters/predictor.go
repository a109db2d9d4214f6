package filters

import (
	"errors"

	"github.com/winsonsd1123/pdfano/ir/raw"
)

// applyPredictor undoes the PNG row predictor cross-reference and object
// streams commonly carry in DecodeParms. Predictor values below 10 (none,
// TIFF with 8-bit samples) pass data through unchanged.
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	d, ok := params.(*raw.DictObj)
	if !ok {
		return data, nil
	}
	predictor := d.Int("Predictor")
	if predictor < 10 {
		return data, nil
	}
	columns := d.Int("Columns")
	if columns <= 0 {
		columns = 1
	}
	colors := d.Int("Colors")
	if colors <= 0 {
		colors = 1
	}
	bpc := d.Int("BitsPerComponent")
	if bpc <= 0 {
		bpc = 8
	}
	bpp := int((colors*bpc + 7) / 8)
	rowLen := int((columns*colors*bpc + 7) / 8)
	stride := rowLen + 1 // leading filter-type byte per row

	if len(data)%stride != 0 {
		return nil, errors.New("predicted data is not a whole number of rows")
	}

	out := make([]byte, 0, len(data)/stride*rowLen)
	prev := make([]byte, rowLen)
	row := make([]byte, rowLen)
	for off := 0; off < len(data); off += stride {
		ft := data[off]
		copy(row, data[off+1:off+stride])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = row[i-bpp]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = row[i-bpp]
					upLeft = prev[i-bpp]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, errors.New("unknown PNG filter type")
		}
		out = append(out, row...)
		copy(prev, row)
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
