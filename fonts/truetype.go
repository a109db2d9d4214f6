// Package fonts loads the bundled TrueType font and embeds it into a
// document as a Type0/Identity-H font with a FontFile2 program, so viewers
// can render annotation text in scripts the base-14 fonts do not cover.
package fonts

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	gofont "github.com/go-text/typesetting/font"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Embedded is a parsed TrueType font ready for embedding. It is immutable
// after LoadTrueType and safe to share across concurrent exports.
type Embedded struct {
	BaseName string
	data     []byte

	widths       map[int]int // glyph id -> advance, 1/1000 em
	defaultWidth int
	ascent       float64
	descent      float64
	capHeight    float64
	italicAngle  float64
	bbox         [4]float64

	face      *gofont.Face
	toUnicode map[int][]rune // glyph id -> text, for the ToUnicode CMap
}

// LoadTrueType parses font data and extracts the metrics the PDF object set
// needs. The full program is embedded; no subsetting.
func LoadTrueType(name string, data []byte) (*Embedded, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	baseName := strings.TrimSpace(name)
	if ps, _ := font.Name(buf, sfnt.NameIDPostScript); len(ps) > 0 {
		baseName = ps
	}
	if baseName == "" {
		baseName = "CustomTT"
	}

	widths := glyphWidths(font, buf, unitsPerEm, ppem)
	defaultWidth := widths[0]
	if defaultWidth == 0 {
		defaultWidth = 1000
	}

	face, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse cmap: %w", err)
	}

	metrics, _ := font.Metrics(buf, ppem, xfont.HintingNone)
	bounds, _ := font.Bounds(buf, ppem, xfont.HintingNone)
	e := &Embedded{
		BaseName:     baseName,
		data:         data,
		widths:       widths,
		defaultWidth: defaultWidth,
		ascent:       scaleFixed(metrics.Ascent, unitsPerEm),
		descent:      scaleFixed(metrics.Descent, unitsPerEm),
		capHeight:    scaleFixed(metrics.Ascent, unitsPerEm),
		italicAngle:  italicAngle(font),
		bbox: [4]float64{
			scaleFixed(bounds.Min.X, unitsPerEm),
			scaleFixed(bounds.Min.Y, unitsPerEm),
			scaleFixed(bounds.Max.X, unitsPerEm),
			scaleFixed(bounds.Max.Y, unitsPerEm),
		},
		face: face,
	}
	e.toUnicode = reverseCmap(face)
	return e, nil
}

// Covers reports whether every non-control rune in text maps to a glyph.
func (e *Embedded) Covers(text string) bool {
	for _, r := range text {
		if r < 0x20 {
			continue
		}
		if e.GlyphIndex(r) == 0 {
			return false
		}
	}
	return true
}

// GlyphIndex returns the glyph id for r, or 0 (.notdef) when uncovered.
func (e *Embedded) GlyphIndex(r rune) int {
	gid, ok := e.face.NominalGlyph(r)
	if !ok {
		return 0
	}
	return int(gid)
}

// reverseCmap sweeps the Basic Multilingual Plane and records which rune
// each glyph renders. First mapping wins, matching cmap priority order.
func reverseCmap(face *gofont.Face) map[int][]rune {
	out := make(map[int][]rune)
	for r := rune(0x20); r <= 0xFFFF; r++ {
		if r >= 0xD800 && r <= 0xDFFF {
			continue // surrogate range
		}
		gid, ok := face.NominalGlyph(r)
		if !ok || gid == 0 {
			continue
		}
		if _, seen := out[int(gid)]; !seen {
			out[int(gid)] = []rune{r}
		}
	}
	return out
}

func glyphWidths(font *sfnt.Font, buf *sfnt.Buffer, unitsPerEm sfnt.Units, ppem fixed.Int26_6) map[int]int {
	glyphs := font.NumGlyphs()
	widths := make(map[int]int, glyphs)
	for i := 0; i < glyphs; i++ {
		adv, err := font.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		widths[i] = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	return widths
}

func italicAngle(font *sfnt.Font) float64 {
	post := font.PostTable()
	if post == nil {
		return 0
	}
	return post.ItalicAngle
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}
