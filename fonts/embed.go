package fonts

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/winsonsd1123/pdfano/filters"
	"github.com/winsonsd1123/pdfano/ir/raw"
)

// Registrar allocates an object number for obj and returns its reference.
// The document assembler implements it on top of the raw object graph.
type Registrar interface {
	Register(obj raw.Object) raw.ObjectRef
}

// Embed writes the complete Type0 object set into the registrar and returns
// the reference of the top-level font dictionary:
//
//	Type0 -> CIDFontType2 -> FontDescriptor -> FontFile2
//	      -> ToUnicode CMap
func (e *Embedded) Embed(reg Registrar) (raw.ObjectRef, error) {
	program, err := filters.FlateEncode(e.data)
	if err != nil {
		return raw.ObjectRef{}, fmt.Errorf("compress font program: %w", err)
	}
	fileDict := raw.Dict()
	fileDict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	fileDict.Set(raw.NameLiteral("Length1"), raw.NumberInt(int64(len(e.data))))
	fileRef := reg.Register(raw.NewStream(fileDict, program))

	descriptor := raw.Dict()
	descriptor.Set(raw.NameLiteral("Type"), raw.NameLiteral("FontDescriptor"))
	descriptor.Set(raw.NameLiteral("FontName"), raw.NameLiteral(e.BaseName))
	descriptor.Set(raw.NameLiteral("Flags"), raw.NumberInt(4))
	descriptor.Set(raw.NameLiteral("FontBBox"), raw.NewArray(
		raw.NumberFloat(e.bbox[0]), raw.NumberFloat(e.bbox[1]),
		raw.NumberFloat(e.bbox[2]), raw.NumberFloat(e.bbox[3])))
	descriptor.Set(raw.NameLiteral("ItalicAngle"), raw.NumberFloat(e.italicAngle))
	descriptor.Set(raw.NameLiteral("Ascent"), raw.NumberFloat(e.ascent))
	descriptor.Set(raw.NameLiteral("Descent"), raw.NumberFloat(e.descent))
	descriptor.Set(raw.NameLiteral("CapHeight"), raw.NumberFloat(e.capHeight))
	descriptor.Set(raw.NameLiteral("StemV"), raw.NumberInt(80))
	descriptor.Set(raw.NameLiteral("FontFile2"), raw.Ref(fileRef.Num, fileRef.Gen))
	descriptorRef := reg.Register(descriptor)

	cid := raw.Dict()
	cid.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	cid.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("CIDFontType2"))
	cid.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(e.BaseName))
	sysInfo := raw.Dict()
	sysInfo.Set(raw.NameLiteral("Registry"), raw.Str([]byte("Adobe")))
	sysInfo.Set(raw.NameLiteral("Ordering"), raw.Str([]byte("Identity")))
	sysInfo.Set(raw.NameLiteral("Supplement"), raw.NumberInt(0))
	cid.Set(raw.NameLiteral("CIDSystemInfo"), sysInfo)
	cid.Set(raw.NameLiteral("DW"), raw.NumberInt(int64(e.defaultWidth)))
	cid.Set(raw.NameLiteral("W"), encodeCIDWidths(e.widths))
	cid.Set(raw.NameLiteral("CIDToGIDMap"), raw.NameLiteral("Identity"))
	cid.Set(raw.NameLiteral("FontDescriptor"), raw.Ref(descriptorRef.Num, descriptorRef.Gen))
	cidRef := reg.Register(cid)

	cmap := buildToUnicodeCMap(e.BaseName, e.toUnicode)
	cmapDict := raw.Dict()
	cmapRef := reg.Register(raw.NewStream(cmapDict, cmap))

	font := raw.Dict()
	font.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	font.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type0"))
	font.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(e.BaseName+"-Identity-H"))
	font.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("Identity-H"))
	font.Set(raw.NameLiteral("DescendantFonts"), raw.NewArray(raw.Ref(cidRef.Num, cidRef.Gen)))
	font.Set(raw.NameLiteral("ToUnicode"), raw.Ref(cmapRef.Num, cmapRef.Gen))
	return reg.Register(font), nil
}

// encodeCIDWidths packs the per-glyph advances into the run-length form of
// the /W array: consecutive equal widths collapse to "start end width".
func encodeCIDWidths(widths map[int]int) *raw.ArrayObj {
	arr := raw.NewArray()
	if len(widths) == 0 {
		return arr
	}
	codes := make([]int, 0, len(widths))
	for c := range widths {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	start, prev, current := codes[0], codes[0], widths[codes[0]]
	flush := func() {
		arr.Append(raw.NumberInt(int64(start)))
		arr.Append(raw.NumberInt(int64(prev)))
		arr.Append(raw.NumberInt(int64(current)))
	}
	for _, code := range codes[1:] {
		w := widths[code]
		if w == current && code == prev+1 {
			prev = code
			continue
		}
		flush()
		start, prev, current = code, code, w
	}
	flush()
	return arr
}

func buildToUnicodeCMap(baseName string, toUnicode map[int][]rune) []byte {
	keys := make([]int, 0, len(toUnicode))
	for gid := range toUnicode {
		keys = append(keys, gid)
	}
	sort.Ints(keys)

	name := strings.ReplaceAll(baseName, " ", "") + "-UTF16"
	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n")
	buf.WriteString("12 dict begin\n")
	buf.WriteString("begincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> def\n")
	fmt.Fprintf(&buf, "/CMapName /%s def\n", name)
	buf.WriteString("/CMapType 2 def\n")
	buf.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	for i := 0; i < len(keys); {
		chunk := len(keys) - i
		if chunk > 100 {
			chunk = 100
		}
		fmt.Fprintf(&buf, "%d beginbfchar\n", chunk)
		for j := 0; j < chunk; j++ {
			gid := keys[i+j]
			fmt.Fprintf(&buf, "<%04X> <%s>\n", gid, utf16Hex(toUnicode[gid]))
		}
		buf.WriteString("endbfchar\n")
		i += chunk
	}
	buf.WriteString("endcmap\n")
	buf.WriteString("CMapName currentdict /CMap defineresource pop\n")
	buf.WriteString("end\nend\n")
	return buf.Bytes()
}

func utf16Hex(runes []rune) string {
	var b strings.Builder
	for _, u := range utf16.Encode(runes) {
		fmt.Fprintf(&b, "%04X", u)
	}
	return b.String()
}
