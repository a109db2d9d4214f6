package annotate

import (
	"time"
	"unicode/utf16"

	"github.com/winsonsd1123/pdfano/ir/raw"
)

// buildAnnotation constructs the PDF dictionary for one primitive record.
// parent is non-nil only for replies whose parent reference resolved. The
// second return is false for unknown types, which are skipped rather than
// failing the export.
func buildAnnotation(rec Record, pageRef raw.ObjectRef, parent *raw.ObjectRef, now time.Time) (*raw.DictObj, bool) {
	// The quoted source passage travels with the comment text so it stays
	// visible in viewers that only render /Contents.
	text := rec.Content
	if rec.SelectedText != "" {
		text = "\"" + rec.SelectedText + "\"\n" + rec.Content
	}

	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Annot"))
	dict.Set(raw.NameLiteral("Contents"), textString(text))
	dict.Set(raw.NameLiteral("T"), textString(rec.Author))
	dict.Set(raw.NameLiteral("M"), raw.Str([]byte(pdfDate(recordTime(rec, now)))))
	dict.Set(raw.NameLiteral("RC"), textString(richTextBody(text)))
	// Print flag: visible when printed, never hidden.
	dict.Set(raw.NameLiteral("F"), raw.NumberInt(4))
	dict.Set(raw.NameLiteral("P"), raw.Ref(pageRef.Num, pageRef.Gen))

	switch rec.Type {
	case TypeHighlight:
		dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Highlight"))
		dict.Set(raw.NameLiteral("Rect"), rectArray(rec.X, rec.Y, rec.X+rec.Width, rec.Y+rec.Height))
		dict.Set(raw.NameLiteral("QuadPoints"), quadPoints(rec))
		dict.Set(raw.NameLiteral("C"), colorArray(1, 1, 0))
		dict.Set(raw.NameLiteral("CA"), raw.NumberFloat(0.5))
		dict.Set(raw.NameLiteral("Subj"), textString("highlight"))

	case TypeNote:
		// Notes render as a fixed-size icon at the rectangle origin.
		dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Text"))
		dict.Set(raw.NameLiteral("Rect"), rectArray(rec.X, rec.Y, rec.X+replyIconSize, rec.Y+replyIconSize))
		dict.Set(raw.NameLiteral("Open"), raw.Bool(false))
		dict.Set(raw.NameLiteral("C"), colorArray(1, 0.82, 0.2))
		if rec.IsReply {
			dict.Set(raw.NameLiteral("Name"), raw.NameLiteral("Comment"))
			dict.Set(raw.NameLiteral("Subj"), textString("reply"))
		} else {
			dict.Set(raw.NameLiteral("Name"), raw.NameLiteral("Note"))
			dict.Set(raw.NameLiteral("Subj"), textString("note"))
		}
		if rec.IsReply && parent != nil {
			dict.Set(raw.NameLiteral("IRT"), raw.Ref(parent.Num, parent.Gen))
			dict.Set(raw.NameLiteral("RT"), raw.NameLiteral("R"))
		}

	case TypeStrikeout:
		dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("StrikeOut"))
		dict.Set(raw.NameLiteral("Rect"), rectArray(rec.X, rec.Y, rec.X+rec.Width, rec.Y+rec.Height))
		dict.Set(raw.NameLiteral("QuadPoints"), quadPoints(rec))
		dict.Set(raw.NameLiteral("C"), colorArray(1, 0, 0))
		dict.Set(raw.NameLiteral("Subj"), textString("strikeout"))

	default:
		return nil, false
	}
	return dict, true
}

// quadPoints covers the full rectangle with a single quadrilateral in the
// order readers expect: upper-left, upper-right, lower-left, lower-right.
func quadPoints(rec Record) *raw.ArrayObj {
	x1, y1 := rec.X, rec.Y
	x2, y2 := rec.X+rec.Width, rec.Y+rec.Height
	return raw.NewArray(
		raw.NumberFloat(x1), raw.NumberFloat(y2),
		raw.NumberFloat(x2), raw.NumberFloat(y2),
		raw.NumberFloat(x1), raw.NumberFloat(y1),
		raw.NumberFloat(x2), raw.NumberFloat(y1),
	)
}

func rectArray(llx, lly, urx, ury float64) *raw.ArrayObj {
	return raw.NewArray(
		raw.NumberFloat(llx), raw.NumberFloat(lly),
		raw.NumberFloat(urx), raw.NumberFloat(ury),
	)
}

func colorArray(r, g, b float64) *raw.ArrayObj {
	return raw.NewArray(raw.NumberFloat(r), raw.NumberFloat(g), raw.NumberFloat(b))
}

// textString picks the PDF string form: plain ASCII stays a literal string,
// anything else becomes UTF-16BE with BOM in a hex string so non-Latin
// content survives byte-exactly.
func textString(s string) raw.Object {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return raw.Str([]byte(s))
	}
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 0, 2+len(units)*2)
	buf = append(buf, 0xFE, 0xFF)
	for _, u := range units {
		buf = append(buf, byte(u>>8), byte(u))
	}
	return raw.HexStr(buf)
}

// recordTime parses the record's ISO-8601 timestamp, falling back to the
// export time when it is absent or malformed.
func recordTime(rec Record, now time.Time) time.Time {
	if rec.Timestamp == "" {
		return now
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, rec.Timestamp); err == nil {
			return t
		}
	}
	return now
}

// pdfDate renders the PDF date form D:YYYYMMDDHHMMSSZ, UTC, whole seconds.
func pdfDate(t time.Time) string {
	return t.UTC().Format("D:20060102150405Z")
}
