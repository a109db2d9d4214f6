// Package writer serializes a raw.Document as a complete PDF file: every
// object written uncompressed at the top level with a classic cross-reference
// table. Object streams and cross-reference streams from the source are
// dropped; their contents were expanded into plain objects at parse time.
package writer

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"
	"sort"

	"github.com/winsonsd1123/pdfano/ir/raw"
)

type Config struct {
	// Version overrides the header version; empty keeps the document's own
	// version (or 1.7 when the source had none).
	Version string
}

// Write renders the full document. The trailer must name a /Root.
func Write(doc *raw.Document, cfg Config) ([]byte, error) {
	if doc == nil || len(doc.Objects) == 0 {
		return nil, errors.New("empty document")
	}
	trailer, _ := doc.Trailer.(*raw.DictObj)
	if trailer == nil {
		return nil, errors.New("document has no trailer")
	}
	if _, ok := trailer.Get(raw.NameLiteral("Root")); !ok {
		return nil, errors.New("trailer has no /Root")
	}

	version := cfg.Version
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = "1.7"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", version)
	// Binary marker comment so transfer tools treat the file as binary.
	buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	refs := writableRefs(doc)
	offsets := make(map[int]int64, len(refs))
	gens := make(map[int]int, len(refs))
	for _, ref := range refs {
		obj := doc.Objects[ref]
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
		buf.Write(serializeObject(normalizeStream(obj)))
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := int64(buf.Len())
	writeXrefTable(&buf, offsets, gens)

	size := 1
	for num := range offsets {
		if num+1 > size {
			size = num + 1
		}
	}
	out := cloneTrailer(trailer)
	out.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(size)))
	id := fileID(buf.Bytes())
	out.Set(raw.NameLiteral("ID"), raw.NewArray(raw.HexStr(id), raw.HexStr(id)))

	buf.WriteString("trailer\n")
	buf.Write(serializeObject(out))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

// writableRefs returns object refs in ascending number order, excluding
// container objects that only exist to carry compressed data.
func writableRefs(doc *raw.Document) []raw.ObjectRef {
	refs := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref, obj := range doc.Objects {
		if stm, ok := obj.(*raw.StreamObj); ok {
			switch stm.Dict.Name("Type") {
			case "ObjStm", "XRef":
				continue
			}
		}
		if obj == nil {
			continue
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
	return refs
}

// normalizeStream rewrites a stream dictionary so /Length is direct and
// matches the payload. Other entries pass through untouched.
func normalizeStream(obj raw.Object) raw.Object {
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return obj
	}
	dict := raw.Dict()
	for k, v := range stm.Dict.KV {
		dict.KV[k] = v
	}
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(stm.Length()))
	return raw.NewStream(dict, stm.Data)
}

// writeXrefTable emits classic subsections covering the written objects plus
// the mandatory free entry for object 0.
func writeXrefTable(buf *bytes.Buffer, offsets map[int]int64, gens map[int]int) {
	nums := make([]int, 0, len(offsets)+1)
	nums = append(nums, 0)
	for num := range offsets {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	buf.WriteString("xref\n")
	for i := 0; i < len(nums); {
		j := i + 1
		for j < len(nums) && nums[j] == nums[j-1]+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", nums[i], j-i)
		for _, num := range nums[i:j] {
			if num == 0 {
				buf.WriteString("0000000000 65535 f \n")
				continue
			}
			fmt.Fprintf(buf, "%010d %05d n \n", offsets[num], gens[num])
		}
		i = j
	}
}

func cloneTrailer(t *raw.DictObj) *raw.DictObj {
	out := raw.Dict()
	for k, v := range t.KV {
		out.KV[k] = v
	}
	// Keys that only make sense for incremental updates or xref streams.
	for _, k := range []string{"Prev", "XRefStm", "Type", "W", "Index", "Filter", "DecodeParms", "Length"} {
		out.Delete(raw.NameLiteral(k))
	}
	return out
}

// fileID derives the trailer /ID from the serialized body, so identical
// exports carry identical identifiers.
func fileID(body []byte) []byte {
	sum := md5.Sum(body)
	return sum[:]
}
