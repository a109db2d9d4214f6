package annotate

import (
	"time"

	"github.com/winsonsd1123/pdfano/ir/raw"
)

// Registrar allocates an object number for obj and returns its reference.
type Registrar interface {
	Register(obj raw.Object) raw.ObjectRef
}

// linkPage places one page's records into the object graph in two passes.
// A reply must embed a direct reference to its parent's object, so every
// primary is registered before any reply is considered. Replies whose
// parent never registered (dropped type, wrong page, bogus id) are skipped.
// Returns the number of annotation objects written to annots.
func linkPage(reg Registrar, pageRef raw.ObjectRef, annots *raw.ArrayObj, records []Record, now time.Time) int {
	byID := make(map[string]raw.ObjectRef)
	count := 0

	for _, rec := range records {
		if rec.IsReply {
			continue
		}
		dict, ok := buildAnnotation(rec, pageRef, nil, now)
		if !ok {
			continue
		}
		ref := reg.Register(dict)
		byID[rec.ID] = ref
		annots.Append(raw.Ref(ref.Num, ref.Gen))
		count++
	}

	for _, rec := range records {
		if !rec.IsReply {
			continue
		}
		parent, ok := byID[rec.InReplyTo]
		if !ok {
			continue
		}
		dict, ok := buildAnnotation(rec, pageRef, &parent, now)
		if !ok {
			continue
		}
		ref := reg.Register(dict)
		annots.Append(raw.Ref(ref.Num, ref.Gen))
		count++
	}
	return count
}
