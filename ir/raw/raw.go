// Package raw defines the low-level PDF object model used by the parser,
// the writer, and the annotation export engine. Objects mirror the eight
// basic PDF types plus indirect references; a Document is the flat object
// graph keyed by reference.
package raw

import "fmt"

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key Name) (Object, bool)
	Set(key Name, value Object)
	Keys() []Name
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a raw (undecoded) PDF stream.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// String represents a PDF string (literal or hex).
type String interface {
	Object
	Value() []byte
	IsHex() bool
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Boolean represents a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null represents the PDF null object.
type Null interface{ Object }

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// DocumentMetadata mirrors the common Info dictionary fields. The export
// engine rewrites these to mark the output as an annotated derivative.
type DocumentMetadata struct {
	Producer string
	Creator  string
	Title    string
	Author   string
	Subject  string
	Keywords []string
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects  map[ObjectRef]Object
	Trailer  Dictionary
	Version  string // e.g. "1.7"
	Metadata DocumentMetadata
}

// MaxObjNum returns the highest object number present in the graph.
// New objects appended by the export engine start after this number.
func (d *Document) MaxObjNum() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Resolve follows an indirect reference to the object it names. Direct
// objects are returned unchanged; dangling references resolve to nil.
// Reference chains are bounded to guard against cycles.
func (d *Document) Resolve(obj Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		obj = d.Objects[ref.R]
		if obj == nil {
			return nil
		}
	}
	return nil
}

// ResolveDict resolves obj and asserts it is a dictionary.
func (d *Document) ResolveDict(obj Object) (*DictObj, bool) {
	dict, ok := d.Resolve(obj).(*DictObj)
	return dict, ok
}

// Root resolves the catalog dictionary via the trailer. The second return
// reports whether the trailer carries a usable /Root entry.
func (d *Document) Root() (*DictObj, bool) {
	if d.Trailer == nil {
		return nil, false
	}
	obj, ok := d.Trailer.Get(NameLiteral("Root"))
	if !ok {
		return nil, false
	}
	dict, ok := d.ResolveDict(obj)
	return dict, ok
}
