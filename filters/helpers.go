package filters

import "github.com/winsonsd1123/pdfano/ir/raw"

// ExtractFilters reads Filter and DecodeParms from a stream dictionary,
// resolving indirect values through doc (nil doc reads direct values only).
func ExtractFilters(doc *raw.Document, dict raw.Dictionary) ([]string, []raw.Dictionary) {
	var names []string
	var params []raw.Dictionary

	resolve := func(o raw.Object) raw.Object {
		if doc == nil {
			return o
		}
		return doc.Resolve(o)
	}

	filterObj, ok := dict.Get(raw.NameLiteral("Filter"))
	if !ok {
		return names, params
	}

	switch f := resolve(filterObj).(type) {
	case raw.Name:
		names = append(names, f.Value())
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := resolve(item).(raw.Name); ok {
				names = append(names, n.Value())
			}
		}
	}

	if len(names) == 0 {
		return names, params
	}
	params = make([]raw.Dictionary, len(names))
	pObj, ok := dict.Get(raw.NameLiteral("DecodeParms"))
	if !ok {
		return names, params
	}
	switch p := resolve(pObj).(type) {
	case raw.Dictionary:
		params[0] = p
	case *raw.ArrayObj:
		for i, item := range p.Items {
			if i >= len(params) {
				break
			}
			if d, ok := resolve(item).(raw.Dictionary); ok {
				params[i] = d
			}
		}
	}
	return names, params
}
