package parser

import (
	"errors"
	"fmt"

	"github.com/winsonsd1123/pdfano/ir/raw"
)

// Pages walks the page tree and returns page object references in display
// order. The returned refs index pages zero-based; callers map the viewer's
// 1-based page numbers onto this slice.
func Pages(doc *raw.Document) ([]raw.ObjectRef, error) {
	root, ok := doc.Root()
	if !ok {
		return nil, errors.New("document has no catalog")
	}
	pagesObj, ok := root.Get(raw.NameLiteral("Pages"))
	if !ok {
		return nil, errors.New("catalog has no page tree")
	}
	ref, ok := pagesObj.(raw.RefObj)
	if !ok {
		return nil, errors.New("page tree root is not indirect")
	}
	var out []raw.ObjectRef
	visited := make(map[raw.ObjectRef]bool)
	if err := collectPages(doc, ref.R, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectPages(doc *raw.Document, ref raw.ObjectRef, visited map[raw.ObjectRef]bool, out *[]raw.ObjectRef) error {
	if visited[ref] {
		return errors.New("page tree contains a cycle")
	}
	visited[ref] = true

	node, ok := doc.Objects[ref].(*raw.DictObj)
	if !ok {
		return fmt.Errorf("page tree node %s is not a dictionary", ref)
	}
	switch node.Name("Type") {
	case "Page":
		*out = append(*out, ref)
		return nil
	case "Pages", "":
		kidsObj, ok := node.Get(raw.NameLiteral("Kids"))
		if !ok {
			return nil
		}
		kids, ok := doc.Resolve(kidsObj).(*raw.ArrayObj)
		if !ok {
			return errors.New("page tree Kids is not an array")
		}
		for _, kid := range kids.Items {
			kidRef, ok := kid.(raw.RefObj)
			if !ok {
				return errors.New("page tree kid is not indirect")
			}
			if err := collectPages(doc, kidRef.R, visited, out); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unexpected page tree node type %q", node.Name("Type"))
}
