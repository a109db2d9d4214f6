package annotate

// replyIconSize is the square icon footprint used for reply notes.
const replyIconSize = 24.0

// mapRect converts a captured bounding box to the rectangle actually drawn.
// The AI annotation producer anchors boxes one height too high, so its
// rectangles shift down by their own height; every other role's boxes pass
// through unchanged.
func mapRect(c PDFCoordinates, role string) PDFCoordinates {
	if role == RoleAIAssistant {
		c.Y -= c.Height
	}
	return c
}

// Flatten expands the annotation tree into an ordered list of primitive
// records: each primary immediately followed by its replies, primary order
// preserved from the input.
//
// Reply rectangles anchor at the parent's top-right corner, computed from
// the parent's original coordinates before the role adjustment, and always
// render as notes.
func Flatten(anns []FrontendAnnotation) []Record {
	out := make([]Record, 0, len(anns))
	for _, a := range anns {
		rect := mapRect(a.Coordinates.PDFCoordinates, a.Author.Role)
		selected := ""
		if a.AIAnnotation != nil {
			selected = a.AIAnnotation.SelectedText
		}
		out = append(out, Record{
			ID:           a.ID,
			Page:         a.PageIndex + 1,
			Author:       a.Author.Name,
			Content:      a.Content,
			Timestamp:    a.Timestamp,
			X:            rect.X,
			Y:            rect.Y,
			Width:        rect.Width,
			Height:       rect.Height,
			SelectedText: selected,
			Type:         a.Type,
		})

		orig := a.Coordinates.PDFCoordinates
		for _, r := range a.Replies {
			out = append(out, Record{
				ID:        r.ID,
				Page:      a.PageIndex + 1,
				Author:    r.Author.Name,
				Content:   r.Content,
				Timestamp: r.Timestamp,
				X:         orig.X + orig.Width,
				Y:         orig.Y + orig.Height,
				Width:     replyIconSize,
				Height:    replyIconSize,
				Type:      TypeNote,
				IsReply:   true,
				InReplyTo: a.ID,
			})
		}
	}
	return out
}
