// Package annotate implements the annotation export engine: it flattens the
// caller's annotation tree into primitive records, builds one PDF annotation
// dictionary per record, links reply threads to their parents in two passes,
// and assembles the annotated document.
package annotate

// Author roles as the frontend reports them.
const (
	RoleAIAssistant     = "AI-assistant"
	RoleManualAnnotator = "manual-annotator"
	RoleMentor          = "mentor"
	RolePeer            = "peer"
	RoleStudent         = "student"
)

// Annotation types accepted from the frontend.
const (
	TypeHighlight = "highlight"
	TypeNote      = "note"
	TypeStrikeout = "strikeout"
)

type Author struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// PDFCoordinates is the bounding box captured at annotation time, in PDF
// page-space units with y measured bottom-up.
type PDFCoordinates struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Coordinates struct {
	PDFCoordinates PDFCoordinates `json:"pdfCoordinates"`
}

// AIAnnotation carries the exact source text an AI-origin highlight covers.
type AIAnnotation struct {
	SelectedText string `json:"selectedText"`
}

type Reply struct {
	ID        string `json:"id"`
	Author    Author `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// FrontendAnnotation is one top-level annotation as submitted by the caller,
// with zero or more nested replies.
type FrontendAnnotation struct {
	ID           string        `json:"id"`
	PageIndex    int           `json:"pageIndex"`
	Content      string        `json:"content"`
	Type         string        `json:"type"`
	Author       Author        `json:"author"`
	Timestamp    string        `json:"timestamp"`
	Coordinates  Coordinates   `json:"coordinates"`
	AIAnnotation *AIAnnotation `json:"aiAnnotation,omitempty"`
	Replies      []Reply       `json:"replies,omitempty"`
}

// Record is one primitive annotation: either a primary annotation or a
// reply, carrying its final page-space rectangle. Replies hold the id of
// their parent primary in InReplyTo.
type Record struct {
	ID        string
	Page      int // 1-based
	Author    string
	Content   string
	Timestamp string

	X      float64
	Y      float64
	Width  float64
	Height float64

	SelectedText string
	Type         string
	IsReply      bool
	InReplyTo    string
}
