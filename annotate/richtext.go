package annotate

import (
	"strings"

	"golang.org/x/net/html"
)

// richTextBody wraps content in the minimal XHTML fragment readers accept
// for the /RC entry. Literal newlines become <br/> so multi-line comments
// keep their line structure in viewers that honor rich text.
func richTextBody(content string) string {
	escaped := html.EscapeString(content)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	escaped = strings.ReplaceAll(escaped, "\r", "\n")
	escaped = strings.ReplaceAll(escaped, "\n", "<br/>")
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>`)
	b.WriteString(`<body xmlns="http://www.w3.org/1999/xhtml" `)
	b.WriteString(`xmlns:xfa="http://www.xfa.org/schema/xfa-data/1.0/" xfa:APIVersion="1.0">`)
	b.WriteString(`<p>`)
	b.WriteString(escaped)
	b.WriteString(`</p></body>`)
	return b.String()
}
