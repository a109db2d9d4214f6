package ai

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// NormalizeMarkdown flattens a markdown answer to plain annotation text.
// Headings, paragraphs, and list items each become one line; inline markup
// is dropped in favor of its text content.
func NormalizeMarkdown(source string) string {
	md := goldmark.New()
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var lines []string
	collectLines(doc, src, &lines)
	return strings.Join(lines, "\n")
}

func collectLines(node ast.Node, source []byte, lines *[]string) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Heading:
			appendLine(lines, inlineText(n, source))
		case *ast.Paragraph:
			appendLine(lines, inlineText(n, source))
		case *ast.List:
			collectLines(n, source, lines)
		case *ast.ListItem:
			collectListItem(n, source, lines)
		case *ast.FencedCodeBlock:
			appendLine(lines, codeBlockText(n, source))
		case *ast.CodeBlock:
			appendLine(lines, codeBlockText(n, source))
		case *ast.Blockquote:
			collectLines(n, source, lines)
		}
	}
}

func collectListItem(item *ast.ListItem, source []byte, lines *[]string) {
	for child := item.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.List:
			collectLines(n, source, lines)
		case *ast.Paragraph, *ast.TextBlock:
			appendLine(lines, inlineText(n, source))
		default:
			appendLine(lines, inlineText(n, source))
		}
	}
}

// inlineText concatenates the text segments of a block node, turning line
// breaks inside the block into spaces.
func inlineText(node ast.Node, source []byte) string {
	var sb strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
			continue
		}
		sb.WriteString(string(child.Text(source)))
	}
	return sb.String()
}

func codeBlockText(node ast.Node, source []byte) string {
	var sb strings.Builder
	segs := node.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func appendLine(lines *[]string, s string) {
	s = strings.TrimSpace(s)
	if s != "" {
		*lines = append(*lines, s)
	}
}
