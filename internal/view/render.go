package view

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RenderHTML writes the tree as an HTML fragment. Text is escaped by the
// renderer.
func RenderHTML(w io.Writer, n *Node) error {
	if n == nil {
		return nil
	}
	return html.Render(w, toHTML(n))
}

// HTML renders the tree to a string.
func HTML(n *Node) (string, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, n); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func toHTML(n *Node) *html.Node {
	el := element(n)
	if n.Text != "" {
		el.AppendChild(&html.Node{Type: html.TextNode, Data: n.Text})
	}
	for _, c := range n.Children {
		el.AppendChild(toHTML(c))
	}
	return el
}

func element(n *Node) *html.Node {
	var a atom.Atom
	var attrs []html.Attribute

	switch n.Kind {
	case KindSection:
		a = atom.Section
	case KindHeading:
		a = atom.H3
	case KindParagraph:
		a = atom.P
	case KindList:
		a = atom.Ul
	case KindItem:
		a = atom.Li
	case KindVideo:
		a = atom.Video
		attrs = append(attrs,
			html.Attribute{Key: "src", Val: n.Src},
			html.Attribute{Key: "controls"},
		)
	case KindAudio:
		a = atom.Audio
		attrs = append(attrs,
			html.Attribute{Key: "src", Val: n.Src},
			html.Attribute{Key: "controls"},
		)
	case KindButton:
		a = atom.Button
		attrs = append(attrs,
			html.Attribute{Key: "type", Val: "button"},
			html.Attribute{Key: "data-target", Val: n.ID},
		)
	case KindCode:
		a = atom.Pre
	default:
		a = atom.Div
	}

	if n.ID != "" {
		attrs = append(attrs, html.Attribute{Key: "id", Val: n.ID})
	}
	if n.Class != "" {
		attrs = append(attrs, html.Attribute{Key: "class", Val: n.Class})
	}

	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

// RenderText writes a plain-text outline of the tree for terminals.
func RenderText(w io.Writer, n *Node) error {
	var b strings.Builder
	writeText(&b, n, 0)
	_, err := io.WriteString(w, b.String())
	return err
}

// Text renders the tree as plain text.
func Text(n *Node) string {
	var b strings.Builder
	writeText(&b, n, 0)
	return b.String()
}

func writeText(b *strings.Builder, n *Node, depth int) {
	if n == nil {
		return
	}
	indent := strings.Repeat("  ", depth)

	switch n.Kind {
	case KindHeading:
		b.WriteString(indent + n.Text + "\n")
		b.WriteString(indent + strings.Repeat("-", len([]rune(n.Text))) + "\n")
	case KindParagraph:
		b.WriteString(indent + n.Text + "\n")
	case KindItem:
		b.WriteString(indent + "- " + n.Text + "\n")
	case KindVideo:
		b.WriteString(indent + "[video] " + n.Src + "\n")
	case KindAudio:
		b.WriteString(indent + "[audio] " + n.Src + "\n")
	case KindButton:
		b.WriteString(indent + "[" + n.Text + "]\n")
	case KindCode:
		for _, line := range strings.Split(n.Text, "\n") {
			b.WriteString(indent + "    " + line + "\n")
		}
	case KindList:
		// items carry the text
	default:
		if n.Text != "" {
			b.WriteString(indent + n.Text + "\n")
		}
	}

	for i, c := range n.Children {
		writeText(b, c, depth)
		if n.Kind == KindSection && i < len(n.Children)-1 && c.Kind != KindHeading {
			b.WriteString("\n")
		}
	}
}
