// Package view defines the typed node tree that course screens are built from,
// and the renderers that turn it into HTML or plain text.
package view

// Kind identifies the role of a node.
type Kind string

const (
	KindSection   Kind = "section"
	KindHeading   Kind = "heading"
	KindParagraph Kind = "paragraph"
	KindList      Kind = "list"
	KindItem      Kind = "item"
	KindVideo     Kind = "video"
	KindAudio     Kind = "audio"
	KindButton    Kind = "button"
	KindCode      Kind = "code"
)

// Node is one element of a rendered block. Only the fields relevant to its
// kind are set.
type Node struct {
	Kind Kind `json:"kind"`
	// ID identifies sections and buttons for click dispatch.
	ID    string `json:"id,omitempty"`
	Class string `json:"class,omitempty"`
	Text  string `json:"text,omitempty"`
	// Src is the media path of video and audio nodes.
	Src      string  `json:"src,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Section creates a container node.
func Section(id, class string, children ...*Node) *Node {
	return &Node{Kind: KindSection, ID: id, Class: class, Children: compact(children)}
}

// Heading creates a heading.
func Heading(text string) *Node {
	return &Node{Kind: KindHeading, Text: text}
}

// Paragraph creates a text paragraph.
func Paragraph(text string) *Node {
	return &Node{Kind: KindParagraph, Text: text}
}

// List creates a list with one item per non-empty entry. It returns nil when
// no entry has text.
func List(class string, items []string) *Node {
	n := &Node{Kind: KindList, Class: class}
	for _, item := range items {
		if item == "" {
			continue
		}
		n.Children = append(n.Children, &Node{Kind: KindItem, Text: item})
	}
	if len(n.Children) == 0 {
		return nil
	}
	return n
}

// Video creates an embedded video.
func Video(src string) *Node {
	return &Node{Kind: KindVideo, Src: src}
}

// Audio creates an audio element.
func Audio(src string) *Node {
	return &Node{Kind: KindAudio, Src: src}
}

// Button creates a clickable element addressed by id.
func Button(id, label string) *Node {
	return &Node{Kind: KindButton, ID: id, Text: label}
}

// Code creates a preformatted code block.
func Code(text string) *Node {
	return &Node{Kind: KindCode, Text: text}
}

// compact drops nil children so builders can pass optional nodes inline.
func compact(nodes []*Node) []*Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Append adds non-nil children.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// Find returns the first node in depth-first order whose id matches.
func (n *Node) Find(id string) *Node {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits n and its descendants depth first.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Count returns how many nodes of the given kind are in the tree.
func (n *Node) Count(kind Kind) int {
	count := 0
	n.Walk(func(node *Node) {
		if node.Kind == kind {
			count++
		}
	})
	return count
}
