// Package xml wraps xmlquery behind a small parsing and XPath surface.
//
// Security note: XXE (external entity) attacks are mitigated because Go's
// xml.Decoder does not fetch external entities, and well-formedness
// checking explicitly disables entity expansion.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document is a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node is one XML node. Element and text nodes are exposed; everything
// else (comments, processing instructions) is skipped during iteration.
type Node struct {
	node *xmlquery.Node
}

// Parse parses XML from a reader.
func Parse(r io.Reader) (*Document, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseBytes parses XML from a byte slice.
func ParseBytes(data []byte) (*Document, error) {
	return Parse(bytes.NewReader(data))
}

// WellFormed checks the data for XML well-formedness. Entity expansion is
// disabled (CWE-611).
func WellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Root returns the document's root element.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath returns all nodes matching the expression.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query %q: %w", expr, err)
	}
	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

// XPathFirst returns the first node matching the expression, or nil.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	node, err := xmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query %q: %w", expr, err)
	}
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// XPathText returns the trimmed inner text of the first matching node, or
// "" when nothing matches.
func (d *Document) XPathText(expr string) (string, error) {
	n, err := d.XPathFirst(expr)
	if err != nil || n == nil {
		return "", err
	}
	return strings.TrimSpace(n.InnerText()), nil
}

// IsElement reports whether the node is an element.
func (n *Node) IsElement() bool {
	return n.node != nil && n.node.Type == xmlquery.ElementNode
}

// IsText reports whether the node is literal character data.
func (n *Node) IsText() bool {
	return n.node != nil &&
		(n.node.Type == xmlquery.TextNode || n.node.Type == xmlquery.CharDataNode)
}

// Name returns the element name, without prefix.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the node's own character data (for text nodes) without
// surrounding markup.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// InnerText returns the concatenated text of the node and its descendants.
func (n *Node) InnerText() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Attr returns an attribute value by name; namespaced attributes use the
// prefixed form ("xml:id", "xml:lang").
func (n *Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}

// Elements returns the child element nodes.
func (n *Node) Elements() []*Node {
	var out []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			out = append(out, &Node{node: child})
		}
	}
	return out
}

// Nodes returns the child element and text nodes in document order. Mixed
// content (text interleaved with markup) preserves its ordering.
func (n *Node) Nodes() []*Node {
	var out []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode, xmlquery.TextNode, xmlquery.CharDataNode:
			out = append(out, &Node{node: child})
		}
	}
	return out
}

// Find returns the first descendant matching the relative XPath, or nil.
func (n *Node) Find(expr string) *Node {
	found := xmlquery.FindOne(n.node, expr)
	if found == nil {
		return nil
	}
	return &Node{node: found}
}

// FindText returns the trimmed inner text of the first descendant
// matching the relative XPath, or "".
func (n *Node) FindText(expr string) string {
	found := n.Find(expr)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.InnerText())
}
