// Package xmlutil wraps xmlquery and xpath for the XML documents found in
// JP2 files and their companion metadata.
//
// Element lookups match on local names so that documents using different
// namespace prefixes for the same schema are handled alike.
package xmlutil

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document is a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node is an element of a Document.
type Node struct {
	node *xmlquery.Node
}

// Parse parses XML data. Trailing NUL padding, common in xml boxes, is
// ignored.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimRight(data, "\x00")
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	doc := &Document{root: root}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parsing XML: no root element")
	}
	return doc, nil
}

// Root returns the document element.
func (d *Document) Root() *Node {
	if d == nil || d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath runs expr against the document and returns the matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	return query(d.root, expr)
}

// XPathFirst returns the first node matching expr, or nil.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	return queryFirst(d.root, expr)
}

// Find returns the first descendant element with the given local name.
func (d *Document) Find(local string) *Node {
	n, _ := queryFirst(d.root, Descendant(local))
	return n
}

// Serialize returns the document as XML text.
func (d *Document) Serialize() string {
	if d == nil || d.root == nil {
		return ""
	}
	return d.root.OutputXML(true)
}

func query(from *xmlquery.Node, expr string) ([]*Node, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	nodes := xmlquery.QuerySelectorAll(from, compiled)
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Node{node: n})
	}
	return out, nil
}

func queryFirst(from *xmlquery.Node, expr string) (*Node, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	n := xmlquery.QuerySelector(from, compiled)
	if n == nil {
		return nil, nil
	}
	return &Node{node: n}, nil
}

// Descendant returns an expression selecting descendants by local name.
func Descendant(local string) string {
	return fmt.Sprintf("//*[local-name()='%s']", local)
}

// Path returns an expression selecting a relative child path by local
// names, e.g. Path("origin", "Point", "pos").
func Path(locals ...string) string {
	steps := make([]string, len(locals))
	for i, l := range locals {
		steps[i] = fmt.Sprintf("*[local-name()='%s']", l)
	}
	return "./" + strings.Join(steps, "/")
}

// Name returns the local name of the element.
func (n *Node) Name() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.Data
}

// Namespace returns the namespace URI of the element.
func (n *Node) Namespace() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.NamespaceURI
}

// Text returns the trimmed text content of the node and its descendants.
func (n *Node) Text() string {
	if n == nil || n.node == nil {
		return ""
	}
	return strings.TrimSpace(n.node.InnerText())
}

// Attr returns the value of an attribute matched by local name.
func (n *Node) Attr(local string) string {
	if n == nil || n.node == nil {
		return ""
	}
	for _, a := range n.node.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Attrs returns the attributes in document order, namespace declarations
// excluded.
func (n *Node) Attrs() [][2]string {
	if n == nil || n.node == nil {
		return nil
	}
	var out [][2]string
	for _, a := range n.node.Attr {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		out = append(out, [2]string{a.Name.Local, a.Value})
	}
	return out
}

// Children returns the child elements.
func (n *Node) Children() []*Node {
	if n == nil || n.node == nil {
		return nil
	}
	var out []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			out = append(out, &Node{node: child})
		}
	}
	return out
}

// Child returns the first child element with the given local name.
func (n *Node) Child(local string) *Node {
	for _, c := range n.Children() {
		if c.Name() == local {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns the child elements with the given local name.
func (n *Node) ChildrenNamed(local string) []*Node {
	var out []*Node
	for _, c := range n.Children() {
		if c.Name() == local {
			out = append(out, c)
		}
	}
	return out
}

// Walk follows a path of child local names and returns the final element.
func (n *Node) Walk(locals ...string) *Node {
	cur := n
	for _, l := range locals {
		if cur = cur.Child(l); cur == nil {
			return nil
		}
	}
	return cur
}

// PathText returns the text of the element at the child path, or "".
func (n *Node) PathText(locals ...string) string {
	return n.Walk(locals...).Text()
}

// XPath runs expr relative to the node.
func (n *Node) XPath(expr string) ([]*Node, error) {
	return query(n.node, expr)
}

// Find returns the first descendant element with the given local name.
func (n *Node) Find(local string) *Node {
	if n == nil || n.node == nil {
		return nil
	}
	found, _ := queryFirst(n.node, ".//*[local-name()='"+local+"']")
	return found
}

// FindAll returns the descendant elements with the given local name.
func (n *Node) FindAll(local string) []*Node {
	if n == nil || n.node == nil {
		return nil
	}
	found, _ := query(n.node, ".//*[local-name()='"+local+"']")
	return found
}

// OutputXML returns the element serialised as XML.
func (n *Node) OutputXML() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.OutputXML(true)
}

// KeyValue is one flattened element.
type KeyValue struct {
	Key   string
	Value string
}

// Flatten lists the leaf elements below n as dotted paths relative to n.
// Repeated siblings are numbered from 1 (Band_Info_1, Band_Info_2) and
// attributes of leaf elements follow the element as "path.attr".
func Flatten(n *Node) []KeyValue {
	var out []KeyValue
	flatten(n, "", &out)
	return out
}

func flatten(n *Node, prefix string, out *[]KeyValue) {
	children := n.Children()
	counts := make(map[string]int)
	for _, c := range children {
		counts[c.Name()]++
	}
	seen := make(map[string]int)
	for _, c := range children {
		name := c.Name()
		if counts[name] > 1 {
			seen[name]++
			name = fmt.Sprintf("%s_%d", name, seen[name])
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if len(c.Children()) == 0 {
			*out = append(*out, KeyValue{Key: key, Value: c.Text()})
			for _, a := range c.Attrs() {
				*out = append(*out, KeyValue{Key: key + "." + a[0], Value: a[1]})
			}
			continue
		}
		flatten(c, key, out)
	}
}
