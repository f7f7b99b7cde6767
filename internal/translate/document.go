package translate

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// node is one element or attribute of a parsed XML document. Attributes are
// stored as value-bearing children ahead of the element children, so a walk
// over children sees every named piece of a result element.
type node struct {
	name     string
	value    string
	attr     bool
	children []*node
}

// parseDocument parses content into a node tree. The returned root is a
// synthetic document node whose children are the top-level elements.
func parseDocument(content []byte) (*node, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "translate: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	root := &node{}
	stack := []*node{root}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "translate: read token")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &node{name: t.Name.Local}
			for _, a := range t.Attr {
				el.children = append(el.children, &node{
					name:  a.Name.Local,
					value: a.Value,
					attr:  true,
				})
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 1 {
				return nil, eris.New("translate: unbalanced end element")
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			cur := stack[len(stack)-1]
			cur.value += string(t)
		}
	}

	if len(stack) != 1 {
		return nil, eris.New("translate: unterminated element")
	}
	if len(root.children) == 0 {
		return nil, eris.New("translate: empty document")
	}

	trimValues(root)
	return root, nil
}

func trimValues(n *node) {
	n.value = strings.TrimSpace(n.value)
	for _, c := range n.children {
		trimValues(c)
	}
}

// findElement returns the first element named name, searching depth first.
func findElement(n *node, name string) *node {
	for _, c := range n.children {
		if c.attr {
			continue
		}
		if c.name == name {
			return c
		}
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}
