// Package efile parses IRS Form 990 e-file XML documents into typed
// filing snapshots. Extraction is tolerant: every logical field carries
// an ordered list of candidate locations, and malformed numeric data
// coerces to nil rather than failing the document.
package efile

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// ErrMalformed marks a document whose XML cannot be parsed at all.
// Callers isolate it per document; it never aborts a batch.
var ErrMalformed = eris.New("malformed filing document")

// Node is one element of a parsed filing document.
type Node struct {
	Name     string // local element name
	Space    string // namespace URL
	Text     string // trimmed character data directly inside this element
	Children []*Node
}

// Document is a parsed filing with its declared namespace.
type Document struct {
	Root      *Node
	Namespace string
}

// ParseDocument reads an XML document into a generic node tree. Non-UTF-8
// charsets declared in the prolog are transcoded via htmlindex.
func ParseDocument(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "efile: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var root *Node
	var stack []*Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(ErrMalformed, "efile: read token: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local, Space: t.Name.Space}
			if len(stack) == 0 {
				if root != nil {
					return nil, eris.Wrap(ErrMalformed, "efile: multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, eris.Wrap(ErrMalformed, "efile: unbalanced end element")
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				cur := stack[len(stack)-1]
				cur.Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, eris.Wrap(ErrMalformed, "efile: no root element")
	}
	if len(stack) != 0 {
		return nil, eris.Wrap(ErrMalformed, "efile: truncated document")
	}

	trimText(root)
	return &Document{Root: root, Namespace: root.Space}, nil
}

func trimText(n *Node) {
	n.Text = strings.TrimSpace(n.Text)
	for _, c := range n.Children {
		trimText(c)
	}
}
