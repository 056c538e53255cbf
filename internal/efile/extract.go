package efile

import (
	"strconv"
	"strings"
)

// A path is a slash-separated chain of local element names, e.g.
// "Filer/USAddress/CityNm". The first segment matches any descendant of
// the search root; each following segment matches a direct child. The
// first match in document order wins. Elements match only within the
// document's declared namespace.

// Extract tries each candidate path in order against n and returns the
// first non-empty text found, else "".
func (d *Document) Extract(n *Node, paths ...string) string {
	if n == nil {
		return ""
	}
	for _, p := range paths {
		if found := d.Find(n, p); found != nil && found.Text != "" {
			return found.Text
		}
	}
	return ""
}

// Find locates the first node under n matching path, else nil.
func (d *Document) Find(n *Node, path string) *Node {
	if n == nil {
		return nil
	}
	segs := strings.Split(path, "/")
	return d.findDescendant(n, segs)
}

// FindAll returns every descendant of n whose local name matches name,
// in document order. Matches inside a matched node are not revisited;
// each repeated group element is one entry.
func (d *Document) FindAll(n *Node, name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if d.matches(c, name) {
			out = append(out, c)
			continue
		}
		out = append(out, d.FindAll(c, name)...)
	}
	return out
}

func (d *Document) matches(n *Node, name string) bool {
	return n.Name == name && n.Space == d.Namespace
}

// findDescendant searches anywhere under n for the first segment, then
// requires the remaining segments as a direct-child chain.
func (d *Document) findDescendant(n *Node, segs []string) *Node {
	for _, c := range n.Children {
		if d.matches(c, segs[0]) {
			if found := d.followChildren(c, segs[1:]); found != nil {
				return found
			}
		}
		if found := d.findDescendant(c, segs); found != nil {
			return found
		}
	}
	return nil
}

func (d *Document) followChildren(n *Node, segs []string) *Node {
	if len(segs) == 0 {
		return n
	}
	for _, c := range n.Children {
		if d.matches(c, segs[0]) {
			if found := d.followChildren(c, segs[1:]); found != nil {
				return found
			}
		}
	}
	return nil
}

// ParseInt coerces a monetary text value to int64. Thousands separators
// are stripped; empty or malformed input yields nil, never an error.
func ParseInt(s string) *int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseFloat coerces a decimal text value to float64, nil on malformed.
func ParseFloat(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseYear coerces a tax year to int, nil on malformed.
func ParseYear(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

// textOrNil returns a pointer to s, or nil when s is empty.
func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
