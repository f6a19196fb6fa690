package extract

import "strings"

// Source is one way to read a field: a selector plus, optionally, the
// attribute to take instead of inner text and a predicate the value must
// satisfy.
type Source struct {
	Selector string
	Attr     string
	Accept   func(string) bool
}

// Cascade is an ordered list of sources for one field. Resolution walks the
// list and takes the first non-empty accepted value; if every source misses,
// the field keeps its zero value.
type Cascade []Source

// Resolve applies the cascade against a node.
func (c Cascade) Resolve(n Node) (string, bool) {
	for _, src := range c {
		var val string
		var ok bool
		if src.Attr != "" {
			val, ok = n.Attr(src.Selector, src.Attr)
		} else {
			val, ok = n.Text(src.Selector)
		}
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		if src.Accept != nil && !src.Accept(val) {
			continue
		}
		return val, true
	}
	return "", false
}

// Text builds a text source.
func Text(selector string) Source { return Source{Selector: selector} }

// Attr builds an attribute source.
func Attr(selector, name string) Source { return Source{Selector: selector, Attr: name} }
