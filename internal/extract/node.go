package extract

import "time"

// Node is a read-only view over a DOM subtree. The live implementation is
// backed by the browser session; tests use a static-HTML implementation.
// Selector misses are absence, not errors: they are the common case on a
// page whose structure shifts constantly.
type Node interface {
	// Text returns the trimmed inner text of the first match.
	Text(selector string) (string, bool)
	// Attr returns an attribute of the first match.
	Attr(selector, name string) (string, bool)
	// All returns every match as a scoped subtree.
	All(selector string) []Node
	// SelfText returns this node's own trimmed inner text.
	SelfText() string
	// SelfAttr returns an attribute on this node itself.
	SelfAttr(name string) (string, bool)
}

// Panel extends Node with the interactions a detail view needs: tab clicks,
// keyboard dismissal and the isolation wait that guards every read.
type Panel interface {
	Node
	// Click clicks the first match; false when nothing matched.
	Click(selector string) bool
	// Press sends a key to the page (e.g. "Escape").
	Press(key string)
	// WaitVisible blocks until the first match is visible or the timeout
	// elapses.
	WaitVisible(selector string, timeout time.Duration) bool
	// URL is the page's current location.
	URL() string
}
