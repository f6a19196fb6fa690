package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// gqNode backs the Node interface with a parsed static document so cascades
// and the extractor can be exercised without a browser.
type gqNode struct {
	sel *goquery.Selection
}

func (n gqNode) Text(selector string) (string, bool) {
	s := n.sel.Find(selector).First()
	if s.Length() == 0 {
		return "", false
	}
	t := strings.TrimSpace(s.Text())
	return t, t != ""
}

func (n gqNode) Attr(selector, name string) (string, bool) {
	s := n.sel.Find(selector).First()
	if s.Length() == 0 {
		return "", false
	}
	v, ok := s.Attr(name)
	return v, ok && v != ""
}

func (n gqNode) All(selector string) []Node {
	var out []Node
	n.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, gqNode{sel: s})
	})
	return out
}

func (n gqNode) SelfText() string {
	return strings.TrimSpace(n.sel.Text())
}

func (n gqNode) SelfAttr(name string) (string, bool) {
	v, ok := n.sel.Attr(name)
	return v, ok && v != ""
}

type fakePanel struct {
	gqNode
	url     string
	clicks  []string
	pressed []string
}

func newFakePanel(html, url string) *fakePanel {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(err)
	}
	return &fakePanel{gqNode: gqNode{sel: doc.Selection}, url: url}
}

func (p *fakePanel) Click(selector string) bool {
	if p.sel.Find(selector).Length() == 0 {
		return false
	}
	p.clicks = append(p.clicks, selector)
	return true
}

func (p *fakePanel) Press(key string) {
	p.pressed = append(p.pressed, key)
}

func (p *fakePanel) WaitVisible(selector string, _ time.Duration) bool {
	return p.sel.Find(selector).Length() > 0
}

func (p *fakePanel) URL() string { return p.url }

type fakeHandle struct {
	href    string
	openErr error
	opened  int
}

func (h *fakeHandle) Href() string { return h.href }

func (h *fakeHandle) Open() error {
	h.opened++
	return h.openErr
}

type noopPacer struct{}

func (noopPacer) Pace(float64) {}
