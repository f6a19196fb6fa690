package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"mapleads/internal/extract"
)

// readTimeout bounds individual field reads. Most fields are either present
// immediately or absent for good, so failing fast keeps extraction moving.
const readTimeout = 1500 * time.Millisecond

// Page adapts a playwright page to the DOM interfaces the search and
// extract layers are written against.
type Page struct {
	session *Session
	page    playwright.Page
	timeout time.Duration
}

// Navigate loads the URL and classifies failures into the shared taxonomy.
// A failed navigation leaves a debug screenshot behind.
func (p *Page) Navigate(rawURL string, timeout time.Duration) error {
	_, err := p.page.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		p.session.captureDebug("nav")
		return classifyNavError(err)
	}
	return nil
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) WaitVisible(selector string, timeout time.Duration) bool {
	err := p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err == nil
}

func (p *Page) Click(selector string) bool {
	loc := p.page.Locator(selector).First()
	if visible, _ := loc.IsVisible(); !visible {
		return false
	}
	err := loc.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(p.timeout.Milliseconds())),
	})
	return err == nil
}

// Fill types a value into the first element matching the selector.
func (p *Page) Fill(selector, value string) error {
	return p.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(p.timeout.Milliseconds())),
	})
}

func (p *Page) Press(key string) {
	_ = p.page.Keyboard().Press(key)
}

// ScrollBy scrolls inside the first element matching the selector. The feed
// is its own scroll container, so window scrolling would not load more rows.
func (p *Page) ScrollBy(selector string, pixels int) error {
	script := fmt.Sprintf(`() => {
		const el = document.querySelector(%q);
		if (el) { el.scrollBy(0, %d); return true; }
		window.scrollBy(0, %d);
		return false;
	}`, selector, pixels, pixels)
	_, err := p.page.Evaluate(script)
	return err
}

func (p *Page) Text(selector string) (string, bool) {
	text, err := p.page.Locator(selector).First().TextContent(playwright.LocatorTextContentOptions{
		Timeout: playwright.Float(float64(readTimeout.Milliseconds())),
	})
	text = strings.TrimSpace(text)
	return text, err == nil && text != ""
}

func (p *Page) Attr(selector, name string) (string, bool) {
	val, err := p.page.Locator(selector).First().GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(float64(readTimeout.Milliseconds())),
	})
	return val, err == nil && val != ""
}

func (p *Page) All(selector string) []extract.Node {
	locators, err := p.page.Locator(selector).All()
	if err != nil {
		return nil
	}
	nodes := make([]extract.Node, 0, len(locators))
	for _, loc := range locators {
		nodes = append(nodes, &node{loc: loc})
	}
	return nodes
}

func (p *Page) SelfText() string {
	text, _ := p.page.Locator("body").TextContent(playwright.LocatorTextContentOptions{
		Timeout: playwright.Float(float64(readTimeout.Milliseconds())),
	})
	return strings.TrimSpace(text)
}

func (p *Page) SelfAttr(name string) (string, bool) {
	return "", false
}

// Anchors snapshots the current result anchors as openable handles.
func (p *Page) Anchors(selector string) ([]extract.Handle, error) {
	locators, err := p.page.Locator(selector).All()
	if err != nil {
		return nil, err
	}
	out := make([]extract.Handle, 0, len(locators))
	for _, loc := range locators {
		href, err := loc.GetAttribute("href", playwright.LocatorGetAttributeOptions{
			Timeout: playwright.Float(float64(readTimeout.Milliseconds())),
		})
		if err != nil || href == "" {
			continue
		}
		out = append(out, &anchor{page: p, loc: loc, href: href})
	}
	return out, nil
}

// node wraps one locator as a scoped DOM node.
type node struct {
	loc playwright.Locator
}

func (n *node) Text(selector string) (string, bool) {
	text, err := n.loc.Locator(selector).First().TextContent(playwright.LocatorTextContentOptions{
		Timeout: playwright.Float(float64(readTimeout.Milliseconds())),
	})
	text = strings.TrimSpace(text)
	return text, err == nil && text != ""
}

func (n *node) Attr(selector, name string) (string, bool) {
	val, err := n.loc.Locator(selector).First().GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(float64(readTimeout.Milliseconds())),
	})
	return val, err == nil && val != ""
}

func (n *node) All(selector string) []extract.Node {
	locators, err := n.loc.Locator(selector).All()
	if err != nil {
		return nil
	}
	nodes := make([]extract.Node, 0, len(locators))
	for _, loc := range locators {
		nodes = append(nodes, &node{loc: loc})
	}
	return nodes
}

func (n *node) SelfText() string {
	text, err := n.loc.TextContent(playwright.LocatorTextContentOptions{
		Timeout: playwright.Float(float64(readTimeout.Milliseconds())),
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func (n *node) SelfAttr(name string) (string, bool) {
	val, err := n.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(float64(readTimeout.Milliseconds())),
	})
	return val, err == nil && val != ""
}

// anchor is one collected result row. Open clicks the original locator and
// falls back to an href-targeted click when scrolling re-rendered the row.
type anchor struct {
	page *Page
	loc  playwright.Locator
	href string
}

func (a *anchor) Href() string { return a.href }

func (a *anchor) Open() error {
	err := a.loc.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(a.page.timeout.Milliseconds())),
	})
	if err == nil {
		return nil
	}
	retry := a.page.page.Locator(fmt.Sprintf(`a.hfpxzc[href=%q]`, a.href)).First()
	if rerr := retry.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(a.page.timeout.Milliseconds())),
	}); rerr == nil {
		return nil
	}
	return classifyNavError(err)
}
