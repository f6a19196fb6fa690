package markdown

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// boilerplate class/id fragments that never carry content worth keeping in
// a homepage snapshot.
var noiseKeywords = []string{
	"cookie", "consent", "banner", "navbar", "menu-",
	"modal", "popup", "dialog", "sidebar", "advert",
}

// Snapshot converts a homepage's HTML into readable markdown, stripping
// navigation and boilerplate first. Returns "" when nothing useful remains.
func Snapshot(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	content := doc.Find("main, [role=\"main\"], #content").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	content.Find("script, style, noscript, nav, header, footer, aside, form, iframe, svg").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})
	content.Find("[class], [id]").Each(func(_ int, sel *goquery.Selection) {
		classVal, _ := sel.Attr("class")
		idVal, _ := sel.Attr("id")
		lower := strings.ToLower(classVal + " " + idVal)
		for _, kw := range noiseKeywords {
			if strings.Contains(lower, kw) {
				sel.Remove()
				break
			}
		}
	})

	body, err := content.Html()
	if err != nil {
		return ""
	}

	conv := md.NewConverter("", true, nil)
	out, err := conv.ConvertString(body)
	if err != nil {
		return ""
	}
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
