package source

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// highlightTags are the elements portals wrap around matched search terms.
var highlightTags = map[string]bool{
	"font":   true,
	"em":     true,
	"span":   true,
	"b":      true,
	"strong": true,
	"i":      true,
	"mark":   true,
}

// highlightAttrs are the only attributes highlight markup carries.
var highlightAttrs = map[string]bool{
	"color": true,
	"class": true,
	"style": true,
}

// cleanTitle strips search-highlight markup (e.g. <font color=red>培训</font>)
// and collapses whitespace. A title carrying any other markup, such as a bare
// "<" the parser would read as a tag, keeps all of its text.
func cleanTitle(raw string) string {
	text := raw
	if strings.ContainsAny(raw, "<&") {
		if stripped, ok := stripHighlight(raw); ok {
			text = stripped
		} else {
			text = html.UnescapeString(raw)
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

func stripHighlight(raw string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + raw + "</body>"))
	if err != nil {
		return "", false
	}
	body := doc.Find("body")
	if body.Length() == 0 || !onlyHighlight(body.Get(0)) {
		return "", false
	}
	return body.Text(), true
}

// onlyHighlight reports whether n holds nothing but text and highlight elements.
func onlyHighlight(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
		case html.ElementNode:
			if !highlightTags[c.Data] || !plainAttrs(c) || !onlyHighlight(c) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// plainAttrs rejects attributes that are really swallowed title text.
func plainAttrs(n *html.Node) bool {
	for _, a := range n.Attr {
		if !highlightAttrs[a.Key] || strings.ContainsAny(a.Val, "<>") {
			return false
		}
	}
	return true
}
