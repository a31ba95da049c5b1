package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Structural markers of the inbox page. Messages appear either as table rows
// or as message cards depending on which layout the site serves.
const (
	rowMarker     = "row border-bottom table-hover"
	messageMarker = "bg-messages"
	adMarker      = "adsbygoogle"

	senderRowMarker  = "col-xs-12 col-md-2"
	senderCardMarker = "mobile_show message_head"
	contentMarker    = "col-xs-12 col-md-8"

	// maxExaminedBlocks caps how many non-ad blocks are inspected per page,
	// regardless of how many match the expected sender.
	maxExaminedBlocks = 3
)

// DefaultAuthority is the sender substring identifying Apple's gateway.
const DefaultAuthority = "Apple"

// Extractor parses a raw inbox page into message bodies attributed to the
// expected authority. Malformed markup never fails; absent fields simply
// contribute nothing.
type Extractor struct {
	authority string
}

// NewExtractor builds an extractor filtering senders by the given substring
// (case-sensitive). Empty falls back to DefaultAuthority.
func NewExtractor(authority string) *Extractor {
	if authority == "" {
		authority = DefaultAuthority
	}
	return &Extractor{authority: authority}
}

// Extract returns 0..3 trimmed message bodies in document order.
func (e *Extractor) Extract(pageText string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageText))
	if err != nil {
		return nil
	}

	var bodies []string
	examined := 0

	doc.Find("div").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		class, _ := block.Attr("class")
		if !strings.Contains(class, rowMarker) && !strings.Contains(class, messageMarker) {
			return true
		}
		if examined >= maxExaminedBlocks {
			return false
		}
		if html, err := goquery.OuterHtml(block); err == nil && strings.Contains(html, adMarker) {
			// Advertisement slots do not count against the budget.
			return true
		}
		examined++

		sender := findByClassSubstring(block, "div,a", senderRowMarker, senderCardMarker)
		content := findByClassSubstring(block, "div", contentMarker)
		if sender == nil || content == nil {
			return true
		}

		if strings.Contains(strings.TrimSpace(sender.Text()), e.authority) {
			bodies = append(bodies, strings.TrimSpace(content.Text()))
		}
		return true
	})

	return bodies
}

// findByClassSubstring returns the first descendant matching the selector
// whose class attribute contains any of the given substrings.
func findByClassSubstring(s *goquery.Selection, selector string, substrings ...string) *goquery.Selection {
	match := s.Find(selector).FilterFunction(func(_ int, node *goquery.Selection) bool {
		class, ok := node.Attr("class")
		if !ok {
			return false
		}
		for _, sub := range substrings {
			if strings.Contains(class, sub) {
				return true
			}
		}
		return false
	})
	if match.Length() == 0 {
		return nil
	}
	return match.First()
}
