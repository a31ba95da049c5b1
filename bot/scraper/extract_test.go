package scraper

import (
	"fmt"
	"strings"
	"testing"
)

func messageBlock(sender, content string) string {
	return fmt.Sprintf(`<div class="row border-bottom table-hover">
  <div class="col-xs-12 col-md-2">%s</div>
  <div class="col-xs-12 col-md-8">%s</div>
</div>`, sender, content)
}

func adBlock() string {
	return `<div class="row border-bottom table-hover">
  <ins class="adsbygoogle"></ins>
  <div class="col-xs-12 col-md-2">Sponsor</div>
  <div class="col-xs-12 col-md-8">Buy things</div>
</div>`
}

func page(blocks ...string) string {
	return "<html><body>" + strings.Join(blocks, "\n") + "</body></html>"
}

func TestExtractSkipsAdsAndStopsAtBudget(t *testing.T) {
	// Five blocks, the 2nd is an ad. The budget admits blocks 1, 3, 4;
	// block 5 is never examined.
	p := page(
		messageBlock("Apple", "Your Apple ID Code is: 111111"),
		adBlock(),
		messageBlock("Apple", "Your Apple ID Code is: 333333"),
		messageBlock("Apple", "Your Apple ID Code is: 444444"),
		messageBlock("Apple", "Your Apple ID Code is: 555555"),
	)

	got := NewExtractor("Apple").Extract(p)
	want := []string{
		"Your Apple ID Code is: 111111",
		"Your Apple ID Code is: 333333",
		"Your Apple ID Code is: 444444",
	}
	if len(got) != len(want) {
		t.Fatalf("extracted %d bodies (%v), expected %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("body[%d] = %q, expected %q", i, got[i], want[i])
		}
	}
}

func TestExtractFiltersSenderWithinBudget(t *testing.T) {
	p := page(
		messageBlock("Apple", "code one"),
		messageBlock("Other", "not for us"),
		messageBlock("Apple Support", "code two"),
		messageBlock("Apple", "beyond budget"),
	)

	got := NewExtractor("Apple").Extract(p)
	if len(got) != 2 {
		t.Fatalf("extracted %v, expected 2 bodies", got)
	}
	if got[0] != "code one" || got[1] != "code two" {
		t.Fatalf("bodies = %v", got)
	}
}

func TestExtractSenderMatchIsCaseSensitive(t *testing.T) {
	p := page(messageBlock("APPLE", "shouty sender"))
	if got := NewExtractor("Apple").Extract(p); len(got) != 0 {
		t.Fatalf("case-insensitive match slipped through: %v", got)
	}
}

func TestExtractCardLayout(t *testing.T) {
	p := page(`<div class="bg-messages">
  <a class="mobile_show message_head" href="#">Apple</a>
  <div class="col-xs-12 col-md-8">  card code 4821  </div>
</div>`)
	got := NewExtractor("Apple").Extract(p)
	if len(got) != 1 || got[0] != "card code 4821" {
		t.Fatalf("card layout extraction = %v", got)
	}
}

func TestExtractCountsFieldlessBlocksAgainstBudget(t *testing.T) {
	broken := `<div class="row border-bottom table-hover"><div class="col-xs-12 col-md-2">Apple</div></div>`
	p := page(broken, broken, broken, messageBlock("Apple", "late code"))
	if got := NewExtractor("Apple").Extract(p); len(got) != 0 {
		t.Fatalf("blocks without content should exhaust the budget, got %v", got)
	}
}

func TestExtractMalformedMarkup(t *testing.T) {
	for _, p := range []string{"", "<div", "<div class='row border-bottom table-hover'>", "plain text"} {
		if got := NewExtractor("Apple").Extract(p); len(got) != 0 {
			t.Fatalf("Extract(%q) = %v, expected none", p, got)
		}
	}
}
