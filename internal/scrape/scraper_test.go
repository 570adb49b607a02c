package scrape

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/sellerhub/ranking-crawler/internal/ranking"
)

func testScraper(maxItems int) *Scraper {
	return &Scraper{
		cfg:    Config{MaxItems: maxItems},
		logger: zap.NewNop(),
	}
}

func listingHTML(id string, rank int, shipInfo string) string {
	return fmt.Sprintf(`<li id=%q>
		<span class="rank">%d</span>
		<a class="tt" href="https://www.qoo10.jp/g/%s">Item %s</a>
		<div class="ship_area"><dfn>%s</dfn></div>
	</li>`, id, rank, id, id, shipInfo)
}

func pageHTML(listings ...string) string {
	return "<html><body><ol class=\"col4\">" + strings.Join(listings, "\n") + "</ol></body></html>"
}

func TestParseListingsFiltersDomesticShipping(t *testing.T) {
	t.Parallel()

	var listings []string
	for i := 1; i <= 8; i++ {
		ship := "海外配送"
		if i%3 == 0 {
			ship = "国内配送"
		}
		listings = append(listings, listingHTML(fmt.Sprintf("g_%d", i), i, ship))
	}

	items, err := testScraper(100).parseListings("beauty", pageHTML(listings...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 6 {
		t.Fatalf("expected 6 cross-border items out of 8, got %d", len(items))
	}
	for _, item := range items {
		if item.Rank%3 == 0 {
			t.Fatalf("domestic item %s leaked through the filter", item.ItemID)
		}
	}
}

func TestParseListingsCapsAtMaxItems(t *testing.T) {
	t.Parallel()

	var listings []string
	for i := 1; i <= 120; i++ {
		listings = append(listings, listingHTML(fmt.Sprintf("g_%d", i), i, "Oversea Shipping"))
	}

	items, err := testScraper(100).parseListings("digital", pageHTML(listings...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 100 {
		t.Fatalf("expected cap at 100 items, got %d", len(items))
	}
	if items[99].ItemID != "g_100" {
		t.Fatalf("expected page order to be preserved, last item %s", items[99].ItemID)
	}
}

func TestParseListingsNoNodesIsHardFailure(t *testing.T) {
	t.Parallel()

	_, err := testScraper(100).parseListings("beauty", "<html><body><p>maintenance</p></body></html>")
	if !errors.Is(err, ranking.ErrScrapeFailed) {
		t.Fatalf("expected ErrScrapeFailed, got %v", err)
	}
}

func TestParseListingsSkipsMalformedNode(t *testing.T) {
	t.Parallel()

	broken := `<li id="g_2">
		<span class="rank">NEW</span>
		<a class="tt" href="https://www.qoo10.jp/g/g_2">Broken</a>
		<div class="ship_area"><dfn>海外配送</dfn></div>
	</li>`
	page := pageHTML(
		listingHTML("g_1", 1, "海外配送"),
		broken,
		listingHTML("g_3", 3, "海外配送"),
	)

	items, err := testScraper(100).parseListings("beauty", page)
	if err != nil {
		t.Fatalf("one bad node must not abort the batch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ItemID != "g_1" || items[1].ItemID != "g_3" {
		t.Fatalf("unexpected survivors: %s, %s", items[0].ItemID, items[1].ItemID)
	}
}

func TestNewRejectsZeroMaxItems(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{MaxItems: 0}, zap.NewNop()); err == nil {
		t.Fatal("expected error for zero max items")
	}
}
