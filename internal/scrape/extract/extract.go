// Package extract parses typed fields out of a single best-seller listing
// node. Required fields fail the node; optional fields resolve to absent on
// any parse problem.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sellerhub/ranking-crawler/internal/ranking"
)

// Markers on the ship-info text that make a listing eligible for the
// cross-border pipeline.
var overseasMarkers = []string{"Oversea Shipping", "海外配送"}

// ShipInfo reads the shipping eligibility text from a listing node.
func ShipInfo(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Find(".ship_area dfn").First().Text())
}

// Overseas reports whether the ship-info text marks the listing as
// cross-border eligible.
func Overseas(shipInfo string) bool {
	for _, marker := range overseasMarkers {
		if strings.Contains(shipInfo, marker) {
			return true
		}
	}
	return false
}

// Listing extracts one scraped record from a listing node. An error is
// returned only when a required field (id, name, link, rank, ship-info) is
// missing or malformed; optional fields degrade to absent.
func Listing(sel *goquery.Selection) (ranking.ScrapedItem, error) {
	itemID, ok := sel.Attr("id")
	if !ok || itemID == "" {
		return ranking.ScrapedItem{}, fmt.Errorf("listing node has no id attribute")
	}

	shipInfo := ShipInfo(sel)
	if shipInfo == "" {
		return ranking.ScrapedItem{}, fmt.Errorf("listing %s has no ship info", itemID)
	}

	rankText := strings.TrimSpace(sel.Find(".rank").First().Text())
	rank, err := strconv.Atoi(rankText)
	if err != nil {
		return ranking.ScrapedItem{}, fmt.Errorf("listing %s rank %q: %w", itemID, rankText, err)
	}

	nameSel := sel.Find(".tt").First()
	name := strings.TrimSpace(strings.ReplaceAll(nameSel.Text(), "\n", " "))
	link, _ := nameSel.Attr("href")
	if name == "" || link == "" {
		return ranking.ScrapedItem{}, fmt.Errorf("listing %s has no name or link", itemID)
	}

	item := ranking.ScrapedItem{
		ItemID:    itemID,
		Name:      name,
		Link:      link,
		Rank:      rank,
		ShipInfo:  shipInfo,
		Thumbnail: thumbnail(sel),
	}

	if brand := sel.Find(".txt_brand").First(); brand.Length() > 0 {
		item.BrandName, _ = brand.Attr("title")
		item.BrandLink, _ = brand.Attr("href")
		item.IsOfficial = brand.Find(".official").Length() > 0
	}

	item.Sold = intField(sel, ".sold", " 個販売")
	item.OriginalPrice = intField(sel, "del", "円")
	item.SalePrice = intField(sel, "strong", "円")
	item.MegaPrice = megaPrice(sel)
	item.ReviewCount = reviewCount(sel)

	item.DiscountRate = ranking.DiscountRate(item.OriginalPrice, item.SalePrice)
	item.MegaDiscountRate = ranking.DiscountRate(item.OriginalPrice, item.MegaPrice)

	return item, nil
}

func thumbnail(sel *goquery.Selection) string {
	img := sel.Find(".thmb img").First()
	if src, ok := img.Attr("gd_src"); ok && src != "" {
		return src
	}
	src, _ := img.Attr("src")
	return src
}

// intField parses a numeric field, stripping the given unit suffixes and
// thousands separators. Any failure resolves to absent.
func intField(sel *goquery.Selection, selector string, suffixes ...string) *int {
	return parseCount(sel.Find(selector).First().Text(), suffixes...)
}

func megaPrice(sel *goquery.Selection) *int {
	text := sel.Find(".sale_coupon").First().Text()
	// The coupon badge reads like "1,280円クーポン適用時"; the price is the
	// part before the first currency mark.
	amount, _, found := strings.Cut(text, "円")
	if !found {
		return nil
	}
	return parseCount(amount)
}

func reviewCount(sel *goquery.Selection) *int {
	text := strings.TrimSpace(sel.Find(".review_total_count").First().Text())
	return parseCount(strings.Trim(text, "()"))
}

func parseCount(text string, suffixes ...string) *int {
	text = strings.TrimSpace(text)
	for _, suffix := range suffixes {
		text = strings.ReplaceAll(text, suffix, "")
	}
	text = strings.ReplaceAll(text, ",", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil
	}
	return &n
}
