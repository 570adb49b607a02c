package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const fullListing = `
<ol class="col4">
  <li id="g_1088366333">
    <span class="rank">3</span>
    <div class="thmb"><img gd_src="https://img.example.jp/g/1088366333_l.jpg" src="https://img.example.jp/g/1088366333_s.jpg"/></div>
    <a class="tt" href="https://www.qoo10.jp/g/1088366333">Premium
Vitamin C Serum</a>
    <a class="txt_brand" title="GlowLab" href="https://www.qoo10.jp/shop/glowlab"><span class="official">official</span></a>
    <div class="ship_area"><dfn>海外配送</dfn></div>
    <span class="sold">12,345 個販売</span>
    <del>2,980円</del>
    <strong>1,980円</strong>
    <span class="sale_coupon">1,780円クーポン適用時</span>
    <span class="review_total_count">(4,321)</span>
  </li>
</ol>`

const sparseListing = `
<ol class="col4">
  <li id="g_555">
    <span class="rank">17</span>
    <a class="tt" href="https://www.qoo10.jp/g/555">Plain Item</a>
    <div class="ship_area"><dfn>Oversea Shipping</dfn></div>
  </li>
</ol>`

func listingNode(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	sel := doc.Find("ol.col4 > li").First()
	if sel.Length() == 0 {
		t.Fatal("fixture has no listing node")
	}
	return sel
}

func TestListingExtractsAllFields(t *testing.T) {
	t.Parallel()

	item, err := Listing(listingNode(t, fullListing))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.ItemID != "g_1088366333" {
		t.Fatalf("item id = %q", item.ItemID)
	}
	if item.Name != "Premium Vitamin C Serum" {
		t.Fatalf("name = %q, newline not collapsed", item.Name)
	}
	if item.Rank != 3 {
		t.Fatalf("rank = %d", item.Rank)
	}
	if item.ShipInfo != "海外配送" {
		t.Fatalf("ship info = %q", item.ShipInfo)
	}
	if item.Thumbnail != "https://img.example.jp/g/1088366333_l.jpg" {
		t.Fatalf("thumbnail should prefer gd_src, got %q", item.Thumbnail)
	}
	if item.BrandName != "GlowLab" || item.BrandLink != "https://www.qoo10.jp/shop/glowlab" {
		t.Fatalf("brand = %q / %q", item.BrandName, item.BrandLink)
	}
	if !item.IsOfficial {
		t.Fatal("expected official brand")
	}

	if item.Sold == nil || *item.Sold != 12345 {
		t.Fatalf("sold = %v", item.Sold)
	}
	if item.OriginalPrice == nil || *item.OriginalPrice != 2980 {
		t.Fatalf("original price = %v", item.OriginalPrice)
	}
	if item.SalePrice == nil || *item.SalePrice != 1980 {
		t.Fatalf("sale price = %v", item.SalePrice)
	}
	if item.MegaPrice == nil || *item.MegaPrice != 1780 {
		t.Fatalf("mega price = %v", item.MegaPrice)
	}
	if item.ReviewCount == nil || *item.ReviewCount != 4321 {
		t.Fatalf("review count = %v", item.ReviewCount)
	}

	if item.DiscountRate == nil || *item.DiscountRate != 33.6 {
		t.Fatalf("discount rate = %v", item.DiscountRate)
	}
	if item.MegaDiscountRate == nil || *item.MegaDiscountRate != 40.3 {
		t.Fatalf("mega discount rate = %v", item.MegaDiscountRate)
	}
}

func TestListingOptionalFieldsDegradeToAbsent(t *testing.T) {
	t.Parallel()

	item, err := Listing(listingNode(t, sparseListing))
	if err != nil {
		t.Fatalf("sparse listing must still be valid: %v", err)
	}

	if item.BrandName != "" || item.BrandLink != "" || item.IsOfficial {
		t.Fatalf("expected absent brand, got %+v", item)
	}
	if item.Thumbnail != "" {
		t.Fatalf("expected absent thumbnail, got %q", item.Thumbnail)
	}
	for name, v := range map[string]*int{
		"sold":     item.Sold,
		"original": item.OriginalPrice,
		"sale":     item.SalePrice,
		"mega":     item.MegaPrice,
		"reviews":  item.ReviewCount,
	} {
		if v != nil {
			t.Fatalf("expected %s to be absent, got %d", name, *v)
		}
	}
	if item.DiscountRate != nil || item.MegaDiscountRate != nil {
		t.Fatal("derived rates must be absent without prices")
	}
}

func TestListingRequiredFieldFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
	}{
		{
			name: "missing id",
			html: `<ol class="col4"><li><span class="rank">1</span><a class="tt" href="https://x">N</a><div class="ship_area"><dfn>海外配送</dfn></div></li></ol>`,
		},
		{
			name: "non numeric rank",
			html: `<ol class="col4"><li id="g_1"><span class="rank">NEW</span><a class="tt" href="https://x">N</a><div class="ship_area"><dfn>海外配送</dfn></div></li></ol>`,
		},
		{
			name: "missing name link",
			html: `<ol class="col4"><li id="g_1"><span class="rank">1</span><div class="ship_area"><dfn>海外配送</dfn></div></li></ol>`,
		},
		{
			name: "missing ship info",
			html: `<ol class="col4"><li id="g_1"><span class="rank">1</span><a class="tt" href="https://x">N</a></li></ol>`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Listing(listingNode(t, tt.html)); err == nil {
				t.Fatal("expected required-field error")
			}
		})
	}
}

func TestOverseas(t *testing.T) {
	t.Parallel()

	for text, want := range map[string]bool{
		"海外配送":                 true,
		"Oversea Shipping":     true,
		"Oversea Shipping可能商品": true,
		"国内配送":                 false,
		"":                     false,
	} {
		if got := Overseas(text); got != want {
			t.Fatalf("Overseas(%q) = %v, want %v", text, got, want)
		}
	}
}
