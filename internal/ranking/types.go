package ranking

import "time"

// ScrapedItem is one listing as read from the best-seller page. Optional
// fields that failed to parse are nil (numerics) or empty (strings); the
// record is still valid as long as the required fields parsed.
type ScrapedItem struct {
	ItemID           string   `json:"item_id"`
	Name             string   `json:"item_name"`
	Link             string   `json:"link"`
	Rank             int      `json:"rank"`
	ShipInfo         string   `json:"ship_info"`
	BrandName        string   `json:"brand_name,omitempty"`
	BrandLink        string   `json:"brand_link,omitempty"`
	Thumbnail        string   `json:"thumbnail,omitempty"`
	IsOfficial       bool     `json:"is_official"`
	Sold             *int     `json:"sold,omitempty"`
	OriginalPrice    *int     `json:"original_price,omitempty"`
	SalePrice        *int     `json:"sale_price,omitempty"`
	DiscountRate     *float64 `json:"discount_rate,omitempty"`
	MegaPrice        *int     `json:"mega_price,omitempty"`
	MegaDiscountRate *float64 `json:"mega_discount_rate,omitempty"`
	ReviewCount      *int     `json:"review_count,omitempty"`
}

// Item is the canonical, marketplace-stable catalog entry. Identity is the
// external ItemID; mutable display fields are overwritten in place on every
// scrape that re-observes the item. Items are never deleted by the pipeline.
type Item struct {
	ID         int64     `json:"id"`
	ItemID     string    `json:"item_id"`
	Name       string    `json:"item_name"`
	Link       string    `json:"link"`
	BrandName  string    `json:"brand_name,omitempty"`
	BrandLink  string    `json:"brand_link,omitempty"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	ShipInfo   string    `json:"ship_info,omitempty"`
	IsOfficial bool      `json:"is_official"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ItemSnapshot is a point-in-time observation of one Item within one scrape
// run. Metric fields reflect only the run that created the snapshot and are
// never edited afterwards.
type ItemSnapshot struct {
	ID               int64    `json:"id"`
	ItemRef          int64    `json:"-"`
	RankingRef       int64    `json:"-"`
	Position         int      `json:"-"`
	Category         string   `json:"category"`
	Rank             int      `json:"rank"`
	Sold             *int     `json:"sold,omitempty"`
	OriginalPrice    *int     `json:"original_price,omitempty"`
	SalePrice        *int     `json:"sale_price,omitempty"`
	DiscountRate     *float64 `json:"discount_rate,omitempty"`
	MegaPrice        *int     `json:"mega_price,omitempty"`
	MegaDiscountRate *float64 `json:"mega_discount_rate,omitempty"`
	ReviewCount      *int     `json:"review_count,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Item is the resolved catalog entry, populated by the bulk join at
	// read time. Nil on freshly inserted snapshots.
	Item *Item `json:"item,omitempty"`
}

// RankingSnapshot is one scrape run for one category. Items are kept in
// extraction order from the source page, which is page-rank order but not
// guaranteed to be rank-sorted.
type RankingSnapshot struct {
	ID        int64     `json:"id"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	ItemCount int       `json:"counts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Items is populated only when links are resolved (get/today reads).
	Items []ItemSnapshot `json:"items,omitempty"`
}

// Sort fields accepted by the list endpoint.
const (
	SortByCreated = "created_at"
	SortByUpdated = "updated_at"
)

// ListOptions narrows and orders a snapshot listing.
type ListOptions struct {
	Category  string
	Skip      int
	Limit     int
	SortBy    string
	Ascending bool
}
