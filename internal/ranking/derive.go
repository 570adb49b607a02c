package ranking

import (
	"math"
	"time"
)

// Clock abstracts time.Now so day windows and retention horizons are
// testable.
type Clock interface {
	Now() time.Time
}

// DiscountRate derives the discount percentage from an original and a
// discounted price, rounded to one decimal place. It returns nil when either
// price is absent or the original price is not positive; the rate is always
// computed, never scraped.
func DiscountRate(original, discounted *int) *float64 {
	if original == nil || discounted == nil || *original <= 0 {
		return nil
	}
	rate := math.Round((1-float64(*discounted)/float64(*original))*1000) / 10
	return &rate
}

// DayWindow returns the UTC [00:00, next 00:00) bounds containing t.
func DayWindow(t time.Time) (start, end time.Time) {
	start = t.UTC().Truncate(24 * time.Hour)
	return start, start.Add(24 * time.Hour)
}
