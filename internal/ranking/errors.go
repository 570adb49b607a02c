package ranking

import "errors"

// Sentinel errors surfaced at the service boundary. Callers distinguish
// "failed to run" (ErrScrapeFailed), "ran fine but empty for today"
// (ErrNoDataToday), and plain absence (ErrNotFound).
var (
	// ErrUnknownCategory rejects a category with no configured source URL
	// before any browser work starts.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrNotFound signals an absent snapshot id.
	ErrNotFound = errors.New("ranking snapshot not found")

	// ErrScrapeFailed covers page-load and navigation failures.
	ErrScrapeFailed = errors.New("scrape failed")

	// ErrNoDataToday means a fresh scrape was attempted and still yielded
	// no snapshot for the current UTC day. Escalate, do not retry blindly.
	ErrNoDataToday = errors.New("no ranking data available for today")
)
