// Package ranking defines the core types shared across the scraping,
// reconciliation, and query subsystems: the canonical Item catalog entry,
// the per-run ItemSnapshot/RankingSnapshot observation records, and the
// raw ScrapedItem produced by the page scraper.
package ranking
