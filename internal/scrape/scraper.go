// Package scrape drives a headless Chrome session against a best-seller
// category page and turns its listing nodes into scraped records.
package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sellerhub/ranking-crawler/internal/ranking"
	"github.com/sellerhub/ranking-crawler/internal/scrape/extract"
)

// listingSelector matches the best-seller listing nodes in page order.
const listingSelector = "ol.col4 > li"

// Config controls the behavior of the headless scraper.
type Config struct {
	UserAgent         string
	MaxItems          int
	SettleDelay       time.Duration
	NavigationTimeout time.Duration
}

// Scraper renders category pages with chromedp and extracts listing records.
// One browser allocator is owned for the scraper's lifetime; each Run gets
// its own browser context that is always torn down when the run returns.
type Scraper struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// New creates a headless scraper backed by chromedp.
func New(cfg Config, logger *zap.Logger) (*Scraper, error) {
	if cfg.MaxItems <= 0 {
		return nil, fmt.Errorf("max items must be > 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 3 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Scraper{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context, terminating any browser process.
func (s *Scraper) Close() {
	s.allocCancel()
}

// Run navigates the category page, waits for client-side rendering to
// settle, and extracts up to MaxItems listing records in page order.
// Navigation failures and pages with no listing nodes are hard errors;
// a single node's extraction failure is logged and skipped.
func (s *Scraper) Run(ctx context.Context, category, url string) ([]ranking.ScrapedItem, error) {
	taskCtx, taskCancel := chromedp.NewContext(s.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, s.cfg.NavigationTimeout+s.cfg.SettleDelay)
	defer cancel()

	// Honor caller cancellation on top of the navigation budget.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-taskCtx.Done():
		}
	}()

	s.logger.Info("scrape started", zap.String("category", category), zap.String("url", url))

	html, err := s.render(taskCtx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: render %s: %v", ranking.ErrScrapeFailed, url, err)
	}

	items, err := s.parseListings(category, html)
	if err != nil {
		return nil, err
	}

	s.logger.Info("scrape finished",
		zap.String("category", category),
		zap.Int("items", len(items)),
	)
	return items, nil
}

func (s *Scraper) render(ctx context.Context, url string) (string, error) {
	var html string
	actions := []chromedp.Action{
		s.userAgentAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (s *Scraper) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if s.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

// parseListings walks the rendered DOM's listing nodes. Nodes without
// cross-border shipping eligibility are skipped entirely; eligible nodes
// that fail required-field extraction are logged and skipped without
// aborting the batch.
func (s *Scraper) parseListings(category, html string) ([]ranking.ScrapedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse document: %v", ranking.ErrScrapeFailed, err)
	}

	nodes := doc.Find(listingSelector)
	if nodes.Length() == 0 {
		return nil, fmt.Errorf("%w: no listing nodes matched %q", ranking.ErrScrapeFailed, listingSelector)
	}

	var items []ranking.ScrapedItem
	nodes.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= s.cfg.MaxItems {
			return false
		}
		if !extract.Overseas(extract.ShipInfo(sel)) {
			return true
		}
		item, err := extract.Listing(sel)
		if err != nil {
			s.logger.Warn("listing extraction failed",
				zap.String("category", category),
				zap.Int("node", i),
				zap.Error(err),
			)
			return true
		}
		items = append(items, item)
		return true
	})

	return items, nil
}
