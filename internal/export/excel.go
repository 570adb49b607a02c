// Package export renders a ranking snapshot into a formatted spreadsheet.
package export

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sellerhub/ranking-crawler/internal/ranking"
)

const (
	sheetName = "Ranking"

	// ContentType identifies the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{
	"Rank", "Thumbnail", "Item Name", "Brand", "Type", "Sold",
	"Original Price", "Sale Price", "Discount", "Mega Price", "Mega Discount", "Reviews",
}

// Exporter builds xlsx workbooks from resolved ranking snapshots.
// Thumbnail fetches run through a bounded-timeout HTTP client; any fetch
// problem leaves the image cell blank and never fails the export.
type Exporter struct {
	client *resty.Client
	logger *zap.Logger
}

// New constructs an Exporter whose thumbnail fetches time out after
// thumbnailTimeout.
func New(thumbnailTimeout time.Duration, logger *zap.Logger) *Exporter {
	client := resty.New().
		SetTimeout(thumbnailTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(3))
	return &Exporter{
		client: client,
		logger: logger,
	}
}

// Filename encodes the category and generation timestamp.
func Filename(category string, now time.Time) string {
	return fmt.Sprintf("qoo10_ranking_%s_%s.xlsx", category, now.UTC().Format("2006-01-02_15-04"))
}

// Workbook renders the snapshot into a workbook, one row per item in stored
// order.
func (e *Exporter) Workbook(ctx context.Context, snap ranking.RankingSnapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	if err := e.layout(f, styles, snap); err != nil {
		return nil, err
	}

	for idx, item := range snap.Items {
		if err := e.writeRow(ctx, f, styles, idx, item); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (e *Exporter) layout(f *excelize.File, styles styleSet, snap ranking.RankingSnapshot) error {
	title := fmt.Sprintf("Qoo10 %s ranking report (as of %s)",
		snap.Category, snap.Timestamp.UTC().Format("2006-01-02 15:04"))
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", styles.title); err != nil {
		return fmt.Errorf("style title: %w", err)
	}

	if err := f.SetColWidth(sheetName, "B", "B", 13.57); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "C", "C", 45); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "D", "D", 25); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "E", "L", 15); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 3)
		if err != nil {
			return fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, styles.header); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}
	return nil
}

//nolint:gocognit // One straight pass over the twelve columns of a row.
func (e *Exporter) writeRow(ctx context.Context, f *excelize.File, styles styleSet, idx int, snap ranking.ItemSnapshot) error {
	row := idx + 4
	if err := f.SetRowHeight(sheetName, row, 73); err != nil {
		return fmt.Errorf("set row height: %w", err)
	}

	set := func(col int, value any, style int) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if value != nil {
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
		if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
			return fmt.Errorf("style cell %s: %w", cell, err)
		}
		return nil
	}

	// The source report selects an overall rank for the "total" sentinel
	// category and a category rank otherwise. The page exposes a single
	// rank per listing, which is exactly that value in either case, so the
	// branch collapses to the stored observation.
	if err := set(1, snap.Rank, styles.rank); err != nil {
		return err
	}

	if err := set(2, nil, styles.text); err != nil {
		return err
	}
	e.embedThumbnail(ctx, f, row, snap)

	item := snap.Item
	if item == nil {
		return fmt.Errorf("item snapshot %d has no resolved item", snap.ID)
	}

	if err := e.writeLink(f, styles.link, 3, row, item.Name, item.Link); err != nil {
		return err
	}
	if item.BrandLink != "" {
		if err := e.writeLink(f, styles.link, 4, row, item.BrandName, item.BrandLink); err != nil {
			return err
		}
	} else if err := set(4, item.BrandName, styles.leftText); err != nil {
		return err
	}

	tag, tagStyle := "unofficial", styles.unofficial
	if item.IsOfficial {
		tag, tagStyle = "official", styles.official
	}
	if err := set(5, tag, tagStyle); err != nil {
		return err
	}

	if err := set(6, intOrZero(snap.Sold), styles.number); err != nil {
		return err
	}
	if err := set(7, intOrZero(snap.OriginalPrice), styles.currency); err != nil {
		return err
	}
	if err := set(8, intOrZero(snap.SalePrice), styles.currency); err != nil {
		return err
	}
	if err := e.writePercent(f, styles, 9, row, snap.DiscountRate); err != nil {
		return err
	}
	if err := set(10, intOrZero(snap.MegaPrice), styles.currency); err != nil {
		return err
	}
	if err := e.writePercent(f, styles, 11, row, snap.MegaDiscountRate); err != nil {
		return err
	}
	return set(12, intOrZero(snap.ReviewCount), styles.number)
}

func (e *Exporter) writeLink(f *excelize.File, style, col, row int, text, url string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(sheetName, cell, text); err != nil {
		return fmt.Errorf("write link text %s: %w", cell, err)
	}
	if err := f.SetCellHyperLink(sheetName, cell, url, "External"); err != nil {
		return fmt.Errorf("write hyperlink %s: %w", cell, err)
	}
	if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
		return fmt.Errorf("style link %s: %w", cell, err)
	}
	return nil
}

func (e *Exporter) writePercent(f *excelize.File, styles styleSet, col, row int, rate *float64) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if rate == nil {
		if err := f.SetCellStyle(sheetName, cell, cell, styles.text); err != nil {
			return fmt.Errorf("style percent %s: %w", cell, err)
		}
		return nil
	}
	if err := f.SetCellValue(sheetName, cell, *rate/100); err != nil {
		return fmt.Errorf("write percent %s: %w", cell, err)
	}
	if err := f.SetCellStyle(sheetName, cell, cell, styles.percent); err != nil {
		return fmt.Errorf("style percent %s: %w", cell, err)
	}
	return nil
}

// embedThumbnail fetches the item's thumbnail and embeds it in the image
// cell. Every failure path downgrades to a blank cell.
func (e *Exporter) embedThumbnail(ctx context.Context, f *excelize.File, row int, snap ranking.ItemSnapshot) {
	if snap.Item == nil || snap.Item.Thumbnail == "" {
		return
	}
	resp, err := e.client.R().SetContext(ctx).Get(snap.Item.Thumbnail)
	if err != nil {
		e.logger.Debug("thumbnail fetch failed",
			zap.String("url", snap.Item.Thumbnail),
			zap.Error(err),
		)
		return
	}
	if resp.StatusCode() != http.StatusOK || len(resp.Body()) == 0 {
		e.logger.Debug("thumbnail fetch rejected",
			zap.String("url", snap.Item.Thumbnail),
			zap.Int("status", resp.StatusCode()),
		)
		return
	}

	cell, err := excelize.CoordinatesToCellName(2, row)
	if err != nil {
		return
	}
	err = f.AddPictureFromBytes(sheetName, cell, &excelize.Picture{
		Extension: ".jpg",
		File:      resp.Body(),
		Format:    &excelize.GraphicOptions{AutoFit: true},
	})
	if err != nil {
		e.logger.Debug("thumbnail embed failed",
			zap.String("url", snap.Item.Thumbnail),
			zap.Error(err),
		)
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
