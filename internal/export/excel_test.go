package export

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sellerhub/ranking-crawler/internal/ranking"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func testSnapshot(thumbnail string) ranking.RankingSnapshot {
	ts := time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC)
	return ranking.RankingSnapshot{
		ID:        7,
		Category:  "beauty",
		Timestamp: ts,
		ItemCount: 2,
		Items: []ranking.ItemSnapshot{
			{
				ID:            99,
				Rank:          1,
				Sold:          intPtr(12345),
				OriginalPrice: intPtr(2980),
				SalePrice:     intPtr(1980),
				DiscountRate:  floatPtr(33.6),
				Timestamp:     ts,
				Item: &ranking.Item{
					ID:         42,
					ItemID:     "g_1",
					Name:       "Vitamin C Serum",
					Link:       "https://www.qoo10.jp/g/1",
					BrandName:  "GlowLab",
					BrandLink:  "https://www.qoo10.jp/shop/glowlab",
					Thumbnail:  thumbnail,
					IsOfficial: true,
				},
			},
			{
				ID:        100,
				Rank:      2,
				Timestamp: ts,
				Item: &ranking.Item{
					ID:     43,
					ItemID: "g_2",
					Name:   "Plain Item",
					Link:   "https://www.qoo10.jp/g/2",
				},
			},
		},
	}
}

func TestFilename(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 14, 6, 5, 0, 0, time.UTC)
	require.Equal(t, "qoo10_ranking_beauty_2025-03-14_06-05.xlsx", Filename("beauty", now))

	// Non-UTC input normalizes to UTC in the name.
	jst := time.FixedZone("JST", 9*3600)
	require.Equal(t, "qoo10_ranking_beauty_2025-03-14_06-05.xlsx",
		Filename("beauty", time.Date(2025, 3, 14, 15, 5, 0, 0, jst)))
}

func TestWorkbookWritesRows(t *testing.T) {
	t.Parallel()

	e := New(time.Second, zap.NewNop())
	f, err := e.Workbook(context.Background(), testSnapshot(""))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Ranking", "A1")
	require.NoError(t, err)
	require.Equal(t, "Qoo10 beauty ranking report (as of 2025-03-14 06:00)", title)

	header, err := f.GetCellValue("Ranking", "A3")
	require.NoError(t, err)
	require.Equal(t, "Rank", header)

	// Numeric cells carry display formats, so compare raw stored values.
	for cell, want := range map[string]string{
		"A4": "1",
		"C4": "Vitamin C Serum",
		"D4": "GlowLab",
		"E4": "official",
		"F4": "12345",
		"G4": "2980",
		"H4": "1980",
		"A5": "2",
		"C5": "Plain Item",
		"E5": "unofficial",
		"F5": "0",
	} {
		got, err := f.GetCellValue("Ranking", cell, excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		require.Equal(t, want, got, "cell %s", cell)
	}

	// Discount is stored as a fraction for the percent format.
	rate, err := f.GetCellValue("Ranking", "I4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Equal(t, "0.336", rate)

	// Absent rate leaves the cell empty rather than writing zero.
	rate, err = f.GetCellValue("Ranking", "I5", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Empty(t, rate)

	links, target, err := f.GetCellHyperLink("Ranking", "C4")
	require.NoError(t, err)
	require.True(t, links)
	require.Equal(t, "https://www.qoo10.jp/g/1", target)
}

func TestWorkbookThumbnailFailureLeavesBlankCell(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := New(time.Second, zap.NewNop())
	f, err := e.Workbook(context.Background(), testSnapshot(srv.URL+"/missing.jpg"))
	require.NoError(t, err, "a dead thumbnail must not fail the export")
	defer f.Close()

	name, err := f.GetCellValue("Ranking", "C4")
	require.NoError(t, err)
	require.Equal(t, "Vitamin C Serum", name)

	pics, err := f.GetPictures("Ranking", "B4")
	require.NoError(t, err)
	require.Empty(t, pics)
}

func TestWorkbookEmbedsFetchedThumbnail(t *testing.T) {
	t.Parallel()

	// Minimal JPEG header; excelize only sniffs the declared extension.
	body := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	e := New(time.Second, zap.NewNop())
	f, err := e.Workbook(context.Background(), testSnapshot(srv.URL+"/thumb.jpg"))
	require.NoError(t, err)
	defer f.Close()

	pics, err := f.GetPictures("Ranking", "B4")
	require.NoError(t, err)
	require.Len(t, pics, 1)
}

func TestWorkbookUnresolvedItemIsAnError(t *testing.T) {
	t.Parallel()

	snap := testSnapshot("")
	snap.Items[0].Item = nil

	e := New(time.Second, zap.NewNop())
	_, err := e.Workbook(context.Background(), snap)
	require.Error(t, err)
}
