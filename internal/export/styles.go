package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// styleSet holds the workbook style ids shared by all rows.
type styleSet struct {
	title      int
	header     int
	rank       int
	text       int
	leftText   int
	link       int
	number     int
	currency   int
	percent    int
	official   int
	unofficial int
}

var thinBorder = []excelize.Border{
	{Type: "left", Style: 1, Color: "000000"},
	{Type: "right", Style: 1, Color: "000000"},
	{Type: "top", Style: 1, Color: "000000"},
	{Type: "bottom", Style: 1, Color: "000000"},
}

func newStyles(f *excelize.File) (styleSet, error) {
	currencyFmt := `#,##0"円"`
	countFmt := "#,##0"
	percentFmt := "0.0%"

	var (
		s   styleSet
		err error
	)

	if s.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	}); err != nil {
		return styleSet{}, fmt.Errorf("title style: %w", err)
	}

	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: center(),
		Border:    thinBorder,
		Fill:      fill("D9E1F2"),
	}); err != nil {
		return styleSet{}, fmt.Errorf("header style: %w", err)
	}

	if s.rank, err = f.NewStyle(&excelize.Style{
		CustomNumFmt: &countFmt,
		Alignment:    center(),
		Border:       thinBorder,
	}); err != nil {
		return styleSet{}, fmt.Errorf("rank style: %w", err)
	}

	if s.text, err = f.NewStyle(&excelize.Style{
		Alignment: center(),
		Border:    thinBorder,
	}); err != nil {
		return styleSet{}, fmt.Errorf("text style: %w", err)
	}

	if s.leftText, err = f.NewStyle(&excelize.Style{
		Alignment: left(),
		Border:    thinBorder,
	}); err != nil {
		return styleSet{}, fmt.Errorf("left text style: %w", err)
	}

	if s.link, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Color: "0000FF", Underline: "single"},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true},
		Border:    thinBorder,
	}); err != nil {
		return styleSet{}, fmt.Errorf("link style: %w", err)
	}

	if s.number, err = f.NewStyle(&excelize.Style{
		CustomNumFmt: &countFmt,
		Alignment:    right(),
		Border:       thinBorder,
	}); err != nil {
		return styleSet{}, fmt.Errorf("number style: %w", err)
	}

	if s.currency, err = f.NewStyle(&excelize.Style{
		CustomNumFmt: &currencyFmt,
		Alignment:    right(),
		Border:       thinBorder,
	}); err != nil {
		return styleSet{}, fmt.Errorf("currency style: %w", err)
	}

	if s.percent, err = f.NewStyle(&excelize.Style{
		CustomNumFmt: &percentFmt,
		Alignment:    center(),
		Border:       thinBorder,
	}); err != nil {
		return styleSet{}, fmt.Errorf("percent style: %w", err)
	}

	if s.official, err = f.NewStyle(&excelize.Style{
		Alignment: center(),
		Border:    thinBorder,
		Fill:      fill("C6EFCE"),
	}); err != nil {
		return styleSet{}, fmt.Errorf("official style: %w", err)
	}

	if s.unofficial, err = f.NewStyle(&excelize.Style{
		Alignment: center(),
		Border:    thinBorder,
		Fill:      fill("F8CBAD"),
	}); err != nil {
		return styleSet{}, fmt.Errorf("unofficial style: %w", err)
	}

	return s, nil
}

func center() *excelize.Alignment {
	return &excelize.Alignment{Horizontal: "center", Vertical: "center"}
}

func left() *excelize.Alignment {
	return &excelize.Alignment{Horizontal: "left", Vertical: "center"}
}

func right() *excelize.Alignment {
	return &excelize.Alignment{Horizontal: "right", Vertical: "center"}
}

func fill(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
}
