package xslsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/utils"
	"github.com/xuri/excelize/v2"
)

const (
	ConstituentsSheet = "Constituents"
	defaultSheet      = "Sheet1"
	maxSheetName      = 31
)

// historyHeader is a date column followed by the price table columns.
var historyHeader = func() []any {
	header := make([]any, 0, len(model.PriceTableColumns)+1)
	header = append(header, "date")
	for _, name := range model.PriceTableColumns {
		header = append(header, name)
	}
	return header
}()

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

// Generate builds a workbook with the constituents sheet followed by one sheet per symbol, sorted by symbol.
func (g *XSLSXGenerator) Generate(ctx context.Context, tickers model.Table, history map[string]model.PriceTable) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	if tickers.Width() == 0 {
		return nil, "", errors.New("empty constituents table")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("symbols", len(history)))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return nil, "", err
	}

	if err := f.SetSheetName(defaultSheet, ConstituentsSheet); err != nil {
		return nil, "", err
	}

	if err := g.fillConstituentsSheet(f, tickers, headerStyle); err != nil {
		slog.Error("got error while filling constituents sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	symbols := make([]string, 0, len(history))
	for symbol := range history {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		if err := g.fillHistorySheet(f, symbol, history[symbol], headerStyle); err != nil {
			slog.Error("got error while filling history sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("bytes", buf.Len()))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XSLSXGenerator) fillConstituentsSheet(f *excelize.File, tickers model.Table, headerStyle int) error {
	names := tickers.Names()

	header := make([]any, len(names))
	for i, name := range names {
		header[i] = name
	}
	if err := f.SetSheetRow(ConstituentsSheet, "A1", &header); err != nil {
		return err
	}

	lastHeaderCell, err := excelize.CoordinatesToCellName(len(names), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ConstituentsSheet, "A1", lastHeaderCell, headerStyle); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for r := 0; r < tickers.Len(); r++ {
		values := tickers.Row(r)
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}

		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ConstituentsSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SetPanes(ConstituentsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (g *XSLSXGenerator) fillHistorySheet(f *excelize.File, symbol string, table model.PriceTable, headerStyle int) error {
	sheetName := SheetName(symbol)
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := f.SetSheetRow(sheetName, "A1", &historyHeader); err != nil {
		return err
	}
	lastHeaderCell, err := excelize.CoordinatesToCellName(len(historyHeader), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastHeaderCell, headerStyle); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i := 0; i < table.Len(); i++ {
		row := []any{
			time.UnixMilli(table.Timestamp[i]).UTC().Format(time.DateOnly),
			table.Timestamp[i],
			table.Open[i],
			table.High[i],
			table.Low[i],
			table.Close[i],
			table.Volume[i],
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	return nil
}

// SheetName makes symbol usable as a sheet name: no []:*?/\ and at most 31 characters.
func SheetName(symbol string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, symbol)

	if name == "" || strings.EqualFold(name, ConstituentsSheet) {
		name = "_" + name
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
