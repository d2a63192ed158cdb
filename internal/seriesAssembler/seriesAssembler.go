// Package seriesAssembler converts row-oriented data into column-oriented tables.
package seriesAssembler

import (
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/internal/service"
)

// minChunk keeps small bar sequences on a single goroutine.
const minChunk = 1024

// Assemble transposes grid into a table with one column per header cell.
// Every row must have exactly len(grid.Header) cells; ragged grids are rejected, not truncated.
func Assemble(grid model.Grid) (model.Table, error) {
	op := "seriesAssembler.Assemble"

	if len(grid.Header) == 0 || len(grid.Rows) == 0 {
		return model.Table{}, &service.ParseError{
			Op:  op,
			Err: fmt.Errorf("%w: %d header cells, %d rows", service.ErrEmptyInput, len(grid.Header), len(grid.Rows)),
		}
	}

	width := len(grid.Header)

	seen := make(map[string]struct{}, width)
	for _, name := range grid.Header {
		if _, ok := seen[name]; ok {
			return model.Table{}, &service.ParseError{Op: op, Err: fmt.Errorf("%w: %q", service.ErrDuplicateColumn, name)}
		}
		seen[name] = struct{}{}
	}

	for r, row := range grid.Rows {
		if len(row) != width {
			return model.Table{}, &service.ParseError{
				Op:  op,
				Err: fmt.Errorf("%w: row %d has %d cells, header has %d", service.ErrRaggedGrid, r, len(row), width),
			}
		}
	}

	columns := make([][]string, width)

	var wg sync.WaitGroup
	for i := range width {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			columns[i] = buildColumn(grid.Rows, i)
		}(i)
	}
	wg.Wait()

	return model.NewTable(grid.Header, columns, len(grid.Rows)), nil
}

func buildColumn(rows [][]string, i int) []string {
	col := make([]string, len(rows))
	for r, row := range rows {
		col[r] = row[i]
	}
	return col
}

// BuildPriceTable lays bars out into the six fixed columns and sorts them by timestamp.
// The sort is stable: bars with equal timestamps keep their input order. Missing volume becomes 0.
func BuildPriceTable(bars []model.PriceBar) model.PriceTable {
	chunks := splitChunks(len(bars), runtime.GOMAXPROCS(0))
	parts := make([]model.PriceTable, len(chunks))

	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, from, to int) {
			defer wg.Done()
			parts[i] = extractFields(bars[from:to])
		}(i, c[0], c[1])
	}
	wg.Wait()

	return sortByTimestamp(mergeParts(parts, len(bars)))
}

// splitChunks returns [from, to) ranges covering n items in order.
func splitChunks(n, workers int) [][2]int {
	if n == 0 {
		return nil
	}

	size := max(minChunk, (n+workers-1)/workers)

	res := make([][2]int, 0, (n+size-1)/size)
	for from := 0; from < n; from += size {
		res = append(res, [2]int{from, min(from+size, n)})
	}
	return res
}

func extractFields(bars []model.PriceBar) model.PriceTable {
	t := newPriceTable(len(bars))
	for _, bar := range bars {
		var volume uint64
		if bar.Volume != nil {
			volume = *bar.Volume
		}
		t.Timestamp = append(t.Timestamp, bar.Timestamp)
		t.Open = append(t.Open, bar.Open)
		t.High = append(t.High, bar.High)
		t.Low = append(t.Low, bar.Low)
		t.Close = append(t.Close, bar.Close)
		t.Volume = append(t.Volume, volume)
	}
	return t
}

func mergeParts(parts []model.PriceTable, n int) model.PriceTable {
	t := newPriceTable(n)
	for _, p := range parts {
		t.Timestamp = append(t.Timestamp, p.Timestamp...)
		t.Open = append(t.Open, p.Open...)
		t.High = append(t.High, p.High...)
		t.Low = append(t.Low, p.Low...)
		t.Close = append(t.Close, p.Close...)
		t.Volume = append(t.Volume, p.Volume...)
	}
	return t
}

func sortByTimestamp(t model.PriceTable) model.PriceTable {
	n := t.Len()

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case t.Timestamp[a] < t.Timestamp[b]:
			return -1
		case t.Timestamp[a] > t.Timestamp[b]:
			return 1
		}
		return 0
	})

	res := newPriceTable(n)
	for _, i := range order {
		res.Timestamp = append(res.Timestamp, t.Timestamp[i])
		res.Open = append(res.Open, t.Open[i])
		res.High = append(res.High, t.High[i])
		res.Low = append(res.Low, t.Low[i])
		res.Close = append(res.Close, t.Close[i])
		res.Volume = append(res.Volume, t.Volume[i])
	}
	return res
}

func newPriceTable(capacity int) model.PriceTable {
	return model.PriceTable{
		Timestamp: make([]int64, 0, capacity),
		Open:      make([]float64, 0, capacity),
		High:      make([]float64, 0, capacity),
		Low:       make([]float64, 0, capacity),
		Close:     make([]float64, 0, capacity),
		Volume:    make([]uint64, 0, capacity),
	}
}
