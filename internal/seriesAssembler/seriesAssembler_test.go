package seriesAssembler

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble_EndToEndScenario(t *testing.T) {
	grid := model.Grid{
		Header: []string{"Symbol", "Name"},
		Rows:   [][]string{{"AAPL", "Apple Inc."}},
	}

	table, err := Assemble(grid)
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{"Symbol": {"AAPL"}, "Name": {"Apple Inc."}}, table.Map())
	assert.Equal(t, []string{"Symbol", "Name"}, table.Names())
	assert.Equal(t, 1, table.Len())
}

func TestAssemble_IsTranspose(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for iter := 0; iter < 20; iter++ {
		width := 1 + rnd.Intn(10)
		height := 1 + rnd.Intn(50)

		grid := model.Grid{Header: make([]string, width)}
		for c := range grid.Header {
			grid.Header[c] = fmt.Sprintf("col%d", c)
		}
		for r := 0; r < height; r++ {
			row := make([]string, width)
			for c := range row {
				row[c] = fmt.Sprintf("%d", rnd.Int63())
			}
			grid.Rows = append(grid.Rows, row)
		}

		table, err := Assemble(grid)
		require.NoError(t, err)
		require.Equal(t, width, table.Width())
		require.Equal(t, height, table.Len())

		for c, name := range grid.Header {
			col, ok := table.Column(name)
			require.True(t, ok)
			require.Len(t, col, height)
			for r := range grid.Rows {
				assert.Equal(t, grid.Rows[r][c], col[r])
			}
		}
		for r := range grid.Rows {
			assert.Equal(t, grid.Rows[r], table.Row(r))
		}
	}
}

func TestAssemble_EmptyInput(t *testing.T) {
	tests := []struct {
		name string
		grid model.Grid
	}{
		{name: "no table", grid: model.Grid{}},
		{name: "header only", grid: model.Grid{Header: []string{"Symbol"}}},
		{name: "rows without header", grid: model.Grid{Rows: [][]string{{"AAPL"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.grid)
			require.Error(t, err)
			assert.ErrorIs(t, err, service.ErrEmptyInput)

			var parseErr *service.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestAssemble_RaggedGrid(t *testing.T) {
	grid := model.Grid{
		Header: []string{"Symbol", "Name"},
		Rows:   [][]string{{"AAPL", "Apple Inc."}, {"MSFT"}, {"GOOG", "Alphabet", "extra"}},
	}

	_, err := Assemble(grid)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrRaggedGrid)
	assert.Contains(t, err.Error(), "row 1")
}

func TestAssemble_DuplicateColumn(t *testing.T) {
	grid := model.Grid{
		Header: []string{"Symbol", "Symbol"},
		Rows:   [][]string{{"AAPL", "AAPL"}},
	}

	_, err := Assemble(grid)
	assert.ErrorIs(t, err, service.ErrDuplicateColumn)
}

func volume(v uint64) *uint64 {
	return &v
}

func TestBuildPriceTable_EndToEndScenario(t *testing.T) {
	bars := []model.PriceBar{
		{Timestamp: 300, Open: 3, High: 3.5, Low: 2.5, Close: 3.2, Volume: volume(30)},
		{Timestamp: 100, Open: 1, High: 1.5, Low: 0.5, Close: 1.2, Volume: volume(10)},
		{Timestamp: 200, Open: 2, High: 2.5, Low: 1.5, Close: 2.2},
	}

	table := BuildPriceTable(bars)

	assert.Equal(t, []int64{100, 200, 300}, table.Timestamp)
	assert.Equal(t, []float64{1, 2, 3}, table.Open)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, table.High)
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, table.Low)
	assert.Equal(t, []float64{1.2, 2.2, 3.2}, table.Close)
	assert.Equal(t, []uint64{10, 0, 30}, table.Volume)
}

func TestBuildPriceTable_StableOnEqualTimestamps(t *testing.T) {
	bars := []model.PriceBar{
		{Timestamp: 200, Open: 1},
		{Timestamp: 100, Open: 2},
		{Timestamp: 200, Open: 3},
		{Timestamp: 100, Open: 4},
	}

	table := BuildPriceTable(bars)

	assert.Equal(t, []int64{100, 100, 200, 200}, table.Timestamp)
	assert.Equal(t, []float64{2, 4, 1, 3}, table.Open)
}

func TestBuildPriceTable_SortedPermutation(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))

	// larger than minChunk so extraction is split across goroutines
	bars := make([]model.PriceBar, 5*minChunk+17)
	for i := range bars {
		ts := rnd.Int63n(1_000_000)
		bars[i] = model.PriceBar{
			Timestamp: ts,
			Open:      float64(i),
			Close:     float64(ts),
			Volume:    volume(uint64(i)),
		}
	}

	table := BuildPriceTable(bars)
	require.Equal(t, len(bars), table.Len())
	require.Len(t, table.Volume, len(bars))

	assert.True(t, sort.SliceIsSorted(table.Timestamp, func(a, b int) bool {
		return table.Timestamp[a] < table.Timestamp[b]
	}))

	seen := make(map[uint64]bool, len(bars))
	for i := 0; i < table.Len(); i++ {
		idx := table.Volume[i]
		require.False(t, seen[idx], "bar %d duplicated", idx)
		seen[idx] = true

		// each row still carries its own bar's values
		orig := bars[idx]
		assert.Equal(t, orig.Timestamp, table.Timestamp[i])
		assert.Equal(t, orig.Open, table.Open[i])
		assert.Equal(t, float64(table.Timestamp[i]), table.Close[i])
	}
	assert.Len(t, seen, len(bars))
}

func TestBuildPriceTable_Empty(t *testing.T) {
	table := BuildPriceTable(nil)

	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.Open)
	assert.Empty(t, table.Volume)
}

func TestBuildPriceTable_DoesNotMutateInput(t *testing.T) {
	bars := []model.PriceBar{{Timestamp: 2}, {Timestamp: 1}}

	_ = BuildPriceTable(bars)

	assert.Equal(t, int64(2), bars[0].Timestamp)
	assert.Equal(t, int64(1), bars[1].Timestamp)
}

func TestSplitChunks(t *testing.T) {
	assert.Nil(t, splitChunks(0, 4))
	assert.Equal(t, [][2]int{{0, 10}}, splitChunks(10, 4))
	assert.Equal(t, [][2]int{{0, minChunk}, {minChunk, 2 * minChunk}, {2 * minChunk, 2*minChunk + 1}}, splitChunks(2*minChunk+1, 16))

	chunks := splitChunks(10*minChunk, 4)
	require.Len(t, chunks, 4)
	assert.Equal(t, 0, chunks[0][0])
	assert.Equal(t, 10*minChunk, chunks[3][1])
}
