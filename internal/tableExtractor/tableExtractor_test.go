package tableExtractor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinkText(t *testing.T) {
	tests := []struct {
		name   string
		cell   string
		want   string
		wantOk bool
	}{
		{name: "anchor inside td markup", cell: `<td><a href="/x">Acme</a></td>`, want: "Acme", wantOk: true},
		{name: "bare anchor", cell: `<a href="/wiki/AAPL" title="Apple">AAPL</a>`, want: "AAPL", wantOk: true},
		{name: "anchor without attributes", cell: `<a>Plain</a>`, want: "Plain", wantOk: true},
		{name: "plain text", cell: "Apple Inc.", want: "Apple Inc.", wantOk: true},
		{name: "empty", cell: "", want: "", wantOk: true},
		{name: "non-anchor markup kept", cell: "<b>bold</b>", want: "<b>bold</b>", wantOk: true},
		{name: "abbr is not an anchor", cell: `<abbr title="x">NYSE</abbr>`, want: `<abbr title="x">NYSE</abbr>`, wantOk: true},
		{name: "anchor without closing bracket", cell: `<a href="/x"`, wantOk: false},
		{name: "anchor text without closing tag", cell: `<a href="/x">Acme`, wantOk: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractLinkText(tt.cell)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractLinkText_IdempotentOnPlainText(t *testing.T) {
	for _, s := range []string{"MMM", "Industrials", "1902", "Saint Paul, Minnesota", "0000066740"} {
		once, ok := ExtractLinkText(s)
		require.True(t, ok)
		twice, ok := ExtractLinkText(once)
		require.True(t, ok)
		assert.Equal(t, s, once)
		assert.Equal(t, once, twice)
	}
}

func TestExtract_EndToEndScenario(t *testing.T) {
	doc := `<table><tr><th>Symbol</th><th>Name</th></tr><tr><td><a href="/w/AAPL">AAPL</a></td><td>Apple Inc.</td></tr></table>`

	grid, err := Extract(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"Symbol", "Name"}, grid.Header)
	assert.Equal(t, [][]string{{"AAPL", "Apple Inc."}}, grid.Rows)
}

func TestExtract_PreservesShape(t *testing.T) {
	for _, shape := range []struct{ cols, rows int }{{1, 1}, {3, 5}, {8, 30}} {
		t.Run(fmt.Sprintf("%dx%d", shape.cols, shape.rows), func(t *testing.T) {
			var sb strings.Builder
			sb.WriteString("<html><body><table><tr>")
			for c := 0; c < shape.cols; c++ {
				fmt.Fprintf(&sb, "<th>col%d</th>", c)
			}
			sb.WriteString("</tr>")
			for r := 0; r < shape.rows; r++ {
				sb.WriteString("<tr>")
				for c := 0; c < shape.cols; c++ {
					if c%2 == 0 {
						fmt.Fprintf(&sb, `<td><a href="/r%d/c%d">v%d_%d</a></td>`, r, c, r, c)
					} else {
						fmt.Fprintf(&sb, "<td>v%d_%d</td>", r, c)
					}
				}
				sb.WriteString("</tr>")
			}
			sb.WriteString("</table></body></html>")

			grid, err := Extract(sb.String())
			require.NoError(t, err)

			require.Len(t, grid.Header, shape.cols)
			require.Len(t, grid.Rows, shape.rows)
			for r, row := range grid.Rows {
				require.Len(t, row, shape.cols)
				for c, cell := range row {
					assert.Equal(t, fmt.Sprintf("v%d_%d", r, c), cell)
				}
			}
		})
	}
}

func TestExtract_FirstTableOnly(t *testing.T) {
	doc := `
		<p>intro</p>
		<table id="constituents">
			<tbody>
				<tr><th>Symbol</th><th>Security</th></tr>
				<tr><td><a rel="nofollow" class="external text" href="https://www.nyse.com/quote/XNYS:MMM">MMM</a>
				</td><td><a href="/wiki/3M" title="3M">3M</a></td></tr>
			</tbody>
		</table>
		<table id="changes"><tr><th>Date</th></tr><tr><td>2024</td></tr></table>`

	grid, err := Extract(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"Symbol", "Security"}, grid.Header)
	assert.Equal(t, [][]string{{"MMM", "3M"}}, grid.Rows)
}

func TestExtract_UnescapesEntities(t *testing.T) {
	doc := `<table><tr><th>Symbol</th><th>Security</th></tr><tr><td>T</td><td><a href="/wiki/AT%26T">AT&amp;T</a></td></tr></table>`

	grid, err := Extract(doc)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"T", "AT&T"}}, grid.Rows)
}

func TestExtract_NoTable(t *testing.T) {
	grid, err := Extract(`<html><body><p>nothing here</p></body></html>`)
	require.NoError(t, err)

	assert.True(t, grid.IsEmpty())
	assert.Empty(t, grid.Header)
	assert.Empty(t, grid.Rows)
}

func TestExtract_HeaderOnly(t *testing.T) {
	grid, err := Extract(`<table><tr><th>Symbol</th><th>Name</th></tr></table>`)
	require.NoError(t, err)

	assert.Equal(t, []string{"Symbol", "Name"}, grid.Header)
	assert.Empty(t, grid.Rows)
}
