// Package tableExtractor turns the first HTML table of a document into a header row
// and a grid of plain-text cells.
package tableExtractor

import (
	"strings"

	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/internal/service"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const op = "tableExtractor.Extract"

// Extract reads the first <table> of document. The first row becomes the header,
// every following row one grid row. A document without a table yields an empty grid.
//
// Cells whose anchor text can't be delimited are dropped, so such rows come out short.
func Extract(document string) (model.Grid, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return model.Grid{}, &service.ParseError{Op: op, Err: err}
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return model.Grid{}, nil
	}

	grid := model.Grid{}
	var cellErr error

	table.Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := make([]string, 0, row.Children().Length())

		row.Find("td, th").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			inner, err := cell.Html()
			if err != nil {
				cellErr = err
				return false
			}

			text, ok := ExtractLinkText(strings.TrimSpace(inner))
			if !ok {
				return true
			}
			cells = append(cells, html.UnescapeString(text))
			return true
		})
		if cellErr != nil {
			return false
		}

		if i == 0 {
			grid.Header = cells
		} else {
			grid.Rows = append(grid.Rows, cells)
		}
		return true
	})

	if cellErr != nil {
		return model.Grid{}, &service.ParseError{Op: op, Err: cellErr}
	}

	return grid, nil
}

// ExtractLinkText returns the visible text of the first anchor in cell, the text between
// the first '>' after "<a" and the next '<'. Cells without an anchor are returned as is.
// ok is false when the anchor text has no delimiters.
func ExtractLinkText(cell string) (text string, ok bool) {
	anchor := anchorStart(cell)
	if anchor < 0 {
		return cell, true
	}

	open := strings.IndexByte(cell[anchor:], '>')
	if open < 0 {
		return "", false
	}
	start := anchor + open + 1

	end := strings.IndexByte(cell[start:], '<')
	if end < 0 {
		return "", false
	}

	return cell[start : start+end], true
}

// anchorStart finds "<a" followed by a tag delimiter, so <abbr> and <aside> don't count.
func anchorStart(s string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], "<a")
		if i < 0 {
			return -1
		}
		pos := offset + i
		next := pos + 2
		if next >= len(s) {
			return pos
		}
		switch s[next] {
		case ' ', '\t', '\n', '\r', '>', '/':
			return pos
		}
		offset = next
	}
}
