package model

import "encoding/json"

// Table is a column-oriented table. Column order follows the source header.
type Table struct {
	names   []string
	columns map[string][]string
	rows    int
}

// NewTable expects names to be unique and every column to have rows values.
func NewTable(names []string, columns [][]string, rows int) Table {
	t := Table{
		names:   make([]string, len(names)),
		columns: make(map[string][]string, len(names)),
		rows:    rows,
	}
	copy(t.names, names)
	for i, name := range names {
		t.columns[name] = columns[i]
	}
	return t
}

func (t Table) Names() []string {
	res := make([]string, len(t.names))
	copy(res, t.names)
	return res
}

func (t Table) Width() int {
	return len(t.names)
}

func (t Table) Len() int {
	return t.rows
}

// Column returns the values of the named column and whether it exists.
func (t Table) Column(name string) ([]string, bool) {
	col, ok := t.columns[name]
	return col, ok
}

// Row returns the values of row r in column order.
func (t Table) Row(r int) []string {
	row := make([]string, len(t.names))
	for i, name := range t.names {
		row[i] = t.columns[name][r]
	}
	return row
}

// Map returns the column mapping, mostly useful for comparisons.
func (t Table) Map() map[string][]string {
	res := make(map[string][]string, len(t.columns))
	for name, col := range t.columns {
		res[name] = col
	}
	return res
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...], ...]} keeping column order.
func (t Table) MarshalJSON() ([]byte, error) {
	rows := make([][]string, t.rows)
	for r := range rows {
		rows[r] = t.Row(r)
	}
	return json.Marshal(struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}{Columns: t.Names(), Rows: rows})
}
