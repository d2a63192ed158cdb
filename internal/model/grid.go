package model

// Grid is a table read row by row: the first row becomes Header, the rest Rows.
type Grid struct {
	Header []string
	Rows   [][]string
}

func (g Grid) IsEmpty() bool {
	return len(g.Header) == 0 && len(g.Rows) == 0
}
