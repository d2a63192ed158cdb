package dbModel

import (
	"encoding/json"
	"time"
)

type Constituent struct {
	Symbol    string          `db:"symbol"`
	Security  string          `db:"security"`
	Sector    string          `db:"sector"`
	Raw       json.RawMessage `db:"raw"`
	UpdatedAt time.Time       `db:"updated_at"`
}
