package response

import (
	"gorm.io/gorm/clause"
)

// FilteredSelection is a composed predicate plus the columns to select.
type FilteredSelection struct {
	Schema    string            `json:"schema"`
	Table     string            `json:"table"`
	Predicate clause.Expression `json:"-"`
	Columns   []string          `json:"columns"`
}

type TableRows struct {
	Schema  string                   `json:"schema"`
	Table   string                   `json:"table"`
	Columns []string                 `json:"columns"` // Selection order; map keys are unordered
	Rows    []map[string]interface{} `json:"rows"`
	Total   int64                    `json:"total"` // Matching rows before pagination
}

type ExportResult struct {
	RunID     string `json:"runID"`
	Schema    string `json:"schema"`
	Table     string `json:"table"`
	Performed bool   `json:"performed"` // false when exports are disabled
	Inserted  int64  `json:"inserted"`
}

type DumpedTable struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Path   string `json:"path"`
	Rows   int64  `json:"rows"`
}

type DumpResult struct {
	Tables []DumpedTable `json:"tables"`
}
