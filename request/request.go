package request

import (
	"gorm.io/gorm"
	"time"
)

// ConditionMode selects which condition engine decodes the raw condition values.
type ConditionMode int

const (
	// ComparisonMode decodes operator-prefixed values such as ">=42".
	ComparisonMode ConditionMode = iota
	// PatternMode uses each value verbatim as a LIKE pattern.
	PatternMode
)

func (m ConditionMode) String() string {
	switch m {
	case ComparisonMode:
		return "comparison"
	case PatternMode:
		return "pattern"
	default:
		return "unknown"
	}
}

// FilterRequest is the input of the condition engine.
type FilterRequest struct {
	Schema         string              `json:"schema"`
	Table          string              `json:"table"`
	SelectColumns  []string            `json:"selectColumns"`
	CombineWithAnd bool                `json:"combineWithAnd"` // false combines with OR
	Conditions     map[string][]string `json:"conditions"`     // column -> raw condition values
	Mode           ConditionMode       `json:"mode"`
}

type ImportTableRequest struct {
	Schema               string               `json:"schema"`
	Table                string               `json:"table" binding:"required"`
	SelectColumns        []string             `json:"selectColumns"`
	CombineWithAnd       bool                 `json:"combineWithAnd"`
	Conditions           map[string][]string  `json:"conditions"`
	PaginationConditions PaginationConditions `json:"paginationConditions"`
}

// Filter converts the import request into a condition engine request.
func (r ImportTableRequest) Filter(mode ConditionMode) FilterRequest {
	return FilterRequest{
		Schema:         r.Schema,
		Table:          r.Table,
		SelectColumns:  r.SelectColumns,
		CombineWithAnd: r.CombineWithAnd,
		Conditions:     r.Conditions,
		Mode:           mode,
	}
}

type DropTableRowRequest struct {
	Schema string `json:"schema"`
	Table  string `json:"table" binding:"required"`
	Column string `json:"column" binding:"required"`
	Value  string `json:"value"` // Compared for equality after coercion to the column type
}

type ExportTableRequest struct {
	Schema string                   `json:"schema"`
	Table  string                   `json:"table" binding:"required"`
	Rows   []map[string]interface{} `json:"rows"`
}

type DumpDatabaseRequest struct {
	Dir     string   `json:"dir" binding:"required"`
	Schemas []string `json:"schemas"` // Empty dumps every schema
	Workers int      `json:"workers"` // Zero uses the configured default
}

type GetExportRunsRequest struct {
	RunID                *string              `form:"runID"`
	Schema               *string              `form:"schema"`
	Table                *string              `form:"table"`
	Operation            *string              `form:"operation"`
	Status               *string              `form:"status"`
	StartedAfter         *time.Time           `form:"startedAfter"`
	StartedBefore        *time.Time           `form:"startedBefore"`
	PaginationConditions PaginationConditions `form:"paginationConditions"`
}

func ApplyGetExportRunsRequest(req GetExportRunsRequest, query *gorm.DB) *gorm.DB {
	if req.RunID != nil {
		query = query.Where("run_id = ?", *req.RunID)
	}
	if req.Schema != nil {
		query = query.Where("schema_name = ?", *req.Schema)
	}
	if req.Table != nil {
		query = query.Where("table_name = ?", *req.Table)
	}
	if req.Operation != nil {
		query = query.Where("operation = ?", *req.Operation)
	}
	if req.Status != nil {
		query = query.Where("status = ?", *req.Status)
	}
	if req.StartedAfter != nil {
		query = query.Where("started_at > ?", *req.StartedAfter)
	}
	if req.StartedBefore != nil {
		query = query.Where("started_at < ?", *req.StartedBefore)
	}
	return query
}
