package request

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"strings"
)

type PaginationConditions struct {
	Limit  *int    `form:"limit" json:"limit"`   // Pagination limit
	Offset *int    `form:"offset" json:"offset"` // Pagination offset
	SortBy *string `form:"sortBy" json:"sortBy"` // Column to sort by
	Order  *string `form:"order" json:"order"`   // ASC or DESC
}

// ApplySelectFields selects the given columns, quoting each one as an identifier.
func ApplySelectFields(query *gorm.DB, selectFields []string) *gorm.DB {
	if len(selectFields) == 0 {
		return query
	}
	columns := make([]clause.Column, len(selectFields))
	for i, field := range selectFields {
		columns[i] = clause.Column{Name: field}
	}
	return query.Clauses(clause.Select{Columns: columns})
}

// ApplyPaginationConditions adds ordering, offset and limit. The sort column is quoted
// as an identifier, so callers must have validated it against the table first.
func ApplyPaginationConditions(query *gorm.DB, conditions PaginationConditions) *gorm.DB {
	if conditions.Offset != nil && *conditions.Offset > 0 {
		query = query.Offset(*conditions.Offset)
	}

	// Sorting
	if conditions.SortBy != nil && *conditions.SortBy != "" {
		desc := conditions.Order != nil && strings.EqualFold(*conditions.Order, "DESC")
		query = query.Order(clause.OrderByColumn{
			Column: clause.Column{Name: *conditions.SortBy},
			Desc:   desc,
		})
	}

	if conditions.Limit != nil && *conditions.Limit > 0 {
		query = query.Limit(*conditions.Limit)
	}

	return query
}
