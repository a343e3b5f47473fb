package serviceimpl

import (
	"context"
	"fmt"
	"github.com/AndresDFlores/go-dbaccess/internal/condition"
	"github.com/AndresDFlores/go-dbaccess/internal/logger"
	"github.com/AndresDFlores/go-dbaccess/internal/metrics"
	"github.com/AndresDFlores/go-dbaccess/models"
	"github.com/AndresDFlores/go-dbaccess/request"
	"github.com/AndresDFlores/go-dbaccess/response"
	"github.com/AndresDFlores/go-dbaccess/service"
	"gorm.io/gorm"
	"time"
)

type queryService struct {
	DB      *gorm.DB
	Schemas *schemaService
}

var _ service.QueryService = &queryService{}

func NewQueryService(db *gorm.DB) *queryService {
	return &queryService{DB: db, Schemas: NewSchemaService(db)}
}

// ImportTableWhere selects rows matching operator-prefixed conditions such as ">=42".
// Without conditions every row is selected.
func (s *queryService) ImportTableWhere(ctx context.Context, req request.ImportTableRequest) (*response.TableRows, error) {
	started := time.Now()
	rows, err := s.importTable(ctx, req, request.ComparisonMode)
	metrics.Observe("import_where", started, err)
	return rows, err
}

// ImportTableLike selects rows matching LIKE patterns such as "a%" or "_b%".
// Without conditions every row is selected.
func (s *queryService) ImportTableLike(ctx context.Context, req request.ImportTableRequest) (*response.TableRows, error) {
	started := time.Now()
	rows, err := s.importTable(ctx, req, request.PatternMode)
	metrics.Observe("import_like", started, err)
	return rows, err
}

func (s *queryService) importTable(ctx context.Context, req request.ImportTableRequest, mode request.ConditionMode) (*response.TableRows, error) {
	catalog, err := s.Schemas.ReflectSchema(ctx, req.Schema, req.Table)
	if err != nil {
		return nil, err
	}

	// Unconditional selection when no condition value was given
	selection := &response.FilteredSelection{
		Schema:  catalog.Schema,
		Table:   catalog.Table,
		Columns: condition.ResolveSelection(catalog, req.SelectColumns),
	}
	if countValues(req.Conditions) > 0 {
		selection, err = condition.Build(catalog, req.Filter(mode))
		if err != nil {
			return nil, err
		}
		metrics.PredicatesBuilt.WithLabelValues(mode.String()).Inc()
	} else {
		for name := range req.Conditions {
			if _, err := catalog.Column(name); err != nil {
				return nil, err
			}
		}
	}

	if req.PaginationConditions.SortBy != nil && *req.PaginationConditions.SortBy != "" {
		if _, err := catalog.Column(*req.PaginationConditions.SortBy); err != nil {
			return nil, fmt.Errorf("invalid sort column: %w", err)
		}
	}

	return s.execute(ctx, selection, req.PaginationConditions)
}

func countValues(conditions map[string][]string) int {
	total := 0
	for _, values := range conditions {
		total += len(values)
	}
	return total
}

// execute runs a filtered selection. The total is counted before pagination is applied.
func (s *queryService) execute(ctx context.Context, selection *response.FilteredSelection, pagination request.PaginationConditions) (*response.TableRows, error) {
	tableRef := s.Schemas.tableRef(selection.Schema, selection.Table)
	name := models.QualifiedName(selection.Schema, selection.Table)

	filtered := func() *gorm.DB {
		query := s.DB.WithContext(ctx).Table(tableRef)
		if selection.Predicate != nil {
			query = query.Where(selection.Predicate)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, classifyError(fmt.Sprintf("failed to count rows of %s", name), err)
	}

	query := request.ApplySelectFields(filtered(), selection.Columns)
	query = request.ApplyPaginationConditions(query, pagination)

	rows := make([]map[string]interface{}, 0)
	if err := query.Find(&rows).Error; err != nil {
		return nil, classifyError(fmt.Sprintf("failed to import %s", name), err)
	}

	logger.Debug("imported table rows", "table", name, "rows", len(rows), "total", total)

	return &response.TableRows{
		Schema:  selection.Schema,
		Table:   selection.Table,
		Columns: selection.Columns,
		Rows:    rows,
		Total:   total,
	}, nil
}

// ExecuteStringQuery runs raw SQL and returns the produced rows.
func (s *queryService) ExecuteStringQuery(ctx context.Context, query string) ([]map[string]interface{}, error) {
	started := time.Now()
	rows := make([]map[string]interface{}, 0)
	err := s.DB.WithContext(ctx).Raw(query).Scan(&rows).Error
	metrics.Observe("string_query", started, err)
	if err != nil {
		return nil, classifyError("failed to execute string query", err)
	}
	for _, row := range rows {
		for column, value := range row {
			row[column] = unbox(value)
		}
	}
	return rows, nil
}

// unbox dereferences the *interface{} holders gorm leaves for columns without a
// declared type, such as aggregates.
func unbox(value interface{}) interface{} {
	for {
		holder, ok := value.(*interface{})
		if !ok {
			return value
		}
		if holder == nil {
			return nil
		}
		value = *holder
	}
}
