package condition

import (
	"context"
	"fmt"
	"github.com/AndresDFlores/go-dbaccess/models"
	"github.com/AndresDFlores/go-dbaccess/request"
	"github.com/AndresDFlores/go-dbaccess/response"
	"github.com/AndresDFlores/go-dbaccess/service"
	"gorm.io/gorm/clause"
	"sort"
)

// CatalogResolver reflects the column catalog of a table.
type CatalogResolver interface {
	ReflectSchema(ctx context.Context, schema, table string) (*models.SchemaCatalog, error)
}

// Engine builds filtered selections from raw condition maps. It holds no state besides
// the resolver and is safe for concurrent use.
type Engine struct {
	Resolver CatalogResolver
}

var _ service.ConditionService = &Engine{}

func NewEngine(resolver CatalogResolver) *Engine {
	return &Engine{Resolver: resolver}
}

// BuildFilteredSelection reflects the table and builds its filtered selection.
func (e *Engine) BuildFilteredSelection(ctx context.Context, req request.FilterRequest) (*response.FilteredSelection, error) {
	catalog, err := e.Resolver.ReflectSchema(ctx, req.Schema, req.Table)
	if err != nil {
		return nil, err
	}
	return Build(catalog, req)
}

// Build composes the predicate for req against an already reflected catalog.
// Every referenced column is validated before any predicate is built.
func Build(catalog *models.SchemaCatalog, req request.FilterRequest) (*response.FilteredSelection, error) {
	if req.Mode != request.ComparisonMode && req.Mode != request.PatternMode {
		return nil, fmt.Errorf("unknown condition mode %d", req.Mode)
	}

	columns := ResolveSelection(catalog, req.SelectColumns)

	if len(req.Conditions) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrNoConditions, catalog.QualifiedName())
	}

	names := make([]string, 0, len(req.Conditions))
	for name := range req.Conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := catalog.Column(name); err != nil {
			return nil, err
		}
	}

	// Columns are visited in catalog order so the rendered SQL is stable.
	var predicates []clause.Expression
	for _, column := range catalog.Columns() {
		values, ok := req.Conditions[column.Name]
		if !ok {
			continue
		}
		for _, raw := range values {
			predicate, err := buildPredicate(column, raw, req.Mode)
			if err != nil {
				return nil, err
			}
			predicates = append(predicates, predicate)
		}
	}

	if len(predicates) == 0 {
		return nil, fmt.Errorf("%w: every condition list for %s is empty", models.ErrNoConditions, catalog.QualifiedName())
	}

	return &response.FilteredSelection{
		Schema:    catalog.Schema,
		Table:     catalog.Table,
		Predicate: Combine(predicates, req.CombineWithAnd),
		Columns:   columns,
	}, nil
}

func buildPredicate(column models.ColumnDescriptor, raw string, mode request.ConditionMode) (clause.Expression, error) {
	if mode == request.PatternMode {
		return BuildPattern(column, raw), nil
	}
	cond, err := ParseComparison(raw)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", column.Name, err)
	}
	return BuildComparison(column, cond)
}

// Combine folds predicates with AND when and is true, OR otherwise. A single
// predicate is returned as is.
func Combine(predicates []clause.Expression, and bool) clause.Expression {
	switch len(predicates) {
	case 0:
		return nil
	case 1:
		return predicates[0]
	}
	if and {
		return clause.And(predicates...)
	}
	return clause.Or(predicates...)
}

// ResolveSelection returns the requested columns that exist in the catalog, in
// catalog order. An empty request, or one sharing no name with the catalog, selects
// every column.
func ResolveSelection(catalog *models.SchemaCatalog, selectColumns []string) []string {
	all := catalog.ColumnNames()
	if len(selectColumns) == 0 {
		return all
	}

	requested := make(map[string]struct{}, len(selectColumns))
	for _, name := range selectColumns {
		requested[name] = struct{}{}
	}

	selected := make([]string, 0, len(selectColumns))
	for _, name := range all {
		if _, ok := requested[name]; ok {
			selected = append(selected, name)
		}
	}
	if len(selected) == 0 {
		return all
	}
	return selected
}
