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
	"sort"
	"time"
)

const defaultBatchSize = 500

// TableOptions configure the data-changing operations.
type TableOptions struct {
	ExportEnabled bool // false turns ExportTable into a recorded no-op
	BatchSize     int
}

type tableService struct {
	DB         *gorm.DB
	Schemas    *schemaService
	ExportRuns service.ExportRunService
	Options    TableOptions
}

var _ service.TableService = &tableService{}

func NewTableService(db *gorm.DB, exportRuns service.ExportRunService, options TableOptions) *tableService {
	if options.BatchSize <= 0 {
		options.BatchSize = defaultBatchSize
	}
	return &tableService{
		DB:         db,
		Schemas:    NewSchemaService(db),
		ExportRuns: exportRuns,
		Options:    options,
	}
}

func (s *tableService) CountTableRows(ctx context.Context, schema, table string) (int64, error) {
	started := time.Now()
	count, err := s.countTableRows(ctx, schema, table)
	metrics.Observe("count", started, err)
	return count, err
}

func (s *tableService) countTableRows(ctx context.Context, schema, table string) (int64, error) {
	if err := s.Schemas.requireTable(ctx, schema, table); err != nil {
		return 0, err
	}
	var count int64
	if err := s.DB.WithContext(ctx).Table(s.Schemas.tableRef(schema, table)).Count(&count).Error; err != nil {
		return 0, classifyError(fmt.Sprintf("failed to count rows of %s", models.QualifiedName(schema, table)), err)
	}
	return count, nil
}

func (s *tableService) DropTable(ctx context.Context, schema, table string) error {
	started := time.Now()
	err := s.dropTable(ctx, schema, table)
	metrics.Observe("drop_table", started, err)
	return err
}

func (s *tableService) dropTable(ctx context.Context, schema, table string) error {
	if err := s.Schemas.requireTable(ctx, schema, table); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Migrator().DropTable(s.Schemas.tableRef(schema, table)); err != nil {
		return classifyError(fmt.Sprintf("failed to drop %s", models.QualifiedName(schema, table)), err)
	}
	logger.Info("dropped table", "table", models.QualifiedName(schema, table))
	return nil
}

// DropTableRow deletes the rows whose column equals the value, coerced to the column type.
func (s *tableService) DropTableRow(ctx context.Context, req request.DropTableRowRequest) (int64, error) {
	started := time.Now()
	deleted, err := s.dropTableRow(ctx, req)
	metrics.Observe("drop_row", started, err)
	return deleted, err
}

func (s *tableService) dropTableRow(ctx context.Context, req request.DropTableRowRequest) (int64, error) {
	catalog, err := s.Schemas.ReflectSchema(ctx, req.Schema, req.Table)
	if err != nil {
		return 0, err
	}
	column, err := catalog.Column(req.Column)
	if err != nil {
		return 0, err
	}
	predicate, err := condition.BuildComparison(column, condition.DecodedCondition{
		Operator: condition.OpEq,
		Token:    "==",
		Operand:  req.Value,
	})
	if err != nil {
		return 0, err
	}

	result := s.DB.WithContext(ctx).
		Table(s.Schemas.tableRef(req.Schema, req.Table)).
		Where(predicate).
		Delete(map[string]interface{}{})
	if result.Error != nil {
		return 0, classifyError(fmt.Sprintf("failed to delete rows of %s", catalog.QualifiedName()), result.Error)
	}
	return result.RowsAffected, nil
}

// DropAllTableData deletes every row of the table and returns how many were removed.
func (s *tableService) DropAllTableData(ctx context.Context, schema, table string) (int64, error) {
	started := time.Now()
	deleted, err := s.dropAllTableData(ctx, schema, table)
	metrics.Observe("drop_all", started, err)
	return deleted, err
}

func (s *tableService) dropAllTableData(ctx context.Context, schema, table string) (int64, error) {
	if err := s.Schemas.requireTable(ctx, schema, table); err != nil {
		return 0, err
	}
	result := s.DB.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Table(s.Schemas.tableRef(schema, table)).
		Delete(map[string]interface{}{})
	if result.Error != nil {
		return 0, classifyError(fmt.Sprintf("failed to delete rows of %s", models.QualifiedName(schema, table)), result.Error)
	}
	return result.RowsAffected, nil
}

// ExportTable inserts rows into the table in batches. Every call is recorded in the
// export ledger; when exports are disabled nothing is written and the run is skipped.
func (s *tableService) ExportTable(ctx context.Context, req request.ExportTableRequest) (*response.ExportResult, error) {
	started := time.Now()
	result, err := s.exportTable(ctx, req)
	metrics.Observe("export", started, err)
	return result, err
}

func (s *tableService) exportTable(ctx context.Context, req request.ExportTableRequest) (*response.ExportResult, error) {
	catalog, err := s.Schemas.ReflectSchema(ctx, req.Schema, req.Table)
	if err != nil {
		return nil, err
	}
	if err := validateRowKeys(catalog, req.Rows); err != nil {
		return nil, err
	}

	run := &models.ExportRun{
		Schema:    req.Schema,
		Table:     req.Table,
		Operation: models.ExportOperationInsert,
	}
	if err := s.ExportRuns.CreateExportRun(ctx, run); err != nil {
		return nil, err
	}

	result := &response.ExportResult{
		RunID:  run.RunID,
		Schema: req.Schema,
		Table:  req.Table,
	}

	if !s.Options.ExportEnabled {
		logger.Warn("export disabled, no rows written", "table", catalog.QualifiedName(), "rows", len(req.Rows))
		if err := s.ExportRuns.FinishExportRun(ctx, run, models.ExportStatusSkipped, 0, nil); err != nil {
			return nil, err
		}
		return result, nil
	}

	var inserted int64
	if len(req.Rows) > 0 {
		insert := s.DB.WithContext(ctx).
			Table(s.Schemas.tableRef(req.Schema, req.Table)).
			CreateInBatches(req.Rows, s.Options.BatchSize)
		if insert.Error != nil {
			cause := classifyError(fmt.Sprintf("failed to export %s", catalog.QualifiedName()), insert.Error)
			if err := s.ExportRuns.FinishExportRun(ctx, run, models.ExportStatusFailed, 0, cause); err != nil {
				logger.Error("failed to record export failure", "runID", run.RunID, "error", err)
			}
			return nil, cause
		}
		inserted = insert.RowsAffected
	}

	if err := s.ExportRuns.FinishExportRun(ctx, run, models.ExportStatusSucceeded, inserted, nil); err != nil {
		return nil, err
	}
	result.Performed = true
	result.Inserted = inserted
	return result, nil
}

// validateRowKeys rejects rows naming columns the table does not have.
func validateRowKeys(catalog *models.SchemaCatalog, rows []map[string]interface{}) error {
	unknown := make(map[string]struct{})
	for _, row := range rows {
		for key := range row {
			if _, ok := catalog.Lookup(key); !ok {
				unknown[key] = struct{}{}
			}
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	names := make([]string, 0, len(unknown))
	for name := range unknown {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("%w: %v not in %s", models.ErrUnknownColumn, names, catalog.QualifiedName())
}
