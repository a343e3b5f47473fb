package serviceimpl

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"github.com/AndresDFlores/go-dbaccess/internal/logger"
	"github.com/AndresDFlores/go-dbaccess/internal/metrics"
	"github.com/AndresDFlores/go-dbaccess/models"
	"github.com/AndresDFlores/go-dbaccess/request"
	"github.com/AndresDFlores/go-dbaccess/response"
	"github.com/AndresDFlores/go-dbaccess/service"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

const defaultDumpWorkers = 4

// Bookkeeping tables owned by this module are never dumped.
var skippedTables = map[string]struct{}{
	models.ExportRun{}.TableName(): {},
	"dbaccess_migrations":          {},
}

type dumpService struct {
	DB         *gorm.DB
	Schemas    *schemaService
	Queries    *queryService
	ExportRuns service.ExportRunService
	Workers    int
}

var _ service.DumpService = &dumpService{}

func NewDumpService(db *gorm.DB, exportRuns service.ExportRunService, workers int) *dumpService {
	if workers <= 0 {
		workers = defaultDumpWorkers
	}
	return &dumpService{
		DB:         db,
		Schemas:    NewSchemaService(db),
		Queries:    NewQueryService(db),
		ExportRuns: exportRuns,
		Workers:    workers,
	}
}

type dumpTarget struct {
	schema string
	table  string
}

// DumpDatabase writes every table of the requested schemas to <dir>/<schema>.<table>.csv.
// Tables are processed concurrently; a failing table does not stop the others and all
// failures are returned together.
func (s *dumpService) DumpDatabase(ctx context.Context, req request.DumpDatabaseRequest) (*response.DumpResult, error) {
	started := time.Now()
	result, err := s.dumpDatabase(ctx, req)
	metrics.Observe("dump", started, err)
	return result, err
}

func (s *dumpService) dumpDatabase(ctx context.Context, req request.DumpDatabaseRequest) (*response.DumpResult, error) {
	if req.Dir == "" {
		return nil, fmt.Errorf("dump directory is required")
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dump directory: %w", err)
	}

	targets, err := s.targets(ctx, req.Schemas)
	if err != nil {
		return nil, err
	}

	workers := req.Workers
	if workers <= 0 {
		workers = s.Workers
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v any) {
		logger.Error("dump worker panicked", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		tables []response.DumpedTable
		errs   []error
	)
	for _, target := range targets {
		target := target
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			dumped, err := s.dumpTable(ctx, req.Dir, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			tables = append(tables, *dumped)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("failed to schedule %s: %w", models.QualifiedName(target.schema, target.table), submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()

	sort.Slice(tables, func(i, j int) bool {
		return tables[i].Path < tables[j].Path
	})
	return &response.DumpResult{Tables: tables}, errors.Join(errs...)
}

func (s *dumpService) targets(ctx context.Context, schemas []string) ([]dumpTarget, error) {
	if len(schemas) == 0 {
		all, err := s.Schemas.ListSchemas(ctx)
		if err != nil {
			return nil, err
		}
		schemas = all
	}

	var targets []dumpTarget
	for _, schema := range schemas {
		present, err := s.Schemas.CheckSchemaPresence(ctx, schema)
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, fmt.Errorf("%w: schema %s", models.ErrSchemaNotFound, schema)
		}
		tables, err := s.Schemas.ListTables(ctx, schema)
		if err != nil {
			return nil, err
		}
		for _, table := range tables {
			if _, skip := skippedTables[table]; skip {
				continue
			}
			targets = append(targets, dumpTarget{schema: schema, table: table})
		}
	}
	return targets, nil
}

func (s *dumpService) dumpTable(ctx context.Context, dir string, target dumpTarget) (*response.DumpedTable, error) {
	name := models.QualifiedName(target.schema, target.table)
	run := &models.ExportRun{
		Schema:    target.schema,
		Table:     target.table,
		Operation: models.ExportOperationDump,
	}
	if err := s.ExportRuns.CreateExportRun(ctx, run); err != nil {
		return nil, err
	}

	path, rows, err := s.writeTable(ctx, dir, target)
	run.Location = &path
	status := models.ExportStatusSucceeded
	if err != nil {
		status = models.ExportStatusFailed
		logger.Error("failed to dump table", "table", name, "error", err)
	}
	if finishErr := s.ExportRuns.FinishExportRun(ctx, run, status, rows, err); finishErr != nil {
		return nil, errors.Join(err, finishErr)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("dumped table", "table", name, "rows", rows, "path", path)
	return &response.DumpedTable{Schema: target.schema, Table: target.table, Path: path, Rows: rows}, nil
}

func (s *dumpService) writeTable(ctx context.Context, dir string, target dumpTarget) (string, int64, error) {
	schema := target.schema
	if schema == "" {
		schema = "main"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s.csv", schema, target.table))

	imported, err := s.Queries.importTable(ctx, request.ImportTableRequest{
		Schema: target.schema,
		Table:  target.table,
	}, request.ComparisonMode)
	if err != nil {
		return path, 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		return path, 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(imported.Columns); err != nil {
		return path, 0, fmt.Errorf("failed to write header of %s: %w", path, err)
	}
	record := make([]string, len(imported.Columns))
	for _, row := range imported.Rows {
		for i, column := range imported.Columns {
			record[i] = formatCell(row[column])
		}
		if err := writer.Write(record); err != nil {
			return path, 0, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return path, 0, fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return path, int64(len(imported.Rows)), nil
}

func formatCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
