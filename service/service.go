package service

import (
	"context"
	"github.com/AndresDFlores/go-dbaccess/models"
	"github.com/AndresDFlores/go-dbaccess/request"
	"github.com/AndresDFlores/go-dbaccess/response"
)

// ConditionService composes filter predicates from raw condition maps
type ConditionService interface {
	BuildFilteredSelection(ctx context.Context, req request.FilterRequest) (*response.FilteredSelection, error)
}

// SchemaService handles schema presence and table reflection
type SchemaService interface {
	ListSchemas(ctx context.Context) ([]string, error)
	CheckSchemaPresence(ctx context.Context, schema string) (bool, error)
	CreateNewSchema(ctx context.Context, schema string) (bool, error)
	ListTables(ctx context.Context, schema string) ([]string, error)
	CheckTablePresence(ctx context.Context, schema, table string) (bool, error)
	ReflectSchema(ctx context.Context, schema, table string) (*models.SchemaCatalog, error)
	GetColumn(ctx context.Context, schema, table, column string) (*models.ColumnDescriptor, error)
	GetSelectedColumns(ctx context.Context, schema, table string, selectColumns []string) ([]models.ColumnDescriptor, []string, error)
}

// QueryService reads table data
type QueryService interface {
	ImportTableWhere(ctx context.Context, req request.ImportTableRequest) (*response.TableRows, error)
	ImportTableLike(ctx context.Context, req request.ImportTableRequest) (*response.TableRows, error)
	ExecuteStringQuery(ctx context.Context, query string) ([]map[string]interface{}, error)
}

// TableService changes table data
type TableService interface {
	CountTableRows(ctx context.Context, schema, table string) (int64, error)
	DropTable(ctx context.Context, schema, table string) error
	DropTableRow(ctx context.Context, req request.DropTableRowRequest) (int64, error)
	DropAllTableData(ctx context.Context, schema, table string) (int64, error)
	ExportTable(ctx context.Context, req request.ExportTableRequest) (*response.ExportResult, error)
}

type ExportRunService interface {
	CreateExportRun(ctx context.Context, run *models.ExportRun) error
	FinishExportRun(ctx context.Context, run *models.ExportRun, status string, rowCount int64, cause error) error
	GetExportRuns(ctx context.Context, req request.GetExportRunsRequest) ([]models.ExportRun, int64, error)
}

type DumpService interface {
	DumpDatabase(ctx context.Context, req request.DumpDatabaseRequest) (*response.DumpResult, error)
}
