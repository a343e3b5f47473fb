package go_dbaccess

import (
	"github.com/AndresDFlores/go-dbaccess/internal/condition"
	db2 "github.com/AndresDFlores/go-dbaccess/internal/db"
	"github.com/AndresDFlores/go-dbaccess/internal/serviceimpl"
	"github.com/AndresDFlores/go-dbaccess/service"
	"gorm.io/gorm"
)

// Options configure a DatabaseService.
type Options struct {
	// ExportEnabled allows ExportTable to write rows. When false exports are recorded
	// as skipped and nothing is inserted.
	ExportEnabled bool
	// BatchSize is the number of rows per insert statement during exports.
	BatchSize int
	// DumpWorkers bounds how many tables DumpDatabase processes at once.
	DumpWorkers int
}

type DatabaseService struct {
	Conditions service.ConditionService
	Schemas    service.SchemaService
	Queries    service.QueryService
	Tables     service.TableService
	ExportRuns service.ExportRunService
	Dumps      service.DumpService
}

// NewDatabaseService runs the module's migrations on db and wires the services.
func NewDatabaseService(db *gorm.DB, options Options) (*DatabaseService, error) {
	if err := db2.Migrate(db); err != nil {
		return nil, err
	}

	schemas := serviceimpl.NewSchemaService(db)
	exportRuns := serviceimpl.NewExportRunService(db)
	return &DatabaseService{
		Conditions: condition.NewEngine(schemas),
		Schemas:    schemas,
		Queries:    serviceimpl.NewQueryService(db),
		Tables: serviceimpl.NewTableService(db, exportRuns, serviceimpl.TableOptions{
			ExportEnabled: options.ExportEnabled,
			BatchSize:     options.BatchSize,
		}),
		ExportRuns: exportRuns,
		Dumps:      serviceimpl.NewDumpService(db, exportRuns, options.DumpWorkers),
	}, nil
}
