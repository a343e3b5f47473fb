package migration

import (
	"github.com/AndresDFlores/go-dbaccess/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

var CreateExportRuns = &gormigrate.Migration{
	ID: "202610170900-dba-export-runs",
	Migrate: func(db *gorm.DB) error {
		return db.AutoMigrate(&models.ExportRun{})
	},
	Rollback: func(db *gorm.DB) error {
		return db.Migrator().DropTable(&models.ExportRun{})
	},
}
