package models

import (
	"gorm.io/gorm"
	"time"
)

type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"index" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

const (
	ExportOperationInsert = "insert"
	ExportOperationDump   = "dump"

	ExportStatusSucceeded = "succeeded"
	ExportStatusFailed    = "failed"
	ExportStatusSkipped   = "skipped"
)

// ExportRun records one attempt to write table data, either into the database
// (insert) or out of it (dump).
type ExportRun struct {
	BaseModel
	RunID         string     `gorm:"size:36;not null;uniqueIndex" json:"runID"`
	Schema        string     `gorm:"column:schema_name;size:100;index" json:"schema"`
	Table         string     `gorm:"column:table_name;size:255;not null;index" json:"table"`
	Operation     string     `gorm:"size:20;not null;index" json:"operation"`                  // insert, dump
	RowCount      int64      `gorm:"not null;default:0" json:"rowCount"`                       // Rows written
	Status        string     `gorm:"size:20;not null;default:'succeeded';index" json:"status"` // succeeded, failed, skipped
	FailureReason *string    `gorm:"type:text" json:"failureReason"`
	Location      *string    `gorm:"type:text" json:"location"` // Output file for dumps
	StartedAt     time.Time  `gorm:"not null;index" json:"startedAt"`
	FinishedAt    *time.Time `gorm:"" json:"finishedAt"`
}

func (ExportRun) TableName() string {
	return "dbaccess_export_runs"
}
