package serviceimpl

import (
	"context"
	"fmt"
	"github.com/AndresDFlores/go-dbaccess/models"
	"github.com/AndresDFlores/go-dbaccess/request"
	"github.com/AndresDFlores/go-dbaccess/service"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"time"
)

type exportRunService struct {
	DB *gorm.DB
}

var _ service.ExportRunService = &exportRunService{}

func NewExportRunService(db *gorm.DB) *exportRunService {
	return &exportRunService{DB: db}
}

// CreateExportRun stores a new run, assigning its RunID and start time.
func (s *exportRunService) CreateExportRun(ctx context.Context, run *models.ExportRun) error {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.ExportStatusSucceeded
	}
	if err := s.DB.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create export run: %w", err)
	}
	return nil
}

// FinishExportRun stores the outcome of a run. A non-nil cause marks the run failed
// whatever status was passed.
func (s *exportRunService) FinishExportRun(ctx context.Context, run *models.ExportRun, status string, rowCount int64, cause error) error {
	finishedAt := time.Now().UTC()
	run.Status = status
	run.RowCount = rowCount
	run.FinishedAt = &finishedAt
	run.FailureReason = nil
	if cause != nil {
		reason := cause.Error()
		run.Status = models.ExportStatusFailed
		run.FailureReason = &reason
	}

	updates := map[string]interface{}{
		"status":         run.Status,
		"row_count":      run.RowCount,
		"finished_at":    run.FinishedAt,
		"failure_reason": run.FailureReason,
		"location":       run.Location,
	}
	if err := s.DB.WithContext(ctx).Model(run).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update export run %s: %w", run.RunID, err)
	}
	return nil
}

func (s *exportRunService) GetExportRuns(ctx context.Context, req request.GetExportRunsRequest) ([]models.ExportRun, int64, error) {
	var runs []models.ExportRun
	var count int64

	// Start query
	query := s.DB.WithContext(ctx).Model(&models.ExportRun{})

	query = request.ApplyGetExportRunsRequest(req, query)

	// Calculate total count before applying pagination
	countQuery := query
	if err := countQuery.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count export runs: %w", err)
	}

	if req.PaginationConditions.SortBy == nil {
		sortBy := "id"
		req.PaginationConditions.SortBy = &sortBy
	}
	query = request.ApplyPaginationConditions(query, req.PaginationConditions)

	if err := query.Find(&runs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch export runs: %w", err)
	}

	return runs, count, nil
}
