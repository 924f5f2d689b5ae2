package repository

import (
	"context"
	"errors"
	"time"

	"townsquare/internal/models"
	"townsquare/internal/observability"

	"gorm.io/gorm"
)

// ReportFilter narrows an admin report listing. Zero values match everything.
type ReportFilter struct {
	Status      models.ReportStatus
	ContentType models.ContentType
	Limit       int
	Offset      int
}

// ReportRepository persists moderation reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uint) (*models.Report, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error)
	// MarkDecided moves a pending report to status. It fails with
	// ErrReportAlreadyDecided when the report is no longer pending.
	MarkDecided(ctx context.Context, id uint, status models.ReportStatus, adminID string, at time.Time) error
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository returns a new ReportRepository implementation.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	defer observability.TrackQuery("insert", "reports")()
	if report.Status == "" {
		report.Status = models.ReportStatusPending
	}
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("You have already reported this content", models.ErrDuplicateReport)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *reportRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Report, error) {
	return r.get(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *reportRepository) get(db *gorm.DB, id uint) (*models.Report, error) {
	defer observability.TrackQuery("select", "reports")()
	var report models.Report
	if err := db.First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Report", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &report, nil
}

func (r *reportRepository) List(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error) {
	defer observability.TrackQuery("select", "reports")()

	query := r.db.WithContext(ctx).Model(&models.Report{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ContentType != "" {
		query = query.Where("content_type = ?", filter.ContentType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var reports []models.Report
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(filter.Offset).Find(&reports).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return reports, total, nil
}

func (r *reportRepository) MarkDecided(ctx context.Context, id uint, status models.ReportStatus, adminID string, at time.Time) error {
	defer observability.TrackQuery("update", "reports")()
	res := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status = ?", id, models.ReportStatusPending).
		Updates(map[string]any{
			"status":     status,
			"admin_id":   adminID,
			"decided_at": at,
		})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("Report has already been decided", models.ErrReportAlreadyDecided)
	}
	return nil
}
