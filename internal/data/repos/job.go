package repos

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

type JobRepo interface {
	Create(dbc dbctx.Context, job *domain.Job) error
	GetByID(dbc dbctx.Context, id string) (*domain.Job, error)
	List(dbc dbctx.Context, universeSlug, status string, limit int) ([]*domain.Job, error)
	UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id string, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	DeleteStale(dbc dbctx.Context, completedBefore time.Time) (int64, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (r *jobRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *jobRepo) Create(dbc dbctx.Context, job *domain.Job) error {
	return r.conn(dbc).Create(job).Error
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id string) (*domain.Job, error) {
	var job domain.Job
	err := r.conn(dbc).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) List(dbc dbctx.Context, universeSlug, status string, limit int) ([]*domain.Job, error) {
	q := r.conn(dbc).Model(&domain.Job{})
	if universeSlug != "" {
		q = q.Where("univers_slug = ?", universeSlug)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*domain.Job
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *jobRepo) UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.conn(dbc).Model(&domain.Job{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateFieldsUnlessStatus applies updates only if the job exists and its
// status is not one of the disallowed values. Returns whether a row changed.
func (r *jobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id string, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	q := r.conn(dbc).Model(&domain.Job{}).Where("id = ?", id)
	if len(disallowedStatuses) > 0 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteStale removes terminal jobs completed before the cutoff.
// Pending and running jobs are never touched.
func (r *jobRepo) DeleteStale(dbc dbctx.Context, completedBefore time.Time) (int64, error) {
	res := r.conn(dbc).
		Where("status IN ?", []string{domain.JobStatusCompleted, domain.JobStatusFailed}).
		Where("completed_at IS NOT NULL AND completed_at < ?", completedBefore).
		Delete(&domain.Job{})
	return res.RowsAffected, res.Error
}
