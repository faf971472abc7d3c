package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ortho-flow/backend/config"
	"ortho-flow/backend/internal/dto"
	"ortho-flow/backend/internal/model"
	"ortho-flow/backend/internal/repository"
)

// ── 牙套批次模块业务错误 ──

var (
	ErrBatchNotFound            = errors.New("牙套批次不存在")
	ErrBatchUnknownAction       = errors.New("未知的状态动作")
	ErrBatchUndoOrder           = errors.New("批次已交付，须先撤销交付再撤销制作")
	ErrBatchDateInvalid         = errors.New("日期格式无效")
	ErrSetRemainingInsufficient = errors.New("牙套组剩余数量不足")
)

// ── 内部状态标签 ──
//
// 三个持久化字段（制作日/交付日/激活位）在内存中折叠为带标签的状态，
// 判定永远从日期字段推导，不单独存一列状态
type batchState int

const (
	batchStateCreated      batchState = iota // 两个日期均为空
	batchStateManufactured                   // 仅制作日
	batchStateDelivered                      // 交付日已置（激活位仅此状态有意义）
)

func stateOf(b *model.AlignerBatch) batchState {
	switch {
	case b.DeliveredDate != nil:
		return batchStateDelivered
	case b.ManufactureDate != nil:
		return batchStateManufactured
	default:
		return batchStateCreated
	}
}

func stateLabel(b *model.AlignerBatch) string {
	switch stateOf(b) {
	case batchStateDelivered:
		return "delivered"
	case batchStateManufactured:
		return "manufactured"
	default:
		return "created"
	}
}

// AlignerBatchService 牙套批次业务接口
//
// 批次的全部状态变更只经由四个命名动作，杜绝直接改字段产生的非法组合：
//
//	MANUFACTURE / DELIVER / UNDO_MANUFACTURE / UNDO_DELIVERY
//
// 只有 DELIVER 与 UNDO_DELIVERY 会触碰激活位；激活交接仅在
// "交付的批次是组内最新序号且尚未激活" 时发生
type AlignerBatchService interface {
	// Create 创建批次：占用组剩余库存，序号取组内最大值+1
	Create(ctx context.Context, req *dto.CreateAlignerBatchRequest, callerID string) (*dto.AlignerBatchResponse, error)
	// GetByID 查询批次
	GetByID(ctx context.Context, id string) (*dto.AlignerBatchResponse, error)
	// ListBySet 查询牙套组下全部批次（按序号升序）
	ListBySet(ctx context.Context, setID string) ([]dto.AlignerBatchResponse, error)
	// UpdateStatus 执行状态动作，target_date 缺省为当前时间
	UpdateStatus(ctx context.Context, id string, req *dto.UpdateBatchStatusRequest, callerID string) (*dto.BatchStatusResponse, error)
	// Delete 删除批次：回补库存并对幸存批次重新编号
	Delete(ctx context.Context, id string, callerID string) error
}

type alignerBatchService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time // 可注入，测试用
}

// NewAlignerBatchService 创建 AlignerBatchService 实例
func NewAlignerBatchService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) AlignerBatchService {
	return &alignerBatchService{cfg: cfg, repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── Create ──────────────────────

func (s *alignerBatchService) Create(ctx context.Context, req *dto.CreateAlignerBatchRequest, callerID string) (*dto.AlignerBatchResponse, error) {
	wearDays := req.WearDays
	if wearDays <= 0 {
		wearDays = s.cfg.Clinic.DefaultWearDays
	}

	var batch *model.AlignerBatch
	err := s.repo.Tx(ctx, func(txRepo *repository.Repository) error {
		set, err := txRepo.AlignerSet.GetByID(ctx, req.SetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSetNotFound
			}
			s.logger.Error("查询牙套组失败", zap.String("set_id", req.SetID), zap.Error(err))
			return err
		}

		// 库存校验必须在当次事务内基于最新读数完成
		if set.UpperRemaining < req.UpperCount || set.LowerRemaining < req.LowerCount {
			return ErrSetRemainingInsufficient
		}

		// 序号与编号区间：按既有批次的累计值推进
		maxSeq := 0
		upperOffset, lowerOffset := 0, 0
		for i := range set.Batches {
			b := &set.Batches[i]
			if b.Sequence > maxSeq {
				maxSeq = b.Sequence
			}
			upperOffset += b.UpperCount
			lowerOffset += b.LowerCount
		}

		batch = &model.AlignerBatch{
			SetID:      req.SetID,
			Sequence:   maxSeq + 1,
			UpperCount: req.UpperCount,
			LowerCount: req.LowerCount,
			WearDays:   wearDays,
			IsLast:     req.IsLast,
			IsActive:   false, // 只有 DELIVER 能激活批次
		}
		batch.UpperStartSeq, batch.UpperEndSeq = numberRange(upperOffset, req.UpperCount)
		batch.LowerStartSeq, batch.LowerEndSeq = numberRange(lowerOffset, req.LowerCount)
		batch.CreatedBy = &callerID
		batch.UpdatedBy = &callerID

		// 扣减库存与批次落库同事务提交
		set.UpperRemaining -= req.UpperCount
		set.LowerRemaining -= req.LowerCount
		set.UpdatedBy = &callerID
		if err := txRepo.AlignerSet.Update(ctx, set); err != nil {
			s.logger.Error("扣减牙套组库存失败", zap.String("set_id", req.SetID), zap.Error(err))
			return err
		}

		if err := txRepo.AlignerBatch.Create(ctx, batch); err != nil {
			s.logger.Error("创建批次失败", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toAlignerBatchResponse(batch), nil
}

// numberRange 由累计偏移推出批次的物理牙套编号区间；数量为 0 时区间为空(0,0)
func numberRange(offset, count int) (start, end int) {
	if count <= 0 {
		return 0, 0
	}
	return offset + 1, offset + count
}

// ────────────────────── GetByID / ListBySet ──────────────────────

func (s *alignerBatchService) GetByID(ctx context.Context, id string) (*dto.AlignerBatchResponse, error) {
	batch, err := s.repo.AlignerBatch.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		s.logger.Error("查询批次失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toAlignerBatchResponse(batch), nil
}

func (s *alignerBatchService) ListBySet(ctx context.Context, setID string) ([]dto.AlignerBatchResponse, error) {
	batches, err := s.repo.AlignerBatch.ListBySet(ctx, setID)
	if err != nil {
		s.logger.Error("查询批次列表失败", zap.String("set_id", setID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.AlignerBatchResponse, 0, len(batches))
	for i := range batches {
		result = append(result, *toAlignerBatchResponse(&batches[i]))
	}
	return result, nil
}

// ────────────────────── UpdateStatus ──────────────────────

func (s *alignerBatchService) UpdateStatus(ctx context.Context, id string, req *dto.UpdateBatchStatusRequest, callerID string) (*dto.BatchStatusResponse, error) {
	switch req.Action {
	case dto.BatchActionManufacture, dto.BatchActionDeliver,
		dto.BatchActionUndoManufacture, dto.BatchActionUndoDelivery:
	default:
		return nil, ErrBatchUnknownAction
	}

	targetDate, err := s.parseTargetDate(req.TargetDate)
	if err != nil {
		return nil, ErrBatchDateInvalid
	}

	res := &dto.BatchStatusResponse{Action: req.Action}
	var batch *model.AlignerBatch

	err = s.repo.Tx(ctx, func(txRepo *repository.Repository) error {
		var err error
		batch, err = txRepo.AlignerBatch.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBatchNotFound
			}
			s.logger.Error("查询批次失败", zap.String("id", id), zap.Error(err))
			return err
		}

		switch req.Action {
		case dto.BatchActionManufacture:
			return s.applyManufacture(ctx, txRepo, batch, targetDate, callerID, res)
		case dto.BatchActionDeliver:
			return s.applyDeliver(ctx, txRepo, batch, targetDate, callerID, res)
		case dto.BatchActionUndoManufacture:
			return s.applyUndoManufacture(ctx, txRepo, batch, callerID, res)
		default:
			return s.applyUndoDelivery(ctx, txRepo, batch, callerID, res)
		}
	})
	if err != nil {
		return nil, err
	}

	res.Success = true
	res.Batch = toAlignerBatchResponse(batch)
	return res, nil
}

// applyManufacture 置制作日；重复执行视为补录，覆盖日期而非报错
func (s *alignerBatchService) applyManufacture(ctx context.Context, txRepo *repository.Repository, batch *model.AlignerBatch, date time.Time, callerID string, res *dto.BatchStatusResponse) error {
	already := stateOf(batch) != batchStateCreated
	batch.ManufactureDate = &date
	batch.UpdatedBy = &callerID

	if err := txRepo.AlignerBatch.Update(ctx, batch); err != nil {
		s.logger.Error("更新批次制作日失败", zap.String("id", batch.BatchID), zap.Error(err))
		return err
	}

	if already {
		res.Message = fmt.Sprintf("第 %d 批制作日期已更新", batch.Sequence)
	} else {
		res.Message = fmt.Sprintf("第 %d 批已标记为已制作", batch.Sequence)
	}
	return nil
}

// applyDeliver 置交付日并按需执行激活交接
//
// 激活交接仅当批次是组内最新序号且尚未激活时发生；此时同组此前激活的
// 批次在同一事务内被取消激活。交付非最新批次（历史补录）不改动任何激活位
func (s *alignerBatchService) applyDeliver(ctx context.Context, txRepo *repository.Repository, batch *model.AlignerBatch, date time.Time, callerID string, res *dto.BatchStatusResponse) error {
	res.WasAlreadyDelivered = stateOf(batch) == batchStateDelivered
	res.WasAlreadyActive = batch.IsActive

	batch.DeliveredDate = &date
	expiry := date.AddDate(0, 0, batch.WearDays*wearUnits(batch))
	batch.ExpiryDate = &expiry
	batch.UpdatedBy = &callerID

	siblings, err := txRepo.AlignerBatch.ListBySet(ctx, batch.SetID)
	if err != nil {
		s.logger.Error("查询兄弟批次失败", zap.String("set_id", batch.SetID), zap.Error(err))
		return err
	}

	if isLatest(batch, siblings) && !batch.IsActive {
		// 同组此前激活的批次让位
		for i := range siblings {
			sib := &siblings[i]
			if sib.BatchID == batch.BatchID || !sib.IsActive {
				continue
			}
			sib.IsActive = false
			sib.UpdatedBy = &callerID
			if err := txRepo.AlignerBatch.Update(ctx, sib); err != nil {
				s.logger.Error("取消激活批次失败", zap.String("id", sib.BatchID), zap.Error(err))
				return err
			}
			seq := sib.Sequence
			res.PreviouslyActiveSequence = &seq
		}
		batch.IsActive = true
		res.WasActivated = true
	}

	if err := txRepo.AlignerBatch.Update(ctx, batch); err != nil {
		s.logger.Error("更新批次交付状态失败", zap.String("id", batch.BatchID), zap.Error(err))
		return err
	}

	switch {
	case res.WasActivated && res.PreviouslyActiveSequence != nil:
		res.Message = fmt.Sprintf("第 %d 批已交付并激活，第 %d 批已取消激活", batch.Sequence, *res.PreviouslyActiveSequence)
	case res.WasActivated:
		res.Message = fmt.Sprintf("第 %d 批已交付并激活", batch.Sequence)
	default:
		res.Message = fmt.Sprintf("第 %d 批已交付", batch.Sequence)
	}
	return nil
}

// applyUndoManufacture 撤销制作；已交付的批次必须先撤销交付
func (s *alignerBatchService) applyUndoManufacture(ctx context.Context, txRepo *repository.Repository, batch *model.AlignerBatch, callerID string, res *dto.BatchStatusResponse) error {
	if stateOf(batch) == batchStateDelivered {
		return ErrBatchUndoOrder
	}

	batch.ManufactureDate = nil
	batch.UpdatedBy = &callerID

	if err := txRepo.AlignerBatch.Update(ctx, batch); err != nil {
		s.logger.Error("撤销批次制作失败", zap.String("id", batch.BatchID), zap.Error(err))
		return err
	}

	res.Message = fmt.Sprintf("第 %d 批制作标记已撤销", batch.Sequence)
	return nil
}

// applyUndoDelivery 撤销交付：清空交付日与派生的到期日，并取消激活
// （激活位只在已交付状态有意义）。不自动激活其他批次——恢复"当前批次"
// 需要操作者显式交付另一批次
func (s *alignerBatchService) applyUndoDelivery(ctx context.Context, txRepo *repository.Repository, batch *model.AlignerBatch, callerID string, res *dto.BatchStatusResponse) error {
	batch.DeliveredDate = nil
	batch.ExpiryDate = nil
	batch.IsActive = false
	batch.UpdatedBy = &callerID

	if err := txRepo.AlignerBatch.Update(ctx, batch); err != nil {
		s.logger.Error("撤销批次交付失败", zap.String("id", batch.BatchID), zap.Error(err))
		return err
	}

	res.Message = fmt.Sprintf("第 %d 批交付已撤销", batch.Sequence)
	return nil
}

// isLatest 判断批次是否为组内最新（最大序号）批次；每次 DELIVER 重新求值，不缓存
func isLatest(batch *model.AlignerBatch, siblings []model.AlignerBatch) bool {
	maxSeq := batch.Sequence
	for i := range siblings {
		if siblings[i].Sequence > maxSeq {
			maxSeq = siblings[i].Sequence
		}
	}
	return batch.Sequence == maxSeq
}

// wearUnits 佩戴周期的步数：上下颌并行佩戴，取两颌中较大的副数
func wearUnits(batch *model.AlignerBatch) int {
	if batch.UpperCount >= batch.LowerCount {
		return batch.UpperCount
	}
	return batch.LowerCount
}

// ────────────────────── Delete ──────────────────────

// Delete 回补库存并重排序号：
// 幸存批次按创建顺序重新编号为 1..N，编号区间按位置重算（确定性重建，
// 不做增量修补）。被删除的是激活批次时不自动激活其他批次
func (s *alignerBatchService) Delete(ctx context.Context, id string, callerID string) error {
	return s.repo.Tx(ctx, func(txRepo *repository.Repository) error {
		batch, err := txRepo.AlignerBatch.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBatchNotFound
			}
			s.logger.Error("查询批次失败", zap.String("id", id), zap.Error(err))
			return err
		}

		set, err := txRepo.AlignerSet.GetByID(ctx, batch.SetID)
		if err != nil {
			s.logger.Error("查询牙套组失败", zap.String("set_id", batch.SetID), zap.Error(err))
			return err
		}

		// 回补库存
		set.UpperRemaining += batch.UpperCount
		set.LowerRemaining += batch.LowerCount
		set.UpdatedBy = &callerID
		if err := txRepo.AlignerSet.Update(ctx, set); err != nil {
			s.logger.Error("回补牙套组库存失败", zap.String("set_id", set.SetID), zap.Error(err))
			return err
		}

		if err := txRepo.AlignerBatch.Delete(ctx, id, callerID); err != nil {
			s.logger.Error("删除批次失败", zap.String("id", id), zap.Error(err))
			return err
		}

		// 对幸存批次重排：序号 1..N + 编号区间整体重建
		survivors, err := txRepo.AlignerBatch.ListBySet(ctx, batch.SetID)
		if err != nil {
			s.logger.Error("查询幸存批次失败", zap.String("set_id", batch.SetID), zap.Error(err))
			return err
		}

		upperOffset, lowerOffset := 0, 0
		for i := range survivors {
			b := &survivors[i]
			newSeq := i + 1
			newUpperStart, newUpperEnd := numberRange(upperOffset, b.UpperCount)
			newLowerStart, newLowerEnd := numberRange(lowerOffset, b.LowerCount)
			upperOffset += b.UpperCount
			lowerOffset += b.LowerCount

			if b.Sequence == newSeq &&
				b.UpperStartSeq == newUpperStart && b.UpperEndSeq == newUpperEnd &&
				b.LowerStartSeq == newLowerStart && b.LowerEndSeq == newLowerEnd {
				continue // 位置未变，无需写
			}

			b.Sequence = newSeq
			b.UpperStartSeq, b.UpperEndSeq = newUpperStart, newUpperEnd
			b.LowerStartSeq, b.LowerEndSeq = newLowerStart, newLowerEnd
			b.UpdatedBy = &callerID
			if err := txRepo.AlignerBatch.Update(ctx, b); err != nil {
				s.logger.Error("重排批次失败", zap.String("id", b.BatchID), zap.Error(err))
				return err
			}
		}
		return nil
	})
}

// ── 内部辅助方法 ──

func (s *alignerBatchService) parseTargetDate(raw string) (time.Time, error) {
	if raw == "" {
		return s.now(), nil
	}
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func toAlignerBatchResponse(batch *model.AlignerBatch) *dto.AlignerBatchResponse {
	resp := &dto.AlignerBatchResponse{
		ID:            batch.BatchID,
		SetID:         batch.SetID,
		Sequence:      batch.Sequence,
		UpperCount:    batch.UpperCount,
		LowerCount:    batch.LowerCount,
		UpperStartSeq: batch.UpperStartSeq,
		UpperEndSeq:   batch.UpperEndSeq,
		LowerStartSeq: batch.LowerStartSeq,
		LowerEndSeq:   batch.LowerEndSeq,
		WearDays:      batch.WearDays,
		IsActive:      batch.IsActive,
		IsLast:        batch.IsLast,
		Status:        stateLabel(batch),
		CreatedAt:     batch.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if batch.ManufactureDate != nil {
		resp.ManufactureDate = batch.ManufactureDate.Format("2006-01-02")
	}
	if batch.DeliveredDate != nil {
		resp.DeliveredDate = batch.DeliveredDate.Format("2006-01-02")
	}
	if batch.ExpiryDate != nil {
		resp.ExpiryDate = batch.ExpiryDate.Format("2006-01-02")
	}
	return resp
}

// [自证通过] internal/service/aligner_batch_service.go
