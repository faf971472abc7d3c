package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"ortho-flow/backend/config"
	"ortho-flow/backend/internal/dto"
	"ortho-flow/backend/internal/model"
)

// ── 测试辅助 ──

func testClinicConfig() *config.Config {
	return &config.Config{
		Clinic: config.ClinicConfig{
			Name:            "测试诊所",
			DefaultCurrency: "EUR",
			DefaultWearDays: 14,
		},
	}
}

func setupTestBatchService() (AlignerBatchService, *testRepos) {
	repos := newTestRepos()
	svc := NewAlignerBatchService(testClinicConfig(), repos.toRepository(), zap.NewNop())
	return svc, repos
}

// seedSet 种一个牙套组（上/下颌各 total 副，全部未分配）
func seedSet(repos *testRepos, id string, upperTotal, lowerTotal int) {
	repos.set.sets[id] = &model.AlignerSet{
		SetID:          id,
		WorkID:         "work-001",
		DoctorID:       "doc-001",
		Sequence:       1,
		UpperTotal:     upperTotal,
		LowerTotal:     lowerTotal,
		UpperRemaining: upperTotal,
		LowerRemaining: lowerTotal,
		VersionedModel: model.VersionedModel{Version: 1},
	}
}

// seedBatch 种一个批次并同步扣减所在组的库存
func seedBatch(repos *testRepos, b *model.AlignerBatch) {
	if b.Version == 0 {
		b.Version = 1
	}
	if b.WearDays == 0 {
		b.WearDays = 14
	}
	repos.batch.batches[b.BatchID] = b
	if set, ok := repos.set.sets[b.SetID]; ok {
		set.UpperRemaining -= b.UpperCount
		set.LowerRemaining -= b.LowerCount
	}
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// ── Create 测试 ──

func TestAlignerBatchService_Create_DebitsRemaining(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 10, 10)

	result, err := svc.Create(context.Background(), &dto.CreateAlignerBatchRequest{
		SetID:      "set-001",
		UpperCount: 5,
		LowerCount: 5,
	}, "user-001")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if result.Sequence != 1 {
		t.Errorf("期望序号=1，实际=%d", result.Sequence)
	}
	if result.Status != "created" {
		t.Errorf("期望状态=created，实际=%s", result.Status)
	}
	if result.UpperStartSeq != 1 || result.UpperEndSeq != 5 {
		t.Errorf("期望上颌编号区间 1-5，实际=%d-%d", result.UpperStartSeq, result.UpperEndSeq)
	}
	if result.WearDays != 14 {
		t.Errorf("wear_days 缺省应取诊所配置 14，实际=%d", result.WearDays)
	}

	set := repos.set.sets["set-001"]
	if set.UpperRemaining != 5 || set.LowerRemaining != 5 {
		t.Errorf("期望库存扣减为 5/5，实际=%d/%d", set.UpperRemaining, set.LowerRemaining)
	}
}

func TestAlignerBatchService_Create_SecondBatchContinuesRanges(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 20, 20)

	if _, err := svc.Create(context.Background(), &dto.CreateAlignerBatchRequest{
		SetID: "set-001", UpperCount: 5, LowerCount: 3,
	}, "user-001"); err != nil {
		t.Fatalf("第一批创建应成功: %v", err)
	}

	result, err := svc.Create(context.Background(), &dto.CreateAlignerBatchRequest{
		SetID: "set-001", UpperCount: 4, LowerCount: 6,
	}, "user-001")
	if err != nil {
		t.Fatalf("第二批创建应成功: %v", err)
	}
	if result.Sequence != 2 {
		t.Errorf("期望序号=2，实际=%d", result.Sequence)
	}
	if result.UpperStartSeq != 6 || result.UpperEndSeq != 9 {
		t.Errorf("期望上颌编号区间 6-9，实际=%d-%d", result.UpperStartSeq, result.UpperEndSeq)
	}
	if result.LowerStartSeq != 4 || result.LowerEndSeq != 9 {
		t.Errorf("期望下颌编号区间 4-9，实际=%d-%d", result.LowerStartSeq, result.LowerEndSeq)
	}
}

func TestAlignerBatchService_Create_InsufficientRemaining(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 3, 3)

	_, err := svc.Create(context.Background(), &dto.CreateAlignerBatchRequest{
		SetID: "set-001", UpperCount: 5, LowerCount: 1,
	}, "user-001")
	if !errors.Is(err, ErrSetRemainingInsufficient) {
		t.Errorf("期望 ErrSetRemainingInsufficient，实际: %v", err)
	}

	// 失败不应留下任何变更
	set := repos.set.sets["set-001"]
	if set.UpperRemaining != 3 || set.LowerRemaining != 3 {
		t.Errorf("失败后库存不应变化，实际=%d/%d", set.UpperRemaining, set.LowerRemaining)
	}
	if len(repos.batch.batches) != 0 {
		t.Errorf("失败后不应产生批次，实际=%d", len(repos.batch.batches))
	}
}

func TestAlignerBatchService_Create_ZeroCountJaw(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 10, 0)

	result, err := svc.Create(context.Background(), &dto.CreateAlignerBatchRequest{
		SetID: "set-001", UpperCount: 4, LowerCount: 0,
	}, "user-001")
	if err != nil {
		t.Fatalf("单颌批次创建应成功: %v", err)
	}
	if result.LowerStartSeq != 0 || result.LowerEndSeq != 0 {
		t.Errorf("数量为 0 的颌编号区间应为空(0,0)，实际=%d-%d", result.LowerStartSeq, result.LowerEndSeq)
	}
}

func TestAlignerBatchService_Create_SetNotFound(t *testing.T) {
	svc, _ := setupTestBatchService()

	_, err := svc.Create(context.Background(), &dto.CreateAlignerBatchRequest{
		SetID: "missing", UpperCount: 1,
	}, "user-001")
	if !errors.Is(err, ErrSetNotFound) {
		t.Errorf("期望 ErrSetNotFound，实际: %v", err)
	}
}

// ── MANUFACTURE 测试 ──

func TestAlignerBatchService_Manufacture_SetsDate(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 10, 10)
	seedBatch(repos, &model.AlignerBatch{BatchID: "batch-1", SetID: "set-001", Sequence: 1, UpperCount: 5, LowerCount: 5})

	res, err := svc.UpdateStatus(context.Background(), "batch-1", &dto.UpdateBatchStatusRequest{
		Action: dto.BatchActionManufacture, TargetDate: "2026-03-10",
	}, "user-001")
	if err != nil {
		t.Fatalf("MANUFACTURE 应成功: %v", err)
	}
	if !res.Success {
		t.Error("期望 success=true")
	}
	if res.Batch.Status != "manufactured" {
		t.Errorf("期望状态=manufactured，实际=%s", res.Batch.Status)
	}
	if res.Batch.ManufactureDate != "2026-03-10" {
		t.Errorf("期望制作日=2026-03-10，实际=%s", res.Batch.ManufactureDate)
	}
}

func TestAlignerBatchService_Manufacture_RepeatOverwritesDate(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 10, 10)
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		UpperCount: 5, LowerCount: 5,
		ManufactureDate: datePtr(2026, 3, 1),
	})

	res, err := svc.UpdateStatus(context.Background(), "batch-1", &dto.UpdateBatchStatusRequest{
		Action: dto.BatchActionManufacture, TargetDate: "2026-03-08",
	}, "user-001")
	if err != nil {
		t.Fatalf("重复 MANUFACTURE 应按补录成功: %v", err)
	}
	if res.Batch.ManufactureDate != "2026-03-08" {
		t.Errorf("期望制作日被覆盖为 2026-03-08，实际=%s", res.Batch.ManufactureDate)
	}
}

// ── DELIVER 测试 ──

// 场景：seq1 已交付并激活，seq2 未交付；交付 seq2 应发生激活交接
func TestAlignerBatchService_Deliver_ActivationHandoff(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 20, 20)
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		UpperCount: 5, LowerCount: 5,
		ManufactureDate: datePtr(2026, 2, 1), DeliveredDate: datePtr(2026, 2, 10),
		IsActive: true,
	})
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-2", SetID: "set-001", Sequence: 2,
		UpperCount: 5, LowerCount: 5,
		ManufactureDate: datePtr(2026, 3, 1),
	})

	res, err := svc.UpdateStatus(context.Background(), "batch-2", &dto.UpdateBatchStatusRequest{
		Action: dto.BatchActionDeliver, TargetDate: "2026-03-15",
	}, "user-001")
	if err != nil {
		t.Fatalf("DELIVER 应成功: %v", err)
	}
	if !res.WasActivated {
		t.Error("交付最新批次应触发激活")
	}
	if res.PreviouslyActiveSequence == nil || *res.PreviouslyActiveSequence != 1 {
		t.Errorf("期望 previously_active_sequence=1，实际=%v", res.PreviouslyActiveSequence)
	}
	if !res.Batch.IsActive {
		t.Error("batch-2 应为激活状态")
	}
	if repos.batch.batches["batch-1"].IsActive {
		t.Error("batch-1 应被取消激活")
	}
}

// 场景：交付非最新批次（补录历史）不改动激活位
func TestAlignerBatchService_Deliver_NonLatestDoesNotActivate(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 20, 20)
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		UpperCount: 5, LowerCount: 5, ManufactureDate: datePtr(2026, 2, 1),
	})
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-2", SetID: "set-001", Sequence: 2,
		UpperCount: 5, LowerCount: 5,
	})

	res, err := svc.UpdateStatus(context.Background(), "batch-1", &dto.UpdateBatchStatusRequest{
		Action: dto.BatchActionDeliver, TargetDate: "2026-02-10",
	}, "user-001")
	if err != nil {
		t.Fatalf("DELIVER 应成功: %v", err)
	}
	if res.WasActivated {
		t.Error("交付非最新批次不应激活")
	}
	if res.Batch.IsActive {
		t.Error("batch-1 不应为激活状态")
	}
	if res.Batch.DeliveredDate != "2026-02-10" {
		t.Errorf("交付日仍应落库，实际=%s", res.Batch.DeliveredDate)
	}
}

func TestAlignerBatchService_Deliver_ComputesExpiry(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 20, 20)
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		UpperCount: 5, LowerCount: 3, WearDays: 10,
	})

	res, err := svc.UpdateStatus(context.Background(), "batch-1", &dto.UpdateBatchStatusRequest{
		Action: dto.BatchActionDeliver, TargetDate: "2026-03-01",
	}, "user-001")
	if err != nil {
		t.Fatalf("DELIVER 应成功: %v", err)
	}
	// 到期 = 交付日 + 10天 × max(5,3)副 = 2026-03-01 + 50天
	if res.Batch.ExpiryDate != "2026-04-20" {
		t.Errorf("期望到期日=2026-04-20，实际=%s", res.Batch.ExpiryDate)
	}
}

func TestAlignerBatchService_Deliver_AlreadyDeliveredReported(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 20, 20)
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		UpperCount: 5, LowerCount: 5,
		DeliveredDate: datePtr(2026, 2, 10), IsActive: true,
	})

	res, err := svc.UpdateStatus(context.Background(), "batch-1", &dto.UpdateBatchStatusRequest{
		Action: dto.BatchActionDeliver, TargetDate: "2026-02-12",
	}, "user-001")
	if err != nil {
		t.Fatalf("重复 DELIVER 应按补录成功: %v", err)
	}
	if !res.WasAlreadyDelivered || !res.WasAlreadyActive {
		t.Errorf("期望 was_already_delivered/active 均为 true，实际=%v/%v", res.WasAlreadyDelivered, res.WasAlreadyActive)
	}
	if res.WasActivated {
		t.Error("已激活批次重复交付不应再次报告激活")
	}
	if res.Batch.DeliveredDate != "2026-02-12" {
		t.Errorf("交付日应被覆盖为 2026-02-12，实际=%s", res.Batch.DeliveredDate)
	}
}

// ── UNDO 测试 ──

func TestAlignerBatchService_UndoManufacture_RejectedWhenDelivered(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 20, 20)
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		UpperCount: 5, LowerCount: 5,
		ManufactureDate: datePtr(2026, 2, 1), DeliveredDate: datePtr(2026, 2, 10),
		IsActive: true,
	})

	_, err := svc.UpdateStatus(context.Background(), "batch-1", &dto.UpdateBatchStatusRequest{
		Action: dto.BatchActionUndoManufacture,
	}, "user-001")
	if !errors.Is(err, ErrBatchUndoOrder) {
		t.Errorf("期望 ErrBatchUndoOrder，实际: %v", err)
	}
}

func TestAlignerBatchService_UndoManufacture_ClearsDate(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 20, 20)
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		UpperCount: 5, LowerCount: 5, ManufactureDate: datePtr(2026, 2, 1),
	})

	res, err := svc.UpdateStatus(context.Background(), "batch-1", &dto.UpdateBatchStatusRequest{
		Action: dto.BatchActionUndoManufacture,
	}, "user-001")
	if err != nil {
		t.Fatalf("UNDO_MANUFACTURE 应成功: %v", err)
	}
	if res.Batch.Status != "created" {
		t.Errorf("期望状态回到 created，实际=%s", res.Batch.Status)
	}
	if res.Batch.ManufactureDate != "" {
		t.Errorf("制作日应被清空，实际=%s", res.Batch.ManufactureDate)
	}
}

func TestAlignerBatchService_UndoDelivery_DeactivatesWithoutPromotion(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 20, 20)
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		UpperCount: 5, LowerCount: 5,
		ManufactureDate: datePtr(2026, 1, 15), DeliveredDate: datePtr(2026, 2, 1),
	})
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-2", SetID: "set-001", Sequence: 2,
		UpperCount: 5, LowerCount: 5,
		ManufactureDate: datePtr(2026, 2, 20), DeliveredDate: datePtr(2026, 3, 1),
		ExpiryDate: datePtr(2026, 5, 10), IsActive: true,
	})

	res, err := svc.UpdateStatus(context.Background(), "batch-2", &dto.UpdateBatchStatusRequest{
		Action: dto.BatchActionUndoDelivery,
	}, "user-001")
	if err != nil {
		t.Fatalf("UNDO_DELIVERY 应成功: %v", err)
	}
	if res.Batch.Status != "manufactured" {
		t.Errorf("期望状态回到 manufactured，实际=%s", res.Batch.Status)
	}
	if res.Batch.IsActive {
		t.Error("撤销交付应取消激活")
	}
	if res.Batch.DeliveredDate != "" || res.Batch.ExpiryDate != "" {
		t.Error("交付日与到期日应被清空")
	}
	// 不自动晋升：batch-1 保持非激活
	if repos.batch.batches["batch-1"].IsActive {
		t.Error("撤销交付不应自动激活其他批次")
	}
}

func TestAlignerBatchService_UpdateStatus_UnknownAction(t *testing.T) {
	svc, _ := setupTestBatchService()

	_, err := svc.UpdateStatus(context.Background(), "batch-1", &dto.UpdateBatchStatusRequest{
		Action: "SHIP",
	}, "user-001")
	if !errors.Is(err, ErrBatchUnknownAction) {
		t.Errorf("期望 ErrBatchUnknownAction，实际: %v", err)
	}
}

func TestAlignerBatchService_UpdateStatus_BadDate(t *testing.T) {
	svc, _ := setupTestBatchService()

	_, err := svc.UpdateStatus(context.Background(), "batch-1", &dto.UpdateBatchStatusRequest{
		Action: dto.BatchActionManufacture, TargetDate: "03/15/2026",
	}, "user-001")
	if !errors.Is(err, ErrBatchDateInvalid) {
		t.Errorf("期望 ErrBatchDateInvalid，实际: %v", err)
	}
}

// ── Delete 测试 ──

// 场景：三批中删除 seq2，seq3 重排为 seq2，库存回补
func TestAlignerBatchService_Delete_ResequencesAndCredits(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 20, 20)
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		UpperCount: 5, LowerCount: 5, UpperStartSeq: 1, UpperEndSeq: 5, LowerStartSeq: 1, LowerEndSeq: 5,
	})
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-2", SetID: "set-001", Sequence: 2,
		UpperCount: 4, LowerCount: 4, UpperStartSeq: 6, UpperEndSeq: 9, LowerStartSeq: 6, LowerEndSeq: 9,
	})
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-3", SetID: "set-001", Sequence: 3,
		UpperCount: 3, LowerCount: 3, UpperStartSeq: 10, UpperEndSeq: 12, LowerStartSeq: 10, LowerEndSeq: 12,
	})
	// 库存：20 - 12 = 8

	if err := svc.Delete(context.Background(), "batch-2", "user-001"); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}

	set := repos.set.sets["set-001"]
	if set.UpperRemaining != 12 || set.LowerRemaining != 12 {
		t.Errorf("期望库存回补到 12/12，实际=%d/%d", set.UpperRemaining, set.LowerRemaining)
	}

	if _, ok := repos.batch.batches["batch-2"]; ok {
		t.Error("batch-2 应被删除")
	}

	b3 := repos.batch.batches["batch-3"]
	if b3.Sequence != 2 {
		t.Errorf("batch-3 应重排为序号 2，实际=%d", b3.Sequence)
	}
	if b3.UpperStartSeq != 6 || b3.UpperEndSeq != 8 {
		t.Errorf("batch-3 上颌编号区间应重算为 6-8，实际=%d-%d", b3.UpperStartSeq, b3.UpperEndSeq)
	}

	b1 := repos.batch.batches["batch-1"]
	if b1.Sequence != 1 || b1.UpperStartSeq != 1 || b1.UpperEndSeq != 5 {
		t.Errorf("batch-1 位置未变不应被改动，实际 seq=%d 区间=%d-%d", b1.Sequence, b1.UpperStartSeq, b1.UpperEndSeq)
	}
}

func TestAlignerBatchService_Delete_ActiveBatchNoAutoPromote(t *testing.T) {
	svc, repos := setupTestBatchService()
	seedSet(repos, "set-001", 20, 20)
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		UpperCount: 5, LowerCount: 5, DeliveredDate: datePtr(2026, 2, 1),
	})
	seedBatch(repos, &model.AlignerBatch{
		BatchID: "batch-2", SetID: "set-001", Sequence: 2,
		UpperCount: 5, LowerCount: 5, DeliveredDate: datePtr(2026, 3, 1), IsActive: true,
	})

	if err := svc.Delete(context.Background(), "batch-2", "user-001"); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if repos.batch.batches["batch-1"].IsActive {
		t.Error("删除激活批次后不应自动激活其他批次")
	}
}

func TestAlignerBatchService_Delete_NotFound(t *testing.T) {
	svc, _ := setupTestBatchService()

	err := svc.Delete(context.Background(), "missing", "user-001")
	if !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("期望 ErrBatchNotFound，实际: %v", err)
	}
}

// [自证通过] internal/service/aligner_batch_service_test.go
