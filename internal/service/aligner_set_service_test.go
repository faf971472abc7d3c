package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"ortho-flow/backend/internal/dto"
	"ortho-flow/backend/internal/model"
	"ortho-flow/backend/internal/repository"
)

// ── 测试辅助 ──

func setupTestSetService() (AlignerSetService, *testRepos) {
	repos := newTestRepos()
	// 一个疗程 + 一名可用医生
	repos.work.works["work-001"] = &model.Work{
		WorkID:         "work-001",
		PatientID:      "patient-001",
		Title:          "上下颌矫正",
		Status:         model.WorkStatusActive,
		VersionedModel: model.VersionedModel{Version: 1},
	}
	repos.user.users["doc-001"] = &model.User{
		UserID:         "doc-001",
		Name:           "王医生",
		Email:          "wang@clinic.test",
		Role:           model.RoleDoctor,
		IsActive:       true,
		VersionedModel: model.VersionedModel{Version: 1},
	}
	svc := NewAlignerSetService(testClinicConfig(), repos.toRepository(), zap.NewNop())
	return svc, repos
}

// ── Create 测试 ──

func TestAlignerSetService_Create_Success(t *testing.T) {
	svc, _ := setupTestSetService()

	result, err := svc.Create(context.Background(), &dto.CreateAlignerSetRequest{
		WorkID:     "work-001",
		DoctorID:   "doc-001",
		UpperTotal: 10,
		LowerTotal: 8,
	}, "user-001")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if result.Sequence != 1 {
		t.Errorf("期望序号=1，实际=%d", result.Sequence)
	}
	if result.UpperRemaining != 10 || result.LowerRemaining != 8 {
		t.Errorf("新组 remaining 应等于 total，实际=%d/%d", result.UpperRemaining, result.LowerRemaining)
	}
	if result.Currency != "EUR" {
		t.Errorf("币种缺省应取诊所配置 EUR，实际=%s", result.Currency)
	}
}

func TestAlignerSetService_Create_ActiveDeactivatesSiblings(t *testing.T) {
	svc, repos := setupTestSetService()
	repos.set.sets["set-old"] = &model.AlignerSet{
		SetID: "set-old", WorkID: "work-001", DoctorID: "doc-001",
		Sequence: 1, IsActive: true,
		VersionedModel: model.VersionedModel{Version: 1},
	}

	result, err := svc.Create(context.Background(), &dto.CreateAlignerSetRequest{
		WorkID: "work-001", DoctorID: "doc-001", UpperTotal: 10, IsActive: true,
	}, "user-001")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if !result.IsActive {
		t.Error("新组应为激活状态")
	}
	if result.Sequence != 2 {
		t.Errorf("期望序号=2，实际=%d", result.Sequence)
	}
	if repos.set.sets["set-old"].IsActive {
		t.Error("旧组应被取消激活")
	}
}

func TestAlignerSetService_Create_DoctorMustBeActiveDoctor(t *testing.T) {
	svc, repos := setupTestSetService()
	repos.user.users["assist-001"] = &model.User{
		UserID: "assist-001", Role: model.RoleAssistant, IsActive: true,
		VersionedModel: model.VersionedModel{Version: 1},
	}

	_, err := svc.Create(context.Background(), &dto.CreateAlignerSetRequest{
		WorkID: "work-001", DoctorID: "assist-001", UpperTotal: 10,
	}, "user-001")
	if !errors.Is(err, ErrSetDoctorInvalid) {
		t.Errorf("期望 ErrSetDoctorInvalid，实际: %v", err)
	}
}

func TestAlignerSetService_Create_WorkNotFound(t *testing.T) {
	svc, _ := setupTestSetService()

	_, err := svc.Create(context.Background(), &dto.CreateAlignerSetRequest{
		WorkID: "missing", DoctorID: "doc-001",
	}, "user-001")
	if !errors.Is(err, ErrWorkNotFound) {
		t.Errorf("期望 ErrWorkNotFound，实际: %v", err)
	}
}

// ── Update 测试 ──

// 场景：total=10，批次占用 5 → remaining=5；改 total=12 → remaining=7
func TestAlignerSetService_Update_TotalChangeShiftsRemaining(t *testing.T) {
	svc, repos := setupTestSetService()
	repos.set.sets["set-001"] = &model.AlignerSet{
		SetID: "set-001", WorkID: "work-001", DoctorID: "doc-001", Sequence: 1,
		UpperTotal: 10, LowerTotal: 10, UpperRemaining: 5, LowerRemaining: 5,
		VersionedModel: model.VersionedModel{Version: 1},
	}

	newTotal := 12
	result, err := svc.Update(context.Background(), "set-001", &dto.UpdateAlignerSetRequest{
		UpperTotal: &newTotal,
	}, "user-001")
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if result.UpperTotal != 12 {
		t.Errorf("期望 upper_total=12，实际=%d", result.UpperTotal)
	}
	if result.UpperRemaining != 7 {
		t.Errorf("期望 upper_remaining=7，实际=%d", result.UpperRemaining)
	}
	if result.LowerRemaining != 5 {
		t.Errorf("下颌不应受影响，实际=%d", result.LowerRemaining)
	}
}

// 场景：已占用 5，total 改到 3 → 拒绝且无任何变更
func TestAlignerSetService_Update_TotalBelowUsedRejected(t *testing.T) {
	svc, repos := setupTestSetService()
	repos.set.sets["set-001"] = &model.AlignerSet{
		SetID: "set-001", WorkID: "work-001", DoctorID: "doc-001", Sequence: 1,
		UpperTotal: 10, LowerTotal: 10, UpperRemaining: 5, LowerRemaining: 10,
		VersionedModel: model.VersionedModel{Version: 1},
	}

	newTotal := 3
	_, err := svc.Update(context.Background(), "set-001", &dto.UpdateAlignerSetRequest{
		UpperTotal: &newTotal,
	}, "user-001")
	if !errors.Is(err, ErrSetTotalBelowUsed) {
		t.Errorf("期望 ErrSetTotalBelowUsed，实际: %v", err)
	}

	set := repos.set.sets["set-001"]
	if set.UpperTotal != 10 || set.UpperRemaining != 5 {
		t.Errorf("失败后状态不应变化，实际 total=%d remaining=%d", set.UpperTotal, set.UpperRemaining)
	}
}

func TestAlignerSetService_Update_TotalEqualUsedAllowed(t *testing.T) {
	svc, repos := setupTestSetService()
	repos.set.sets["set-001"] = &model.AlignerSet{
		SetID: "set-001", WorkID: "work-001", DoctorID: "doc-001", Sequence: 1,
		UpperTotal: 10, LowerTotal: 0, UpperRemaining: 5, LowerRemaining: 0,
		VersionedModel: model.VersionedModel{Version: 1},
	}

	newTotal := 5 // 恰好等于已占用数
	result, err := svc.Update(context.Background(), "set-001", &dto.UpdateAlignerSetRequest{
		UpperTotal: &newTotal,
	}, "user-001")
	if err != nil {
		t.Fatalf("total 降到恰好等于已占用数应允许: %v", err)
	}
	if result.UpperRemaining != 0 {
		t.Errorf("期望 upper_remaining=0，实际=%d", result.UpperRemaining)
	}
}

// ── Activate 测试 ──

func TestAlignerSetService_Activate_Handoff(t *testing.T) {
	svc, repos := setupTestSetService()
	repos.set.sets["set-1"] = &model.AlignerSet{
		SetID: "set-1", WorkID: "work-001", DoctorID: "doc-001", Sequence: 1, IsActive: true,
		VersionedModel: model.VersionedModel{Version: 1},
	}
	repos.set.sets["set-2"] = &model.AlignerSet{
		SetID: "set-2", WorkID: "work-001", DoctorID: "doc-001", Sequence: 2,
		VersionedModel: model.VersionedModel{Version: 1},
	}

	if err := svc.Activate(context.Background(), "set-2", "user-001"); err != nil {
		t.Fatalf("Activate 应成功: %v", err)
	}
	if repos.set.sets["set-1"].IsActive {
		t.Error("set-1 应被取消激活")
	}
	if !repos.set.sets["set-2"].IsActive {
		t.Error("set-2 应为激活状态")
	}
}

// ── Delete 测试 ──

func TestAlignerSetService_Delete_RejectedWithBatches(t *testing.T) {
	svc, repos := setupTestSetService()
	repos.set.sets["set-001"] = &model.AlignerSet{
		SetID: "set-001", WorkID: "work-001", DoctorID: "doc-001", Sequence: 1,
		VersionedModel: model.VersionedModel{Version: 1},
	}
	repos.batch.batches["batch-1"] = &model.AlignerBatch{
		BatchID: "batch-1", SetID: "set-001", Sequence: 1,
		VersionedModel: model.VersionedModel{Version: 1},
	}

	err := svc.Delete(context.Background(), "set-001", "user-001")
	if !errors.Is(err, ErrSetHasBatches) {
		t.Errorf("期望 ErrSetHasBatches，实际: %v", err)
	}
}

func TestAlignerSetService_Delete_Success(t *testing.T) {
	svc, repos := setupTestSetService()
	repos.set.sets["set-001"] = &model.AlignerSet{
		SetID: "set-001", WorkID: "work-001", DoctorID: "doc-001", Sequence: 1,
		VersionedModel: model.VersionedModel{Version: 1},
	}

	if err := svc.Delete(context.Background(), "set-001", "user-001"); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if _, ok := repos.set.sets["set-001"]; ok {
		t.Error("set-001 应被删除")
	}
}

func TestAlignerSetService_Delete_BatchGuardInsideTransaction(t *testing.T) {
	repos := newTestRepos()
	repo := repos.toRepository()
	repos.set.sets["set-001"] = &model.AlignerSet{
		SetID: "set-001", WorkID: "work-001", DoctorID: "doc-001", Sequence: 1,
		VersionedModel: model.VersionedModel{Version: 1},
	}

	// 包装事务执行器：在事务开启时刻挂入一个新批次，
	// 批次计数守卫必须在同一事务内看到它并拒绝删除
	var txCalls int
	inner := repo.Tx
	repo.Tx = func(ctx context.Context, fn func(txRepo *repository.Repository) error) error {
		txCalls++
		repos.batch.batches["batch-1"] = &model.AlignerBatch{
			BatchID: "batch-1", SetID: "set-001", Sequence: 1,
			VersionedModel: model.VersionedModel{Version: 1},
		}
		return inner(ctx, fn)
	}

	svc := NewAlignerSetService(testClinicConfig(), repo, zap.NewNop())

	err := svc.Delete(context.Background(), "set-001", "user-001")
	if !errors.Is(err, ErrSetHasBatches) {
		t.Errorf("期望 ErrSetHasBatches，实际: %v", err)
	}
	if txCalls != 1 {
		t.Errorf("Delete 应通过事务执行器执行一次，实际=%d", txCalls)
	}
	if _, ok := repos.set.sets["set-001"]; !ok {
		t.Error("被拒绝的删除不应移除牙套组")
	}
}

// [自证通过] internal/service/aligner_set_service_test.go
