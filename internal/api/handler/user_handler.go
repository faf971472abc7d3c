package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ortho-flow/backend/internal/dto"
	"ortho-flow/backend/internal/service"
	pkgerrors "ortho-flow/backend/pkg/errors"
	"ortho-flow/backend/pkg/response"
)

// UserHandler 员工模块 HTTP 处理器（仅管理员可访问）
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// Create 创建员工
// POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.userSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleUserError(c, err)
		return
	}

	response.Created(c, result)
}

// Get 查询员工详情
// GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	result, err := h.userSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleUserError(c, err)
		return
	}

	response.OK(c, result)
}

// List 员工列表
// GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	var req dto.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.userSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleUserError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Update 更新员工信息
// PATCH /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.userSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleUserError(c, err)
		return
	}

	response.OK(c, result)
}

// ResetPassword 重置员工密码，返回一次性临时密码
// POST /api/v1/users/:id/reset-password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.userSvc.ResetPassword(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		handleUserError(c, err)
		return
	}

	response.OK(c, result)
}

// handleUserError 员工模块错误码映射
func handleUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 11001, "员工不存在")
	case errors.Is(err, service.ErrEmailTaken):
		response.Conflict(c, 11002, "邮箱已被占用")
	case errors.Is(err, service.ErrSelfDeactivate):
		response.BadRequest(c, 11003, "不能停用自己的账号")
	case errors.Is(err, service.ErrLastAdminDemote):
		response.BadRequest(c, 11004, "必须保留至少一名启用状态的管理员")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 11005, "数据已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/user_handler.go
