package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ortho-flow/backend/internal/dto"
	"ortho-flow/backend/internal/service"
	pkgerrors "ortho-flow/backend/pkg/errors"
	"ortho-flow/backend/pkg/response"
)

// AlignerSetHandler 牙套组模块 HTTP 处理器
type AlignerSetHandler struct {
	setSvc service.AlignerSetService
}

// NewAlignerSetHandler 创建 AlignerSetHandler
func NewAlignerSetHandler(setSvc service.AlignerSetService) *AlignerSetHandler {
	return &AlignerSetHandler{setSvc: setSvc}
}

// Create 创建牙套组
// POST /api/v1/aligner-sets
func (h *AlignerSetHandler) Create(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateAlignerSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.setSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleAlignerSetError(c, err)
		return
	}

	response.Created(c, result)
}

// Get 查询牙套组详情（含批次）
// GET /api/v1/aligner-sets/:id
func (h *AlignerSetHandler) Get(c *gin.Context) {
	result, err := h.setSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleAlignerSetError(c, err)
		return
	}

	response.OK(c, result)
}

// ListByWork 查询疗程下全部牙套组
// GET /api/v1/works/:id/aligner-sets
func (h *AlignerSetHandler) ListByWork(c *gin.Context) {
	list, err := h.setSvc.ListByWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleAlignerSetError(c, err)
		return
	}

	response.OK(c, list)
}

// Update 更新牙套组
// PATCH /api/v1/aligner-sets/:id
func (h *AlignerSetHandler) Update(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateAlignerSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.setSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleAlignerSetError(c, err)
		return
	}

	response.OK(c, result)
}

// Activate 激活牙套组，同疗程其他组取消激活
// POST /api/v1/aligner-sets/:id/activate
func (h *AlignerSetHandler) Activate(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.setSvc.Activate(c.Request.Context(), c.Param("id"), callerID); err != nil {
		handleAlignerSetError(c, err)
		return
	}

	response.OK(c, nil)
}

// Delete 删除牙套组
// DELETE /api/v1/aligner-sets/:id
func (h *AlignerSetHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.setSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		handleAlignerSetError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleAlignerSetError 牙套组模块错误码映射
func handleAlignerSetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSetNotFound):
		response.NotFound(c, 14001, "牙套组不存在")
	case errors.Is(err, service.ErrWorkNotFound):
		response.NotFound(c, 13001, "疗程不存在")
	case errors.Is(err, service.ErrSetDoctorInvalid):
		response.BadRequest(c, 14002, "主治医生必须是启用状态的医生账号")
	case errors.Is(err, service.ErrSetTotalBelowUsed):
		response.BadRequest(c, 14003, "总数不能低于已分配给批次的数量")
	case errors.Is(err, service.ErrSetHasBatches):
		response.BadRequest(c, 14004, "牙套组下存在批次，须先删除批次")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 14005, "数据已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/aligner_set_handler.go
