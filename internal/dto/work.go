package dto

// ── 疗程模块 DTO ──

// CreateWorkRequest 创建疗程请求
type CreateWorkRequest struct {
	PatientID string `json:"patient_id" binding:"required,uuid"`
	Title     string `json:"title"      binding:"required,min=2,max=200"`
	StartedAt string `json:"started_at" binding:"omitempty"` // "2026-03-01"
}

// UpdateWorkStatusRequest 更新疗程状态请求
type UpdateWorkStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active finished discontinued"`
}

// WorkListRequest 疗程列表查询参数
type WorkListRequest struct {
	PaginationRequest
	PatientID string `form:"patient_id" binding:"omitempty,uuid"`
	Status    string `form:"status"     binding:"omitempty,oneof=active finished discontinued"`
}

// WorkResponse 疗程信息响应
type WorkResponse struct {
	ID          string               `json:"id"`
	PatientID   string               `json:"patient_id"`
	PatientName string               `json:"patient_name,omitempty"`
	Title       string               `json:"title"`
	Status      string               `json:"status"`
	StartedAt   string               `json:"started_at,omitempty"`
	FinishedAt  string               `json:"finished_at,omitempty"`
	Sets        []AlignerSetResponse `json:"sets,omitempty"`
	CreatedAt   string               `json:"created_at"`
}

// [自证通过] internal/dto/work.go
