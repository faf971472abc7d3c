package handler

import "ortho-flow/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Patient      *PatientHandler
	Work         *WorkHandler
	AlignerSet   *AlignerSetHandler
	AlignerBatch *AlignerBatchHandler
	Note         *NoteHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth, svc.User),
		User:         NewUserHandler(svc.User),
		Patient:      NewPatientHandler(svc.Patient),
		Work:         NewWorkHandler(svc.Work),
		AlignerSet:   NewAlignerSetHandler(svc.AlignerSet),
		AlignerBatch: NewAlignerBatchHandler(svc.AlignerBatch),
		Note:         NewNoteHandler(svc.Note),
		Export:       NewExportHandler(svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
