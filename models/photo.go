package models

import "time"

// PlaceholderAltText alt text 的第二层兜底文案
// 屏幕阅读器必须有内容可读，所以 alt text 失败时退到静态占位而不是留空
const PlaceholderAltText = "Photo uploaded by user"

// 图注生成状态常量
const (
	CaptionPending    = "pending"
	CaptionGenerating = "generating"
	CaptionSucceeded  = "succeeded"
	CaptionDegraded   = "degraded" // 生成失败，回退到占位文案
	CaptionEmpty      = "empty"    // 生成失败，留空交给用户填写
)

// Photo 照片记录，alt_text 永远非空，description 可为空（由用户补充）
type Photo struct {
	PhotoID     uint64    `json:"photo_id" db:"photo_id"`
	UserID      uint64    `json:"user_id" db:"user_id"`
	Filename    string    `json:"filename" db:"filename"`
	FilenameS   string    `json:"filename_s" db:"filename_s"`
	FilenameM   string    `json:"filename_m" db:"filename_m"`
	AltText     string    `json:"alt_text" db:"alt_text"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CaptionResult 一次上传的两路生成结果
type CaptionResult struct {
	AltText     string  `json:"alt_text"`
	Description *string `json:"description"`
}

// BackfillJob 图注补齐任务，投递到消息队列
type BackfillJob struct {
	PhotoID   uint64 `json:"photo_id"`
	UserID    uint64 `json:"user_id"`
	Filename  string `json:"filename"`
	Priority  int    `json:"priority,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// EditDescriptionForm 编辑描述的请求体
type EditDescriptionForm struct {
	Description string `json:"description" binding:"required,max=500"`
}

// PhotoReport 图注覆盖率统计
type PhotoReport struct {
	Total              int64 `json:"total" db:"total"`
	MissingDescription int64 `json:"missing_description" db:"missing_description"`
	MissingAltText     int64 `json:"missing_alt_text" db:"missing_alt_text"`
	DegradedAltText    int64 `json:"degraded_alt_text" db:"degraded_alt_text"`
}
