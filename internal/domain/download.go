package domain

import (
	"time"

	"github.com/google/uuid"
)

// DownloadStatus represents the current status of a download
type DownloadStatus string

const (
	StatusProcessing DownloadStatus = "processing"
	StatusMerging    DownloadStatus = "merging"
	StatusCompleted  DownloadStatus = "completed"
	StatusFailed     DownloadStatus = "failed"
	StatusCancelled  DownloadStatus = "cancelled"
)

// Download represents one download request and its outcome
type Download struct {
	ID              string         `json:"id" gorm:"primaryKey"`
	URL             string         `json:"url" gorm:"not null"`
	Title           string         `json:"title,omitempty"`
	FormatID        string         `json:"format_id" gorm:"not null"`
	FormatExpr      string         `json:"format_expr,omitempty"`
	Container       string         `json:"container,omitempty"`
	PlanSource      string         `json:"plan_source,omitempty"`
	UsedCredentials bool           `json:"used_credentials"`
	Status          DownloadStatus `json:"status" gorm:"not null;index"`
	Progress        int            `json:"progress"`
	FilePath        string         `json:"file_path,omitempty"`
	Filename        string         `json:"filename,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ProcessLog      string         `json:"process_log,omitempty" gorm:"type:text"` // tail of tool output
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// NewDownload creates a new download record for a request
func NewDownload(url, formatID string) *Download {
	return &Download{
		ID:        uuid.New().String(),
		URL:       url,
		FormatID:  formatID,
		Status:    StatusProcessing,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// ApplyPlan records the negotiated format plan on the download
func (d *Download) ApplyPlan(plan *FormatPlan) {
	d.FormatExpr = plan.FormatExpression
	d.Container = string(plan.Container)
	d.PlanSource = string(plan.Source)
	d.UpdatedAt = time.Now()
}

// MarkMerging marks the download as having entered post-processing
func (d *Download) MarkMerging() {
	d.Status = StatusMerging
	d.UpdatedAt = time.Now()
}

// MarkCompleted marks the download as completed
func (d *Download) MarkCompleted(filePath, filename string) {
	d.Status = StatusCompleted
	d.FilePath = filePath
	d.Filename = filename
	d.Progress = 100
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkFailed marks the download as failed
func (d *Download) MarkFailed(message string) {
	d.Status = StatusFailed
	d.ErrorMessage = message
	d.UpdatedAt = time.Now()
}

// MarkCancelled marks the download as cancelled by the client
func (d *Download) MarkCancelled() {
	d.Status = StatusCancelled
	d.UpdatedAt = time.Now()
}

// IsTerminal checks if the download is in a terminal state
func (d *Download) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed || d.Status == StatusCancelled
}

// DownloadStats summarizes the download history
type DownloadStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}
