package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
)

// DocumentSyncRun is one pipeline invocation for one document. Kept for
// operator visibility; the Document row itself carries the lifecycle.
type DocumentSyncRun struct {
	ID           uint       `gorm:"primary_key" json:"id"`
	BusinessId   string     `gorm:"index;not null" json:"business_id"`
	DocumentId   int        `gorm:"index;not null" json:"document_id"`
	Status       string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy  string     `gorm:"size:20" json:"triggered_by"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	StartedAt    *time.Time `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	DurationMs   int64      `json:"duration_ms"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type DocumentSyncError struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	SyncRunId  uint      `gorm:"index;not null" json:"sync_run_id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	DocumentId int       `gorm:"index" json:"document_id"`
	Step       string    `gorm:"size:50" json:"step"`
	Message    string    `gorm:"type:text" json:"message"`
	Retryable  bool      `gorm:"default:false" json:"retryable"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateSyncRun(ctx context.Context, businessId string, documentId int, triggeredBy string) (*DocumentSyncRun, error) {
	run := DocumentSyncRun{
		BusinessId:  businessId,
		DocumentId:  documentId,
		Status:      SyncRunStatusQueued,
		TriggeredBy: triggeredBy,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *DocumentSyncRun) MarkRunning(ctx context.Context) error {
	now := time.Now()
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&DocumentSyncRun{}).
		Where("id = ?", r.ID).
		Updates(map[string]interface{}{
			"status":     SyncRunStatusRunning,
			"started_at": now,
		}).Error
	if err != nil {
		return err
	}
	r.Status = SyncRunStatusRunning
	r.StartedAt = &now
	return nil
}

func (r *DocumentSyncRun) MarkFinished(ctx context.Context, runErr error) error {
	now := time.Now()
	status := SyncRunStatusSuccess
	errorMessage := ""
	if runErr != nil {
		status = SyncRunStatusFailed
		errorMessage = runErr.Error()
	}
	var durationMs int64
	if r.StartedAt != nil {
		durationMs = now.Sub(*r.StartedAt).Milliseconds()
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Model(&DocumentSyncRun{}).
		Where("id = ?", r.ID).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
			"finished_at":   now,
			"duration_ms":   durationMs,
		}).Error
	if err != nil {
		return err
	}
	r.Status = status
	r.ErrorMessage = errorMessage
	r.FinishedAt = &now
	r.DurationMs = durationMs
	return nil
}

func CreateSyncError(ctx context.Context, runId uint, businessId string, documentId int, step string, message string, retryable bool) error {
	errRec := DocumentSyncError{
		SyncRunId:  runId,
		BusinessId: businessId,
		DocumentId: documentId,
		Step:       step,
		Message:    message,
		Retryable:  retryable,
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(&errRec).Error
}
