package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
	"gorm.io/gorm"
)

// Document is one ingested scan. Created on upload, mutated only by the
// sync pipeline, never deleted here.
type Document struct {
	ID             int            `gorm:"primary_key" json:"id"`
	BusinessId     string         `gorm:"index;not null" json:"business_id"`
	DocumentType   DocumentType   `gorm:"size:20;not null" json:"document_type"`
	FileUrl        string         `gorm:"size:512;not null" json:"file_url"`
	Status         DocumentStatus `gorm:"size:30;not null;default:'new'" json:"status"`
	ExtractedJSON  []byte         `gorm:"type:json" json:"extracted"`
	PageImagesJSON []byte         `gorm:"type:json" json:"page_images"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDocument struct {
	DocumentType DocumentType `json:"document_type" validate:"required"`
	FileUrl      string       `json:"file_url" validate:"required"`
}

func CreateDocument(ctx context.Context, input *NewDocument) (*Document, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.Validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.DocumentType.Valid() {
		return nil, errors.New("invalid document type")
	}

	document := Document{
		BusinessId:   businessId,
		DocumentType: input.DocumentType,
		FileUrl:      input.FileUrl,
		Status:       DocumentStatusNew,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&document).Error; err != nil {
		return nil, err
	}
	return &document, nil
}

func GetDocument(ctx context.Context, businessId string, id int) (*Document, error) {
	var result Document
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, id).
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// SetStatus persists the lifecycle status and the last error message.
// Every pipeline failure goes through here before it is re-raised, so
// the stored state never lags the last known failure point.
func (d *Document) SetStatus(ctx context.Context, status DocumentStatus, errorMessage string) error {
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&Document{}).
		Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
		}).Error
	if err != nil {
		return err
	}
	d.Status = status
	d.ErrorMessage = errorMessage
	return nil
}

func (d *Document) SetExtracted(ctx context.Context, raw []byte) error {
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&Document{}).
		Where("id = ?", d.ID).
		Update("extracted_json", raw).Error
	if err != nil {
		return err
	}
	d.ExtractedJSON = raw
	return nil
}

// SetPageImages stores the processed page image URLs, ordered by page number.
func (d *Document) SetPageImages(ctx context.Context, urls []string) error {
	raw, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&Document{}).
		Where("id = ?", d.ID).
		Update("page_images_json", raw).Error
	if err != nil {
		return err
	}
	d.PageImagesJSON = raw
	return nil
}

func (d *Document) PageImages() []string {
	if len(d.PageImagesJSON) == 0 {
		return nil
	}
	var urls []string
	if err := json.Unmarshal(d.PageImagesJSON, &urls); err != nil {
		return nil
	}
	return urls
}

func ListDocuments(ctx context.Context, businessId string, limit int) ([]*Document, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var results []*Document
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("id DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
