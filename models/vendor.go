package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
	"gorm.io/gorm"
)

// Vendor is tenant-scoped; (business_id, name) is the natural key.
type Vendor struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"uniqueIndex:idx_vendor_business_name,priority:1;not null" json:"business_id" binding:"required"`
	Name       string    `gorm:"uniqueIndex:idx_vendor_business_name,priority:2;size:100;not null" json:"name" binding:"required"`
	Email      string    `gorm:"size:100" json:"email"`
	Phone      string    `gorm:"size:30" json:"phone"`
	Address    string    `gorm:"size:255" json:"address"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendor struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// FindOrCreateVendor looks up by (business_id, name) and creates on miss.
// Never updates on hit.
func FindOrCreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if input.Name == "" {
		return nil, errors.New("vendor name is required")
	}

	db := config.GetDB()

	var existing Vendor
	err := db.WithContext(ctx).
		Where("business_id = ? AND name = ?", businessId, input.Name).
		Take(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	vendor := Vendor{
		BusinessId: businessId,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      utils.NormalizePhoneNumber(input.Phone, utils.CountryCode),
		Address:    input.Address,
	}
	if err := db.WithContext(ctx).Create(&vendor).Error; err != nil {
		var raced Vendor
		if err2 := db.WithContext(ctx).
			Where("business_id = ? AND name = ?", businessId, input.Name).
			Take(&raced).Error; err2 == nil {
			return &raced, nil
		}
		return nil, err
	}
	return &vendor, nil
}
