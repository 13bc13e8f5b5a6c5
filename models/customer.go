package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
	"gorm.io/gorm"
)

// Customer is tenant-scoped; (business_id, name) is the natural key.
type Customer struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"uniqueIndex:idx_customer_business_name,priority:1;not null" json:"business_id" binding:"required"`
	Name       string    `gorm:"uniqueIndex:idx_customer_business_name,priority:2;size:100;not null" json:"name" binding:"required"`
	Email      string    `gorm:"size:100" json:"email"`
	Phone      string    `gorm:"size:30" json:"phone"`
	Address    string    `gorm:"size:255" json:"address"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// FindOrCreateCustomer looks up by (business_id, name) and creates on miss.
// Never updates on hit. A race between two concurrent documents for the
// same name is resolved by the unique index, not by locking here.
func FindOrCreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if input.Name == "" {
		return nil, errors.New("customer name is required")
	}

	db := config.GetDB()

	var existing Customer
	err := db.WithContext(ctx).
		Where("business_id = ? AND name = ?", businessId, input.Name).
		Take(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	customer := Customer{
		BusinessId: businessId,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      utils.NormalizePhoneNumber(input.Phone, utils.CountryCode),
		Address:    input.Address,
	}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		// Lost the create race: the row exists now, reuse it.
		var raced Customer
		if err2 := db.WithContext(ctx).
			Where("business_id = ? AND name = ?", businessId, input.Name).
			Take(&raced).Error; err2 == nil {
			return &raced, nil
		}
		return nil, err
	}
	return &customer, nil
}
