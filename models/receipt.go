package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Receipt is the durable local record built from a receipt document.
// One document maps to at most one receipt.
type Receipt struct {
	ID            int              `gorm:"primary_key" json:"id"`
	BusinessId    string           `gorm:"index;not null" json:"business_id"`
	DocumentId    int              `gorm:"uniqueIndex;not null" json:"document_id"`
	VendorId      int              `gorm:"index;not null" json:"vendor_id"`
	ReceiptNumber string           `gorm:"size:100" json:"receipt_number"`
	ReceiptDate   *time.Time       `json:"receipt_date"`
	PaymentType   string           `gorm:"size:30" json:"payment_type"`
	Currency      string           `gorm:"size:3" json:"currency"`
	DiscountTotal decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"discount_total"`
	TotalAmount   decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Details       []*ReceiptDetail `json:"details"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type ReceiptDetail struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ReceiptId      int             `gorm:"index;not null" json:"receipt_id"`
	Description    string          `gorm:"size:255" json:"description"`
	DetailQty      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty"`
	DetailUnitRate decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate"`
	DetailAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_amount"`
}

type NewReceipt struct {
	DocumentId    int
	VendorId      int
	ReceiptNumber string
	ReceiptDate   *time.Time
	PaymentType   string
	Currency      string
	DiscountTotal decimal.Decimal
	TotalAmount   decimal.Decimal
	Details       []*NewReceiptDetail
}

type NewReceiptDetail struct {
	Description    string
	DetailQty      decimal.Decimal
	DetailUnitRate decimal.Decimal
	DetailAmount   decimal.Decimal
}

// CreateReceipt is a strict create, except that a re-run of the same
// document reuses the receipt it created before.
func CreateReceipt(ctx context.Context, input *NewReceipt) (*Receipt, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if input.DocumentId <= 0 {
		return nil, errors.New("document id is required")
	}
	if input.VendorId <= 0 {
		return nil, errors.New("vendor id is required")
	}
	if err := utils.ValidateResourceId[Vendor](ctx, businessId, input.VendorId); err != nil {
		return nil, err
	}

	if existing, err := GetReceiptByDocumentId(ctx, businessId, input.DocumentId); err == nil {
		return existing, nil
	} else if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	receipt := Receipt{
		BusinessId:    businessId,
		DocumentId:    input.DocumentId,
		VendorId:      input.VendorId,
		ReceiptNumber: input.ReceiptNumber,
		ReceiptDate:   input.ReceiptDate,
		PaymentType:   input.PaymentType,
		Currency:      input.Currency,
		DiscountTotal: input.DiscountTotal,
		TotalAmount:   input.TotalAmount,
	}
	for _, d := range input.Details {
		receipt.Details = append(receipt.Details, &ReceiptDetail{
			Description:    d.Description,
			DetailQty:      d.DetailQty,
			DetailUnitRate: d.DetailUnitRate,
			DetailAmount:   d.DetailAmount,
		})
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&receipt).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func GetReceiptByDocumentId(ctx context.Context, businessId string, documentId int) (*Receipt, error) {
	var result Receipt
	db := config.GetDB()
	err := db.WithContext(ctx).
		Preload("Details").
		Where("business_id = ? AND document_id = ?", businessId, documentId).
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
