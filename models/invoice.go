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

// Invoice is the durable local record built from an invoice document.
// One document maps to at most one invoice.
type Invoice struct {
	ID            int              `gorm:"primary_key" json:"id"`
	BusinessId    string           `gorm:"index;not null" json:"business_id"`
	DocumentId    int              `gorm:"uniqueIndex;not null" json:"document_id"`
	CustomerId    int              `gorm:"index;not null" json:"customer_id"`
	InvoiceNumber string           `gorm:"size:100" json:"invoice_number"`
	InvoiceDate   *time.Time       `json:"invoice_date"`
	DueDate       *time.Time       `json:"due_date"`
	Currency      string           `gorm:"size:3" json:"currency"`
	Subtotal      decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	DiscountTotal decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"discount_total"`
	TaxTotal      decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"tax_total"`
	TotalAmount   decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Details       []*InvoiceDetail `json:"details"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceDetail struct {
	ID             int             `gorm:"primary_key" json:"id"`
	InvoiceId      int             `gorm:"index;not null" json:"invoice_id"`
	Description    string          `gorm:"size:255" json:"description"`
	DetailQty      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty"`
	DetailUnitRate decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate"`
	DetailAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_amount"`
}

type NewInvoice struct {
	DocumentId    int
	CustomerId    int
	InvoiceNumber string
	InvoiceDate   *time.Time
	DueDate       *time.Time
	Currency      string
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	TotalAmount   decimal.Decimal
	Details       []*NewInvoiceDetail
}

type NewInvoiceDetail struct {
	Description    string
	DetailQty      decimal.Decimal
	DetailUnitRate decimal.Decimal
	DetailAmount   decimal.Decimal
}

// CreateInvoice is a strict create, except that a re-run of the same
// document reuses the invoice it created before.
func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if input.DocumentId <= 0 {
		return nil, errors.New("document id is required")
	}
	if input.CustomerId <= 0 {
		return nil, errors.New("customer id is required")
	}
	if err := utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId); err != nil {
		return nil, err
	}

	if existing, err := GetInvoiceByDocumentId(ctx, businessId, input.DocumentId); err == nil {
		return existing, nil
	} else if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	invoice := Invoice{
		BusinessId:    businessId,
		DocumentId:    input.DocumentId,
		CustomerId:    input.CustomerId,
		InvoiceNumber: input.InvoiceNumber,
		InvoiceDate:   input.InvoiceDate,
		DueDate:       input.DueDate,
		Currency:      input.Currency,
		Subtotal:      input.Subtotal,
		DiscountTotal: input.DiscountTotal,
		TaxTotal:      input.TaxTotal,
		TotalAmount:   input.TotalAmount,
	}
	for _, d := range input.Details {
		invoice.Details = append(invoice.Details, &InvoiceDetail{
			Description:    d.Description,
			DetailQty:      d.DetailQty,
			DetailUnitRate: d.DetailUnitRate,
			DetailAmount:   d.DetailAmount,
		})
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func GetInvoiceByDocumentId(ctx context.Context, businessId string, documentId int) (*Invoice, error) {
	var result Invoice
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
