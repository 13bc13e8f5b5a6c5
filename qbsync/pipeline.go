package qbsync

import (
	"context"
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/docai"
	"bitbucket.org/mmdatafocus/docsync_backend/models"
	"bitbucket.org/mmdatafocus/docsync_backend/qbo"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type syncOutcome int

const (
	outcomeSuccess syncOutcome = iota
	outcomeInvalid
	outcomeError
)

// statusTable maps one validation-result contract onto per-document-type
// terminal statuses. Invoices and receipts share the pipeline; only the
// status vocabulary differs.
var statusTable = map[models.DocumentType]map[syncOutcome]models.DocumentStatus{
	models.DocumentTypeInvoice: {
		outcomeSuccess: models.DocumentStatusProcessed,
		outcomeInvalid: models.DocumentStatusValidationError,
		outcomeError:   models.DocumentStatusError,
	},
	models.DocumentTypeReceipt: {
		outcomeSuccess: models.DocumentStatusReady,
		outcomeInvalid: models.DocumentStatusMissingData,
		outcomeError:   models.DocumentStatusError,
	},
}

// classifyOutcome buckets a pipeline error. Local validation failures
// and platform payload rejections are user-actionable data problems;
// everything else is an operational error.
func classifyOutcome(err error) syncOutcome {
	if err == nil {
		return outcomeSuccess
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return outcomeInvalid
	}
	var faultErr *qbo.ValidationFaultError
	if errors.As(err, &faultErr) {
		return outcomeInvalid
	}
	return outcomeError
}

// terminalStatus never yields an undefined status: a document_type
// missing from the table lands on error rather than an empty string.
func terminalStatus(documentType models.DocumentType, outcome syncOutcome) models.DocumentStatus {
	if status, ok := statusTable[documentType][outcome]; ok {
		return status
	}
	return models.DocumentStatusError
}

// statusMessage surfaces the platform's own detail verbatim for payload
// rejections; other errors carry their plain message.
func statusMessage(err error) string {
	if err == nil {
		return ""
	}
	var faultErr *qbo.ValidationFaultError
	if errors.As(err, &faultErr) {
		return faultErr.Detail
	}
	return err.Error()
}

func isRetryable(err error) bool {
	var validationErr *ValidationError
	var faultErr *qbo.ValidationFaultError
	var schemaErr *SchemaMismatchError
	var mappingErr *MappingNotFoundError
	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &faultErr),
		errors.As(err, &schemaErr),
		errors.As(err, &mappingErr),
		errors.Is(err, ErrIntegrationMissing):
		return false
	}
	return true
}

type pipelineRun struct {
	doc  *models.Document
	step string
}

// RunDocumentSync drives one document end to end. Every failure lands
// in the document's persisted status before it is re-raised; nothing is
// retried internally, callers re-invoke on the same document id.
func RunDocumentSync(ctx context.Context, documentId int, triggeredBy string) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}

	doc, err := models.GetDocument(ctx, businessId, documentId)
	if err != nil {
		return err
	}

	run, err := models.CreateSyncRun(ctx, businessId, doc.ID, triggeredBy)
	if err != nil {
		return err
	}
	if err := run.MarkRunning(ctx); err != nil {
		return err
	}

	p := &pipelineRun{doc: doc, step: "start"}
	runErr := p.process(ctx)

	status := terminalStatus(doc.DocumentType, classifyOutcome(runErr))
	if statusErr := doc.SetStatus(ctx, status, statusMessage(runErr)); statusErr != nil {
		logger := config.GetLogger()
		config.LogError(logger, "qbsync", "RunDocumentSync", "persist document status", doc.ID, statusErr)
	}

	if runErr != nil {
		if recErr := models.CreateSyncError(ctx, run.ID, businessId, doc.ID, p.step, statusMessage(runErr), isRetryable(runErr)); recErr != nil {
			logger := config.GetLogger()
			config.LogError(logger, "qbsync", "RunDocumentSync", "persist sync error", doc.ID, recErr)
		}
	}
	if finErr := run.MarkFinished(ctx, runErr); finErr != nil {
		logger := config.GetLogger()
		config.LogError(logger, "qbsync", "RunDocumentSync", "finish sync run", doc.ID, finErr)
	}
	return runErr
}

func (p *pipelineRun) process(ctx context.Context) error {
	// In-progress marker goes down before any external call so a crash
	// from here on is observable.
	p.step = "extraction"
	if err := p.doc.SetStatus(ctx, models.DocumentStatusExtraction, ""); err != nil {
		return err
	}

	if len(p.doc.ExtractedJSON) == 0 {
		if err := p.extract(ctx); err != nil {
			return err
		}
	}

	p.step = "normalize"
	record, err := Normalize(p.doc.ExtractedJSON, p.doc.DocumentType)
	if err != nil {
		return err
	}

	if p.doc.DocumentType == models.DocumentTypeReceipt {
		return p.syncReceipt(ctx, record.Receipt)
	}
	return p.syncInvoice(ctx, record.Invoice)
}

// extract downloads the original file, rasterizes it, stores the page
// images ordered by page number and runs document understanding.
// Re-runs skip all of this when extraction output already exists.
func (p *pipelineRun) extract(ctx context.Context) error {
	objectKey := utils.ExtractObjectKeyFromURL(p.doc.FileUrl)
	fileBytes, err := utils.DownloadBytesFromGCS(ctx, objectKey)
	if err != nil {
		return err
	}

	pages, err := docai.PreparePageImages(fileBytes, http.DetectContentType(fileBytes))
	if err != nil {
		return err
	}
	urls, err := docai.UploadPageImages(ctx, p.doc.BusinessId, p.doc.ID, pages)
	if err != nil {
		return err
	}
	if err := p.doc.SetPageImages(ctx, urls); err != nil {
		return err
	}

	extractor, err := docai.NewClient()
	if err != nil {
		return err
	}
	raw, err := extractor.ExtractDocument(ctx, p.doc.DocumentType, pages)
	if err != nil {
		return err
	}
	return p.doc.SetExtracted(ctx, raw)
}

func decimalFromPtr(value *float64) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*value)
}

func getCredential(ctx context.Context, businessId string) (*models.IntegrationCredential, error) {
	cred, err := models.GetConnectedCredential(ctx, businessId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntegrationMissing
		}
		return nil, err
	}
	return cred, nil
}

func (p *pipelineRun) syncInvoice(ctx context.Context, ext *InvoiceExtraction) error {
	businessId := p.doc.BusinessId

	// Local durable state first: customer and invoice exist even if the
	// external sync fails later.
	p.step = "local_record"
	var customer *models.Customer
	if ext.CustomerName != "" {
		var err error
		customer, err = models.FindOrCreateCustomer(ctx, &models.NewCustomer{
			Name:    ext.CustomerName,
			Email:   ext.CustomerEmail,
			Phone:   ext.CustomerPhone,
			Address: ext.CustomerAddress,
		})
		if err != nil {
			return err
		}
	}

	details := make([]*models.NewInvoiceDetail, 0, len(ext.Items))
	for _, item := range ext.Items {
		qty, unitPrice, amount := DeriveLineAmounts(item)
		details = append(details, &models.NewInvoiceDetail{
			Description:    item.Description,
			DetailQty:      qty,
			DetailUnitRate: unitPrice,
			DetailAmount:   amount,
		})
	}

	invoice := &models.Invoice{
		BusinessId:    businessId,
		DocumentId:    p.doc.ID,
		InvoiceNumber: ext.InvoiceNumber,
		InvoiceDate:   ParseExtractionDate(ext.InvoiceDate),
		DueDate:       ParseExtractionDate(ext.DueDate),
		Currency:      ext.Currency,
		Subtotal:      decimalFromPtr(ext.Subtotal),
		DiscountTotal: decimalFromPtr(ext.DiscountTotal),
		TaxTotal:      decimalFromPtr(ext.TaxTotal),
		TotalAmount:   decimalFromPtr(ext.TotalAmount),
	}
	for _, d := range details {
		invoice.Details = append(invoice.Details, &models.InvoiceDetail{
			Description:    d.Description,
			DetailQty:      d.DetailQty,
			DetailUnitRate: d.DetailUnitRate,
			DetailAmount:   d.DetailAmount,
		})
	}
	if customer != nil {
		created, err := models.CreateInvoice(ctx, &models.NewInvoice{
			DocumentId:    p.doc.ID,
			CustomerId:    customer.ID,
			InvoiceNumber: ext.InvoiceNumber,
			InvoiceDate:   invoice.InvoiceDate,
			DueDate:       invoice.DueDate,
			Currency:      ext.Currency,
			Subtotal:      invoice.Subtotal,
			DiscountTotal: invoice.DiscountTotal,
			TaxTotal:      invoice.TaxTotal,
			TotalAmount:   invoice.TotalAmount,
			Details:       details,
		})
		if err != nil {
			return err
		}
		invoice = created
	}

	p.step = "credential"
	cred, err := getCredential(ctx, businessId)
	if err != nil {
		return err
	}
	client := qbo.NewClient(cred)

	p.step = "identity"
	if customer != nil {
		if _, err := ResolveOrCreateCustomerExternal(ctx, client, cred, customer); err != nil {
			return err
		}
	}

	// Transformation and identity resolution are independent; the
	// customer reference is merged in afterwards.
	p.step = "transform"
	payload := BuildInvoicePayload(invoice, cred.Settings())
	if customer != nil {
		mapping, err := RequireEntityMapping(ctx, businessId, models.EntityTypeCustomer, customer.ID)
		if err != nil {
			return err
		}
		SetInvoiceCustomerRef(payload, mapping.ExternalId, customer.Name)
	}

	p.step = "validate"
	if err := ValidateInvoicePayload(payload); err != nil {
		return err
	}

	p.step = "submit"
	if invoice.ID > 0 {
		existing, err := models.FindEntityMapping(ctx, businessId, models.EntityTypeInvoice, invoice.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
	}
	created, err := client.CreateInvoice(ctx, payload)
	if err != nil {
		return err
	}
	if invoice.ID > 0 {
		if _, err := models.CreateEntityMapping(ctx, businessId, cred.ID, models.EntityTypeInvoice, invoice.ID, created.Id); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipelineRun) syncReceipt(ctx context.Context, ext *ReceiptExtraction) error {
	businessId := p.doc.BusinessId

	p.step = "local_record"
	var vendor *models.Vendor
	if ext.VendorName != "" {
		var err error
		vendor, err = models.FindOrCreateVendor(ctx, &models.NewVendor{
			Name:    ext.VendorName,
			Email:   ext.VendorEmail,
			Phone:   ext.VendorPhone,
			Address: ext.VendorAddress,
		})
		if err != nil {
			return err
		}
	}

	details := make([]*models.NewReceiptDetail, 0, len(ext.Items))
	for _, item := range ext.Items {
		qty, unitPrice, amount := DeriveLineAmounts(item)
		details = append(details, &models.NewReceiptDetail{
			Description:    item.Description,
			DetailQty:      qty,
			DetailUnitRate: unitPrice,
			DetailAmount:   amount,
		})
	}

	receipt := &models.Receipt{
		BusinessId:    businessId,
		DocumentId:    p.doc.ID,
		ReceiptNumber: ext.ReceiptNumber,
		ReceiptDate:   ParseExtractionDate(ext.ReceiptDate),
		PaymentType:   ext.PaymentType,
		Currency:      ext.Currency,
		DiscountTotal: decimalFromPtr(ext.DiscountTotal),
		TotalAmount:   decimalFromPtr(ext.TotalAmount),
	}
	for _, d := range details {
		receipt.Details = append(receipt.Details, &models.ReceiptDetail{
			Description:    d.Description,
			DetailQty:      d.DetailQty,
			DetailUnitRate: d.DetailUnitRate,
			DetailAmount:   d.DetailAmount,
		})
	}
	if vendor != nil {
		created, err := models.CreateReceipt(ctx, &models.NewReceipt{
			DocumentId:    p.doc.ID,
			VendorId:      vendor.ID,
			ReceiptNumber: ext.ReceiptNumber,
			ReceiptDate:   receipt.ReceiptDate,
			PaymentType:   ext.PaymentType,
			Currency:      ext.Currency,
			DiscountTotal: receipt.DiscountTotal,
			TotalAmount:   receipt.TotalAmount,
			Details:       details,
		})
		if err != nil {
			return err
		}
		receipt = created
	}

	p.step = "credential"
	cred, err := getCredential(ctx, businessId)
	if err != nil {
		return err
	}
	client := qbo.NewClient(cred)

	p.step = "identity"
	if vendor != nil {
		if _, err := ResolveOrCreateVendorExternal(ctx, client, cred, vendor); err != nil {
			return err
		}
	}

	p.step = "transform"
	payload := BuildPurchasePayload(receipt, cred.Settings())
	if vendor != nil {
		mapping, err := RequireEntityMapping(ctx, businessId, models.EntityTypeVendor, vendor.ID)
		if err != nil {
			return err
		}
		SetPurchaseEntityRef(payload, mapping.ExternalId, vendor.Name)
	}

	p.step = "validate"
	if err := ValidatePurchasePayload(payload); err != nil {
		return err
	}

	p.step = "submit"
	if receipt.ID > 0 {
		existing, err := models.FindEntityMapping(ctx, businessId, models.EntityTypeReceipt, receipt.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
	}
	created, err := client.CreatePurchase(ctx, payload)
	if err != nil {
		return err
	}
	if receipt.ID > 0 {
		if _, err := models.CreateEntityMapping(ctx, businessId, cred.ID, models.EntityTypeReceipt, receipt.ID, created.Id); err != nil {
			return err
		}
	}
	return nil
}
