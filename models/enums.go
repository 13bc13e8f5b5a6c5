package models

// DocumentType selects the extraction schema and the sync flow.
type DocumentType string

const (
	DocumentTypeInvoice DocumentType = "invoice"
	DocumentTypeReceipt DocumentType = "receipt"
)

func (t DocumentType) Valid() bool {
	return t == DocumentTypeInvoice || t == DocumentTypeReceipt
}

// DocumentStatus is the per-document pipeline lifecycle.
//
//	new → extraction → processed|ready          (success)
//	                 → missing_data             (receipt readiness gate)
//	                 → validation_error|error   (failure)
type DocumentStatus string

const (
	DocumentStatusNew             DocumentStatus = "new"
	DocumentStatusExtraction      DocumentStatus = "extraction"
	DocumentStatusProcessed       DocumentStatus = "processed"
	DocumentStatusReady           DocumentStatus = "ready"
	DocumentStatusMissingData     DocumentStatus = "missing_data"
	DocumentStatusValidationError DocumentStatus = "validation_error"
	DocumentStatusError           DocumentStatus = "error"
)

// EntityType keys identity mappings between local rows and QuickBooks entities.
type EntityType string

const (
	EntityTypeCustomer EntityType = "customer"
	EntityTypeVendor   EntityType = "vendor"
	EntityTypeInvoice  EntityType = "invoice"
	EntityTypeReceipt  EntityType = "receipt"
)

const (
	IntegrationProviderQuickBooks = "quickbooks"
)

const (
	IntegrationStatusConnected    = "connected"
	IntegrationStatusDisconnected = "disconnected"
	IntegrationStatusError        = "error"
)

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredRetry  = "retry"
	SyncTriggeredSystem = "system"
)
