package qbsync

import (
	"context"

	"bitbucket.org/mmdatafocus/docsync_backend/models"
	"bitbucket.org/mmdatafocus/docsync_backend/qbo"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
)

// ResolveOrCreateCustomerExternal returns the QuickBooks id for a
// local customer. Order matters: mapping lookup, then external lookup
// by name, then external create. The ordering is what prevents
// duplicate external entities across re-runs.
func ResolveOrCreateCustomerExternal(ctx context.Context, client *qbo.Client, cred *models.IntegrationCredential, customer *models.Customer) (string, error) {
	mapping, err := models.FindEntityMapping(ctx, cred.BusinessId, models.EntityTypeCustomer, customer.ID)
	if err != nil {
		return "", err
	}
	if mapping != nil {
		return mapping.ExternalId, nil
	}

	existing, err := client.FindCustomerByName(ctx, customer.Name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if _, err := models.CreateEntityMapping(ctx, cred.BusinessId, cred.ID, models.EntityTypeCustomer, customer.ID, existing.Id); err != nil {
			return "", err
		}
		return existing.Id, nil
	}

	created, err := client.CreateCustomer(ctx, buildCustomerPayload(customer))
	if err != nil {
		return "", err
	}
	if _, err := models.CreateEntityMapping(ctx, cred.BusinessId, cred.ID, models.EntityTypeCustomer, customer.ID, created.Id); err != nil {
		return "", err
	}
	return created.Id, nil
}

// ResolveOrCreateVendorExternal is the vendor-side twin.
func ResolveOrCreateVendorExternal(ctx context.Context, client *qbo.Client, cred *models.IntegrationCredential, vendor *models.Vendor) (string, error) {
	mapping, err := models.FindEntityMapping(ctx, cred.BusinessId, models.EntityTypeVendor, vendor.ID)
	if err != nil {
		return "", err
	}
	if mapping != nil {
		return mapping.ExternalId, nil
	}

	existing, err := client.FindVendorByName(ctx, vendor.Name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if _, err := models.CreateEntityMapping(ctx, cred.BusinessId, cred.ID, models.EntityTypeVendor, vendor.ID, existing.Id); err != nil {
			return "", err
		}
		return existing.Id, nil
	}

	created, err := client.CreateVendor(ctx, buildVendorPayload(vendor))
	if err != nil {
		return "", err
	}
	if _, err := models.CreateEntityMapping(ctx, cred.BusinessId, cred.ID, models.EntityTypeVendor, vendor.ID, created.Id); err != nil {
		return "", err
	}
	return created.Id, nil
}

// Missing optional fields go out as empty strings, not omitted keys;
// the platform schema expects the keys to exist. Extracted emails are
// OCR output, so anything that does not look like an address is
// dropped rather than rejected by the platform.
func buildCustomerPayload(customer *models.Customer) *qbo.Customer {
	return &qbo.Customer{
		DisplayName:      customer.Name,
		CompanyName:      customer.Name,
		PrimaryEmailAddr: &qbo.EmailAddr{Address: sanitizeEmail(customer.Email)},
		PrimaryPhone:     &qbo.TelephoneNumber{FreeFormNumber: customer.Phone},
		BillAddr:         &qbo.PhysicalAddress{Line1: customer.Address},
	}
}

func buildVendorPayload(vendor *models.Vendor) *qbo.Vendor {
	return &qbo.Vendor{
		DisplayName:      vendor.Name,
		CompanyName:      vendor.Name,
		PrimaryEmailAddr: &qbo.EmailAddr{Address: sanitizeEmail(vendor.Email)},
		PrimaryPhone:     &qbo.TelephoneNumber{FreeFormNumber: vendor.Phone},
		BillAddr:         &qbo.PhysicalAddress{Line1: vendor.Address},
	}
}

func sanitizeEmail(email string) string {
	if email == "" || !utils.IsValidEmail(email) {
		return ""
	}
	return email
}

// RequireEntityMapping is the submission-time barrier: the mapping for
// the transaction's counterparty must already exist, it is never
// auto-created here.
func RequireEntityMapping(ctx context.Context, businessId string, entityType models.EntityType, internalId int) (*models.EntityMapping, error) {
	mapping, err := models.FindEntityMapping(ctx, businessId, entityType, internalId)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, &MappingNotFoundError{EntityType: entityType, InternalId: internalId}
	}
	return mapping, nil
}
