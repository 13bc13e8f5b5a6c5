package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// IntegrationCredential is the per-tenant QuickBooks connection. At most
// one "connected" credential is active per tenant at a time.
type IntegrationCredential struct {
	ID             uint       `gorm:"primary_key" json:"id"`
	BusinessId     string     `gorm:"index;not null" json:"business_id"`
	Provider       string     `gorm:"index;size:50;not null" json:"provider"`
	Status         string     `gorm:"size:20;not null" json:"status"`
	RealmId        string     `gorm:"size:100;not null" json:"realm_id"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at"`
	SettingsJSON   []byte     `gorm:"type:json" json:"settings"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IntegrationSettings holds tenant-level defaults resolved at transform
// time. No global hardcoded account ids.
type IntegrationSettings struct {
	ExpenseAccountRef string `json:"expense_account_ref"`
	PaymentAccountRef string `json:"payment_account_ref"`
	ItemRef           string `json:"item_ref"`
}

func (c *IntegrationCredential) Settings() IntegrationSettings {
	var settings IntegrationSettings
	if len(c.SettingsJSON) == 0 {
		return settings
	}
	if err := json.Unmarshal(c.SettingsJSON, &settings); err != nil {
		return IntegrationSettings{}
	}
	return settings
}

// GetConnectedCredential returns the tenant's active QuickBooks
// connection, or ErrRecordNotFound when the tenant never connected
// (or disconnected).
func GetConnectedCredential(ctx context.Context, businessId string) (*IntegrationCredential, error) {
	var cred IntegrationCredential
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("business_id = ? AND provider = ? AND status = ?",
			businessId, IntegrationProviderQuickBooks, IntegrationStatusConnected).
		Order("id DESC").
		Take(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &cred, nil
}

type ConnectIntegrationInput struct {
	RealmId      string `json:"realmId" validate:"required"`
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
	ExpiresInSec int64  `json:"expiresIn"`
}

// ConnectIntegration stores a fresh credential and disconnects any
// previously connected one for the tenant.
func ConnectIntegration(ctx context.Context, businessId string, input *ConnectIntegrationInput) (*IntegrationCredential, error) {
	if err := utils.Validate.Struct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()

	var expiresAt *time.Time
	if input.ExpiresInSec > 0 {
		t := time.Now().Add(time.Duration(input.ExpiresInSec) * time.Second)
		expiresAt = &t
	}

	cred := IntegrationCredential{
		BusinessId:     businessId,
		Provider:       IntegrationProviderQuickBooks,
		Status:         IntegrationStatusConnected,
		RealmId:        input.RealmId,
		AccessToken:    input.AccessToken,
		RefreshToken:   input.RefreshToken,
		TokenExpiresAt: expiresAt,
	}

	tx := db.Begin()
	err := tx.WithContext(ctx).Model(&IntegrationCredential{}).
		Where("business_id = ? AND provider = ? AND status = ?",
			businessId, IntegrationProviderQuickBooks, IntegrationStatusConnected).
		Update("status", IntegrationStatusDisconnected).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&cred).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &cred, nil
}

func DisconnectIntegration(ctx context.Context, businessId string) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&IntegrationCredential{}).
		Where("business_id = ? AND provider = ? AND status = ?",
			businessId, IntegrationProviderQuickBooks, IntegrationStatusConnected).
		Update("status", IntegrationStatusDisconnected).Error
}

// UpdateTokens persists a refreshed token pair.
func (c *IntegrationCredential) UpdateTokens(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time) error {
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&IntegrationCredential{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"access_token":     accessToken,
			"refresh_token":    refreshToken,
			"token_expires_at": expiresAt,
		}).Error
	if err != nil {
		return err
	}
	c.AccessToken = accessToken
	c.RefreshToken = refreshToken
	c.TokenExpiresAt = &expiresAt
	return nil
}

// EntityMapping records a local↔QuickBooks identity correspondence.
// At most one mapping per (business_id, entity_type, internal_id);
// created exactly once and never mutated afterwards.
type EntityMapping struct {
	ID           uint       `gorm:"primary_key" json:"id"`
	BusinessId   string     `gorm:"uniqueIndex:idx_entity_mapping,priority:1;not null" json:"business_id"`
	CredentialId uint       `gorm:"index;not null" json:"credential_id"`
	EntityType   EntityType `gorm:"uniqueIndex:idx_entity_mapping,priority:2;size:50;not null" json:"entity_type"`
	InternalId   int        `gorm:"uniqueIndex:idx_entity_mapping,priority:3;not null" json:"internal_id"`
	ExternalId   string     `gorm:"size:128;not null" json:"external_id"`
	UserId       int        `json:"user_id"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// FindEntityMapping returns (nil, nil) on a clean miss. Lookups are
// keyed by the internal triple, never by external id.
func FindEntityMapping(ctx context.Context, businessId string, entityType EntityType, internalId int) (*EntityMapping, error) {
	var mapping EntityMapping
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("business_id = ? AND entity_type = ? AND internal_id = ?",
			businessId, entityType, internalId).
		Take(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

func CreateEntityMapping(ctx context.Context, businessId string, credentialId uint, entityType EntityType, internalId int, externalId string) (*EntityMapping, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)
	mapping := EntityMapping{
		BusinessId:   businessId,
		CredentialId: credentialId,
		EntityType:   entityType,
		InternalId:   internalId,
		ExternalId:   externalId,
		UserId:       userId,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&mapping).Error; err != nil {
		// Two workers can race on the same entity; the unique index
		// decides, and the loser adopts the winner's row.
		if isDuplicateKeyErr(err) {
			return FindEntityMapping(ctx, businessId, entityType, internalId)
		}
		return nil, err
	}
	return &mapping, nil
}
