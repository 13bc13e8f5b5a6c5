package models

import (
	"log"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Customer{}, &Vendor{},
		&Document{},
		&Invoice{}, &InvoiceDetail{},
		&Receipt{}, &ReceiptDetail{},
		&IntegrationCredential{}, &EntityMapping{},
		&DocumentSyncRun{}, &DocumentSyncError{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
