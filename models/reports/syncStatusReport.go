package reports

import (
	"context"
	"fmt"
	"net/http"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"github.com/xuri/excelize/v2"
)

type DocumentSyncStatusRow struct {
	DocumentId   int    `json:"document_id"`
	DocumentType string `json:"document_type"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	RunCount     int    `json:"run_count"`
	LastRunAt    string `json:"last_run_at"`
}

func getDocumentSyncStatusReport(ctx context.Context, businessId string) ([]*DocumentSyncStatusRow, error) {

	sql := `
SELECT
    documents.id AS document_id,
    documents.document_type,
    documents.status,
    documents.error_message,
    COALESCE(runs.run_count, 0) AS run_count,
    COALESCE(runs.last_run_at, '') AS last_run_at
FROM
    documents
    LEFT JOIN (
        SELECT
            document_id,
            COUNT(id) AS run_count,
            MAX(finished_at) AS last_run_at
        FROM
            document_sync_runs
        WHERE
            business_id = ?
        GROUP BY
            document_id
    ) AS runs ON runs.document_id = documents.id
WHERE
    documents.business_id = ?
ORDER BY
    documents.id DESC;
`

	var records []*DocumentSyncStatusRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, businessId, businessId).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ExportSyncStatusExcel streams the per-document sync status sheet.
func ExportSyncStatusExcel(ctx context.Context, businessId string, w http.ResponseWriter) error {
	f := excelize.NewFile()
	if _, err := f.NewSheet("Sheet1"); err != nil {
		return err
	}

	data, err := getDocumentSyncStatusReport(ctx, businessId)
	if err != nil {
		return err
	}

	f.SetCellValue("Sheet1", "A1", "DocumentId")
	f.SetCellValue("Sheet1", "B1", "DocumentType")
	f.SetCellValue("Sheet1", "C1", "Status")
	f.SetCellValue("Sheet1", "D1", "ErrorMessage")
	f.SetCellValue("Sheet1", "E1", "RunCount")
	f.SetCellValue("Sheet1", "F1", "LastRunAt")

	for i, d := range data {
		f.SetCellValue("Sheet1", "A"+fmt.Sprint(i+2), d.DocumentId)
		f.SetCellValue("Sheet1", "B"+fmt.Sprint(i+2), d.DocumentType)
		f.SetCellValue("Sheet1", "C"+fmt.Sprint(i+2), d.Status)
		f.SetCellValue("Sheet1", "D"+fmt.Sprint(i+2), d.ErrorMessage)
		f.SetCellValue("Sheet1", "E"+fmt.Sprint(i+2), d.RunCount)
		f.SetCellValue("Sheet1", "F"+fmt.Sprint(i+2), d.LastRunAt)
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=document-sync-status.xlsx")
	return f.Write(w)
}
