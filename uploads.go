package main

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/models"
	"bitbucket.org/mmdatafocus/docsync_backend/models/reports"
	"bitbucket.org/mmdatafocus/docsync_backend/qbsync"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
)

const maxUploadSizeBytes int64 = 20 * 1024 * 1024

var tracer = otel.Tracer("docsync-backend")

var documentMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

func extensionFromMimeType(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

// uploadDocumentHandler ingests one scanned invoice or receipt, stores
// the original and queues the sync pipeline for it.
func uploadDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		businessId := strings.TrimSpace(c.GetHeader("X-Business-Id"))
		if businessId == "" {
			businessId = strings.TrimSpace(c.PostForm("business_id"))
		}
		if businessId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "business_id is required"})
			return
		}

		documentType := models.DocumentType(strings.ToLower(strings.TrimSpace(c.PostForm("document_type"))))
		if !documentType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "document_type must be invoice or receipt"})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 20MB limit"})
			return
		}

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if ext == "" {
			ext = extensionFromMimeType(fileHeader.Header.Get("Content-Type"))
		}
		if ext == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file extension is required"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}
		defer file.Close()

		ctx, span := tracer.Start(c.Request.Context(), "uploadDocument")
		defer span.End()
		ctx = utils.SetBusinessIdInContext(ctx, businessId)

		objectKey := path.Join(businessId, "documents", uuid.New().String()+ext)
		mimeType, err := utils.UploadFileToGCS(ctx, objectKey, file)
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadDocumentHandler", "upload to storage", objectKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
			return
		}
		if !documentMimeTypes[mimeType] {
			_ = utils.DeleteObjectFromGCS(ctx, objectKey)
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
			return
		}

		doc, err := models.CreateDocument(ctx, &models.NewDocument{
			DocumentType: documentType,
			FileUrl:      utils.BuildObjectAccessURL(objectKey),
		})
		if err != nil {
			var ve validator.ValidationErrors
			if errors.As(err, &ve) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(ve)})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		userId, _ := utils.GetUserIdFromContext(ctx)
		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		if err := qbsync.PublishDocumentSync(ctx, qbsync.DocumentSyncPayload{
			DocumentId:    doc.ID,
			BusinessId:    businessId,
			UserId:        userId,
			TriggeredBy:   models.SyncTriggeredSystem,
			CorrelationId: correlationId,
		}); err != nil {
			// The document is stored; sync can still be triggered manually.
			config.LogError(logger, "uploads.go", "uploadDocumentHandler", "publish sync job", doc.ID, err)
		}

		logger.WithFields(logrus.Fields{
			"tenant_id":     businessId,
			"document_id":   doc.ID,
			"document_type": string(documentType),
			"mime_type":     mimeType,
			"object_key":    objectKey,
		}).Info("[document.upload]")

		c.JSON(http.StatusOK, gin.H{
			"id":      doc.ID,
			"status":  string(doc.Status),
			"fileUrl": doc.FileUrl,
		})
	}
}

// syncStatusReportHandler streams the per-document sync status sheet.
func syncStatusReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := strings.TrimSpace(c.GetHeader("X-Business-Id"))
		if businessId == "" {
			businessId = strings.TrimSpace(c.Query("business_id"))
		}
		if businessId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "business_id is required"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		if err := reports.ExportSyncStatusExcel(ctx, businessId, c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to export report: %v", err)})
		}
	}
}
