package qbsync

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/models"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
)

const statusCacheTTL = 60 * time.Second

func statusCacheKey(businessId string) string {
	return "qbsync:integration-status:" + businessId
}

func bindJSONOr400(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(ve)})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

func resolveBusinessID(c *gin.Context) (string, error) {
	businessId := strings.TrimSpace(c.GetHeader("X-Business-Id"))
	if businessId == "" {
		businessId = strings.TrimSpace(c.Query("business_id"))
	}
	if businessId == "" {
		return "", errors.New("business_id is required")
	}
	return businessId, nil
}

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		// Cache is best-effort; connect/disconnect/settings invalidate it.
		var cached StatusResponse
		if hit, err := config.GetRedisObject(statusCacheKey(businessId), &cached); err == nil && hit {
			c.JSON(http.StatusOK, cached)
			return
		}

		cred, err := models.GetConnectedCredential(ctx, businessId)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				resp := StatusResponse{Status: models.IntegrationStatusDisconnected}
				_ = config.SetRedisObject(statusCacheKey(businessId), resp, statusCacheTTL)
				c.JSON(http.StatusOK, resp)
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp := StatusResponse{Status: cred.Status, RealmId: cred.RealmId}
		_ = config.SetRedisObject(statusCacheKey(businessId), resp, statusCacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

func ConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ConnectRequest
		if !bindJSONOr400(c, &req) {
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		cred, err := models.ConnectIntegration(ctx, businessId, &models.ConnectIntegrationInput{
			RealmId:      req.RealmId,
			AccessToken:  req.AccessToken,
			RefreshToken: req.RefreshToken,
			ExpiresInSec: req.ExpiresIn,
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
		_ = config.RemoveRedisKey(statusCacheKey(businessId))
		c.JSON(http.StatusOK, gin.H{"success": true, "realmId": cred.RealmId})
	}
}

func DisconnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		if err := models.DisconnectIntegration(ctx, businessId); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		_ = config.RemoveRedisKey(statusCacheKey(businessId))
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func UpdateSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req UpdateSettingsRequest
		if !bindJSONOr400(c, &req) {
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		cred, err := models.GetConnectedCredential(ctx, businessId)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusConflict, gin.H{"error": "quickbooks is not connected"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		settingsJSON, _ := json.Marshal(models.IntegrationSettings{
			ExpenseAccountRef: strings.TrimSpace(req.ExpenseAccountRef),
			PaymentAccountRef: strings.TrimSpace(req.PaymentAccountRef),
			ItemRef:           strings.TrimSpace(req.ItemRef),
		})
		err = config.GetDB().WithContext(ctx).Model(&models.IntegrationCredential{}).
			Where("id = ?", cred.ID).
			Update("settings_json", settingsJSON).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		_ = config.RemoveRedisKey(statusCacheKey(businessId))
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// TriggerSyncHandler queues a pipeline run for one document.
func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		documentId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		doc, err := models.GetDocument(ctx, businessId, documentId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		userId, _ := utils.GetUserIdFromContext(ctx)
		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		if err := PublishDocumentSync(ctx, DocumentSyncPayload{
			DocumentId:    doc.ID,
			BusinessId:    businessId,
			UserId:        userId,
			TriggeredBy:   models.SyncTriggeredManual,
			CorrelationId: correlationId,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": doc.ID, "status": string(doc.Status)})
	}
}

func ListDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 100
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		docs, err := models.ListDocuments(ctx, businessId, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]DocumentResponse, 0, len(docs))
		for _, doc := range docs {
			items = append(items, mapDocumentToResponse(doc))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func GetDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		documentId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		doc, err := models.GetDocument(ctx, businessId, documentId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, mapDocumentToResponse(doc))
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		var runs []models.DocumentSyncRun
		err = config.GetDB().WithContext(ctx).
			Where("business_id = ?", businessId).
			Order("id desc").
			Limit(limit).
			Find(&runs).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		db := config.GetDB().WithContext(ctx)

		var run models.DocumentSyncRun
		if err := db.Where("id = ? AND business_id = ?", id, businessId).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var errs []models.DocumentSyncError
		if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(run),
			Errors:          mapSyncErrors(errs),
		})
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapDocumentToResponse(doc *models.Document) DocumentResponse {
	return DocumentResponse{
		ID:           doc.ID,
		DocumentType: string(doc.DocumentType),
		Status:       string(doc.Status),
		FileUrl:      doc.FileUrl,
		PageImages:   doc.PageImages(),
		ErrorMessage: doc.ErrorMessage,
		CreatedAt:    doc.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapRunToResponse(run models.DocumentSyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:           run.ID,
		DocumentId:   run.DocumentId,
		Status:       run.Status,
		TriggeredBy:  run.TriggeredBy,
		StartedAt:    formatTime(run.StartedAt),
		FinishedAt:   formatTime(run.FinishedAt),
		DurationMs:   run.DurationMs,
		ErrorMessage: run.ErrorMessage,
	}
}

func mapSyncErrors(errorsList []models.DocumentSyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:        errItem.ID,
			Step:      errItem.Step,
			Message:   errItem.Message,
			Retryable: errItem.Retryable,
		})
	}
	return out
}
