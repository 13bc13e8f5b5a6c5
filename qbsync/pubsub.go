package qbsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
)

func syncTopicName() string {
	topicName := strings.TrimSpace(os.Getenv("DOCSYNC_TOPIC"))
	if topicName == "" {
		topicName = "document-sync"
	}
	return topicName
}

// PublishDocumentSync enqueues one pipeline run for the document.
func PublishDocumentSync(ctx context.Context, payload DocumentSyncPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topicName := syncTopicName()
	topic := client.Topic(topicName)
	if envBoolDefault("DOCSYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
		// Local bootstrap only; deployed push subscriptions are
		// provisioned as infrastructure.
		if endpoint := strings.TrimSpace(os.Getenv("DOCSYNC_PUSH_ENDPOINT")); endpoint != "" {
			if _, err := config.CreateSubscriptionIfNotExists(client, topicName+"-push", topic, endpoint); err != nil {
				return err
			}
		}
	}

	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler consumes push deliveries. A 2xx acknowledges the
// message; retryable pipeline failures return 500 so Pub/Sub
// redelivers, terminal data problems are acknowledged since redelivery
// cannot fix them.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_DOCSYNC_PUSH_ENDPOINT", true) {
			c.Status(http.StatusNoContent)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		var payload DocumentSyncPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		if payload.DocumentId == 0 || payload.BusinessId == "" {
			c.Status(http.StatusNoContent)
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), payload.BusinessId)
		if payload.UserId > 0 {
			ctx = utils.SetUserIdInContext(ctx, payload.UserId)
		}
		if payload.CorrelationId != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, payload.CorrelationId)
		}

		triggeredBy := payload.TriggeredBy
		if triggeredBy == "" {
			triggeredBy = "system"
		}

		if err := RunDocumentSync(ctx, payload.DocumentId, triggeredBy); err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "qbsync", "PubSubPushHandler", "document sync", payload.DocumentId, err)

			// A vanished document can never succeed on redelivery.
			if !errors.Is(err, utils.ErrorRecordNotFound) && isRetryable(err) {
				c.Status(http.StatusInternalServerError)
				return
			}
		}
		c.Status(http.StatusNoContent)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
