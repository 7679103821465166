package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/eo-nwanze/lavish-sub000/internal/application/webhook"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/commerce"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultMaxWebhookPayloadSize bounds a single delivery body (1MB)
const DefaultMaxWebhookPayloadSize int64 = 1 << 20

// WebhookProcessor reconciles an authenticated delivery
type WebhookProcessor interface {
	Handle(ctx context.Context, d webhook.Delivery) (*webhook.Result, error)
}

// SignatureChecker authenticates a raw delivery body
type SignatureChecker interface {
	Verify(payload []byte, signatureHeader string) bool
}

// WebhookHandler receives lifecycle notifications from the commerce platform.
// These endpoints are authenticated by HMAC signature, not JWT.
type WebhookHandler struct {
	BaseHandler
	verifier   SignatureChecker
	reconciler WebhookProcessor
	maxBody    int64
}

// NewWebhookHandler creates a new WebhookHandler. maxBody <= 0 uses DefaultMaxWebhookPayloadSize.
func NewWebhookHandler(verifier SignatureChecker, reconciler WebhookProcessor, maxBody int64) *WebhookHandler {
	if maxBody <= 0 {
		maxBody = DefaultMaxWebhookPayloadSize
	}
	return &WebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		maxBody:    maxBody,
	}
}

// Receive godoc
//
//	@ID				receiveWebhook
//	@Summary		Receive a commerce webhook
//	@Description	Authenticate and reconcile a subscription, billing or payment-method notification
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			topic					path		string	true	"Topic slug"	Enums(subscription-created, subscription-updated, billing-success, billing-failure, payment-method-revoked, payment-method-created)
//	@Param			X-Commerce-Hmac-Sha256	header		string	true	"Base64 HMAC-SHA256 of the raw body"
//	@Param			X-Commerce-Webhook-Id	header		string	false	"Delivery identifier used for de-duplication"
//	@Success		200						{object}	WebhookAck
//	@Failure		401						{object}	ErrorResponse
//	@Failure		404						{object}	ErrorResponse
//	@Failure		413						{object}	ErrorResponse
//	@Router			/webhooks/{topic} [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBody+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if int64(len(payload)) > h.maxBody {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Payload too large")
		return
	}

	// Nothing is read or written before the signature checks out
	if !h.verifier.Verify(payload, c.GetHeader(commerce.SignatureHeader)) {
		logger.L(c.Request.Context()).Warn("Rejected webhook with invalid signature",
			zap.String("topic", c.Param("topic")),
			zap.String("client_ip", c.ClientIP()),
		)
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeInvalidSignature, "Invalid webhook signature")
		return
	}

	topic, err := integration.TopicFromSlug(c.Param("topic"))
	if err != nil {
		h.Error(c, http.StatusNotFound, dto.ErrCodeUnknownTopic, "Unsupported webhook topic")
		return
	}

	result, err := h.reconciler.Handle(c.Request.Context(), webhook.Delivery{
		Topic:      topic,
		DeliveryID: c.GetHeader(commerce.DeliveryIDHeader),
		Body:       payload,
	})
	if err != nil {
		// Failures are recorded in the sync log; the sender is not asked to retry
		fields := []zap.Field{
			zap.String("topic", string(topic)),
			zap.String("delivery_id", c.GetHeader(commerce.DeliveryIDHeader)),
			zap.Error(err),
		}
		if result != nil {
			fields = append(fields, zap.String("sync_log_id", result.SyncLogID.String()))
		}
		logger.L(c.Request.Context()).Error("Webhook processing failed", fields...)
	}

	c.JSON(http.StatusOK, WebhookAck{Received: true})
}
