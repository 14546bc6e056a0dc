package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planlogic/subscription-service/internal/domain"
	razorpayintg "github.com/planlogic/subscription-service/internal/integration/razorpay"
	"github.com/planlogic/subscription-service/internal/metrics"
	"github.com/planlogic/subscription-service/internal/service"
	"github.com/planlogic/subscription-service/pkg/logger"
)

const signatureHeader = "X-Razorpay-Signature"

// WebhookHandler обработчик вебхуков Razorpay
type WebhookHandler struct {
	gateway *razorpayintg.Client
	service service.SubscriptionService
	metrics metrics.PaymentMetrics
	log     *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(gateway *razorpayintg.Client, svc service.SubscriptionService, paymentMetrics metrics.PaymentMetrics, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		gateway: gateway,
		service: svc,
		metrics: paymentMetrics,
		log:     log,
	}
}

// HandleRazorpayWebhook принимает и обрабатывает вебхук Razorpay.
//
// До проверки подписи тело запроса не считается достоверным, и любая ошибка
// возвращает 4xx. После успешной проверки ответ всегда 200: провайдер
// повторяет доставку при не-2xx ответах, а повторная доставка уже принятого
// события ничего не исправит — сбои обработки разбираются по логам.
func (h *WebhookHandler) HandleRazorpayWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.log.Errorw("Failed to read webhook body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := h.gateway.VerifyWebhookSignature(body, c.GetHeader(signatureHeader)); err != nil {
		h.log.Warnw("Webhook signature verification failed", "error", err, "clientIP", c.ClientIP())
		h.metrics.IncWebhookEvent("unknown", "invalid_signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	event, err := razorpayintg.ParseWebhookEvent(body)
	if err != nil {
		h.log.Warnw("Failed to parse webhook body", "error", err)
		h.metrics.IncWebhookEvent("unknown", "malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed webhook body"})
		return
	}

	switch event.Event {
	case razorpayintg.EventSubscriptionActivated, razorpayintg.EventSubscriptionCharged:
		h.handlePaymentEvent(c, event)
	case razorpayintg.EventSubscriptionCancelled:
		h.handleStatusEvent(c, event, h.service.CancelSubscription)
	case razorpayintg.EventSubscriptionPaused:
		h.handleStatusEvent(c, event, h.service.PauseSubscription)
	case razorpayintg.EventSubscriptionResumed:
		h.handleStatusEvent(c, event, h.service.ResumeSubscription)
	case razorpayintg.EventSubscriptionCompleted:
		h.handleStatusEvent(c, event, h.service.CompleteSubscription)
	default:
		h.log.Debugw("Ignoring unhandled webhook event", "event", event.Event)
		h.metrics.IncWebhookEvent(event.Event, "ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

func (h *WebhookHandler) handlePaymentEvent(c *gin.Context, event *razorpayintg.WebhookEvent) {
	if event.UserID == "" || event.PlanID == "" {
		h.log.Errorw("Webhook payment event has no user or plan in notes",
			"event", event.Event, "subscriptionID", event.SubscriptionID)
		h.metrics.IncWebhookEvent(event.Event, "missing_notes")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	// У событий без платежной сущности ключом идемпотентности служит
	// детерминированная пара (подписка, время события)
	paymentID := event.PaymentID
	if paymentID == "" {
		paymentID = razorpayintg.FallbackPaymentID(event.SubscriptionID, event.CreatedAt)
	}

	result, err := h.service.ProcessPayment(c.Request.Context(), service.ProcessPaymentInput{
		PaymentID:             paymentID,
		UserID:                event.UserID,
		PlanID:                event.PlanID,
		Source:                domain.PaymentSourceWebhook,
		GatewaySubscriptionID: event.SubscriptionID,
	})
	if err != nil {
		h.log.Errorw("Webhook payment processing failed",
			"error", err, "event", event.Event, "paymentID", paymentID, "userID", event.UserID)
		h.metrics.IncWebhookEvent(event.Event, "failed")
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	h.metrics.IncWebhookEvent(event.Event, "processed")
	c.JSON(http.StatusOK, gin.H{"status": string(result.Status)})
}

func (h *WebhookHandler) handleStatusEvent(c *gin.Context, event *razorpayintg.WebhookEvent, op func(ctx context.Context, userID string) error) {
	if event.UserID == "" {
		h.log.Warnw("Webhook status event has no user in notes",
			"event", event.Event, "subscriptionID", event.SubscriptionID)
		h.metrics.IncWebhookEvent(event.Event, "missing_notes")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := op(c.Request.Context(), event.UserID); err != nil {
		// Переход может быть уже применен или невозможен; провайдеру это
		// не мешает, разбор по логам
		h.log.Warnw("Webhook status update skipped",
			"error", err, "event", event.Event, "userID", event.UserID)
		h.metrics.IncWebhookEvent(event.Event, "skipped")
		c.JSON(http.StatusOK, gin.H{"status": "skipped"})
		return
	}

	h.metrics.IncWebhookEvent(event.Event, "processed")
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}
