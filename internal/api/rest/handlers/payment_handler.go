package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/planlogic/subscription-service/internal/api/rest/middleware"
	"github.com/planlogic/subscription-service/internal/domain"
	razorpayintg "github.com/planlogic/subscription-service/internal/integration/razorpay"
	"github.com/planlogic/subscription-service/internal/service"
	"github.com/planlogic/subscription-service/pkg/logger"
)

// PaymentHandler обработчики подтверждения платежей со стороны фронтенда
type PaymentHandler struct {
	service     service.SubscriptionService
	keySecret   string
	frontendURL string
	log         *logger.Logger
}

// NewPaymentHandler создает новый обработчик платежей
func NewPaymentHandler(svc service.SubscriptionService, keySecret, frontendURL string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:     svc,
		keySecret:   keySecret,
		frontendURL: frontendURL,
		log:         log,
	}
}

// Callback обрабатывает редирект Razorpay после оплаты. Пользователь
// попадает сюда браузером, поэтому ответ — редирект на фронтенд, а не JSON.
// Вебхук остается основным каналом: если колбэк не дошел, платеж все равно
// будет применен.
func (h *PaymentHandler) Callback(c *gin.Context) {
	paymentID := c.Query("razorpay_payment_id")
	subscriptionID := c.Query("razorpay_subscription_id")
	signature := c.Query("razorpay_signature")
	userID := c.Query("user_id")
	planID := c.Query("plan_id")

	if err := razorpayintg.VerifyPaymentSignature(paymentID, subscriptionID, signature, h.keySecret); err != nil {
		h.log.Warnw("Payment callback signature verification failed",
			"error", err, "paymentID", paymentID, "subscriptionID", subscriptionID)
		h.redirectFailed(c, "signature_verification_failed")
		return
	}

	if userID == "" || planID == "" {
		h.log.Warnw("Payment callback missing user or plan",
			"paymentID", paymentID, "userID", userID, "planID", planID)
		h.redirectFailed(c, "missing_parameters")
		return
	}

	result, err := h.service.ProcessPayment(c.Request.Context(), service.ProcessPaymentInput{
		PaymentID:             paymentID,
		UserID:                userID,
		PlanID:                planID,
		Source:                domain.PaymentSourceCallback,
		GatewaySubscriptionID: subscriptionID,
	})
	if err != nil {
		h.log.Errorw("Payment callback processing failed",
			"error", err, "paymentID", paymentID, "userID", userID)
		h.redirectFailed(c, "processing_failed")
		return
	}

	h.log.Infow("Payment callback processed",
		"paymentID", paymentID, "userID", userID, "status", result.Status)

	target := fmt.Sprintf("%s/payment/success?plan=%s&status=%s",
		h.frontendURL, url.QueryEscape(planID), url.QueryEscape(string(result.Status)))
	c.Redirect(http.StatusFound, target)
}

type verifyPaymentRequest struct {
	RazorpayPaymentID      string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySubscriptionID string `json:"razorpay_subscription_id" binding:"required"`
	RazorpaySignature      string `json:"razorpay_signature" binding:"required"`
	PlanID                 string `json:"plan_id" binding:"required"`
}

// Verify подтверждает платеж, присланный фронтендом после оплаты.
// Пользователь берется из токена, а не из тела запроса: подтвердить чужой
// платеж нельзя.
func (h *PaymentHandler) Verify(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment verification fields are required"})
		return
	}

	err := razorpayintg.VerifyPaymentSignature(
		req.RazorpayPaymentID, req.RazorpaySubscriptionID, req.RazorpaySignature, h.keySecret)
	if err != nil {
		h.log.Warnw("Payment verification failed",
			"error", err, "paymentID", req.RazorpayPaymentID, "userID", userID)
		respondError(c, err)
		return
	}

	result, err := h.service.ProcessPayment(c.Request.Context(), service.ProcessPaymentInput{
		PaymentID:             req.RazorpayPaymentID,
		UserID:                userID,
		PlanID:                req.PlanID,
		Source:                domain.PaymentSourceVerify,
		GatewaySubscriptionID: req.RazorpaySubscriptionID,
	})
	if err != nil {
		h.log.Errorw("Verified payment processing failed",
			"error", err, "paymentID", req.RazorpayPaymentID, "userID", userID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) redirectFailed(c *gin.Context, reason string) {
	target := fmt.Sprintf("%s/payment/failed?reason=%s", h.frontendURL, url.QueryEscape(reason))
	c.Redirect(http.StatusFound, target)
}
