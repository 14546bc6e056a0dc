package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/planlogic/subscription-service/internal/domain"
)

// Типы вебхук-событий Razorpay, которые обрабатывает сервис
const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCharged   = "subscription.charged"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionPaused    = "subscription.paused"
	EventSubscriptionResumed   = "subscription.resumed"
	EventSubscriptionCompleted = "subscription.completed"
)

// WebhookEvent разобранное вебхук-событие Razorpay
type WebhookEvent struct {
	Event          string
	SubscriptionID string
	PaymentID      string
	UserID         string
	PlanID         string
	Status         string
	CreatedAt      int64
}

type webhookPayload struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Subscription struct {
			Entity struct {
				ID     string            `json:"id"`
				PlanID string            `json:"plan_id"`
				Status string            `json:"status"`
				Notes  map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// VerifyWebhookSignature проверяет подпись вебхука Razorpay.
// Подпись — HMAC-SHA256 от сырого тела запроса в hex, сравнение за
// постоянное время.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) error {
	if c.webhookSecret == "" {
		return fmt.Errorf("%w: webhook secret is not configured", domain.ErrWebhookValidationFailed)
	}
	if signature == "" {
		return fmt.Errorf("%w: signature header is missing", domain.ErrWebhookValidationFailed)
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrWebhookValidationFailed)
	}

	return nil
}

// VerifyPaymentSignature проверяет подпись связки платеж-подписка, которую
// фронтенд получает от Razorpay после оплаты. Подписывается строка
// "payment_id|subscription_id" секретным ключом аккаунта.
func VerifyPaymentSignature(paymentID, subscriptionID, signature, keySecret string) error {
	if paymentID == "" || subscriptionID == "" || signature == "" {
		return fmt.Errorf("%w: payment verification fields are missing", domain.ErrWebhookValidationFailed)
	}

	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(paymentID + "|" + subscriptionID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: payment signature mismatch", domain.ErrWebhookValidationFailed)
	}

	return nil
}

// ParseWebhookEvent разбирает тело вебхука после проверки подписи.
// UserID и PlanID берутся из notes подписки, куда сервис записал их при
// создании.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body: %v", domain.ErrWebhookValidationFailed, err)
	}
	if payload.Event == "" {
		return nil, fmt.Errorf("%w: webhook body has no event type", domain.ErrWebhookValidationFailed)
	}

	entity := payload.Payload.Subscription.Entity

	return &WebhookEvent{
		Event:          payload.Event,
		SubscriptionID: entity.ID,
		PaymentID:      payload.Payload.Payment.Entity.ID,
		UserID:         entity.Notes["user_id"],
		PlanID:         entity.Notes["plan_id"],
		Status:         entity.Status,
		CreatedAt:      payload.CreatedAt,
	}, nil
}

// FallbackPaymentID детерминированный ключ идемпотентности для событий без
// платежной сущности: повторная доставка того же события дает тот же ключ.
func FallbackPaymentID(subscriptionID string, createdAt int64) string {
	return fmt.Sprintf("webhook_%s_%d", subscriptionID, createdAt)
}
