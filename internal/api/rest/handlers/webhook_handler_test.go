package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planlogic/subscription-service/internal/domain"
	razorpayintg "github.com/planlogic/subscription-service/internal/integration/razorpay"
	"github.com/planlogic/subscription-service/internal/metrics"
	"github.com/planlogic/subscription-service/internal/repository"
	"github.com/planlogic/subscription-service/internal/service"
	"github.com/planlogic/subscription-service/pkg/logger"
)

const testWebhookSecret = "whsec_test"

type webhookTestEnv struct {
	router *gin.Engine
	svc    service.SubscriptionService
	subs   *repository.InMemorySubscriptionRepository
}

func newWebhookTestEnv(t *testing.T) *webhookTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.ERROR)
	subs := repository.NewInMemorySubscriptionRepository(log)
	payments := repository.NewInMemoryProcessedPaymentRepository(log)
	plans := repository.NewInMemoryPlanRepository(log)
	users := repository.NewInMemoryUserRepository(log)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.NewRegistry(), log)

	svc := service.NewSubscriptionService(subs, payments, plans, users, nil, nil, paymentMetrics, log)
	gateway := razorpayintg.NewClient("key", "secret", testWebhookSecret, log)

	handler := NewWebhookHandler(gateway, svc, paymentMetrics, log)

	router := gin.New()
	router.POST("/webhooks/razorpay", handler.HandleRazorpayWebhook)

	return &webhookTestEnv{
		router: router,
		svc:    svc,
		subs:   subs,
	}
}

func (e *webhookTestEnv) deliver(t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", signature)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func chargedEventBody(paymentID, userID, planID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "subscription.charged",
		"created_at": 1717243200,
		"payload": {
			"subscription": {
				"entity": {
					"id": "sub_456",
					"notes": {"user_id": %q, "plan_id": %q}
				}
			},
			"payment": {
				"entity": {"id": %q}
			}
		}
	}`, userID, planID, paymentID))
}

func TestHandleRazorpayWebhook_InvalidSignature(t *testing.T) {
	t.Parallel()

	env := newWebhookTestEnv(t)
	body := chargedEventBody("pay_1", "user-1", "starter")

	w := env.deliver(t, body, "deadbeef")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Платеж не применен
	_, err := env.subs.GetByUserID(context.Background(), "user-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHandleRazorpayWebhook_ChargedEventProcessed(t *testing.T) {
	t.Parallel()

	env := newWebhookTestEnv(t)
	body := chargedEventBody("pay_1", "user-1", "starter")

	w := env.deliver(t, body, signBody(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "processed")

	sub, err := env.subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "starter", sub.PlanID)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "sub_456", sub.RazorpaySubscriptionID)
}

func TestHandleRazorpayWebhook_DuplicateDeliveryStillOK(t *testing.T) {
	t.Parallel()

	env := newWebhookTestEnv(t)
	body := chargedEventBody("pay_1", "user-1", "starter")
	signature := signBody(body)

	first := env.deliver(t, body, signature)
	second := env.deliver(t, body, signature)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "already_processed")
}

func TestHandleRazorpayWebhook_ProcessingFailureStillReturns200(t *testing.T) {
	t.Parallel()

	env := newWebhookTestEnv(t)
	// План не существует: обработка завершится ошибкой, но подпись верна
	body := chargedEventBody("pay_1", "user-1", "no-such-plan")

	w := env.deliver(t, body, signBody(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestHandleRazorpayWebhook_MissingNotesIgnored(t *testing.T) {
	t.Parallel()

	env := newWebhookTestEnv(t)
	body := []byte(`{
		"event": "subscription.charged",
		"created_at": 1717243200,
		"payload": {
			"subscription": {"entity": {"id": "sub_456"}},
			"payment": {"entity": {"id": "pay_1"}}
		}
	}`)

	w := env.deliver(t, body, signBody(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestHandleRazorpayWebhook_CancelledEvent(t *testing.T) {
	t.Parallel()

	env := newWebhookTestEnv(t)

	// Сначала активируем подписку платежом
	paid := chargedEventBody("pay_1", "user-1", "starter")
	require.Equal(t, http.StatusOK, env.deliver(t, paid, signBody(paid)).Code)

	cancelled := []byte(`{
		"event": "subscription.cancelled",
		"created_at": 1717243300,
		"payload": {
			"subscription": {
				"entity": {
					"id": "sub_456",
					"notes": {"user_id": "user-1", "plan_id": "starter"}
				}
			}
		}
	}`)

	w := env.deliver(t, cancelled, signBody(cancelled))

	assert.Equal(t, http.StatusOK, w.Code)

	sub, err := env.subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, sub.Status)
	assert.False(t, sub.AutoRenew)
}

func TestHandleRazorpayWebhook_CompletedEvent(t *testing.T) {
	t.Parallel()

	env := newWebhookTestEnv(t)

	paid := chargedEventBody("pay_1", "user-1", "starter")
	require.Equal(t, http.StatusOK, env.deliver(t, paid, signBody(paid)).Code)

	completed := []byte(`{
		"event": "subscription.completed",
		"created_at": 1717243400,
		"payload": {
			"subscription": {
				"entity": {
					"id": "sub_456",
					"notes": {"user_id": "user-1", "plan_id": "starter"}
				}
			}
		}
	}`)

	w := env.deliver(t, completed, signBody(completed))

	assert.Equal(t, http.StatusOK, w.Code)

	sub, err := env.subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCompleted, sub.Status)
}

func TestHandleRazorpayWebhook_UnknownEventIgnored(t *testing.T) {
	t.Parallel()

	env := newWebhookTestEnv(t)
	body := []byte(`{"event": "invoice.paid", "created_at": 1, "payload": {}}`)

	w := env.deliver(t, body, signBody(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestHandleRazorpayWebhook_ActivatedWithoutPaymentUsesFallbackKey(t *testing.T) {
	t.Parallel()

	env := newWebhookTestEnv(t)
	body := []byte(`{
		"event": "subscription.activated",
		"created_at": 1717243200,
		"payload": {
			"subscription": {
				"entity": {
					"id": "sub_456",
					"notes": {"user_id": "user-1", "plan_id": "starter"}
				}
			}
		}
	}`)
	signature := signBody(body)

	first := env.deliver(t, body, signature)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), "processed")

	// Повтор того же события дает тот же синтетический ключ и не продлевает
	// подписку второй раз
	second := env.deliver(t, body, signature)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "already_processed")
}
