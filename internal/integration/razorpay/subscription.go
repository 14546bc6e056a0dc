package razorpay

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/planlogic/subscription-service/internal/domain"
	"github.com/planlogic/subscription-service/internal/service"
)

// Подписка у провайдера создается на годовой цикл помесячных списаний
const subscriptionTotalCount = 12

// CreateSubscription создает подписку у Razorpay и возвращает ссылку на оплату.
// В notes записываются user_id и plan_id: вебхуки несут их обратно, и по ним
// платеж привязывается к пользователю.
func (c *Client) CreateSubscription(ctx context.Context, plan *domain.Plan, userID string) (*service.GatewaySubscription, error) {
	data := map[string]interface{}{
		"plan_id":         plan.RazorpayPlanID,
		"total_count":     subscriptionTotalCount,
		"customer_notify": 1,
		"notes": map[string]interface{}{
			"user_id": userID,
			"plan_id": plan.ID,
		},
	}

	var body map[string]interface{}
	err := c.withRetry(ctx, func() error {
		var apiErr error
		body, apiErr = c.api.Subscription.Create(data, nil)
		return apiErr
	})
	if err != nil {
		c.log.Errorw("Failed to create subscription at gateway",
			"error", err, "userID", userID, "planID", plan.ID)
		return nil, domain.NewGatewayError("create_subscription", "subscription create request failed", err)
	}

	sub := &service.GatewaySubscription{
		ID:       stringField(body, "id"),
		ShortURL: stringField(body, "short_url"),
		Status:   stringField(body, "status"),
	}
	if sub.ID == "" {
		return nil, domain.NewGatewayError("create_subscription", "gateway response has no subscription id", nil)
	}

	c.log.Infow("Gateway subscription created",
		"subscriptionID", sub.ID, "userID", userID, "planID", plan.ID)
	return sub, nil
}

// CancelSubscription отменяет подписку у Razorpay в конце текущего цикла
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	data := map[string]interface{}{
		"cancel_at_cycle_end": 1,
	}

	err := c.withRetry(ctx, func() error {
		_, apiErr := c.api.Subscription.Cancel(subscriptionID, data, nil)
		return apiErr
	})
	if err != nil {
		return domain.NewGatewayError("cancel_subscription", "subscription cancel request failed", err)
	}

	c.log.Infow("Gateway subscription cancelled", "subscriptionID", subscriptionID)
	return nil
}

// PauseSubscription приостанавливает подписку у Razorpay
func (c *Client) PauseSubscription(ctx context.Context, subscriptionID string) error {
	data := map[string]interface{}{
		"pause_at": "now",
	}

	err := c.withRetry(ctx, func() error {
		_, apiErr := c.api.Subscription.Pause(subscriptionID, data, nil)
		return apiErr
	})
	if err != nil {
		return domain.NewGatewayError("pause_subscription", "subscription pause request failed", err)
	}

	c.log.Infow("Gateway subscription paused", "subscriptionID", subscriptionID)
	return nil
}

// ResumeSubscription возобновляет подписку у Razorpay
func (c *Client) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	data := map[string]interface{}{
		"resume_at": "now",
	}

	err := c.withRetry(ctx, func() error {
		_, apiErr := c.api.Subscription.Resume(subscriptionID, data, nil)
		return apiErr
	})
	if err != nil {
		return domain.NewGatewayError("resume_subscription", "subscription resume request failed", err)
	}

	c.log.Infow("Gateway subscription resumed", "subscriptionID", subscriptionID)
	return nil
}

// withRetry выполняет запрос к провайдеру с экспоненциальными повторами
func (c *Client) withRetry(ctx context.Context, operation func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx))
}

func stringField(body map[string]interface{}, key string) string {
	if value, ok := body[key].(string); ok {
		return value
	}
	return ""
}
