package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planlogic/subscription-service/internal/domain"
	"github.com/planlogic/subscription-service/internal/metrics"
	"github.com/planlogic/subscription-service/internal/repository"
	"github.com/planlogic/subscription-service/pkg/logger"
)

type testEnv struct {
	svc      *subscriptionService
	subs     *repository.InMemorySubscriptionRepository
	payments *repository.InMemoryProcessedPaymentRepository
	plans    *repository.InMemoryPlanRepository
	users    *repository.InMemoryUserRepository
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.New(logger.ERROR)
	subs := repository.NewInMemorySubscriptionRepository(log)
	payments := repository.NewInMemoryProcessedPaymentRepository(log)
	plans := repository.NewInMemoryPlanRepository(log)
	users := repository.NewInMemoryUserRepository(log)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.NewRegistry(), log)

	svc := NewSubscriptionService(subs, payments, plans, users, nil, nil, paymentMetrics, log).(*subscriptionService)

	env := &testEnv{
		svc:      svc,
		subs:     subs,
		payments: payments,
		plans:    plans,
		users:    users,
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time { return env.now }
	return env
}

type stubGateway struct {
	subscription GatewaySubscription
	created      []string
}

func (g *stubGateway) CreateSubscription(ctx context.Context, plan *domain.Plan, userID string) (*GatewaySubscription, error) {
	g.created = append(g.created, userID)
	sub := g.subscription
	return &sub, nil
}

func (g *stubGateway) CancelSubscription(ctx context.Context, subscriptionID string) error { return nil }
func (g *stubGateway) PauseSubscription(ctx context.Context, subscriptionID string) error  { return nil }
func (g *stubGateway) ResumeSubscription(ctx context.Context, subscriptionID string) error { return nil }

func (e *testEnv) processPayment(t *testing.T, paymentID, userID, planID string) *domain.PaymentResult {
	t.Helper()

	result, err := e.svc.ProcessPayment(context.Background(), ProcessPaymentInput{
		PaymentID: paymentID,
		UserID:    userID,
		PlanID:    planID,
		Source:    domain.PaymentSourceWebhook,
	})
	require.NoError(t, err)
	return result
}

func TestProcessPayment_NewSubscription(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	result := env.processPayment(t, "pay_1", "user-1", domain.PlanFree)

	assert.Equal(t, domain.PaymentResultProcessed, result.Status)
	assert.Equal(t, domain.PaymentActionNew, result.ActionType)
	assert.Equal(t, 6, result.DurationDays)
	require.NotNil(t, result.Subscription.ExpiresAt)
	assert.Equal(t, env.now.Add(6*24*time.Hour), *result.Subscription.ExpiresAt)
	assert.Equal(t, domain.SubscriptionStatusActive, result.Subscription.Status)
	assert.Equal(t, env.now, result.Subscription.Usage.LastReset)

	planID, ok := env.users.GetPlan("user-1")
	require.True(t, ok)
	assert.Equal(t, domain.PlanFree, planID)
}

func TestProcessPayment_DuplicateDelivery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	first := env.processPayment(t, "pay_1", "user-1", domain.PlanStarter)
	second := env.processPayment(t, "pay_1", "user-1", domain.PlanStarter)

	assert.Equal(t, domain.PaymentResultProcessed, first.Status)
	assert.Equal(t, domain.PaymentResultAlreadyProcessed, second.Status)
	require.NotNil(t, second.Subscription)
	assert.Equal(t, *first.Subscription.ExpiresAt, *second.Subscription.ExpiresAt)

	// Повторная доставка не продлевает подписку
	stored, err := env.subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, *first.Subscription.ExpiresAt, *stored.ExpiresAt)
}

func TestProcessPayment_RenewalExtendsAndKeepsUsage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	first := env.processPayment(t, "pay_1", "user-1", domain.PlanStarter)
	firstExpiry := *first.Subscription.ExpiresAt

	// Накапливаем потребление за период
	sub, err := env.subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	sub.Usage.MessagesThisMonth = 120
	sub.Usage.ChatbotsCount = 2
	require.NoError(t, env.subs.Upsert(context.Background(), sub))

	env.now = env.now.Add(10 * 24 * time.Hour)
	second := env.processPayment(t, "pay_2", "user-1", domain.PlanStarter)

	assert.Equal(t, domain.PaymentActionRenewal, second.ActionType)
	assert.Equal(t, firstExpiry.Add(30*24*time.Hour), *second.Subscription.ExpiresAt)
	assert.Equal(t, 120, second.Subscription.Usage.MessagesThisMonth)
	assert.Equal(t, 2, second.Subscription.Usage.ChatbotsCount)
}

func TestProcessPayment_UpgradeResetsUsageAndRemainder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	env.processPayment(t, "pay_1", "user-1", domain.PlanStarter)

	sub, err := env.subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	sub.Usage.MessagesThisMonth = 500
	require.NoError(t, env.subs.Upsert(context.Background(), sub))

	env.now = env.now.Add(10 * 24 * time.Hour)
	result := env.processPayment(t, "pay_2", "user-1", domain.PlanProfessional)

	assert.Equal(t, domain.PaymentActionUpgrade, result.ActionType)
	// Срок отсчитывается заново, остаток старого периода сгорает
	assert.Equal(t, env.now.Add(30*24*time.Hour), *result.Subscription.ExpiresAt)
	assert.Equal(t, 0, result.Subscription.Usage.MessagesThisMonth)
	assert.Equal(t, env.now, result.Subscription.Usage.LastReset)
}

func TestProcessPayment_TermTransitionsResetStartedAt(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	first := env.processPayment(t, "pay_1", "user-1", domain.PlanFree)
	assert.Equal(t, env.now, first.Subscription.StartedAt)

	// Смена плана начинает новый срок
	env.now = env.now.Add(2 * 24 * time.Hour)
	upgrade := env.processPayment(t, "pay_2", "user-1", domain.PlanStarter)
	assert.Equal(t, domain.PaymentActionUpgrade, upgrade.ActionType)
	assert.Equal(t, env.now, upgrade.Subscription.StartedAt)

	// Продление тоже: started_at отмечает последний примененный платеж
	env.now = env.now.Add(5 * 24 * time.Hour)
	renewal := env.processPayment(t, "pay_3", "user-1", domain.PlanStarter)
	assert.Equal(t, domain.PaymentActionRenewal, renewal.ActionType)
	assert.Equal(t, env.now, renewal.Subscription.StartedAt)

	// Дата создания записи при этом не меняется
	stored, err := env.subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.Subscription.CreatedAt, stored.CreatedAt)
}

func TestProcessPayment_PlanComparisonIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	env.processPayment(t, "pay_1", "user-1", "professional")
	result := env.processPayment(t, "pay_2", "user-1", "PROFESSIONAL")

	// Тот же план в другом регистре — это продление, а не смена плана
	assert.Equal(t, domain.PaymentActionRenewal, result.ActionType)
}

func TestProcessPayment_ValidationErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ProcessPayment(ctx, ProcessPaymentInput{PaymentID: "", UserID: "u", PlanID: "free"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.svc.ProcessPayment(ctx, ProcessPaymentInput{PaymentID: "pay_1", UserID: "u", PlanID: "no-such-plan"})
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestProcessPayment_ConcurrentSamePayment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 16
	results := make([]*domain.PaymentResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.svc.ProcessPayment(ctx, ProcessPaymentInput{
				PaymentID: "pay_race",
				UserID:    "user-1",
				PlanID:    domain.PlanStarter,
				Source:    domain.PaymentSourceWebhook,
			})
		}(i)
	}
	wg.Wait()

	processed := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if results[i].Status == domain.PaymentResultProcessed {
			processed++
		} else {
			assert.Equal(t, domain.PaymentResultAlreadyProcessed, results[i].Status)
		}
	}
	assert.Equal(t, 1, processed)

	// Платеж применился ровно один раз
	sub, err := env.subs.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, env.now.Add(30*24*time.Hour), *sub.ExpiresAt)
}

func TestProcessPayment_ConcurrentDistinctPaymentsSerialize(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	env.processPayment(t, "pay_base", "user-1", domain.PlanStarter)
	baseExpiry := env.now.Add(30 * 24 * time.Hour)

	var wg sync.WaitGroup
	for _, paymentID := range []string{"pay_a", "pay_b"} {
		wg.Add(1)
		go func(paymentID string) {
			defer wg.Done()
			_, err := env.svc.ProcessPayment(ctx, ProcessPaymentInput{
				PaymentID: paymentID,
				UserID:    "user-1",
				PlanID:    domain.PlanStarter,
				Source:    domain.PaymentSourceWebhook,
			})
			assert.NoError(t, err)
		}(paymentID)
	}
	wg.Wait()

	// Оба продления применились последовательно
	sub, err := env.subs.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, baseExpiry.Add(60*24*time.Hour), *sub.ExpiresAt)
}

func TestAdminChangePlan_PreservesUsage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	env.processPayment(t, "pay_1", "user-1", domain.PlanEnterprise)

	sub, err := env.subs.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	sub.Usage.FileUploads = 7
	require.NoError(t, env.subs.Upsert(ctx, sub))

	result, err := env.svc.AdminChangePlan(ctx, "user-1", domain.PlanStarter, "admin-9", "billing dispute")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentActionAdminChange, result.ActionType)
	assert.Equal(t, domain.PlanStarter, result.Subscription.PlanID)
	assert.Equal(t, 7, result.Subscription.Usage.FileUploads)
	assert.Equal(t, "admin-9", result.Subscription.AdminChangedBy)
	assert.Equal(t, env.now.Add(30*24*time.Hour), *result.Subscription.ExpiresAt)

	// Операция видна в истории платежей
	history, err := env.svc.GetPaymentHistory(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestAdminExtendSubscription(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("active subscription extends from expiry", func(t *testing.T) {
		env.processPayment(t, "pay_1", "user-1", domain.PlanStarter)
		baseExpiry := env.now.Add(30 * 24 * time.Hour)

		sub, err := env.svc.AdminExtendSubscription(ctx, "user-1", 15, "admin-1", "goodwill")
		require.NoError(t, err)
		assert.Equal(t, baseExpiry.Add(15*24*time.Hour), *sub.ExpiresAt)
	})

	t.Run("invalid days rejected", func(t *testing.T) {
		_, err := env.svc.AdminExtendSubscription(ctx, "user-1", 0, "admin-1", "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("missing subscription rejected", func(t *testing.T) {
		_, err := env.svc.AdminExtendSubscription(ctx, "nobody", 5, "admin-1", "")
		assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	})

	t.Run("lifetime subscription rejected", func(t *testing.T) {
		env.processPayment(t, "pay_2", "user-2", domain.PlanStarter)
		_, err := env.svc.AdminSetLifetimeAccess(ctx, "user-2", true, "admin-1", "vip")
		require.NoError(t, err)

		_, err = env.svc.AdminExtendSubscription(ctx, "user-2", 10, "admin-1", "")
		assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	})
}

func TestAdminSetLifetimeAccess(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	env.processPayment(t, "pay_1", "user-1", domain.PlanProfessional)

	sub, err := env.svc.AdminSetLifetimeAccess(ctx, "user-1", true, "admin-1", "founder")
	require.NoError(t, err)
	assert.True(t, sub.LifetimeAccess)
	assert.Nil(t, sub.ExpiresAt)

	// Платеж не снимает пожизненный доступ
	result := env.processPayment(t, "pay_2", "user-1", domain.PlanProfessional)
	assert.True(t, result.Subscription.LifetimeAccess)
	assert.Nil(t, result.Subscription.ExpiresAt)

	// Отзыв возвращает подписку к обычному сроку плана
	sub, err = env.svc.AdminSetLifetimeAccess(ctx, "user-1", false, "admin-1", "expired deal")
	require.NoError(t, err)
	assert.False(t, sub.LifetimeAccess)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, env.now.Add(30*24*time.Hour), *sub.ExpiresAt)
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	env.processPayment(t, "pay_1", "user-1", domain.PlanStarter)

	require.NoError(t, env.svc.PauseSubscription(ctx, "user-1"))
	sub, err := env.subs.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPaused, sub.Status)

	// Повторная пауза невозможна
	err = env.svc.PauseSubscription(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	require.NoError(t, env.svc.ResumeSubscription(ctx, "user-1"))
	require.NoError(t, env.svc.CancelSubscription(ctx, "user-1"))

	sub, err = env.subs.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, sub.Status)
	assert.False(t, sub.AutoRenew)

	// Из отмененного состояния возврата нет
	err = env.svc.ResumeSubscription(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	err = env.svc.CancelSubscription(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestCompleteSubscription(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	env.processPayment(t, "pay_1", "user-1", domain.PlanStarter)

	require.NoError(t, env.svc.CompleteSubscription(ctx, "user-1"))

	sub, err := env.subs.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCompleted, sub.Status)
	assert.False(t, sub.AutoRenew)

	// Завершенная подписка не приостанавливается и не завершается повторно
	assert.ErrorIs(t, env.svc.PauseSubscription(ctx, "user-1"), domain.ErrInvalidOperation)
	assert.ErrorIs(t, env.svc.CompleteSubscription(ctx, "user-1"), domain.ErrInvalidOperation)
}

func TestCheckSubscriptionStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("missing subscription", func(t *testing.T) {
		report, err := env.svc.CheckSubscriptionStatus(ctx, "nobody")
		require.NoError(t, err)
		assert.False(t, report.Exists)
		assert.True(t, report.IsExpired)
	})

	t.Run("active subscription", func(t *testing.T) {
		env.processPayment(t, "pay_1", "user-1", domain.PlanStarter)

		report, err := env.svc.CheckSubscriptionStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, report.Exists)
		assert.False(t, report.IsExpired)
		assert.False(t, report.IsExpiringSoon)
		assert.Equal(t, 30, report.DaysRemaining)
		assert.Equal(t, domain.PlanStarter, report.PlanID)
	})

	t.Run("expiring soon", func(t *testing.T) {
		env.now = env.now.Add(28 * 24 * time.Hour)

		report, err := env.svc.CheckSubscriptionStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, report.IsExpired)
		assert.True(t, report.IsExpiringSoon)
		assert.Equal(t, 2, report.DaysRemaining)
	})

	t.Run("expired", func(t *testing.T) {
		env.now = env.now.Add(10 * 24 * time.Hour)

		report, err := env.svc.CheckSubscriptionStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, report.Exists)
		assert.True(t, report.IsExpired)
		assert.Equal(t, 0, report.DaysRemaining)
	})
}

func TestCreateSubscription_GatewayNotConfigured(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.svc.CreateSubscription(context.Background(), "user-1", domain.PlanStarter)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestCreateSubscription_CreatesLocalRecord(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	gw := &stubGateway{subscription: GatewaySubscription{
		ID:       "sub_gw_1",
		ShortURL: "https://rzp.io/i/abc",
		Status:   "created",
	}}
	env.svc.gateway = gw
	env.plans.SetRazorpayPlanID(domain.PlanStarter, "plan_rzp_starter")

	gwSub, err := env.svc.CreateSubscription(ctx, "user-1", domain.PlanStarter)
	require.NoError(t, err)
	assert.Equal(t, "sub_gw_1", gwSub.ID)
	assert.Equal(t, []string{"user-1"}, gw.created)

	// Регистрация создает локальную подписку с новым сроком
	sub, err := env.subs.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStarter, sub.PlanID)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, env.now, sub.StartedAt)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, env.now.Add(30*24*time.Hour), *sub.ExpiresAt)
	assert.Equal(t, "sub_gw_1", sub.RazorpaySubscriptionID)
	assert.Equal(t, env.now, sub.Usage.LastReset)

	planID, ok := env.users.GetPlan("user-1")
	require.True(t, ok)
	assert.Equal(t, domain.PlanStarter, planID)
}

func TestCreateSubscription_PlanWithoutGatewayMapping(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.svc.gateway = &stubGateway{subscription: GatewaySubscription{ID: "sub_gw_1"}}

	_, err := env.svc.CreateSubscription(context.Background(), "user-1", domain.PlanStarter)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

type failingLedger struct {
	*repository.InMemoryProcessedPaymentRepository
}

func (f *failingLedger) Create(ctx context.Context, payment *domain.ProcessedPayment) error {
	return errors.New("disk full")
}

func TestProcessPayment_LedgerWriteFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.svc.payments = &failingLedger{InMemoryProcessedPaymentRepository: env.payments}

	_, err := env.svc.ProcessPayment(context.Background(), ProcessPaymentInput{
		PaymentID: "pay_1",
		UserID:    "user-1",
		PlanID:    domain.PlanStarter,
		Source:    domain.PaymentSourceWebhook,
	})

	var pErr *domain.PaymentError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "ledger_write_failed", pErr.Code)
	assert.Equal(t, "pay_1", pErr.PaymentID)
}
