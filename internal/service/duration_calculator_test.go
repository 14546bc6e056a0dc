package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/planlogic/subscription-service/internal/domain"
)

func TestCalculateExpiry_NewSubscription(t *testing.T) {
	t.Parallel()

	calc := NewDurationCalculator()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("free plan gets 6 days", func(t *testing.T) {
		expiry, days := calc.CalculateExpiry(nil, domain.PlanFree, domain.PaymentActionNew, now)

		assert.Equal(t, 6, days)
		assert.Equal(t, now.Add(6*24*time.Hour), expiry)
	})

	t.Run("paid plan gets 30 days", func(t *testing.T) {
		expiry, days := calc.CalculateExpiry(nil, domain.PlanProfessional, domain.PaymentActionNew, now)

		assert.Equal(t, 30, days)
		assert.Equal(t, now.Add(30*24*time.Hour), expiry)
	})

	t.Run("plan id casing does not change duration", func(t *testing.T) {
		_, days := calc.CalculateExpiry(nil, "FREE", domain.PaymentActionNew, now)

		assert.Equal(t, 6, days)
	})
}

func TestCalculateExpiry_Renewal(t *testing.T) {
	t.Parallel()

	calc := NewDurationCalculator()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("active subscription extends from current expiry", func(t *testing.T) {
		currentExpiry := now.Add(10 * 24 * time.Hour)
		current := &domain.Subscription{
			PlanID:    domain.PlanStarter,
			Status:    domain.SubscriptionStatusActive,
			ExpiresAt: &currentExpiry,
		}

		expiry, days := calc.CalculateExpiry(current, domain.PlanStarter, domain.PaymentActionRenewal, now)

		assert.Equal(t, 30, days)
		assert.Equal(t, currentExpiry.Add(30*24*time.Hour), expiry)
	})

	t.Run("expired subscription renews from now", func(t *testing.T) {
		pastExpiry := now.Add(-5 * 24 * time.Hour)
		current := &domain.Subscription{
			PlanID:    domain.PlanStarter,
			Status:    domain.SubscriptionStatusActive,
			ExpiresAt: &pastExpiry,
		}

		expiry, days := calc.CalculateExpiry(current, domain.PlanStarter, domain.PaymentActionRenewal, now)

		assert.Equal(t, 30, days)
		assert.Equal(t, now.Add(30*24*time.Hour), expiry)
	})

	t.Run("missing subscription renews from now", func(t *testing.T) {
		expiry, days := calc.CalculateExpiry(nil, domain.PlanStarter, domain.PaymentActionRenewal, now)

		assert.Equal(t, 30, days)
		assert.Equal(t, now.Add(30*24*time.Hour), expiry)
	})

	t.Run("active free plan renewal also credits 30 days", func(t *testing.T) {
		currentExpiry := now.Add(2 * 24 * time.Hour)
		current := &domain.Subscription{
			PlanID:    domain.PlanFree,
			Status:    domain.SubscriptionStatusActive,
			ExpiresAt: &currentExpiry,
		}

		expiry, days := calc.CalculateExpiry(current, domain.PlanFree, domain.PaymentActionRenewal, now)

		assert.Equal(t, 30, days)
		assert.Equal(t, currentExpiry.Add(30*24*time.Hour), expiry)
	})
}

func TestCalculateExpiry_UpgradeDiscardsRemainder(t *testing.T) {
	t.Parallel()

	calc := NewDurationCalculator()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 20 оставшихся дней старого плана не переносятся
	currentExpiry := now.Add(20 * 24 * time.Hour)
	current := &domain.Subscription{
		PlanID:    domain.PlanStarter,
		Status:    domain.SubscriptionStatusActive,
		ExpiresAt: &currentExpiry,
	}

	expiry, days := calc.CalculateExpiry(current, domain.PlanProfessional, domain.PaymentActionUpgrade, now)

	assert.Equal(t, 30, days)
	assert.Equal(t, now.Add(30*24*time.Hour), expiry)
}

func TestCalculateExpiry_AdminChange(t *testing.T) {
	t.Parallel()

	calc := NewDurationCalculator()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	currentExpiry := now.Add(25 * 24 * time.Hour)
	current := &domain.Subscription{
		PlanID:    domain.PlanEnterprise,
		Status:    domain.SubscriptionStatusActive,
		ExpiresAt: &currentExpiry,
	}

	expiry, days := calc.CalculateExpiry(current, domain.PlanFree, domain.PaymentActionAdminChange, now)

	assert.Equal(t, 6, days)
	assert.Equal(t, now.Add(6*24*time.Hour), expiry)
}
