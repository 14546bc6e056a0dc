package service

import (
	"time"

	"github.com/planlogic/subscription-service/internal/domain"
)

// DurationCalculator вычисляет новый срок действия подписки по текущему
// состоянию и типу перехода. Чистая функция: не ходит в хранилище и не
// смотрит на текущее время сама.
type DurationCalculator struct{}

// NewDurationCalculator создает новый калькулятор сроков
func NewDurationCalculator() *DurationCalculator {
	return &DurationCalculator{}
}

// CalculateExpiry возвращает новую дату истечения и зачтенное число дней.
//
// Продление (renewal) действующей подписки добавляет дни к текущей дате
// истечения: неиспользованный остаток не сгорает. Продление истекшей или
// отсутствующей подписки отсчитывается от текущего момента. Во всех
// остальных случаях (new, upgrade, admin_change) срок начинается заново от
// текущего момента и остаток старого периода не переносится.
//
// Продление всегда зачитывает платный период в 30 дней, включая бесплатный
// план: так ведет себя действующий биллинг, и менять это поведение без
// миграции данных нельзя.
func (c *DurationCalculator) CalculateExpiry(current *domain.Subscription, planID string, action domain.PaymentAction, now time.Time) (time.Time, int) {
	if action == domain.PaymentActionRenewal {
		if current != nil && current.ExpiresAt != nil && !current.IsExpiredAt(now) {
			return current.ExpiresAt.Add(daysToDuration(domain.PaidPlanDurationDays)), domain.PaidPlanDurationDays
		}
		return now.Add(daysToDuration(domain.PaidPlanDurationDays)), domain.PaidPlanDurationDays
	}

	durationDays := domain.PlanDurationDays(planID)
	return now.Add(daysToDuration(durationDays)), durationDays
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
