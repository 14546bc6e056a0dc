package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planlogic/subscription-service/internal/domain"
	"github.com/planlogic/subscription-service/pkg/logger"
)

// InMemoryPlanRepository справочник планов в памяти
type InMemoryPlanRepository struct {
	plans map[string]domain.Plan
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemoryPlanRepository создает справочник планов в памяти,
// заполненный стандартным набором тарифов
func NewInMemoryPlanRepository(log *logger.Logger) *InMemoryPlanRepository {
	now := time.Now().UTC()
	plans := map[string]domain.Plan{
		domain.PlanFree: {
			ID:           domain.PlanFree,
			Name:         "Free",
			Price:        0,
			DurationDays: domain.FreePlanDurationDays,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		domain.PlanStarter: {
			ID:           domain.PlanStarter,
			Name:         "Starter",
			Price:        49900,
			DurationDays: domain.PaidPlanDurationDays,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		domain.PlanProfessional: {
			ID:           domain.PlanProfessional,
			Name:         "Professional",
			Price:        149900,
			DurationDays: domain.PaidPlanDurationDays,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		domain.PlanEnterprise: {
			ID:           domain.PlanEnterprise,
			Name:         "Enterprise",
			Price:        499900,
			DurationDays: domain.PaidPlanDurationDays,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}

	return &InMemoryPlanRepository{
		plans: plans,
		log:   log,
	}
}

// SetRazorpayPlanID задает соответствие плана плану провайдера.
// Вызывается при старте из конфигурации.
func (r *InMemoryPlanRepository) SetRazorpayPlanID(planID, razorpayPlanID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	plan, exists := r.plans[domain.NormalizePlanID(planID)]
	if !exists {
		return
	}
	plan.RazorpayPlanID = razorpayPlanID
	r.plans[plan.ID] = plan
}

// GetByID возвращает план по идентификатору (регистронезависимо)
func (r *InMemoryPlanRepository) GetByID(ctx context.Context, planID string) (*domain.Plan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	plan, exists := r.plans[domain.NormalizePlanID(planID)]
	if !exists {
		return nil, ErrNotFound
	}

	return &plan, nil
}

// GetAll возвращает все планы
func (r *InMemoryPlanRepository) GetAll(ctx context.Context) ([]domain.Plan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]domain.Plan, 0, len(r.plans))
	for _, plan := range r.plans {
		result = append(result, plan)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Price < result[j].Price
	})

	return result, nil
}

// PostgresPlanRepository справочник планов через PostgreSQL
type PostgresPlanRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPlanRepository создает справочник планов через PostgreSQL
func NewPostgresPlanRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPlanRepository {
	return &PostgresPlanRepository{
		db:  db,
		log: log,
	}
}

// GetByID возвращает план по идентификатору (регистронезависимо)
func (r *PostgresPlanRepository) GetByID(ctx context.Context, planID string) (*domain.Plan, error) {
	query := `
		SELECT id, name, price, duration_days, razorpay_plan_id, created_at, updated_at
		FROM plans
		WHERE id = $1
	`

	var plan domain.Plan
	err := r.db.QueryRow(ctx, query, domain.NormalizePlanID(planID)).Scan(
		&plan.ID,
		&plan.Name,
		&plan.Price,
		&plan.DurationDays,
		&plan.RazorpayPlanID,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}

// GetAll возвращает все планы
func (r *PostgresPlanRepository) GetAll(ctx context.Context) ([]domain.Plan, error) {
	query := `
		SELECT id, name, price, duration_days, razorpay_plan_id, created_at, updated_at
		FROM plans
		ORDER BY price ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var result []domain.Plan
	for rows.Next() {
		var plan domain.Plan
		err := rows.Scan(
			&plan.ID,
			&plan.Name,
			&plan.Price,
			&plan.DurationDays,
			&plan.RazorpayPlanID,
			&plan.CreatedAt,
			&plan.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		result = append(result, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}

	return result, nil
}
