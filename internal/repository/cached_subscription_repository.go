package repository

import (
	"context"

	"github.com/planlogic/subscription-service/internal/domain"
	"github.com/planlogic/subscription-service/pkg/logger"
)

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием.
// Любая запись инвалидирует кеш пользователя: устаревшая подписка в кеше
// опаснее лишнего похода в базу.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetByUserID получает подписку пользователя (сначала из кеша, потом из БД)
func (r *CachedSubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	// Пытаемся получить из кеша
	cachedSub, err := r.cache.GetCachedSubscription(ctx, userID)
	if err != nil {
		r.log.Warnw("Error getting subscription from cache", "error", err, "userID", userID)
		// Продолжаем выполнение при ошибке кеша
	}

	if cachedSub != nil {
		r.log.Debugw("Subscription found in cache", "userID", userID)
		return cachedSub, nil
	}

	// Если не нашли в кеше, ищем в БД
	sub, err := r.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Кешируем найденную подписку
	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription after fetching", "error", err, "userID", userID)
	}

	return sub, nil
}

// Upsert сохраняет подписку в БД и обновляет кеш
func (r *CachedSubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Upsert(ctx, sub); err != nil {
		return err
	}

	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription after upsert", "error", err, "userID", sub.UserID)
		// Продолжаем выполнение, несмотря на ошибку кеширования
	}

	return nil
}

// UpdateStatus обновляет статус подписки и инвалидирует кеш
func (r *CachedSubscriptionRepository) UpdateStatus(ctx context.Context, userID string, status domain.SubscriptionStatus, autoRenew bool) error {
	if err := r.repo.UpdateStatus(ctx, userID, status, autoRenew); err != nil {
		return err
	}

	if err := r.cache.InvalidateSubscription(ctx, userID); err != nil {
		r.log.Warnw("Failed to invalidate subscription cache", "error", err, "userID", userID)
	}

	return nil
}

// SetRazorpaySubscriptionID обновляет ссылку на объект провайдера и инвалидирует кеш
func (r *CachedSubscriptionRepository) SetRazorpaySubscriptionID(ctx context.Context, userID, razorpaySubscriptionID string) error {
	if err := r.repo.SetRazorpaySubscriptionID(ctx, userID, razorpaySubscriptionID); err != nil {
		return err
	}

	if err := r.cache.InvalidateSubscription(ctx, userID); err != nil {
		r.log.Warnw("Failed to invalidate subscription cache", "error", err, "userID", userID)
	}

	return nil
}
