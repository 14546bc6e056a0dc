package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/planlogic/subscription-service/internal/domain"
	"github.com/planlogic/subscription-service/pkg/logger"
)

const (
	// Префиксы ключей для различных типов данных
	subscriptionKeyPrefix = "subscription:user:"
	plansKey              = "plans:all"

	// TTL для кэша
	subscriptionCacheTTL = 5 * time.Minute
	plansCacheTTL        = 30 * time.Minute
)

// RedisCacheRepository реализует кеширование для репозиториев с использованием Redis
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheSubscription кеширует подписку пользователя в Redis
func (r *RedisCacheRepository) CacheSubscription(ctx context.Context, sub *domain.Subscription) error {
	key := fmt.Sprintf("%s%s", subscriptionKeyPrefix, sub.UserID)

	data, err := json.Marshal(sub)
	if err != nil {
		r.log.Errorw("Failed to marshal subscription for caching", "error", err, "userID", sub.UserID)
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := r.client.Set(ctx, key, data, subscriptionCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache subscription in Redis", "error", err, "userID", sub.UserID)
		return fmt.Errorf("failed to cache subscription: %w", err)
	}

	r.log.Debugw("Subscription cached successfully", "userID", sub.UserID)
	return nil
}

// GetCachedSubscription получает подписку пользователя из кеша
func (r *RedisCacheRepository) GetCachedSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	key := fmt.Sprintf("%s%s", subscriptionKeyPrefix, userID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			// Ключ не найден в кеше
			r.log.Debugw("Subscription not found in cache", "userID", userID)
			return nil, nil // Возвращаем nil вместо ошибки
		}
		r.log.Errorw("Error getting subscription from Redis", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get subscription from cache: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		r.log.Errorw("Failed to unmarshal cached subscription", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}

	r.log.Debugw("Subscription retrieved from cache", "userID", userID)
	return &sub, nil
}

// InvalidateSubscription удаляет подписку пользователя из кеша
func (r *RedisCacheRepository) InvalidateSubscription(ctx context.Context, userID string) error {
	key := fmt.Sprintf("%s%s", subscriptionKeyPrefix, userID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Errorw("Failed to delete subscription from cache", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete subscription from cache: %w", err)
	}

	r.log.Debugw("Subscription deleted from cache", "userID", userID)
	return nil
}

// CachePlans кеширует справочник планов
func (r *RedisCacheRepository) CachePlans(ctx context.Context, plans []domain.Plan) error {
	data, err := json.Marshal(plans)
	if err != nil {
		r.log.Errorw("Failed to marshal plans for caching", "error", err)
		return fmt.Errorf("failed to marshal plans: %w", err)
	}

	if err := r.client.Set(ctx, plansKey, data, plansCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache plans in Redis", "error", err)
		return fmt.Errorf("failed to cache plans: %w", err)
	}

	r.log.Debugw("Plans cached successfully", "count", len(plans))
	return nil
}

// GetCachedPlans получает справочник планов из кеша
func (r *RedisCacheRepository) GetCachedPlans(ctx context.Context) ([]domain.Plan, error) {
	data, err := r.client.Get(ctx, plansKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			r.log.Debugw("Plans not found in cache")
			return nil, nil
		}
		r.log.Errorw("Error getting plans from Redis", "error", err)
		return nil, fmt.Errorf("failed to get plans from cache: %w", err)
	}

	var plans []domain.Plan
	if err := json.Unmarshal(data, &plans); err != nil {
		r.log.Errorw("Failed to unmarshal cached plans", "error", err)
		return nil, fmt.Errorf("failed to unmarshal cached plans: %w", err)
	}

	r.log.Debugw("Plans retrieved from cache", "count", len(plans))
	return plans, nil
}
