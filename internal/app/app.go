package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/planlogic/subscription-service/internal/api/rest"
	"github.com/planlogic/subscription-service/internal/config"
	razorpayintg "github.com/planlogic/subscription-service/internal/integration/razorpay"
	"github.com/planlogic/subscription-service/internal/kafka"
	"github.com/planlogic/subscription-service/internal/metrics"
	"github.com/planlogic/subscription-service/internal/repository"
	"github.com/planlogic/subscription-service/internal/repository/postgres"
	"github.com/planlogic/subscription-service/internal/service"
	"github.com/planlogic/subscription-service/pkg/logger"
)

const systemMetricsInterval = 15 * time.Second

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Service service.SubscriptionService
	Server  *rest.Server

	pool          *pgxpool.Pool
	redisCache    *repository.RedisCacheRepository
	producer      kafka.Producer
	systemMetrics metrics.SystemMetrics
}

// New создает и связывает все компоненты приложения
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: log,
	}

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry, log)
	a.systemMetrics = metrics.NewSystemMetrics(registry, log)

	subscriptionRepo, paymentRepo, planRepo, userRepo, err := a.buildRepositories(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	gateway := razorpayintg.NewClient(
		cfg.Razorpay.KeyID,
		cfg.Razorpay.KeySecret,
		cfg.Razorpay.WebhookSecret,
		log.Named("razorpay"),
	)

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log.Named("kafka"))
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		} else {
			a.producer = producer
			publisher = producer
		}
	}

	a.Service = service.NewSubscriptionService(
		subscriptionRepo,
		paymentRepo,
		planRepo,
		userRepo,
		gateway,
		publisher,
		paymentMetrics,
		log.Named("service"),
	)

	router := rest.SetupRouter(a.Service, gateway, paymentMetrics, registry, cfg, log.Named("http"))
	a.Server = rest.NewServer(router, cfg, log.Named("http"))

	return a, nil
}

func (a *App) buildRepositories(ctx context.Context, cfg *config.Config, log *logger.Logger) (
	repository.SubscriptionRepository,
	repository.ProcessedPaymentRepository,
	repository.PlanRepository,
	repository.UserRepository,
	error,
) {
	if cfg.Database.InMemory {
		log.Infow("Using in-memory repositories")
		planRepo := repository.NewInMemoryPlanRepository(log)
		for planID, razorpayPlanID := range cfg.Razorpay.PlanIDs {
			planRepo.SetRazorpayPlanID(planID, razorpayPlanID)
		}
		return repository.NewInMemorySubscriptionRepository(log),
			repository.NewInMemoryProcessedPaymentRepository(log),
			planRepo,
			repository.NewInMemoryUserRepository(log),
			nil
	}

	pool, err := postgres.NewConnection(ctx, cfg.Database.DSN, log.Named("postgres"))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	a.pool = pool

	var subscriptionRepo repository.SubscriptionRepository = repository.NewPostgresSubscriptionRepository(pool, log)

	if cfg.Redis.Enabled {
		redisCache, err := repository.NewRedisCacheRepository(
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.DB,
			log.Named("redis"),
		)
		if err != nil {
			log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		} else {
			a.redisCache = redisCache
			subscriptionRepo = repository.NewCachedSubscriptionRepository(subscriptionRepo, redisCache, log)
			log.Infow("Using cached subscription repository")
		}
	}

	return subscriptionRepo,
		repository.NewPostgresProcessedPaymentRepository(pool, log),
		repository.NewPostgresPlanRepository(pool, log),
		repository.NewPostgresUserRepository(pool, log),
		nil
}

// Run запускает фоновые компоненты и HTTP сервер (блокирует до остановки)
func (a *App) Run() error {
	a.systemMetrics.StartRecording(systemMetricsInterval)
	return a.Server.Start()
}

// Shutdown останавливает сервер и освобождает ресурсы
func (a *App) Shutdown(ctx context.Context) {
	if err := a.Server.Shutdown(ctx); err != nil {
		a.Logger.Errorw("HTTP server shutdown error", "error", err)
	}

	a.systemMetrics.Stop()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.Logger.Errorw("Error closing Kafka producer", "error", err)
		}
	}
	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.Logger.Errorw("Error closing Redis connection", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
