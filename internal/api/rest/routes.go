package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planlogic/subscription-service/internal/api/rest/handlers"
	"github.com/planlogic/subscription-service/internal/api/rest/middleware"
	"github.com/planlogic/subscription-service/internal/config"
	razorpayintg "github.com/planlogic/subscription-service/internal/integration/razorpay"
	"github.com/planlogic/subscription-service/internal/metrics"
	"github.com/planlogic/subscription-service/internal/service"
	"github.com/planlogic/subscription-service/pkg/logger"
)

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(
	svc service.SubscriptionService,
	gateway *razorpayintg.Client,
	paymentMetrics metrics.PaymentMetrics,
	registry *prometheus.Registry,
	cfg *config.Config,
	log *logger.Logger,
) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	jwtMiddleware := middleware.NewJWTMiddleware(log, &middleware.DefaultTokenValidator{
		Secret: []byte(cfg.Auth.JWTSecret),
	})

	subscriptionHandler := handlers.NewSubscriptionHandler(svc, log)
	adminHandler := handlers.NewAdminHandler(svc, log)
	paymentHandler := handlers.NewPaymentHandler(svc, cfg.Razorpay.KeySecret, cfg.App.FrontendURL, log)
	webhookHandler := handlers.NewWebhookHandler(gateway, svc, paymentMetrics, log)

	// Редирект Razorpay после оплаты: приходит браузером без токена
	r.GET("/payment-callback", paymentHandler.Callback)

	v1 := r.Group("/api/v1")
	{
		// Тарифные планы доступны без аутентификации
		v1.GET("/plans", subscriptionHandler.GetPlans)

		subscriptions := v1.Group("/subscriptions")
		subscriptions.Use(jwtMiddleware.RequireAuth(middleware.ScopeUser, middleware.ScopeAdmin))
		{
			subscriptions.POST("", subscriptionHandler.CreateSubscription)
			subscriptions.GET("/status", subscriptionHandler.GetStatus)
			subscriptions.POST("/cancel", subscriptionHandler.Cancel)
			subscriptions.POST("/pause", subscriptionHandler.Pause)
			subscriptions.POST("/resume", subscriptionHandler.Resume)
			subscriptions.GET("/payments", subscriptionHandler.GetPaymentHistory)
		}

		payments := v1.Group("/payments")
		payments.Use(jwtMiddleware.RequireAuth(middleware.ScopeUser, middleware.ScopeAdmin))
		{
			payments.POST("/verify", paymentHandler.Verify)
		}

		admin := v1.Group("/admin")
		admin.Use(jwtMiddleware.RequireAuth(middleware.ScopeAdmin))
		{
			admin.POST("/subscriptions/:userId/plan", adminHandler.ChangePlan)
			admin.POST("/subscriptions/:userId/extend", adminHandler.Extend)
			admin.POST("/subscriptions/:userId/lifetime", adminHandler.SetLifetime)
			admin.GET("/subscriptions/:userId/status", adminHandler.GetUserStatus)
			admin.GET("/subscriptions/:userId/payments", adminHandler.GetUserPayments)
		}
	}

	// Вебхуки на корневом уровне роутера: подлинность подтверждается
	// подписью, а не токеном
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/razorpay", webhookHandler.HandleRazorpayWebhook)
	}

	return r
}
