// Payment Service — оплата курсов через Razorpay.
// REST API: создание заказа, подтверждение оплаты клиентом и webhook'ом шлюза,
// возвраты, сверка журнала платежей и удаление пользователей администратором.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/course-payments/pkg/config"
	dbpkg "example.com/course-payments/pkg/db"
	"example.com/course-payments/pkg/healthcheck"
	"example.com/course-payments/pkg/jwt"
	"example.com/course-payments/pkg/kafka"
	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/pkg/metrics"
	"example.com/course-payments/pkg/tracing"
	"example.com/course-payments/services/payment/internal/events"
	"example.com/course-payments/services/payment/internal/handler"
	"example.com/course-payments/services/payment/internal/middleware"
	"example.com/course-payments/services/payment/internal/razorpay"
	"example.com/course-payments/services/payment/internal/repository"
	"example.com/course-payments/services/payment/internal/service"
	"example.com/course-payments/services/payment/internal/signature"
)

const serviceName = "payment-service"

// Сколько держать отметку об отзыве токенов удалённого пользователя.
// Должно быть не меньше времени жизни access token.
const revokedTokensTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:   cfg.App.LogLevel,
		Pretty:  cfg.App.LogPretty,
		Service: serviceName,
	})

	log := logger.Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Str("addr", cfg.HTTP.Addr()).
		Msg("Запуск Payment Service")

	// === Observability: Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    serviceName,
		Environment:    cfg.App.Env,
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===

	db, err := dbpkg.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	if cfg.MySQL.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("Ошибка миграции схемы")
		}
		log.Info().Msg("Схема payments/enrollments актуальна")
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	rdb, err := dbpkg.ConnectRedis(pingCtx, cfg.Redis)
	pingCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к Redis")
	}
	log.Info().Msg("Подключение к Redis установлено")

	// Redis нужен только для дедупликации и rate limit, оба работают fail-open.
	readinessCheck := healthcheck.Composite(
		healthcheck.MySQL(db),
		healthcheck.Optional(healthcheck.Redis(rdb), func(err error) {
			log.Warn().Err(err).Msg("Redis недоступен")
		}),
	)

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			serviceName,
			metrics.WithReadinessCheck(metrics.ReadinessChecker(readinessCheck)),
		)
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === JWT ===

	jwtValidator, err := jwt.NewValidator(jwt.Config{
		PublicKeyPath: cfg.JWT.PublicKeyPath,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка загрузки публичного ключа JWT")
	}
	blacklist := jwt.NewBlacklist(rdb)
	jwtValidator.SetBlacklist(blacklist)

	// === Платёжный шлюз ===

	gateway := razorpay.New(razorpay.Config{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		BaseURL:   cfg.Razorpay.BaseURL,
		Timeout:   cfg.Razorpay.Timeout,
	})
	if !cfg.Razorpay.Configured() {
		log.Warn().Msg("Ключи Razorpay не заданы — операции со шлюзом будут отклонены")
	}
	if cfg.Razorpay.WebhookSecret == "" {
		log.Warn().Msg("RAZORPAY_WEBHOOK_SECRET не задан — webhook'и будут игнорироваться")
	}
	verifier := signature.NewVerifier(cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret)

	// === События ===

	var publisher events.Publisher = events.NoopPublisher{}
	var asyncPublisher *events.AsyncPublisher
	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled() {
		kafkaProducer, err = kafka.NewProducer(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			WriteTimeout: cfg.Kafka.PublishTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}
		asyncPublisher = events.NewAsyncPublisher(kafkaProducer, cfg.Kafka.EventsTopic, cfg.Kafka.PublishTimeout)
		publisher = asyncPublisher
		log.Info().Str("topic", cfg.Kafka.EventsTopic).Msg("Публикация событий в Kafka включена")
	} else {
		log.Warn().Msg("Kafka не настроена — события не публикуются")
	}

	// === Бизнес-логика ===

	paymentRepo := repository.NewPaymentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)
	backfillRepo := repository.NewBackfillRepository(db)

	ledger := service.NewLedger(paymentRepo)
	materializer := service.NewMaterializer(enrollmentRepo, publisher)

	orders := service.NewOrderInitiator(gateway, courseRepo, cfg.Razorpay.Currency)
	confirmation := service.NewConfirmationService(
		gateway,
		verifier,
		ledger,
		materializer,
		publisher,
		service.NewRedisDeduper(rdb, cfg.Webhook.DedupeTTL, cfg.Webhook.ProcessingTTL),
	)
	refunds := service.NewRefundCoordinator(gateway, ledger)
	reconciler := service.NewReconciler(backfillRepo, paymentRepo, ledger, cfg.Razorpay.Currency)
	users := service.NewUserAdmin(userRepo, blacklist, revokedTokensTTL)

	// === HTTP ===

	var rateLimitMW *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rateLimitMW = middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Redis:  rdb,
			Limit:  cfg.RateLimit.RequestsLimit,
			Window: cfg.RateLimit.Window,
		})
	}

	corsConfig := middleware.DefaultCORSConfig()

	router := handler.NewRouter(handler.RouterConfig{
		Orders:         orders,
		Confirmation:   confirmation,
		Refunds:        refunds,
		Ledger:         reconciler,
		Users:          users,
		AuthMW:         middleware.NewAuthMiddleware(jwtValidator),
		RateLimitMW:    rateLimitMW,
		TracingMW:      middleware.NewTracingMiddleware(),
		CORS:           &corsConfig,
		MaxWebhookBody: cfg.Webhook.MaxBodySize,
		ReadinessCheck: handler.ReadinessChecker(readinessCheck),
		Debug:          cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}

	// Сначала дожидаемся фоновых публикаций, потом закрываем producer.
	if asyncPublisher != nil {
		if err := asyncPublisher.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Не все события отправлены до остановки")
		}
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
		}
	}

	if err := dbpkg.CloseMySQL(db); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия MySQL")
	}
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Redis")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Payment Service остановлен")
}
