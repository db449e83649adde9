package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentalspot/config"
	"rentalspot/cron"
	"rentalspot/database"
	calendarRepo "rentalspot/database/repository/calendar"
	propertyRepo "rentalspot/database/repository/property"
	"rentalspot/handlers"
	"rentalspot/middleware"
	"rentalspot/routes"
	"rentalspot/services/availability"
	"rentalspot/services/booking"
	"rentalspot/services/catalog"
	"rentalspot/services/notification"
	"rentalspot/services/pricing"
	"rentalspot/services/sweeper"
	"rentalspot/services/tasks"
	"rentalspot/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// backend is the storage selected by STORE_DRIVER.
type backend struct {
	store      calendarRepo.Store
	properties propertyRepo.PropertyRepository
	firebase   *utils.FirebaseClients
	close      func()
}

func openBackend(ctx context.Context, logger *zap.Logger) (*backend, error) {
	switch config.AppConfig.StoreDriver {
	case "firestore":
		fb, err := utils.FirebaseInit(ctx)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:      calendarRepo.NewFirestoreStore(fb.Firestore),
			properties: propertyRepo.NewFirestorePropertyRepo(fb.Firestore),
			firebase:   fb,
			close:      func() { fb.Firestore.Close() },
		}, nil
	case "mongo":
		client, err := database.InitDB(ctx)
		if err != nil {
			return nil, err
		}
		store := calendarRepo.NewMongoStore(client, config.AppConfig.DatabaseName)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		b := &backend{
			store:      store,
			properties: propertyRepo.NewMongoPropertyRepo(client, config.AppConfig.DatabaseName),
			close:      func() { client.Disconnect(context.Background()) },
		}
		// Admin tokens and push notifications still go through Firebase when configured.
		if config.AppConfig.FirebaseProjectID != "" || config.AppConfig.FirebaseCredentialsFile != "" {
			if b.firebase, err = utils.FirebaseInit(ctx); err != nil {
				logger.Warn("firebase unavailable, admin ID tokens and notifications disabled", zap.Error(err))
			}
		}
		return b, nil
	case "memory":
		logger.Warn("using the in-memory store; data is lost on restart")
		return &backend{
			store:      calendarRepo.NewMemoryStore(),
			properties: propertyRepo.NewMemoryPropertyRepo(),
			close:      func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", config.AppConfig.StoreDriver)
}

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	be, err := openBackend(ctx, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to open %s store: %v", config.AppConfig.StoreDriver, err)
	}
	defer be.close()

	strategy, err := availability.ParseStrategy(config.AppConfig.AvailabilityStrategy)
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}
	stripe.Key = config.AppConfig.StripeSecretKey

	// Redis backs the property cache and the hold queue.
	properties := be.properties
	var redisClients []*redis.Client
	var queue *asynq.Client
	if config.AppConfig.RedisAddr != "" {
		cacheClient := utils.GetCacheClient()
		ttl := time.Duration(config.AppConfig.PropertyCacheTTL) * time.Second
		properties = propertyRepo.NewCachedPropertyRepo(properties, cacheClient, ttl, logger)
		queueClient := cron.NewQueueClient()
		redisClients = append(redisClients, cacheClient, queueClient)
		queue = asynq.NewClient(cron.RedisOpt())
		defer queue.Close()
	}

	// services.
	retries := config.AppConfig.ReadRetryAttempts
	checker := availability.NewChecker(be.store, availability.Config{Strategy: strategy, RetryAttempts: retries}, logger)
	pricingEngine := pricing.NewPricingEngine(be.store, properties, logger, retries)
	defaultHold := time.Duration(config.AppConfig.DefaultHoldMinutes) * time.Minute
	bookingService := booking.NewBookingService(be.store, properties, pricingEngine, checker, logger, defaultHold)
	gateway := booking.NewStripeGateway(config.AppConfig.StripeWebhookSecret, logger)
	bookingService.Payments = gateway
	if queue != nil {
		bookingService.Holds = &tasks.AsynqHoldScheduler{Client: queue}
	}
	var verifier middleware.TokenVerifier
	if be.firebase != nil {
		verifier = be.firebase.Auth
		if config.AppConfig.NotificationsEnabled {
			notifier, err := notification.NewFCMNotificationService(be.firebase.Messaging, logger)
			if err != nil {
				logger.Sugar().Fatalf("main: %v", err)
			}
			bookingService.Notifier = notifier
		}
	}
	catalogService := catalog.NewCatalogService(be.store, properties, logger)
	holdSweeper := sweeper.NewSweeper(be.store, bookingService, logger, config.AppConfig.SweepBatchSize)

	if queue != nil {
		stopWorker, err := cron.StartHoldWorker(bookingService, holdSweeper, logger)
		if err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
		defer stopWorker()
	} else {
		logger.Warn("REDIS_ADDR not set; holds are only released by POST /api/cron/release-holds")
	}
	utils.StartHealthMonitor(ctx, redisClients, be.store)

	bookingHandler := handlers.NewBookingHandler(pricingEngine, checker, bookingService)
	paymentHandler := handlers.NewPaymentHandler(gateway, bookingService)
	adminHandler := handlers.NewAdminHandler(catalogService, bookingService)
	cronHandler := handlers.NewCronHandler(holdSweeper)

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		AdminToken:    config.AppConfig.AdminToken,
		TokenVerifier: verifier,
		CronSecret:    config.AppConfig.CronSecret,

		// Public endpoints.
		QuoteHandler:               bookingHandler.Quote,
		CheckAvailabilityHandler:   bookingHandler.CheckAvailability,
		CreateBookingHandler:       bookingHandler.CreateBooking,
		GetBookingHandler:          bookingHandler.GetBooking,
		PlaceHoldHandler:           bookingHandler.PlaceHold,
		CreatePaymentIntentHandler: bookingHandler.CreatePaymentIntent,
		StripeWebhookHandler:       paymentHandler.StripeWebhook,

		// Admin endpoints.
		UpsertPropertyHandler:      adminHandler.UpsertProperty,
		PublishCalendarHandler:     adminHandler.PublishCalendar,
		GetCalendarHandler:         adminHandler.GetCalendar,
		CancelBookingHandler:       adminHandler.CancelBooking,
		ReleaseAvailabilityHandler: adminHandler.ReleaseAvailability,
		ListBookingsHandler:        adminHandler.ListBookings,

		// Cron endpoints.
		ReleaseHoldsHandler: cronHandler.ReleaseHolds,

		HealthHandler:  handlers.Health,
		MetricsHandler: handlers.Metrics(),
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))
	routes.RegisterRoutes(router, handlerBundle)

	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Sugar().Infof("Starting server on %s (store=%s, availability=%s)...", srv.Addr, config.AppConfig.StoreDriver, strategy)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	stop()

	logger.Sugar().Info("main: server stopped gracefully")
}
