package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablebook/config"
	"tablebook/cron"
	"tablebook/database"
	bookingRepo "tablebook/database/repository/booking"
	capacityRepo "tablebook/database/repository/capacity"
	groupRepo "tablebook/database/repository/group"
	idempotencyRepo "tablebook/database/repository/idempotency"
	"tablebook/handlers"
	"tablebook/middleware"
	"tablebook/routes"
	"tablebook/services/booking"
	"tablebook/services/events"
	ai "tablebook/services/intelligence"
	"tablebook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	idempotencyTTL  = 24 * time.Hour
	staffTokenTTL   = 12 * time.Hour
	healthInterval  = 30 * time.Second
	sessionLockTTL  = 30 * time.Second
	sessionLockWait = 10 * time.Second
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	// tablebook token <subject> prints a staff JWT and exits.
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: tablebook token <subject>")
			os.Exit(2)
		}
		token, err := utils.GenerateStaffToken(os.Args[2], staffTokenTTL)
		if err != nil {
			logger.Fatal("main: failed to issue staff token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	clock := utils.SystemClock{}
	ids := utils.RandomIDs{}
	monitor := utils.NewHealthMonitor(clock, logger)

	utils.InitRedis()
	ledgerClient := utils.GetLedgerClient()
	sessionClient := utils.GetSessionClient()
	monitor.Register("redis_ledger", utils.RedisHealthCheck(ledgerClient))
	monitor.Register("redis_sessions", utils.RedisHealthCheck(sessionClient))

	var (
		bookings bookingRepo.BookingRepository
		requests groupRepo.GroupRequestRepository
	)
	switch config.AppConfig.StorageBackend {
	case "memory":
		logger.Warn("main: using in-memory storage, bookings will not survive a restart")
		bookings = bookingRepo.NewMemoryBookingRepo()
		requests = groupRepo.NewMemoryGroupRepo()
	default:
		database.InitDB()
		db := database.Database()
		bookings = bookingRepo.NewMongoBookingRepo(db)
		requests = groupRepo.NewMongoGroupRepo(db)
		if err := bookings.EnsureIndexes(ctx); err != nil {
			logger.Fatal("main: failed to ensure booking indexes", zap.Error(err))
		}
		if err := requests.EnsureIndexes(ctx); err != nil {
			logger.Fatal("main: failed to ensure group request indexes", zap.Error(err))
		}
		monitor.Register("mongo", utils.MongoHealthCheck(database.MongoClient))
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if config.AppConfig.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(config.AppConfig.NATSURL)
		if err != nil {
			logger.Fatal("main: failed to connect to NATS", zap.Error(err))
		}
		monitor.Register("nats", natsPub.Healthy)
		publisher = natsPub
	}
	defer publisher.Close()

	slots, err := booking.NewSlotGenerator(booking.SlotConfig{
		IntervalMinutes: config.AppConfig.SlotIntervalMinutes,
		Lunch:           booking.PeriodWindow{Open: config.AppConfig.LunchOpen, Close: config.AppConfig.LunchClose},
		Dinner:          booking.PeriodWindow{Open: config.AppConfig.DinnerOpen, Close: config.AppConfig.DinnerClose},
		Location:        config.AppConfig.Location(),
	}, clock)
	if err != nil {
		logger.Fatal("main: invalid slot configuration", zap.Error(err))
	}
	ledger := booking.NewCapacityLedger(
		slots,
		capacityRepo.NewRedisCapacityRepo(ledgerClient, config.AppConfig.StandardCapacity),
		config.AppConfig.PlanningHorizonDays,
		logger,
	)

	sessions := ai.NewRedisSessionStore(sessionClient, clock, ids, config.AppConfig.ChatIdleTimeout, config.AppConfig.ChatHistoryLimit)

	bookingService := &booking.DefaultBookingService{
		Ledger:       ledger,
		Repo:         bookings,
		Idempotency:  idempotencyRepo.NewRedisStore(ledgerClient, idempotencyTTL),
		Sessions:     sessions,
		Publisher:    publisher,
		Clock:        clock,
		IDs:          ids,
		Logger:       logger,
		MaxPartySize: config.AppConfig.MaxPartySize,
	}
	groupWorkflow := &booking.DefaultGroupWorkflow{
		Ledger:    ledger,
		Requests:  requests,
		Bookings:  bookings,
		Publisher: publisher,
		Clock:     clock,
		IDs:       ids,
		Logger:    logger,
		Threshold: config.AppConfig.GroupThreshold,
	}

	var replies ai.ReplyGenerator = ai.LocalReplyGenerator{MaxPartySize: config.AppConfig.MaxPartySize}
	if config.AppConfig.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiReplyGenerator(ctx, config.AppConfig.GeminiAPIKey, config.AppConfig.GeminiModel, config.AppConfig.MaxPartySize)
		if err != nil {
			logger.Fatal("main: failed to initialize Gemini", zap.Error(err))
		}
		defer gemini.Close()
		replies = gemini
	} else {
		logger.Info("main: GEMINI_API_KEY not set, using local replies")
	}
	chatService := ai.NewChatService(sessions, ai.NewSessionLock(sessionClient, ids, sessionLockTTL, sessionLockWait), replies, logger)

	worker, err := cron.StartMaintenance(groupWorkflow, logger)
	if err != nil {
		logger.Fatal("main: failed to start maintenance worker", zap.Error(err))
	}
	monitor.Start(ctx, healthInterval)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(utils.ErrorHandler())
	router.Use(utils.RequestLogger(logger))
	limiter := middleware.NewRateLimiter(config.AppConfig.MaxRequestsPerMin)
	limiter.StartSweeper(ctx, time.Minute)
	router.Use(limiter.Middleware())

	handlerBundle := handlers.NewHandlerBundle(ledger, bookingService, groupWorkflow, chatService, monitor, logger)
	routes.RegisterRoutes(router, handlerBundle)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + config.AppConfig.AppPort,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}
	worker.Shutdown()
	stop()
	if err := database.Disconnect(shutdownCtx); err != nil {
		logger.Warn("main: mongo disconnect failed", zap.Error(err))
	}

	logger.Info("main: server stopped gracefully")
}
