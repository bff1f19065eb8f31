package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"claim-service/internal/config"
	"claim-service/internal/database/minio"
	"claim-service/internal/database/postgres"
	"claim-service/internal/database/redis"
	"claim-service/internal/event"
	"claim-service/internal/handlers"
	"claim-service/internal/ports"
	"claim-service/internal/ports/gateway"
	"claim-service/internal/ports/ledger"
	"claim-service/internal/ports/weather"
	"claim-service/internal/repository"
	"claim-service/internal/services"
	"claim-service/internal/worker"

	"github.com/gofiber/fiber/v3"
	goredis "github.com/redis/go-redis/v9"
)

func setupLogging(logDir string) (*os.File, error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
		}
	}()

	fmt.Println("Log directory:", logDir)
	err := os.MkdirAll(logDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	if absPath, err := filepath.Abs(logFile); err == nil {
		fmt.Printf("Logging to: %s\n", absPath)
	}

	// slog's default handler writes through the log package, so both land in the file
	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	cfg := config.New()

	logFile, err := setupLogging(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	log.Printf("Connecting to PostgreSQL with: host=%s, port=%s, user=%s, dbname=%s",
		cfg.PostgresCfg.Host, cfg.PostgresCfg.Port, cfg.PostgresCfg.Username, cfg.PostgresCfg.DBname)
	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		log.Printf("error connect to database: %s", err)
		postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	}
	defer db.Close()

	clock := ports.SystemClock{}
	random := ports.NewTimeSeededRandomSource()

	// Redis backs the settlement lock and the rainfall cache. Without it the
	// service runs single-instance with an in-process lock.
	var locker services.ClaimLocker = services.NewLocalLocker()
	var weatherCache *goredis.Client
	redisClient, err := redis.NewRedisClient(cfg.RedisCfg.Host, cfg.RedisCfg.Port, cfg.RedisCfg.Password, cfg.RedisCfg.DB)
	if err != nil {
		log.Printf("redis unavailable, using in-process settlement lock: %s", err)
	} else {
		defer redisClient.Close()
		locker = redis.NewLocker(redisClient, "claim:settle:")
		weatherCache = redisClient.GetClient()
	}

	var publisher *event.NotificationPublisher
	notifier := event.NewClaimNotifier(nil)
	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		log.Printf("rabbitmq unavailable, notifications will only be logged: %s", err)
	} else {
		defer rabbitConn.Close()
		publisher = event.NewNotificationPublisher(rabbitConn)
		notifier = event.NewClaimNotifier(publisher)
	}

	claimRepo := repository.NewClaimRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	weatherRepo := repository.NewWeatherRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	portsCfg := cfg.PortsCfg
	verifier := ports.WithVerificationTimeout(ledger.NewVerifier(clock), portsCfg.VerificationTimeout)
	weatherProvider := ports.WithWeatherTimeout(
		weather.NewProvider(weatherRepo, portsCfg.WeatherServiceURL, weatherCache, portsCfg.WeatherCacheTTL),
		portsCfg.WeatherTimeout)
	paymentGateway := ports.WithPaymentTimeout(
		gateway.NewSimulatedGateway(random, clock, portsCfg.PaymentSuccessRate, portsCfg.PaymentLatency),
		portsCfg.PaymentTimeout)
	claimNotifier := ports.WithNotificationTimeout(notifier, portsCfg.NotificationTimeout)

	wfCfg := cfg.WorkflowCfg
	manager := worker.NewWorkerManager()
	go manager.Run()

	pool := worker.NewWorkingPool("claim-workflow", wfCfg.NumWorkers, wfCfg.QueueSize)
	manager.StartPool(pool)
	taskQueue := worker.NewTaskQueue(pool, worker.NewPostgresPersistor(db), wfCfg.MaxRetries, wfCfg.RetryBackoff, wfCfg.ProcessingTimeout)

	var receiptService *services.ReceiptService
	minioClient, err := minio.NewMinioClient(cfg.MinioCfg)
	if err != nil {
		log.Printf("minio unavailable, payment receipts disabled: %s", err)
	} else {
		receiptService = services.NewReceiptService(minioClient, paymentRepo, clock, portsCfg.ReceiptURLExpiry)
	}

	numbers, err := services.NewClaimNumberGenerator(wfCfg.SnowflakeNode, clock)
	if err != nil {
		log.Fatalf("Failed to create claim number generator: %v", err)
	}

	claimService := services.NewClaimService(claimRepo, paymentRepo, policyRepo, numbers, taskQueue, clock)
	adjudicator := services.NewAdjudicator(claimRepo, policyRepo, verifier, weatherProvider, claimNotifier, taskQueue, random, clock).
		RequireWeatherData(wfCfg.RequireWeatherData)
	settlementService := services.NewSettlementService(
		claimRepo, paymentRepo, policyRepo, paymentGateway, claimNotifier, receiptService, locker, taskQueue, clock,
		services.SettlementConfig{
			ProcessingDelay:    wfCfg.SettlementDelay,
			LockTTL:            wfCfg.SettlementLockTTL,
			DefaultBankAccount: wfCfg.DefaultBankAcct,
			DefaultIFSC:        wfCfg.DefaultIFSC,
		})
	dashboardService := services.NewDashboardService(dashboardRepo, claimRepo)
	recoveryService := services.NewRecoveryService(claimRepo, paymentRepo, taskQueue, taskQueue, claimNotifier, clock,
		services.RecoveryConfig{
			StaleAfter:        wfCfg.StaleAfter,
			ProcessingTimeout: wfCfg.ProcessingTimeout,
		})

	taskQueue.Register(worker.TaskAdjudicateClaim, adjudicator.Adjudicate)
	taskQueue.Register(worker.TaskSettleClaim, settlementService.SettleTask)

	// first tick runs immediately and replays tasks left unfinished by the previous process
	scheduler := worker.NewJobScheduler("claim-recovery", wfCfg.SweepInterval, pool)
	for _, job := range recoveryService.Jobs() {
		scheduler.AddJob(job.Name, job.Run)
	}
	manager.StartScheduler(scheduler)

	if rabbitConn != nil {
		consumer := event.NewPaymentConsumer(rabbitConn, settlementService)
		go func() {
			if err := consumer.Start(manager.ManagerContext()); err != nil {
				slog.Error("payment callback consumer stopped", "error", err)
			}
		}()
	}

	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		if publisher != nil && !publisher.HealthCheck().IsHealthy {
			return c.Status(fiber.StatusServiceUnavailable).JSON(publisher.HealthCheck())
		}
		return c.Status(fiber.StatusOK).SendString("Claim service is healthy")
	})

	handlers.NewClaimHandler(claimService, settlementService).Register(app)
	handlers.NewDashboardHandler(dashboardService).Register(app)
	if receiptService != nil {
		handlers.NewPaymentHandler(receiptService).Register(app)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("http server stopped: %s", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Printf("shutting down claim service")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("http shutdown error: %s", err)
	}
	manager.Shutdown()
	log.Printf("claim service stopped")
}
