package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/knulata/satteli/internal/config"
	"github.com/knulata/satteli/internal/database/minio"
	"github.com/knulata/satteli/internal/database/postgres"
	"github.com/knulata/satteli/internal/database/redis"
	"github.com/knulata/satteli/internal/event"
	"github.com/knulata/satteli/internal/handlers"
	"github.com/knulata/satteli/internal/imagery"
	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/internal/repository"
	"github.com/knulata/satteli/internal/services"
	"github.com/knulata/satteli/internal/transport"
	"github.com/knulata/satteli/internal/worker"
)

func setupLogging() (*os.File, error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
		}
	}()

	logDir := filepath.Join("/satteli", "log", "monitoring_service")
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

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()

	log.Printf("Connecting to PostgreSQL with: host=%s, port=%s, user=%s, dbname=%s",
		cfg.PostgresCfg.Host, cfg.PostgresCfg.Port, cfg.PostgresCfg.Username, cfg.PostgresCfg.DBname)
	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		log.Printf("error connect to database: %s", err)
		go postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	}

	redisClient, err := redis.NewRedisClient(cfg.RedisCfg.Host, cfg.RedisCfg.Port, cfg.RedisCfg.Password, cfg.RedisCfg.DB)
	if err != nil {
		log.Printf("error connect to redis, dashboard cache disabled: %s", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		log.Printf("error connect to RabbitMQ, alert events disabled: %s", err)
		rabbitConn = nil
	} else {
		defer rabbitConn.Close()
	}

	evidenceStore, err := minio.NewEvidenceStore(cfg.MinioCfg)
	if err != nil {
		log.Printf("error connect to MinIO, evidence storage unavailable: %s", err)
		evidenceStore = nil
	}

	// Repositories
	tenantRepo := repository.NewTenantRepository(db)
	parcelRepo := repository.NewParcelRepository(db)
	readingRepo := repository.NewReadingRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	scanRunRepo := repository.NewScanRunRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	// Worker pool and scan scheduler lifecycle
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var managerWg sync.WaitGroup

	pool := worker.NewWorkingPool(cfg.EngineCfg.ScanWorkers, cfg.EngineCfg.ScanQueueSize)
	managerWg.Add(1)
	go pool.Start(rootCtx, &managerWg)

	// Transports and events
	emailSender := transport.NewEmailSender(cfg.SMTPCfg)
	gatewaySender := transport.NewGatewaySender(cfg.GatewayCfg)
	sendRouter := transport.NewRouter(emailSender, gatewaySender)

	var publisher services.AlertEventPublisher
	if rabbitConn != nil {
		publisher = event.NewAlertPublisher(rabbitConn)
	}

	// Services
	var cache services.Cache
	if redisClient != nil {
		cache = redisClient
	}
	dashboardService := services.NewDashboardService(dashboardRepo, cache)
	geometryProcessor := services.NewGeometryProcessor()
	tenantService := services.NewTenantService(tenantRepo, dashboardService)
	parcelService := services.NewParcelService(parcelRepo, tenantRepo, geometryProcessor, dashboardService)
	dispatcher := services.NewNotificationDispatcher(notificationRepo, alertRepo, sendRouter, pool,
		cfg.EngineCfg.NotifyMaxRetries, cfg.EngineCfg.NotifyTimeout)
	alertService := services.NewAlertService(alertRepo, parcelRepo, tenantRepo, dispatcher, publisher, dashboardService)
	detector := services.NewChangeDetector()
	readingService := services.NewReadingService(readingRepo, parcelRepo, tenantRepo, detector, alertService,
		dashboardService, models.DuplicateReadingPolicy(cfg.EngineCfg.DuplicateReadingPolicy))
	imagerySource := imagery.NewProviderClient(cfg.ImageryCfg)
	scanService := services.NewScanService(scanRunRepo, tenantRepo, parcelRepo, readingService, imagerySource, pool)

	// Pick up deliveries interrupted by a previous shutdown.
	if err := dispatcher.ResumePending(rootCtx, 500); err != nil {
		log.Printf("failed to resume pending notifications: %v", err)
	}

	// Scheduled batch scans
	scheduler := worker.NewJobScheduler("batch-scan", cfg.EngineCfg.ScanInterval, func(ctx context.Context) error {
		_, err := scanService.RunScan(ctx, models.ScanScheduled, nil)
		return err
	})
	managerWg.Add(1)
	go scheduler.Run(rootCtx, &managerWg)

	// HTTP surface
	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Monitoring service is healthy")
	})

	handlers.NewTenantHandler(tenantService, cfg.ServiceKey).RegisterRoutes(app)
	handlers.NewParcelHandler(parcelService, cfg.ServiceKey).RegisterRoutes(app)
	handlers.NewReadingHandler(readingService, cfg.ServiceKey).RegisterRoutes(app)
	var evidence handlers.EvidenceResolver
	if evidenceStore != nil {
		evidence = evidenceStore
	}
	handlers.NewAlertHandler(alertService, notificationRepo, evidence, cfg.ServiceKey).RegisterRoutes(app)
	handlers.NewScanHandler(scanService, cfg.ServiceKey).RegisterRoutes(app)
	handlers.NewDashboardHandler(dashboardService, cfg.ServiceKey).RegisterRoutes(app)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%s", cfg.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	cancel()
	managerWg.Wait()
	log.Println("Shutdown complete.")
}
