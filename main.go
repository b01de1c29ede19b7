package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gamification-engine/config"
	"gamification-engine/handlers"
	"gamification-engine/logger"
	"gamification-engine/middleware"
	"gamification-engine/models"
	"gamification-engine/services"
	"gamification-engine/utils"
	"gamification-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, foundDotenv, cfgErr := config.Load()

	mode := os.Getenv("APP_ENV")
	if cfg != nil {
		mode = cfg.Env
	}
	log, err := logger.New(mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !foundDotenv {
		log.Info("No .env file found, reading environment variables directly")
	}
	if cfgErr != nil {
		log.Fatal("Invalid configuration", "error", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate database", "error", err)
	}

	journal := services.NewActivityJournal(db, log)
	ledger := services.NewPointsLedger(db, log)
	streaks := services.NewStreakTracker(db, log)
	achievements := services.NewAchievementEvaluator(db, ledger, journal, log)
	ledger.SetLevelUpGranter(achievements)
	leaderboard := services.NewLeaderboardMaintainer(db, ledger, log)
	rewards := services.NewRewardService(db, ledger, log)
	processor := services.NewEventProcessor(journal, ledger, streaks, achievements, leaderboard, rewards, log)

	var archiver *workers.LedgerArchiveWorker
	if cfg.R2.Enabled() {
		store, err := utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			log.Fatal("Failed to initialize R2 client", "error", err)
		}
		archiver = workers.NewLedgerArchiveWorker(ledger, store, log)
	} else {
		log.Warn("R2 not configured, ledger archiving disabled")
	}

	sched, err := workers.NewScheduler(workers.SchedulerConfig{
		StreakSweepInterval: cfg.StreakSweepInterval,
		ReconcileInterval:   cfg.ReconcileInterval,
		ArchiveHour:         cfg.LedgerArchiveHour,
	}, streaks, workers.NewReconcileWorker(ledger, log), archiver, log)
	if err != nil {
		log.Fatal("Failed to create scheduler", "error", err)
	}
	sched.Start()

	app := fiber.New()

	// Only gateway requests are served.
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, log))

	origins := strings.Split(cfg.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles",
		MaxAge:       86400,
	}))

	handlers.SetupEventRoutes(app, processor, log)
	handlers.SetupProgressionRoutes(app, handlers.ProgressServices{
		Ledger:       ledger,
		Streaks:      streaks,
		Achievements: achievements,
		Rewards:      rewards,
	}, log)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("Server error", "error", err)
			stop()
		}
	}()
	log.Info("Gamification engine running", "port", cfg.Port, "archive", archiver != nil)

	<-ctx.Done()
	log.Info("Shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := sched.Shutdown(); err != nil {
		log.Warn("Scheduler shutdown incomplete", "error", err)
	}
}
