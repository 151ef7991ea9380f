package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"proconnect/internal/api"
	"proconnect/internal/api/middleware"
	"proconnect/internal/app/service"
	"proconnect/internal/app/worker"
	"proconnect/internal/common/security"
	"proconnect/internal/domain/contest"
	"proconnect/internal/domain/repository"
	"proconnect/internal/platform/config"
	"proconnect/internal/platform/database"
	"proconnect/internal/platform/logger"
	"proconnect/internal/platform/mailer"
	"proconnect/internal/platform/queue"
	"proconnect/internal/platform/storage"

	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig

	// 2. Initialize Logger
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()
	zl.Info("configuration loaded", zap.String("env", cfg.Env))

	// 3. Initialize JWT
	security.InitJWT()

	// 4. Initialize Database
	if err := database.Connect(zl); err != nil {
		zl.Fatal("database connection failed", zap.Error(err))
	}
	defer database.Close(zl)
	if err := database.Migrate(zl); err != nil {
		zl.Fatal("database migration failed", zap.Error(err))
	}

	// 5. Initialize Redis
	if err := queue.ConnectRedis(zl); err != nil {
		zl.Fatal("redis connection failed", zap.Error(err))
	}
	defer queue.CloseRedis(zl)

	// 6. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	projectRepo := repository.NewPgProjectRepository(database.DB)
	contestRepo := repository.NewPgContestRepository(database.DB)
	notifRepo := repository.NewPgNotificationRepository(database.DB)
	certRepo := repository.NewPgCertificateRepository(database.DB)
	friendRepo := repository.NewPgFriendRepository(database.DB)
	reportRepo := repository.NewPgReportRepository(database.DB)
	txRunner := repository.NewSQLTxRunner(database.DB)

	// 7. Initialize Services
	clock := contest.SystemClock{}
	mail := mailer.New(cfg.SendgridAPIKey, cfg.AppName, cfg.MailFrom, zl)
	reminderQueue := queue.NewReminderQueue(queue.RDB, cfg.ReminderQueueName)

	contestService := service.NewContestService(service.ContestDeps{
		Contests:      contestRepo,
		Projects:      projectRepo,
		Users:         userRepo,
		Friends:       friendRepo,
		Notifications: notifRepo,
		Tx:            txRunner,
		Locker:        queue.NewLocker(queue.RDB, zl),
		Cache:         queue.NewRedisCache(queue.RDB),
		Reminders:     reminderQueue,
		Mailer:        mail,
		Clock:         clock,
		Log:           zl.Named("contest"),
		Options: service.ContestOptions{
			ApprovalLockKey: cfg.ApprovalLockKey,
			ApprovalLockTTL: cfg.ApprovalLockTTL(),
			StatusCacheTTL:  cfg.StatusCacheTTL(),
		},
	})
	certService := service.NewCertificateService(certRepo, projectRepo, contestRepo, userRepo,
		storage.NewDisk(cfg.UploadsDir), clock, cfg.AppName, zl.Named("certificates"))
	services := api.Services{
		Auth:          service.NewAuthService(userRepo, cfg.AdminEmail, zl.Named("auth")),
		Users:         service.NewUserService(userRepo, friendRepo),
		Projects:      service.NewProjectService(projectRepo, friendRepo, notifRepo, reportRepo, zl.Named("projects")),
		Friends:       service.NewFriendService(friendRepo, userRepo, notifRepo, txRunner, zl.Named("friends")),
		Notifications: service.NewNotificationService(notifRepo),
		Admin:         service.NewAdminService(userRepo, reportRepo, notifRepo, zl.Named("admin")),
		Contest:       contestService,
		Certificates:  certService,
	}

	// 8. Start Workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.NewReminderWorker(reminderQueue, contestService, zl).Start(workerCtx)
	}()
	go func() {
		defer wg.Done()
		worker.NewPhaseWorker(contestService, cfg.PhaseTick(), zl).Start(workerCtx)
	}()

	// 9. Initialize Router & HTTP Server
	router := api.NewRouter(services, middleware.NewAuth(userRepo, zl), api.Options{ClientOrigin: cfg.ClientOrigin}, zl)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 10. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		zl.Info("server starting", zap.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("could not listen", zap.String("port", cfg.APIPort), zap.Error(err))
		}
	}()

	<-stop // Wait for interrupt signal

	zl.Info("shutting down server")
	workerCancel() // Signal workers to stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
	}
	wg.Wait()
	zl.Info("server and workers stopped gracefully")
}
