package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"facetrust/internal/config"
	"facetrust/internal/db"
	"facetrust/internal/email"
	apihttp "facetrust/internal/http"
	"facetrust/internal/repository"
	"facetrust/internal/service"
	"facetrust/internal/statsproc"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	adminRepo := repository.NewPgAdminRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	cacheTTL := time.Duration(cfg.DatasetCacheTTLMin) * time.Minute
	var (
		otpLimiter   service.OTPRateLimiter
		tokenStore   service.RefreshTokenStore
		datasetCache = service.NewMemoryDatasetCache(cacheTTL)
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, 10*time.Minute, 3)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			datasetCache = service.NewRedisDatasetCache(redisClient, cacheTTL)
		}
		cancel()
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	adminSvc := service.NewAdminService(logger, adminRepo, emailSender, otpLimiter)
	dashboardSvc := service.NewDashboardService(
		logger,
		service.NewDirectoryScanner(),
		service.NewAggregator(logger),
		service.NewStatsEngine(logger),
		datasetCache,
		cfg.ResponsesDir,
	)
	exportSvc := service.NewExportService()
	backupSvc := service.NewBackupService(logger, cfg.ResponsesDir, cfg.BackupDir)
	filesSvc := service.NewFilesService(logger, cfg.ResponsesDir)
	statsBackend := statsproc.NewRscriptBackend(cfg.RscriptBin, logger)

	adminHandler := apihttp.NewAdminHandler(logger, adminSvc, jwtSvc)
	dashboardHandler := apihttp.NewDashboardHandler(logger, dashboardSvc)
	analysisHandler := apihttp.NewAnalysisHandler(logger, dashboardSvc, exportSvc, statsBackend)
	exportHandler := apihttp.NewExportHandler(logger, dashboardSvc, exportSvc)
	backupHandler := apihttp.NewBackupHandler(logger, backupSvc, dashboardSvc)
	filesHandler := apihttp.NewFilesHandler(logger, filesSvc, dashboardSvc)

	router := apihttp.NewRouter(
		logger,
		jwtSvc,
		adminHandler,
		dashboardHandler,
		analysisHandler,
		exportHandler,
		backupHandler,
		filesHandler,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("responses_dir", cfg.ResponsesDir),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
