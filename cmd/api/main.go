package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damoang/campaign-chronicle/internal/config"
	"github.com/damoang/campaign-chronicle/internal/domain"
	"github.com/damoang/campaign-chronicle/internal/handler"
	"github.com/damoang/campaign-chronicle/internal/middleware"
	"github.com/damoang/campaign-chronicle/internal/migration"
	"github.com/damoang/campaign-chronicle/internal/repository"
	"github.com/damoang/campaign-chronicle/internal/routes"
	"github.com/damoang/campaign-chronicle/internal/service"
	"github.com/damoang/campaign-chronicle/pkg/lock"
	pkglogger "github.com/damoang/campaign-chronicle/pkg/logger"
	pkgredis "github.com/damoang/campaign-chronicle/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv(os.Getenv("APP_ENV"))

	// 로거 초기화 (APP_ENV may come from .env)
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	log := pkglogger.GetLogger()
	log.Info().Str("app_env", env).Strs("env_files", dotenvFiles).Msg("starting")

	// 설정 로드
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}
	cfg.LogResolved(*log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 저장소 (memory | sqlite | mysql)
	var (
		reg repository.Registry
		db  *gorm.DB
	)
	if cfg.Database.Driver == config.DriverMemory {
		reg = repository.NewMemoryRegistry(time.Now)
		log.Warn().Msg("memory backend: data is lost on restart")
	} else {
		logLevel := gormlogger.Warn
		if cfg.IsDevelopment() {
			logLevel = gormlogger.Info
		}
		db, err = migration.Open(cfg.Database, logLevel)
		if err != nil {
			log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
		}
		if err := migration.Run(db); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		reg = repository.NewGormRegistry(db, time.Now)
		log.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")
	}

	// Redis 연결 (rate limit, distributed lock)
	var redisClient goredis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := pkgredis.NewClient(ctx, pkgredis.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			if cfg.Lock.Backend == config.LockRedis {
				log.Fatal().Err(err).Msg("redis lock backend requires redis")
			}
			log.Warn().Err(err).Msg("failed to connect to Redis (continuing without Redis)")
		} else {
			redisClient = client
			defer client.Close()
			log.Info().Str("addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)).Msg("connected to Redis")
		}
	}

	// Campaign lock
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Lock.Backend == config.LockRedis && redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, "campaign:lock:", cfg.Lock.TTL)
	}

	// Services
	gateway := service.NewGateway(reg, locker, cfg.Lock.Wait, time.Now)
	rollbackService := service.NewRollbackService(reg, locker, cfg.Lock.Wait, cfg.Audit.RecordRollbacks, time.Now)
	var extractor service.Extractor = service.DisabledExtractor{}
	if cfg.AI.Enabled {
		extractor = service.NewOpenAIExtractor(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
	}
	importService := service.NewImportService(gateway, rollbackService, extractor)

	if cfg.Database.Seed {
		campaignID, err := migration.Seed(ctx, gateway)
		if err != nil {
			log.Error().Err(err).Msg("seed failed")
		} else if campaignID != "" {
			log.Info().Str("campaign_id", campaignID).Msg("seeded sample campaign")
		}
	}

	// Handlers
	entityHandlers := make(map[domain.EntityType]*handler.EntityHandler, len(domain.EntityTypes))
	for _, kind := range domain.EntityTypes {
		entityHandlers[kind] = handler.NewEntityHandler(gateway, kind)
	}
	auditHandler := handler.NewAuditHandler(reg.Ledger(), rollbackService, cfg.Audit.DefaultLimit, cfg.Audit.MaxLimit)
	importHandler := handler.NewImportHandler(importService, int64(cfg.Server.MaxUploadMB)<<20)

	// Gin 라우터 생성
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS 설정
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID", handler.MutationSourceHeader},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:           86400,
	}))

	// Middleware
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "campaign-chronicle",
			"time":    time.Now().Unix(),
		})
	})

	var writeLimit gin.HandlerFunc
	if redisClient != nil {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerMinute = cfg.RateLimit.RequestsPerMinute
		writeLimit = middleware.RateLimit(redisClient, rl)
	}
	routes.Setup(router, routes.Handlers{
		Entities: entityHandlers,
		Audit:    auditHandler,
		Import:   importHandler,
	}, writeLimit)

	if db != nil {
		go reportDBStats(ctx, db)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// reportDBStats 주기적으로 DB 커넥션 사용량을 메트릭에 반영
func reportDBStats(ctx context.Context, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			middleware.SetDBConnectionsInUse(sqlDB.Stats().InUse)
		}
	}
}
