package app

import (
	"context"
	"cyberlearn_backend/internal/config"
	"cyberlearn_backend/internal/controller"
	"cyberlearn_backend/internal/repository"
	"cyberlearn_backend/internal/service"
	"cyberlearn_backend/pkg/configwatcher"
	"cyberlearn_backend/pkg/database"
	"cyberlearn_backend/pkg/logger"
	"cyberlearn_backend/pkg/monitoring"
	"cyberlearn_backend/pkg/scheduler"
	"cyberlearn_backend/pkg/security"
	"cyberlearn_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const engagementJobTimeout = 5 * time.Minute

type App struct {
	Config    *config.Config
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client
	services  *services
	scheduler *scheduler.Scheduler
	tracer    *sdktrace.TracerProvider

	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	module      *repository.ModuleRepository
	progress    *repository.ProgressRepository
	attempt     *repository.QuizAttemptRepository
	leaderboard *repository.LeaderboardRepository
}

type services struct {
	storage     *service.StorageService
	learning    *service.LearningService
	leaderboard *service.LeaderboardService
	engagement  *service.EngagementService
}

type controllers struct {
	learning    *controller.LearningController
	leaderboard *controller.LeaderboardController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// applyConfig 配置热更新时依次调用回调
func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		module:      repository.NewModuleRepository(db),
		progress:    repository.NewProgressRepository(db),
		attempt:     repository.NewQuizAttemptRepository(db),
		leaderboard: repository.NewLeaderboardRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	cache := service.NewLeaderboardCache(rdb)
	s.storage = service.NewStorageService(cfg)
	s.learning = service.NewLearningService(
		repos.module,
		repos.progress,
		repos.attempt,
		service.NewQuizSessionStore(rdb, cfg.Quiz.SessionTTL),
		cfg.Progress,
	)
	s.leaderboard = service.NewLeaderboardService(repos.leaderboard, s.storage, cache, cfg.Leaderboard)
	s.engagement = service.NewEngagementService(repos.progress, repos.attempt, repos.module, repos.leaderboard, cache)

	a.RegisterConfigCallback(func(c *config.Config) {
		s.learning.UpdateConfig(c.Progress)
		s.leaderboard.UpdateConfig(c.Leaderboard)
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		learning:    controller.NewLearningController(s.learning),
		leaderboard: controller.NewLeaderboardController(s.leaderboard),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(cfg.Tracing.ServiceName))
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	if !cfg.Scheduler.Enabled {
		return
	}

	a.scheduler = scheduler.New(engagementJobTimeout)
	if err := a.scheduler.Every(cfg.Scheduler.EngagementInterval, "engagement-refresh", s.engagement.Refresh); err != nil {
		logger.Log.Error("Failed to schedule engagement refresh", zap.Error(err))
		return
	}
	a.scheduler.Start()
}

var registerMetrics sync.Once

// newApp 组装仓储、服务和路由，不启动后台任务
func newApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	registerMetrics.Do(monitoring.Init)

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode == gin.DebugMode {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式下只有显式指定 -migrate 才建表
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
		if err := database.SeedModules(db, cfg.Seed.ModulesFile); err != nil {
			logger.Log.Fatal("Failed to seed modules", zap.Error(err))
		}
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	if rdb == nil {
		logger.Log.Warn("Redis not configured, using in-process quiz sessions and no leaderboard cache")
	}

	app := newApp(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(context.Background(), &cfg.Tracing)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.startBackgroundTasks(app.services, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := configwatcher.WatchConfig(ctx, "configs", a.applyConfig); err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
