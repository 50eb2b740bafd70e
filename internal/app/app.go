package app

import (
	"context"
	"levelup_backend/internal/config"
	"levelup_backend/internal/controller"
	"levelup_backend/internal/repository"
	"levelup_backend/internal/service"
	"levelup_backend/pkg/database"
	"levelup_backend/pkg/logger"
	"levelup_backend/pkg/monitoring"
	"levelup_backend/pkg/security"
	"levelup_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services

	mu sync.Mutex
}

type repositories struct {
	profile    *repository.ProfileRepository
	category   *repository.CategoryRepository
	process    *repository.ProcessRepository
	question   *repository.QuestionRepository
	result     *repository.ResultRepository
	completion *repository.CompletionRepository
	streak     *repository.StreakRepository
	badge      *repository.BadgeRepository
}

type services struct {
	engine      *service.EngineService
	leaderboard *service.LeaderboardService
	reconcile   *service.ReconcileService
}

type controllers struct {
	exam        *controller.ExamController
	leaderboard *controller.LeaderboardController
	progress    *controller.ProgressController
	admin       *controller.AdminController
	health      *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		profile:    repository.NewProfileRepository(db),
		category:   repository.NewCategoryRepository(db),
		process:    repository.NewProcessRepository(db),
		question:   repository.NewQuestionRepository(db),
		result:     repository.NewResultRepository(db),
		completion: repository.NewCompletionRepository(db),
		streak:     repository.NewStreakRepository(db),
		badge:      repository.NewBadgeRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.leaderboard = service.NewLeaderboardService(
		repos.profile,
		repos.process,
		repos.completion,
		repos.badge,
		repos.category,
		rdb,
		cfg.Leaderboard.CacheTTL,
	)

	s.engine = service.NewEngineService(
		repos.completion,
		repos.streak,
		repos.badge,
		repos.process,
		repos.question,
		repos.result,
		repos.profile,
		repos.category,
		s.leaderboard,
		cfg.Engine,
	)

	s.reconcile = service.NewReconcileService(
		repos.completion,
		repos.streak,
		repos.badge,
		repos.process,
	)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		exam:        controller.NewExamController(s.engine),
		leaderboard: controller.NewLeaderboardController(s.leaderboard),
		progress:    controller.NewProgressController(s.engine),
		admin:       controller.NewAdminController(s.reconcile),
		health:      controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 周期性对账，兜底"台账写成功、下游步骤失败"的请求
func (a *App) startBackgroundTasks(s *services) {
	interval := a.Config.Engine.ReconcileInterval
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if err := s.reconcile.RebuildAll(context.Background()); err != nil {
				logger.Log.Error("scheduled reconciliation error", zap.Error(err))
			}
		}
	}()
}

// ApplyConfig 配置热更新回调，只接管可以安全热切的参数
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Config.Engine.PassThreshold = cfg.Engine.PassThreshold
	a.Config.Engine.CompletionPoints = cfg.Engine.CompletionPoints
	a.services.engine.Config = cfg.Engine
	a.services.leaderboard.CacheTTL = cfg.Leaderboard.CacheTTL

	logger.Log.Info("config reloaded",
		zap.Int("passThreshold", cfg.Engine.PassThreshold),
		zap.Duration("leaderboardCacheTTL", cfg.Leaderboard.CacheTTL))
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// 仅迁移模式不起服务
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("progress-engine", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
