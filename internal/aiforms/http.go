// Пакет aiforms - HTTP сервис конструктора форм: шаблоны с типизированными вопросами, заполненные формы,
// агрегированные ответы, поиск, лайки и комментарии, а также интеграции (поддержка, CRM, табличная синхронизация).
//
// Основные возможности:
//   - REST API на echo с авторизацией по JWT.
//   - Фоновые задачи по расписанию (cron) и очередь синхронизации (asynq).
//   - Метрики prometheus на отдельном порту.
//   - Файловое хранилище minio или локальный каталог.
package aiforms

// @title aiforms API
// @version 1.0
// @description Template and form builder service.
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @BasePath /
// @query.collection.format multi
import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/cache"
	"github.com/aisa-it/aiforms/internal/aiforms/config"
	"github.com/aisa-it/aiforms/internal/aiforms/cronmanager"
	"github.com/aisa-it/aiforms/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	filestorage "github.com/aisa-it/aiforms/internal/aiforms/file-storage"
	"github.com/aisa-it/aiforms/internal/aiforms/integrations"
	"github.com/aisa-it/aiforms/internal/aiforms/notifications"
	"github.com/aisa-it/aiforms/internal/aiforms/sessions"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/aisa-it/aiforms/pkg/limiter"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	_ "github.com/aisa-it/aiforms/internal/aiforms/docs"
	echoSwagger "github.com/swaggo/echo-swagger"
)

//go:generate go run github.com/swaggo/swag/cmd/swag@latest init -ot go,json --generalInfo /http.go --parseInternal --dir ./ --output docs --parseDependency 1
//go:generate go run ../../cmd/docsgen/main.go -src apierrors/apierrors.go -out ../../docs/api_errors.md

type Services struct {
	db       *gorm.DB
	cfg      *config.Config
	version  string
	storage  filestorage.FileStorage
	email    *notifications.EmailService
	telegram *notifications.TelegramService
	sessions *sessions.SessionsManager
	captcha  *CaptchaService
	cache    *cache.Cache
	limiter  limiter.LimiterInt
	crm      *integrations.CRMClient
	// syncer nil, если табличное хранилище не настроено
	syncer *integrations.Syncer
	// queue nil без Redis, синхронизация выполняется в запросе
	queue *integrations.SyncQueue
}

// ServerHeader middleware adds a `Server` header to the response.
func ServerHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderServer, "AIForms")
		return next(c)
	}
}

// NewEcho создает HTTP сервер со всеми маршрутами API.
//
// Параметры:
//   - s: зависимости обработчиков
//
// Возвращает:
//   - *echo.Echo: сервер, готовый к Start или к вызовам ServeHTTP в тестах
func NewEcho(s *Services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		// Ignore 404
		if code == http.StatusNotFound {
			c.NoContent(http.StatusNotFound)
			return
		}
		slog.Error("Unhandled error in endpoint", "url", c.Request().URL, "err", err)
		EErrorMsgStatus(c, nil, code)
	}

	// Global middlewares
	e.Use(ServerHeader)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowCredentials: true,
		ExposeHeaders:    []string{HeaderAccessToken, HeaderRefreshToken},
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: "1M",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/api/auth/templates/" ||
				c.Path() == "/api/auth/templates/:templateId/" ||
				c.Path() == "/api/auth/templates/upload-image/"
		},
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     9,
		MinLength: 2048,
		Skipper: func(c echo.Context) bool {
			return strings.Contains(c.Request().URL.Path, "swagger")
		},
	}))
	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		Skipper: func(c echo.Context) bool {
			return strings.Contains(c.Request().URL.Path, "swagger")
		},
	}))

	e.Validator = NewRequestValidator()

	apiGroup := e.Group("/api/")

	authGroup := apiGroup.Group("auth/",
		AuthMiddleware(AuthConfig{
			Secret:         []byte(s.cfg.SecretKey),
			DB:             s.db,
			SessionManager: s.sessions,
			Skipper:        publicAuthPath,
		}),
	)

	// Anonymous access allowed, user is resolved when a token is present
	publicGroup := apiGroup.Group("",
		AuthMiddleware(AuthConfig{
			Secret:         []byte(s.cfg.SecretKey),
			DB:             s.db,
			SessionManager: s.sessions,
			Optional:       true,
		}),
	)

	s.AddAuthenticationServices(apiGroup, authGroup)
	s.AddTemplateServices(authGroup)
	s.AddTemplateWithoutAuthServices(publicGroup)
	s.AddFormServices(authGroup)
	s.AddUserServices(authGroup)
	s.AddIntegrationServices(authGroup)

	apiGroup.GET("files/images/:name/", s.getImage)

	// Version endpoint
	apiGroup.GET("version/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, dto.VersionResponse{
			Version: s.version,
			SignUp:  s.cfg.SignUpEnable,
			Captcha: s.captcha.Enabled(),
		})
	})

	// Health endpoint
	apiGroup.GET("_health/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if s.cfg.SwaggerEnable {
		apiGroup.GET("swagger/*", echoSwagger.WrapHandler)
	}

	return e
}

// Server собирает зависимости из конфигурации, запускает фоновые задачи и HTTP сервер на :8080.
// Метрики отдаются на :2112/metrics. Завершается по SIGINT/SIGTERM.
func Server(db *gorm.DB, cfg *config.Config, version string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := newFileStorage(ctx, cfg)
	if err != nil {
		slog.Error("Fail init file storage", "err", err)
		os.Exit(1)
	}

	sm, err := sessions.NewSessionsManager(cfg.SessionsDBPath, types.RefreshTokenExpiresPeriod+time.Hour, sessions.DefaultBlacklistFreeze)
	if err != nil {
		slog.Error("Open sessions db", "path", cfg.SessionsDBPath, "err", err)
		os.Exit(1)
	}

	es, err := notifications.NewEmailService(cfg)
	if err != nil {
		slog.Error("Init email service", "err", err)
		os.Exit(1)
	}

	tg, err := notifications.NewTelegramService(cfg)
	if err != nil {
		slog.Error("Init telegram notifications", "err", err)
		os.Exit(1)
	}

	lim, err := limiter.New(cfg.ExternalLimiter)
	if err != nil {
		slog.Error("Init limiter", "err", err)
		os.Exit(1)
	}

	listingCache, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		slog.Warn("Redis unavailable, listings cache disabled", "err", err)
		listingCache = nil
	}

	s := &Services{
		db:       db,
		cfg:      cfg,
		version:  version,
		storage:  storage,
		email:    es,
		telegram: tg,
		sessions: sm,
		captcha:  NewCaptchaService(cfg.SecretKey, cfg.CaptchaDisabled),
		cache:    listingCache,
		limiter:  lim,
		crm:      integrations.NewCRMClient(cfg.CRMURL, cfg.CRMToken),
	}

	var worker *integrations.SyncWorker
	if tabular := integrations.NewTabularClient(cfg.TabularURL, cfg.TabularToken, cfg.TabularBaseID, cfg.TabularTable); tabular != nil {
		s.syncer = integrations.NewSyncer(NewTemplateSource(db), tabular)
		if cfg.RedisAddr != "" {
			s.queue = integrations.NewSyncQueue(cfg.RedisAddr, cfg.RedisPassword)
			worker = integrations.NewSyncWorker(cfg.RedisAddr, cfg.RedisPassword, s.syncer)
			if err := worker.Start(); err != nil {
				slog.Error("Start sync worker", "err", err)
				os.Exit(1)
			}
		}
	}

	cronManager := cronmanager.NewCronManager(s.jobRegistry())
	if err := cronManager.LoadJobs(); err != nil {
		slog.Error("Failed to load cron jobs", "err", err)
		os.Exit(1)
	}
	cronManager.Start()

	e := NewEcho(s)
	e.Use(echoprometheus.NewMiddleware("aiforms"))

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down gracefully, press Ctrl+C again to force")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown http server", "err", err)
		}
	}()

	// Prometheus metrics
	go func() {
		bootTimeGauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aiforms",
			Name:      "boot_time",
			Help:      "Server startup time",
		})
		bootTimeGauge.Set(float64(time.Now().UnixMilli()))

		if err := prometheus.Register(bootTimeGauge); err != nil {
			slog.Error("Register boot time gauge", "err", err)
			os.Exit(1)
		}

		metrics := echo.New()
		metrics.HideBanner = true
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(":2112"); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server fail", "err", err)
		}
	}()

	if err := e.Start(":8080"); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server fail", "err", err)
	}

	cronManager.Stop()
	if worker != nil {
		worker.Shutdown()
	}
	if s.queue != nil {
		s.queue.Close()
	}
	es.Stop()
	sm.Close()
	listingCache.Close()
}

func newFileStorage(ctx context.Context, cfg *config.Config) (filestorage.FileStorage, error) {
	if cfg.AWSEndpoint != "" {
		return filestorage.NewMinioStorage(ctx, cfg.AWSEndpoint, cfg.AWSAccessKey, cfg.AWSSecretKey, false, cfg.AWSBucketName, cfg.AWSRegion)
	}
	root := cfg.LocalFilesDir
	if root == "" {
		root = "files"
	}
	slog.Info("Minio is not configured, using local file storage", "root", root)
	return filestorage.NewLocalStorage(root)
}

// jobRegistry задачи по расписанию: табличная синхронизация всех шаблонов, очистка подписей капчи, снятие истекших блокировок входа.
func (s *Services) jobRegistry() cronmanager.JobRegistry {
	registry := cronmanager.JobRegistry{
		"captcha_clean": cronmanager.Job{
			Func:     s.captcha.Clear,
			Schedule: "0 0 * * *", // daily at midnight
		},
		"login_blocks_reset": cronmanager.Job{
			Func:     s.resetLoginBlocks,
			Schedule: "*/10 * * * *",
		},
	}
	if s.syncer != nil {
		registry["templates_sync"] = cronmanager.Job{
			Func:     s.syncAllTemplates,
			Schedule: cronmanager.EverySchedule(time.Duration(s.cfg.SyncPeriod) * time.Minute),
		}
	}
	return registry
}

func (s *Services) resetLoginBlocks(ctx context.Context) error {
	n, err := dao.ResetExpiredBlocks(s.db.WithContext(ctx), time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("Login blocks expired", "users", n)
	}
	return nil
}

func (s *Services) syncAllTemplates(ctx context.Context) error {
	res := s.syncer.Sync(ctx, "")
	slog.Info("Scheduled templates sync", "success", res.Success, "synced", res.SuccessCount, "errors", len(res.Errors))
	if !res.Success && res.SuccessCount == 0 && len(res.Errors) > 0 {
		return errors.New(res.Errors[0].Error)
	}
	return nil
}
