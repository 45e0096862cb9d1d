package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"marketalert/internal/alerting"
	"marketalert/internal/auth"
	"marketalert/internal/cache"
	"marketalert/internal/config"
	cronrunner "marketalert/internal/cron"
	"marketalert/internal/db"
	"marketalert/internal/handler"
	"marketalert/internal/logger"
	"marketalert/internal/notification"
	"marketalert/internal/ratelimit"
	gormrepository "marketalert/internal/repository/gorm"
	"marketalert/internal/service"

	_ "marketalert/docs"
)

func main() {
	cfgPath := os.Getenv("ALERT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("ALERT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	sharedCache := openCache(cfg.Cache, logger)
	defer func() {
		if rs, ok := sharedCache.(*cache.RedisStore); ok {
			_ = rs.Close()
		}
	}()

	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	ncfg := cfg.Notification
	slackHTTP := notification.NewHTTPClient(notification.ResilienceFromConfig("slack", ncfg.Slack.Timeout, ncfg.Resilience, logger))
	telegramHTTP := notification.NewHTTPClient(notification.ResilienceFromConfig("telegram", ncfg.Telegram.Timeout, ncfg.Resilience, logger))
	router := &notification.Router{
		Channels: store,
		Senders: map[notification.Channel]notification.Sender{
			notification.ChannelSlack: notification.WebhookSender{HTTP: slackHTTP, Logger: logger},
			notification.ChannelTelegram: notification.TelegramSender{
				HTTP:      telegramHTTP,
				BaseURL:   ncfg.Telegram.BaseURL,
				BotToken:  ncfg.Telegram.BotToken,
				ParseMode: ncfg.Telegram.ParseMode,
				Logger:    logger,
			},
		},
		Switches:       settingsSvc,
		ChannelTimeout: ncfg.ChannelTimeout,
		Logger:         logger,
	}
	if strings.TrimSpace(ncfg.Telegram.BotToken) == "" {
		logger.Warn("telegram bot token not configured, telegram deliveries will fail")
	}

	monitor := &alerting.Monitor{
		Repo:          store,
		Locks:         sharedCache,
		Dispatcher:    router,
		Explainer:     alerting.TemplateExplainer{},
		Switches:      settingsSvc,
		Logger:        logger.Named("alert_monitor"),
		JobName:       cfg.Monitor.JobName,
		LockTTL:       cfg.Monitor.LockTTL,
		EscalateAfter: cfg.Monitor.EscalateAfter,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORS())
	engine.Use(handler.RequestLogger(logger))
	if cfg.RateLimit.Enabled {
		limiter := &ratelimit.Limiter{
			Store:  sharedCache,
			Window: cfg.RateLimit.Window,
			Policy: ratelimit.PolicyFromConfig(cfg.RateLimit),
			Logger: logger,
		}
		engine.Use(ratelimit.Middleware(limiter))
	}

	healthHandler := &handler.HealthHandler{
		DB:    handler.PingFunc(func(ctx context.Context) error { return db.Ping(ctx, dbConn) }),
		Cache: sharedCache,
	}
	healthHandler.Register(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	jwt := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL}
	keys := auth.NewKeyStore(cfg.Auth.APIKeys)
	if keys.Len() == 0 {
		logger.Warn("no api keys configured, token exchange is disabled")
	}
	authHandler := &handler.AuthHandler{Keys: keys, JWT: jwt}
	authHandler.Register(engine)

	v1 := engine.Group("/api/v1", auth.Middleware(jwt))
	monitorHandler := &handler.MonitorHandler{Monitor: monitor, Alerts: store}
	monitorHandler.Register(v1)
	notificationHandler := &handler.NotificationHandler{Channels: store, Router: router}
	notificationHandler.Register(v1)
	settingsHandler := &handler.SystemSettingsHandler{Repo: store, Settings: settingsSvc}
	settingsHandler.Register(v1)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cronRunner *cronrunner.Runner
	if cfg.Monitor.Enabled {
		cronRunner = cronrunner.New(logger, ctx)
		cronRunner.Every(cfg.Monitor.Interval, monitor.JobName, monitor.Tick)
		cronRunner.Start()
		logger.Info("alert monitor scheduled",
			zap.Duration("interval", cfg.Monitor.Interval),
			zap.Duration("lock_ttl", cfg.Monitor.LockTTL),
			zap.String("cache_backend", cfg.Cache.Backend),
		)
	} else {
		logger.Info("alert monitor disabled by config")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if cronRunner != nil {
		cronRunner.Stop()
	}
}

// openCache returns the store shared by job locks and rate counters.
func openCache(cfg config.CacheConfig, logger *zap.Logger) cache.Store {
	if strings.EqualFold(cfg.Backend, "memory") {
		logger.Warn("using in-process cache, locks and rate limits are not shared across instances")
		return cache.NewMemoryStore()
	}
	rs := cache.NewRedisStore(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rs.Ping(ctx); err != nil {
		// Not fatal: the lock skips ticks and the limiter fails open until
		// redis comes back.
		logger.Warn("redis ping failed at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	return rs
}
