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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"fanclubz/internal/auth"
	"fanclubz/internal/config"
	cronrunner "fanclubz/internal/cron"
	"fanclubz/internal/db"
	"fanclubz/internal/handler"
	"fanclubz/internal/logger"
	"fanclubz/internal/realtime"
	gormrepository "fanclubz/internal/repository/gorm"
	"fanclubz/internal/service"

	_ "fanclubz/docs"
)

func main() {
	cfgPath := os.Getenv("FCZ_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("FCZ_ENV_ONLY"); envOnlyRaw != "" {
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

	store := gormrepository.New(dbConn.Gorm)

	var hub *realtime.Hub
	if cfg.Realtime.Enabled {
		hub = realtime.NewHub(logger)
	}

	marketSvc := &service.MarketService{Repo: store, Fees: cfg.Fees, Logger: logger}
	stakeSvc := &service.StakeService{Repo: store, Stakes: cfg.Stakes, Logger: logger}
	walletSvc := &service.WalletService{Repo: store, Notifier: notifier(hub), Logger: logger}
	settlementSvc := &service.SettlementService{
		Repo:     store,
		Treasury: cfg.Treasury,
		Notifier: notifier(hub),
		Logger:   logger,
	}
	reconcileSvc := &service.ReconcileService{Repo: store, Config: cfg.Reconcile, Logger: logger}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(auth.Middleware(initVerifier()))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	marketHandler := &handler.MarketHandler{Markets: marketSvc}
	marketHandler.Register(engine)
	stakeHandler := &handler.StakeHandler{Stakes: stakeSvc}
	stakeHandler.Register(engine)
	walletHandler := &handler.WalletHandler{Wallet: walletSvc, Hub: hub}
	walletHandler.Register(engine)
	settlementHandler := &handler.SettlementHandler{Settlement: settlementSvc}
	settlementHandler.Register(engine)
	handler.RegisterDocs(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add(cfg.Cron.Reconcile, func(ctx context.Context) {
			report, err := reconcileSvc.RunOnce(ctx)
			if err != nil {
				logger.Warn("reconcile sweep failed", zap.Error(err))
				return
			}
			if report.OrphansVoided > 0 || len(report.WalletsFrozen) > 0 {
				logger.Info("reconcile sweep",
					zap.Int("orphans_voided", report.OrphansVoided),
					zap.Int("wallets_checked", report.WalletsChecked),
					zap.Strings("wallets_frozen", report.WalletsFrozen))
			}
		})
		if err != nil {
			logger.Warn("cron register reconcile failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

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
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// notifier keeps the services' Notifier field nil when the stream is off,
// instead of handing them a typed-nil *Hub.
func notifier(hub *realtime.Hub) service.WalletNotifier {
	if hub == nil {
		return nil
	}
	return hub
}

// initVerifier builds the dev token verifier from FCZ_AUTH_TOKENS
// ("token:userID[:status]," pairs). Production deployments replace this with
// a real auth service client.
func initVerifier() auth.Client {
	v := auth.NewStaticVerifier()
	for _, pair := range strings.Split(os.Getenv("FCZ_AUTH_TOKENS"), ",") {
		parts := strings.Split(strings.TrimSpace(pair), ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		status := auth.StatusActive
		if len(parts) > 2 && parts[2] != "" {
			status = parts[2]
		}
		v.Add(parts[0], parts[1], status)
	}
	return v
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,Idempotency-Key")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
