package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whalegate/internal/chat"
	"whalegate/internal/config"
	"whalegate/internal/database"
	"whalegate/internal/handlers"
	"whalegate/internal/ledger"
	"whalegate/internal/nonce"
	"whalegate/internal/oracle"
	"whalegate/internal/rate"
	"whalegate/internal/reconciler"
	"whalegate/internal/signature"
	"whalegate/internal/verify"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. Init DB
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to init db", zap.Error(err))
	}

	// 3. Nonce store & rate limiter
	var redisClient *redis.Client
	var nonceStore nonce.Store
	var limiter rate.Limiter

	switch cfg.NonceStore {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("redis unreachable", zap.Error(err))
		}
		nonceStore = nonce.NewRedisStore(redisClient, cfg.NonceTTL)
		limiter = rate.NewRedisLimiter(redisClient, cfg.NonceRateWindow, cfg.NonceRateMax)
	case "database":
		nonceStore = nonce.NewGormStore(db)
		limiter = rate.NewMemoryLimiter(cfg.NonceRateWindow, cfg.NonceRateMax)
	default:
		// Single-instance only: nonces held here do not survive
		// restarts and are invisible to other instances.
		nonceStore = nonce.NewMemoryStore()
		limiter = rate.NewMemoryLimiter(cfg.NonceRateWindow, cfg.NonceRateMax)
	}

	nonces := nonce.NewAuthority(nonceStore, cfg.NonceTTL, logger)

	// 4. External collaborators: balance oracle + bot API
	balanceOracle := oracle.NewRPCClient(cfg.RPCEndpoint, cfg.TokenMint, logger)
	bot := chat.NewBotClient(cfg.BotAPIURL, cfg.BotToken, cfg.ChatID, logger)

	// Readiness check before serving traffic, instead of a deferred
	// self-test failing mid-request.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := bot.Ping(startupCtx); err != nil {
		logger.Fatal("bot api unreachable", zap.Error(err))
	}
	cancelStartup()

	// 5. Core services
	led := ledger.NewGormLedger(db)
	orch := verify.NewOrchestrator(
		nonces,
		signature.Ed25519Verifier{},
		balanceOracle,
		bot,
		led,
		cfg.BalanceThreshold,
		cfg.InviteTTL,
		logger,
	)

	// 6. Background loops: nonce sweeper + membership reconciler
	bgCtx, cancelBg := context.WithCancel(context.Background())
	go nonces.RunSweeper(bgCtx, time.Minute)

	rec := reconciler.New(led, bot, cfg.ReconcileWindow, logger)
	go rec.Run(bgCtx, cfg.ReconcileInterval)

	// 7. API Server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	api := e.Group("/api")
	handlers.RegisterRoutes(api, orch, nonces, led, limiter, cfg.AdminPassword, logger)

	e.GET("/healthz", func(c echo.Context) error {
		if err := database.Ping(db); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	go func() {
		logger.Info("whalegate starting", zap.String("addr", cfg.ListenAddr))
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down...")

	cancelBg()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
