package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fxledger/internal/auth"
	"fxledger/internal/bootstrap"
	"fxledger/internal/bot"
	"fxledger/internal/config"
	"fxledger/internal/handler"
	"fxledger/internal/job"
	"fxledger/internal/logging"
	"fxledger/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	tele "gopkg.in/telebot.v3"

	_ "fxledger/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logging.New
	initTracerFunc         = tracing.InitTracer
	buildFunc              = bootstrap.Build
	newSchedulerFunc       = job.NewRefreshScheduler
	startSchedulerFunc     = func(s *job.RefreshScheduler, ctx context.Context) { go s.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	exitFunc               = os.Exit
)

// @title           fxledger API
// @version         1.0
// @description     Simulated currency wallet with reconciled fiat and crypto rates.

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	_ = loadEnvFunc()

	cfg, err := loadConfigFunc()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitFunc(2)
		return
	}

	logger, closer, err := newLoggerFunc(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Path: cfg.LogPath})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitFunc(2)
		return
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		logger.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	comps, err := buildFunc(ctx, cfg, tracer, bootstrap.Options{Logger: logger, Registerer: reg})
	if err != nil {
		logger.Fatalf("failed to wire services: %v", err)
	}
	defer comps.Close()

	// Scheduled refreshes (stopped by ctx cancel)
	scheduler := newSchedulerFunc(tracer, comps.Reconciler, cfg.RefreshInterval, job.WithSchedulerLogger(logger))
	startSchedulerFunc(scheduler, ctx)

	var telegram *tele.Bot
	telegram, err = startTelegramBotFunc(cfg.TelegramBotToken, &bot.Replies{
		Rates:     comps.Cache,
		Base:      cfg.BaseCurrency,
		Scheduler: scheduler,
	})
	if err != nil {
		logger.WithError(err).Warn("telegram bot disabled")
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
		cfg.JWTSecret = ephemeralSecret()
	}
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	h := newHandlerFunc(tracer, comps.Ledger, comps.Cache, comps.Reconciler, tokens, cfg.AdminAPIKey)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("fxledger"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		MaxAge:          12 * time.Hour,
	}))

	h.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", srv.Addr)
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	logger.Info("Shutting down server...")

	cancel()
	if telegram != nil {
		telegram.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exiting")
}

func ephemeralSecret() string {
	return uuid.NewString() + uuid.NewString()
}
