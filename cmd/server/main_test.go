package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fxledger/internal/bot"
	"fxledger/internal/config"
	"fxledger/internal/handler"
	"fxledger/internal/job"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tele "gopkg.in/telebot.v3"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	restore := stubServerDeps(t, router)
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}

	for _, path := range []string{"/health", "/metrics", "/api/rates"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code == http.StatusNotFound {
			t.Fatalf("route %s not registered", path)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics endpoint missing runtime collectors")
	}
}

func stubServerDeps(t *testing.T, router *gin.Engine) func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitTracer := initTracerFunc
	origStartScheduler := startSchedulerFunc
	origStartTelegram := startTelegramBotFunc
	origNewHandler := newHandlerFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	dir := t.TempDir()
	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() (*config.Config, error) {
		return &config.Config{
			DataDir:         dir,
			UsersFile:       filepath.Join(dir, "users.json"),
			PortfoliosFile:  filepath.Join(dir, "portfolios.json"),
			RatesFile:       filepath.Join(dir, "rates.json"),
			HistoryFile:     filepath.Join(dir, "exchange_rates.json"),
			SessionFile:     filepath.Join(dir, "session.json"),
			RatesTTL:        time.Minute,
			BaseCurrency:    "USD",
			PivotCurrency:   "USD",
			RequestTimeout:  time.Second,
			RefreshInterval: time.Minute,
			StartingBalance: decimal.NewFromInt(1000),
			StorageBackend:  config.BackendFile,
			RatesBackend:    config.BackendFile,
			HTTPPort:        8080,
			JWTTTL:          time.Hour,
			LogLevel:        "error",
		}, nil
	}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	startSchedulerFunc = func(*job.RefreshScheduler, context.Context) {}
	startTelegramBotFunc = func(token string, replies *bot.Replies) (*tele.Bot, error) {
		if replies == nil || replies.Rates == nil || replies.Scheduler == nil {
			t.Errorf("telegram replies not wired: %+v", replies)
		}
		return nil, nil
	}
	newHandlerFunc = handler.New
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return router }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initTracerFunc = origInitTracer
		startSchedulerFunc = origStartScheduler
		startTelegramBotFunc = origStartTelegram
		newHandlerFunc = origNewHandler
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
