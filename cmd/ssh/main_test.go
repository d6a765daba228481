package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fxledger/internal/config"

	"github.com/charmbracelet/ssh"
	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	var options int
	restore := stubSSHDeps(t, &options)
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
	// address, host key, password auth, middleware
	if options != 4 {
		t.Fatalf("expected 4 server options, got %d", options)
	}
}

func stubSSHDeps(t *testing.T, options *int) func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitTracer := initTracerFunc
	origNewWishServer := newWishServerFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc

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
			StartingBalance: decimal.NewFromInt(1000),
			StorageBackend:  config.BackendFile,
			RatesBackend:    config.BackendFile,
			SSHPort:         2222,
			SSHHostKeyPath:  filepath.Join(dir, "host_key"),
			LogLevel:        "error",
		}, nil
	}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newWishServerFunc = func(ops ...ssh.Option) (*ssh.Server, error) {
		*options = len(ops)
		return nil, nil
	}
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initTracerFunc = origInitTracer
		newWishServerFunc = origNewWishServer
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
	}
}
