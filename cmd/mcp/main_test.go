package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"fxledger/internal/config"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func stubMCPDeps(t *testing.T, transport string) {
	t.Helper()
	origLoadEnv, origLoadConfig, origInitTracer := loadEnvFunc, loadConfigFunc, initTracerFunc
	origStdio, origStartHTTP := runStdioFunc, startHTTPServerFunc
	t.Cleanup(func() {
		loadEnvFunc, loadConfigFunc, initTracerFunc = origLoadEnv, origLoadConfig, origInitTracer
		runStdioFunc, startHTTPServerFunc = origStdio, origStartHTTP
	})

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
			MCPTransport:    transport,
			MCPHTTPBind:     "127.0.0.1",
			MCPHTTPPort:     8090,
			LogLevel:        "error",
		}, nil
	}
	initTracerFunc = func(context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
}

func TestRunStdio(t *testing.T) {
	stubMCPDeps(t, "stdio")
	var got *mcp.Server
	runStdioFunc = func(_ context.Context, s *mcp.Server) error {
		got = s
		return nil
	}
	if code := run(); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if got == nil {
		t.Fatal("stdio server not started")
	}
}

func TestRunStdioFailure(t *testing.T) {
	stubMCPDeps(t, "stdio")
	runStdioFunc = func(context.Context, *mcp.Server) error { return errors.New("broken pipe") }
	if code := run(); code != 1 {
		t.Fatalf("exit = %d", code)
	}
}

func TestRunHTTP(t *testing.T) {
	stubMCPDeps(t, "http")
	var addr string
	startHTTPServerFunc = func(srv *http.Server) error {
		addr = srv.Addr
		return http.ErrServerClosed
	}
	if code := run(); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if addr != "127.0.0.1:8090" {
		t.Fatalf("unexpected address %q", addr)
	}
}
