package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fxledger/internal/config"
	"fxledger/internal/domain"

	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func stubCLIDeps(t *testing.T, cfgErr error) {
	t.Helper()
	origLoadEnv, origLoadConfig, origInitTracer := loadEnvFunc, loadConfigFunc, initTracerFunc
	t.Cleanup(func() {
		loadEnvFunc, loadConfigFunc, initTracerFunc = origLoadEnv, origLoadConfig, origInitTracer
	})

	dir := t.TempDir()
	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() (*config.Config, error) {
		if cfgErr != nil {
			return nil, cfgErr
		}
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
			LogLevel:        "error",
		}, nil
	}
	initTracerFunc = func(context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
}

func TestRunSingleCommand(t *testing.T) {
	stubCLIDeps(t, nil)
	var out, errOut bytes.Buffer

	code := run([]string{"register", "-username", "alice", "-password", "1234"}, strings.NewReader(""), &out, &errOut)
	if code != 0 {
		t.Fatalf("exit = %d, stderr %q", code, errOut.String())
	}
	if !strings.Contains(out.String(), "User 'alice' registered") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunInteractiveSession(t *testing.T) {
	stubCLIDeps(t, nil)
	var out, errOut bytes.Buffer

	script := strings.Join([]string{
		"register -username bob -password 1234",
		"login -username bob -password 1234",
		"show-rates",
		"exit",
	}, "\n")
	code := run(nil, strings.NewReader(script), &out, &errOut)
	// show-rates fails on an empty cache and is the last command before exit
	if code != 1 {
		t.Fatalf("exit = %d, stderr %q", code, errOut.String())
	}
	if !strings.Contains(out.String(), "You are logged in as 'bob'") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if !strings.Contains(errOut.String(), "Local rate cache is empty") {
		t.Fatalf("unexpected stderr %q", errOut.String())
	}
}

func TestRunConfigurationError(t *testing.T) {
	stubCLIDeps(t, &domain.ConfigurationError{Missing: []string{"DATA_DIR"}})
	var out, errOut bytes.Buffer

	if code := run([]string{"show-rates"}, strings.NewReader(""), &out, &errOut); code != 2 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(errOut.String(), "missing DATA_DIR") {
		t.Fatalf("unexpected stderr %q", errOut.String())
	}
}
