package logging

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fxledger/internal/domain"

	"github.com/sirupsen/logrus"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "actions.log")
	logger, closer, err := New(Options{Level: "debug", Format: "json", Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.WithField("k", "v").Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || !strings.Contains(string(data), `"k":"v"`) {
		t.Fatalf("unexpected log content: %s", data)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %v", logger.GetLevel())
	}
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	logger, _, err := New(Options{Level: "loud"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %v", logger.GetLevel())
	}
}

func TestActionLogEnd(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	log := NewActionLog(logger, false)
	fields := logrus.Fields{"user_id": "u1", "currency": "BTC", "balance_before": "1"}
	log.End("BUY", fields, nil)
	if !strings.Contains(buf.String(), "result=OK") || strings.Contains(buf.String(), "balance_before") {
		t.Fatalf("unexpected ok line: %s", buf.String())
	}

	buf.Reset()
	log.End("SELL", fields, fmt.Errorf("sell: %w", &domain.InsufficientHoldingsError{Code: "BTC"}))
	if !strings.Contains(buf.String(), "result=ERROR") || !strings.Contains(buf.String(), "error_type=InsufficientHoldingsError") {
		t.Fatalf("unexpected error line: %s", buf.String())
	}

	buf.Reset()
	NewActionLog(logger, true).End("BUY", fields, nil)
	if !strings.Contains(buf.String(), "balance_before") {
		t.Fatalf("verbose log should include balances: %s", buf.String())
	}
}

func TestErrorType(t *testing.T) {
	if got := ErrorType(&domain.StaleCacheError{}); got != "StaleCacheError" {
		t.Fatalf("unexpected type %s", got)
	}
	if got := ErrorType(errors.New("boom")); got != "Error" {
		t.Fatalf("unexpected type %s", got)
	}
}
