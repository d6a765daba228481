package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"fxledger/internal/bootstrap"
	"fxledger/internal/config"
	"fxledger/internal/logging"
	"fxledger/internal/mcpserver"
	"fxledger/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	newLoggerFunc  = logging.New
	initTracerFunc = tracing.InitTracer
	buildFunc      = bootstrap.Build
	notifyContext  = signal.NotifyContext
	runStdioFunc   = func(ctx context.Context, server *mcp.Server) error {
		return server.Run(ctx, &mcp.StdioTransport{})
	}
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	exitFunc               = os.Exit
)

func main() {
	exitFunc(run())
}

func run() int {
	_ = loadEnvFunc()

	cfg, err := loadConfigFunc()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	// stdout carries the protocol, so logs stay on stderr and the optional file.
	logger, closer, err := newLoggerFunc(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Path: cfg.LogPath})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer closer.Close()

	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to initialize tracer")
		return 1
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("error shutting down tracer provider")
		}
	}()

	comps, err := buildFunc(ctx, cfg, tracer, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.WithError(err).Error("failed to wire services")
		return 1
	}
	defer comps.Close()

	server := mcpserver.NewServer(mcpserver.NewTools(tracer, comps.Cache, comps.Reconciler, cfg.BaseCurrency))

	if cfg.MCPTransport != "http" {
		logger.Info("MCP server running on stdio")
		if err := runStdioFunc(ctx, server); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("MCP stdio server failed")
			return 1
		}
		return 0
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.MCPHTTPBind, strconv.Itoa(cfg.MCPHTTPPort)),
		Handler:           mcpserver.HTTPHandler(server),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("MCP server listening on http://%s", srv.Addr)
		errCh <- startHTTPServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("MCP HTTP server failed")
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		logger.WithError(err).Error("MCP HTTP server forced to shutdown")
		return 1
	}
	return 0
}
