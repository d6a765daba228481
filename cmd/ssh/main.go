package main

import (
	"context"
	"fmt"
	"net"
	"os"
	ossignal "os/signal"
	"strconv"
	"syscall"
	"time"

	"fxledger/internal/bootstrap"
	"fxledger/internal/config"
	"fxledger/internal/domain"
	"fxledger/internal/logging"
	"fxledger/internal/tui"
	"fxledger/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	wishlogging "github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// ctxKey is a typed context key to avoid collisions.
type ctxKey string

const sshUserKey ctxKey = "ssh_user"

// Authenticator checks ledger credentials for password logins.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*domain.User, error)
}

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	newLoggerFunc     = logging.New
	initTracerFunc    = tracing.InitTracer
	buildFunc         = bootstrap.Build
	newWishServerFunc = wish.NewServer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
	exitFunc          = os.Exit
)

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

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		logger.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	comps, err := buildFunc(ctx, cfg, tracer, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Fatalf("failed to wire services: %v", err)
	}
	defer comps.Close()

	// Build Wish SSH server
	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.SSHPort))

	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPasswordAuth(passwordHandler(comps.Ledger, logger)),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				username, _ := s.Context().Value(sshUserKey).(string)
				model := tui.NewModel(tui.Services{
					Rates:     comps.Cache,
					Refresher: comps.Reconciler,
					Base:      cfg.BaseCurrency,
					Username:  username,
				})
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)

				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			wishlogging.Middleware(),
		),
	)
	if err != nil {
		logger.Fatalf("failed to create SSH server: %v", err)
	}

	if srv != nil {
		go func() {
			logger.Infof("SSH server listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil {
				logger.Infof("SSH server stopped: %v", err)
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	logger.Info("Shutting down SSH server...")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("SSH server shutdown error: %v", err)
		}
	}

	logger.Info("SSH server exited")
}

// passwordHandler accepts ledger users with their ledger password.
func passwordHandler(auth Authenticator, logger logrus.FieldLogger) ssh.PasswordHandler {
	return func(ctx ssh.Context, password string) bool {
		user, err := auth.Login(ctx, ctx.User(), password)
		if err != nil {
			logger.WithField("user", ctx.User()).WithError(err).Warn("SSH auth denied")
			return false
		}
		ctx.SetValue(sshUserKey, user.Username)
		logger.WithField("user", user.Username).Info("SSH auth accepted")
		return true
	}
}
