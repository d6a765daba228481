package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"

	"fxledger/internal/bootstrap"
	"fxledger/internal/cli"
	"fxledger/internal/config"
	"fxledger/internal/job"
	"fxledger/internal/logging"
	"fxledger/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	initTracerFunc = tracing.InitTracer
	newLoggerFunc  = logging.New
	buildFunc      = bootstrap.Build
	notifyContext  = ossignal.NotifyContext
	exitFunc       = os.Exit
)

func main() {
	exitFunc(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run wires the ledger and executes args, or starts the interactive shell
// when there are none.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	_ = loadEnvFunc()

	cfg, err := loadConfigFunc()
	if err != nil {
		fmt.Fprintln(stderr, "Error: "+cli.Message(err))
		return 2
	}

	logger, closer, err := newLoggerFunc(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Path: cfg.LogPath})
	if err != nil {
		fmt.Fprintln(stderr, "Error: "+err.Error())
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
		fmt.Fprintln(stderr, "Error: "+cli.Message(err))
		return 1
	}
	defer comps.Close()

	app := cli.New(cli.Deps{
		Ledger:    comps.Ledger,
		Rates:     comps.Cache,
		Refresher: comps.Reconciler,
		Sessions:  comps.Sessions,
		Schedule:  scheduleFunc(comps, tracer, logger),
	}, stdout, stderr)

	if len(args) == 0 {
		return app.REPL(ctx, stdin)
	}
	return app.Run(ctx, args)
}

func scheduleFunc(comps *bootstrap.Components, tracer trace.Tracer, logger logrus.FieldLogger) cli.ScheduleFunc {
	return func(ctx context.Context, onStatus func(job.CycleStatus)) error {
		s := job.NewRefreshScheduler(tracer, comps.Reconciler, comps.Config.RefreshInterval,
			job.WithStatusCallback(onStatus),
			job.WithSchedulerLogger(logger),
		)
		err := s.Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}
