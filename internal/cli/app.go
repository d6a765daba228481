// Package cli is the command line surface: one subcommand per ledger
// operation plus an interactive shell.
package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"fxledger/internal/domain"
	"fxledger/internal/job"
	"fxledger/internal/ledger"
	"fxledger/internal/rates"
	"fxledger/internal/storage"

	shlex "github.com/anmitsu/go-shlex"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type Ledger interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
	Buy(ctx context.Context, userID string, currency domain.Code, amount decimal.Decimal) (*ledger.TradeReceipt, error)
	Sell(ctx context.Context, userID string, currency domain.Code, amount decimal.Decimal) (*ledger.TradeReceipt, error)
	ValuePortfolio(ctx context.Context, userID string, base domain.Code) (*ledger.Valuation, error)
	GetRate(ctx context.Context, from, to domain.Code) (domain.Quote, error)
	BaseCurrency() domain.Code
}

type RateView interface {
	Snapshot(ctx context.Context) (domain.RateTable, bool, error)
	Rates(ctx context.Context, base domain.Code) ([]domain.Quote, error)
	Top(ctx context.Context, n int, base domain.Code) ([]domain.Quote, error)
}

type Refresher interface {
	Refresh(ctx context.Context, opts rates.RefreshOptions) (*rates.RefreshResult, error)
}

type Sessions interface {
	Load() (*storage.Session, error)
	Save(sess storage.Session) error
	Clear() error
}

// ScheduleFunc runs scheduled refreshes until ctx is done, reporting each cycle.
type ScheduleFunc func(ctx context.Context, onStatus func(job.CycleStatus)) error

type Deps struct {
	Ledger    Ledger
	Rates     RateView
	Refresher Refresher
	Sessions  Sessions
	Schedule  ScheduleFunc
}

type App struct {
	Deps
	out    io.Writer
	errOut io.Writer
	name   string
}

func New(deps Deps, out, errOut io.Writer) *App {
	return &App{Deps: deps, out: out, errOut: errOut, name: "fxledger"}
}

func (a *App) commands() []subcommands.Command {
	return []subcommands.Command{
		&registerCmd{app: a},
		&loginCmd{app: a},
		&logoutCmd{app: a},
		&buyCmd{app: a, side: ledger.SideBuy},
		&buyCmd{app: a, side: ledger.SideSell},
		&showPortfolioCmd{app: a},
		&getRateCmd{app: a},
		&updateRatesCmd{app: a},
		&showRatesCmd{app: a},
		&scheduleUpdateCmd{app: a},
		&exitCmd{},
	}
}

// Run executes one command line. It returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet(a.name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	commander := subcommands.NewCommander(fs, a.name)
	commander.Output = a.out
	commander.Error = a.errOut
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	for _, c := range a.commands() {
		commander.Register(c, "")
	}

	if err := fs.Parse(args); err != nil {
		return int(subcommands.ExitUsageError)
	}
	return int(commander.Execute(ctx))
}

// REPL reads commands from in until exit or EOF. The result is the exit code
// of the last command run.
func (a *App) REPL(ctx context.Context, in io.Reader) int {
	fmt.Fprintln(a.out, "fxledger interactive shell. Type 'help' for commands, 'exit' to quit.")
	scanner := bufio.NewScanner(in)
	last := 0
	for {
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return last
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args, err := shlex.Split(line, true)
		if err != nil {
			fmt.Fprintf(a.errOut, "Could not parse command: %v\n", err)
			last = int(subcommands.ExitUsageError)
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(a.out, "Bye.")
			return last
		}
		last = a.Run(ctx, args)
		if ctx.Err() != nil {
			return last
		}
	}
}

// fail prints the user-facing message for err and returns ExitFailure.
func (a *App) fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(a.errOut, "Error: "+Message(err))
	return subcommands.ExitFailure
}

func (a *App) usage(msg string) subcommands.ExitStatus {
	fmt.Fprintln(a.errOut, "Error: "+msg)
	return subcommands.ExitUsageError
}

func (a *App) session() (*storage.Session, error) {
	return a.Sessions.Load()
}
