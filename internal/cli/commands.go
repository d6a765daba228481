package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"fxledger/internal/domain"
	"fxledger/internal/job"
	"fxledger/internal/ledger"
	"fxledger/internal/present"
	"fxledger/internal/rates"
	"fxledger/internal/storage"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type registerCmd struct {
	app      *App
	username string
	password string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create a user with a funded portfolio" }
func (*registerCmd) Usage() string {
	return "register -username <name> -password <password>\n"
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "username", "", "unique user name")
	f.StringVar(&c.password, "password", "", "password, at least 4 characters")
}

func (c *registerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	u, err := c.app.Ledger.Register(ctx, c.username, c.password)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.out, "User '%s' registered (id=%s). Log in with: login -username %s -password ****\n",
		u.Username, u.ID, u.Username)
	return subcommands.ExitSuccess
}

type loginCmd struct {
	app      *App
	username string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in and remember the session" }
func (*loginCmd) Usage() string {
	return "login -username <name> -password <password>\n"
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "username", "", "user name")
	f.StringVar(&c.password, "password", "", "password")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	u, err := c.app.Ledger.Login(ctx, c.username, c.password)
	if err != nil {
		return c.app.fail(err)
	}
	if err := c.app.Sessions.Save(storage.Session{UserID: u.ID, Username: u.Username, LoginAt: time.Now().UTC()}); err != nil {
		return c.app.fail(&domain.PersistenceWriteError{Target: "session", Err: err})
	}
	fmt.Fprintf(c.app.out, "You are logged in as '%s'\n", u.Username)
	return subcommands.ExitSuccess
}

type logoutCmd struct {
	app *App
}

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "forget the current session" }
func (*logoutCmd) Usage() string            { return "logout\n" }
func (*logoutCmd) SetFlags(_ *flag.FlagSet) {}

func (c *logoutCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Sessions.Clear(); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintln(c.app.out, "Logged out.")
	return subcommands.ExitSuccess
}

// buyCmd serves both buy and sell.
type buyCmd struct {
	app      *App
	side     string
	currency string
	amount   string
}

func (c *buyCmd) Name() string { return c.side }

func (c *buyCmd) Synopsis() string {
	if c.side == ledger.SideSell {
		return "sell currency for the base currency"
	}
	return "buy currency with the base currency"
}

func (c *buyCmd) Usage() string {
	return c.side + " -currency <code> -amount <positive number>\n"
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "currency", "", "currency code, e.g. BTC")
	f.StringVar(&c.amount, "amount", "", "amount of currency")
}

func (c *buyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sess, err := c.app.session()
	if err != nil {
		return c.app.fail(err)
	}
	code, err := domain.NormalizeCode(c.currency)
	if err != nil {
		return c.app.fail(err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(c.amount))
	if err != nil {
		return c.app.fail(fmt.Errorf("%w: %q", domain.ErrInvalidAmount, c.amount))
	}

	trade := c.app.Ledger.Buy
	if c.side == ledger.SideSell {
		trade = c.app.Ledger.Sell
	}
	r, err := trade(ctx, sess.UserID, code, amount)
	if err != nil {
		return c.app.fail(err)
	}

	verb, money := "Purchase", "Cost"
	if r.Side == ledger.SideSell {
		verb, money = "Sale", "Proceeds"
	}
	fmt.Fprintf(c.app.out, "%s done: %s %s at rate %s %s/%s\n",
		verb, present.Balance(r.Amount), r.Currency, present.Rate(r.Rate), r.Base, r.Currency)
	fmt.Fprintln(c.app.out, "Changes in portfolio:")
	fmt.Fprintf(c.app.out, "  - %s: was %s -> now %s\n", r.Currency, present.Balance(r.BalanceBefore), present.Balance(r.BalanceAfter))
	fmt.Fprintf(c.app.out, "  - %s: was %s -> now %s\n", r.Base, present.Balance(r.BaseBefore), present.Balance(r.BaseAfter))
	fmt.Fprintf(c.app.out, "%s: %s\n", money, present.Money(r.Total, r.Base))
	return subcommands.ExitSuccess
}

type showPortfolioCmd struct {
	app  *App
	base string
}

func (*showPortfolioCmd) Name() string     { return "show-portfolio" }
func (*showPortfolioCmd) Synopsis() string { return "show wallet balances valued in a base currency" }
func (*showPortfolioCmd) Usage() string    { return "show-portfolio [-base <code>]\n" }

func (c *showPortfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.base, "base", "", "base currency for valuation (default: configured base)")
}

func (c *showPortfolioCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sess, err := c.app.session()
	if err != nil {
		return c.app.fail(err)
	}
	var base domain.Code
	if c.base != "" {
		if base, err = domain.NormalizeCode(c.base); err != nil {
			return c.app.fail(err)
		}
	}
	v, err := c.app.Ledger.ValuePortfolio(ctx, sess.UserID, base)
	if err != nil {
		return c.app.fail(err)
	}

	fmt.Fprintf(c.app.out, "Portfolio of '%s' (base: %s):\n", sess.Username, v.Base)
	if len(v.Holdings) == 0 {
		fmt.Fprintln(c.app.out, "  wallet is empty")
	} else {
		fmt.Fprintln(c.app.out, portfolioTable(v))
	}
	fmt.Fprintf(c.app.out, "TOTAL: %s\n", present.Money(v.Total, v.Base))
	return subcommands.ExitSuccess
}

type getRateCmd struct {
	app  *App
	from string
	to   string
}

func (*getRateCmd) Name() string     { return "get-rate" }
func (*getRateCmd) Synopsis() string { return "show the cached rate between two currencies" }
func (*getRateCmd) Usage() string    { return "get-rate -from <code> -to <code>\n" }

func (c *getRateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "source currency")
	f.StringVar(&c.to, "to", "", "target currency")
}

func (c *getRateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	from, err := domain.NormalizeCode(c.from)
	if err != nil {
		return c.app.fail(err)
	}
	to, err := domain.NormalizeCode(c.to)
	if err != nil {
		return c.app.fail(err)
	}
	q, err := c.app.Ledger.GetRate(ctx, from, to)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.out, "Rate %s→%s: %s (updated at %s)\n", from, to, present.Rate(q.Rate), present.Timestamp(q.UpdatedAt))
	if !q.Rate.IsZero() {
		fmt.Fprintf(c.app.out, "Reverse rate %s→%s: %s\n", to, from, present.Rate(decimal.NewFromInt(1).Div(q.Rate)))
	}
	for _, code := range []domain.Code{from, to} {
		if cur, ok := domain.LookupCurrency(code); ok {
			fmt.Fprintln(c.app.out, cur.Display())
		}
	}
	return subcommands.ExitSuccess
}

type updateRatesCmd struct {
	app    *App
	source string
}

func (*updateRatesCmd) Name() string     { return "update-rates" }
func (*updateRatesCmd) Synopsis() string { return "fetch fresh rates from the quote sources" }
func (*updateRatesCmd) Usage() string {
	return "update-rates [-source coingecko|exchangerate]\n"
}

func (c *updateRatesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.source, "source", "", "only refresh from this source")
}

func (c *updateRatesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var opts rates.RefreshOptions
	if c.source != "" {
		s, err := domain.ParseSource(c.source)
		if err != nil {
			return c.app.usage(err.Error())
		}
		opts.Sources = []domain.Source{s}
	}

	fmt.Fprintln(c.app.out, "INFO: Starting rates update...")
	result, err := c.app.Refresher.Refresh(ctx, opts)
	if err != nil {
		return c.app.fail(err)
	}
	for _, s := range result.Succeeded {
		fmt.Fprintf(c.app.out, "INFO: Fetching from %s... OK\n", s)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(c.app.out, "ERROR: Failed to fetch from %s: %s\n", w.Source, w.Message)
	}
	if result.Outcome == rates.OutcomePartial {
		fmt.Fprintf(c.app.out, "Update completed with errors. Total rates updated: %d. Last refresh: %s\n",
			result.TotalRates, present.Timestamp(result.LastRefresh))
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(c.app.out, "Update successful. Total rates updated: %d. Last refresh: %s\n",
		result.TotalRates, present.Timestamp(result.LastRefresh))
	return subcommands.ExitSuccess
}

type showRatesCmd struct {
	app      *App
	currency string
	top      int
	base     string
}

func (*showRatesCmd) Name() string     { return "show-rates" }
func (*showRatesCmd) Synopsis() string { return "list cached rates" }
func (*showRatesCmd) Usage() string {
	return "show-rates [-currency <code>] [-top <n>] [-base <code>]\n"
}

func (c *showRatesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "currency", "", "only this currency")
	f.IntVar(&c.top, "top", 0, "only the N highest rates")
	f.StringVar(&c.base, "base", "", "base currency (default: configured base)")
}

func (c *showRatesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.top < 0 {
		return c.app.usage("-top must be positive")
	}
	base := c.app.Ledger.BaseCurrency()
	if c.base != "" {
		code, err := domain.NormalizeCode(c.base)
		if err != nil {
			return c.app.fail(err)
		}
		base = code
	}

	table, _, err := c.app.Rates.Snapshot(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	if !table.Refreshed() {
		fmt.Fprintln(c.app.errOut, "Local rate cache is empty. Run 'update-rates' to load data.")
		return subcommands.ExitFailure
	}

	var quotes []domain.Quote
	switch {
	case c.currency != "":
		code, cerr := domain.NormalizeCode(c.currency)
		if cerr != nil {
			return c.app.fail(cerr)
		}
		var q domain.Quote
		q, err = c.app.Ledger.GetRate(ctx, code, base)
		quotes = []domain.Quote{q}
	case c.top > 0:
		quotes, err = c.app.Rates.Top(ctx, c.top, base)
	default:
		quotes, err = c.app.Rates.Rates(ctx, base)
	}
	if err != nil {
		return c.app.fail(err)
	}

	fmt.Fprintf(c.app.out, "Rates from cache (updated at %s):\n", present.Timestamp(table.LastRefresh))
	fmt.Fprintln(c.app.out, ratesTable(quotes))
	return subcommands.ExitSuccess
}

type scheduleUpdateCmd struct {
	app *App
}

func (*scheduleUpdateCmd) Name() string             { return "schedule-update" }
func (*scheduleUpdateCmd) Synopsis() string         { return "refresh rates periodically until interrupted" }
func (*scheduleUpdateCmd) Usage() string            { return "schedule-update\n" }
func (*scheduleUpdateCmd) SetFlags(_ *flag.FlagSet) {}

func (c *scheduleUpdateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.app.Schedule == nil {
		return c.app.fail(errors.New("scheduler is not configured"))
	}
	fmt.Fprintln(c.app.out, "Scheduled updates started. Press Ctrl+C to stop.")
	err := c.app.Schedule(ctx, func(st job.CycleStatus) {
		if st.Err != nil {
			fmt.Fprintf(c.app.errOut, "[%s] Update failed: %s\n", present.Timestamp(st.Finished), Message(st.Err))
			return
		}
		if st.Result != nil {
			fmt.Fprintf(c.app.out, "[%s] Update OK (%s): total_rates=%d last_refresh=%s\n",
				present.Timestamp(st.Finished), st.Outcome, st.Result.TotalRates, present.Timestamp(st.Result.LastRefresh))
		}
	})
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintln(c.app.out, "Scheduled updates stopped.")
	return subcommands.ExitSuccess
}

type exitCmd struct{}

func (*exitCmd) Name() string             { return "exit" }
func (*exitCmd) Synopsis() string         { return "leave the interactive shell" }
func (*exitCmd) Usage() string            { return "exit\n" }
func (*exitCmd) SetFlags(_ *flag.FlagSet) {}

func (*exitCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return subcommands.ExitSuccess
}
