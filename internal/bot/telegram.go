package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fxledger/internal/domain"
	"fxledger/internal/job"
	"fxledger/internal/present"

	log "github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"
)

const defaultTop = 5

type RateReader interface {
	Snapshot(ctx context.Context) (domain.RateTable, bool, error)
	GetRate(ctx context.Context, from, to domain.Code) (domain.Quote, error)
	Top(ctx context.Context, n int, base domain.Code) ([]domain.Quote, error)
}

// SchedulerState is satisfied by job.RefreshScheduler.
type SchedulerState interface {
	State() job.State
}

type Replies struct {
	Rates     RateReader
	Base      domain.Code
	Scheduler SchedulerState
}

var newBotFunc = tele.NewBot

// StartTelegramBot starts polling in the background and returns the bot so
// the caller can stop it. An empty token skips startup.
func StartTelegramBot(token string, replies *Replies) (*tele.Bot, error) {
	if token == "" {
		log.Info("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	b, err := newBotFunc(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/rate", func(c tele.Context) error {
		return c.Send(replies.Rate(context.Background(), c.Args()))
	})
	b.Handle("/rates", func(c tele.Context) error {
		return c.Send(replies.TopRates(context.Background(), c.Args()))
	})
	b.Handle("/status", func(c tele.Context) error {
		return c.Send(replies.Status(context.Background()))
	})

	log.Info("Telegram bot started")
	go b.Start()
	return b, nil
}

// Rate answers "/rate FROM [TO]".
func (r *Replies) Rate(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /rate BTC [USD]"
	}
	from, err := domain.NormalizeCode(args[0])
	if err != nil {
		return fmt.Sprintf("Invalid currency code: %s", args[0])
	}
	to := r.Base
	if len(args) > 1 {
		if to, err = domain.NormalizeCode(args[1]); err != nil {
			return fmt.Sprintf("Invalid currency code: %s", args[1])
		}
	}
	q, err := r.Rates.GetRate(ctx, from, to)
	if err != nil {
		return errorText(err)
	}
	msg := fmt.Sprintf("%s→%s: %s\nUpdated: %s", from, to, present.Rate(q.Rate), present.Timestamp(q.UpdatedAt))
	if c, ok := domain.LookupCurrency(from); ok {
		msg += "\n" + c.Display()
	}
	return msg
}

// TopRates answers "/rates [N]".
func (r *Replies) TopRates(ctx context.Context, args []string) string {
	n := defaultTop
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return "Usage: /rates [N]"
		}
		n = v
	}
	quotes, err := r.Rates.Top(ctx, n, r.Base)
	if err != nil {
		return errorText(err)
	}
	if len(quotes) == 0 {
		return "No rates cached."
	}
	lines := make([]string, 0, len(quotes)+1)
	lines = append(lines, fmt.Sprintf("Top %d rates in %s:", len(quotes), r.Base))
	for _, q := range quotes {
		lines = append(lines, fmt.Sprintf("%s: %s", q.From, present.Rate(q.Rate)))
	}
	return strings.Join(lines, "\n")
}

// Status reports cache freshness and the scheduler state.
func (r *Replies) Status(ctx context.Context) string {
	table, stale, err := r.Rates.Snapshot(ctx)
	if err != nil {
		return errorText(err)
	}
	freshness := "fresh"
	if stale {
		freshness = "stale"
	}
	msg := fmt.Sprintf("Last refresh: %s (%s)\nRates cached: %d", present.Timestamp(table.LastRefresh), freshness, len(table.Rates))
	if r.Scheduler != nil {
		msg += "\nScheduler: " + string(r.Scheduler.State())
	}
	return msg
}

func errorText(err error) string {
	if errors.Is(err, domain.ErrStaleCache) {
		return "Rates are stale, refresh pending."
	}
	return "Error: " + err.Error()
}
