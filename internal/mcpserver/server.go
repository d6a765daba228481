// Package mcpserver exposes rate lookups and refreshes as MCP tools.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fxledger/internal/domain"
	"fxledger/internal/rates"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	serverName    = "fxledger"
	serverVersion = "v1.0.0"
	defaultTop    = 5
	maxTop        = 50
)

type RateReader interface {
	GetRate(ctx context.Context, from, to domain.Code) (domain.Quote, error)
	Top(ctx context.Context, n int, base domain.Code) ([]domain.Quote, error)
}

type Refresher interface {
	Refresh(ctx context.Context, opts rates.RefreshOptions) (*rates.RefreshResult, error)
}

type Tools struct {
	tracer    trace.Tracer
	rates     RateReader
	refresher Refresher
	base      domain.Code
}

func NewTools(tracer trace.Tracer, rates RateReader, refresher Refresher, base domain.Code) *Tools {
	return &Tools{tracer: tracer, rates: rates, refresher: refresher, base: base}
}

type GetRateInput struct {
	From string `json:"from" jsonschema:"currency to convert from, e.g. BTC"`
	To   string `json:"to,omitempty" jsonschema:"currency to convert to, defaults to the base currency"`
}

type RateOutput struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Rate      string `json:"rate"`
	UpdatedAt string `json:"updated_at"`
}

type TopRatesInput struct {
	N    int    `json:"n,omitempty" jsonschema:"number of rates to return, 1 to 50"`
	Base string `json:"base,omitempty" jsonschema:"base currency, defaults to the configured base"`
}

type TopRatesOutput struct {
	Base  string       `json:"base"`
	Rates []RateOutput `json:"rates"`
}

type RefreshInput struct {
	Sources []string `json:"sources,omitempty" jsonschema:"quote sources to use, all when empty"`
}

type RefreshOutput struct {
	Outcome     string   `json:"outcome"`
	LastRefresh string   `json:"last_refresh"`
	TotalRates  int      `json:"total_rates"`
	Succeeded   []string `json:"succeeded"`
	Warnings    []string `json:"warnings,omitempty"`
}

// NewServer registers every tool on a new MCP server. refresh_rates is only
// offered when a refresher is configured.
func NewServer(t *Tools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_rate",
		Description: "Cached exchange rate between two currencies. Fails when the cache is stale.",
	}, t.GetRate)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "top_rates",
		Description: "Highest cached rates against a base currency.",
	}, t.TopRates)
	if t.refresher != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "refresh_rates",
			Description: "Fetch fresh quotes from the configured sources and update the cache.",
		}, t.RefreshRates)
	}
	return server
}

// HTTPHandler serves the server over streamable HTTP.
func HTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

func (t *Tools) GetRate(ctx context.Context, _ *mcp.CallToolRequest, in GetRateInput) (*mcp.CallToolResult, RateOutput, error) {
	ctx, span := t.tracer.Start(ctx, "mcp.get_rate")
	defer span.End()

	from, err := domain.NormalizeCode(in.From)
	if err != nil {
		return nil, RateOutput{}, err
	}
	to := t.base
	if strings.TrimSpace(in.To) != "" {
		if to, err = domain.NormalizeCode(in.To); err != nil {
			return nil, RateOutput{}, err
		}
	}
	span.SetAttributes(attribute.String("from", string(from)), attribute.String("to", string(to)))

	q, err := t.rates.GetRate(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, RateOutput{}, err
	}
	return nil, rateOutput(q), nil
}

func (t *Tools) TopRates(ctx context.Context, _ *mcp.CallToolRequest, in TopRatesInput) (*mcp.CallToolResult, TopRatesOutput, error) {
	ctx, span := t.tracer.Start(ctx, "mcp.top_rates")
	defer span.End()

	n := in.N
	if n == 0 {
		n = defaultTop
	}
	if n < 0 || n > maxTop {
		return nil, TopRatesOutput{}, fmt.Errorf("n must be between 1 and %d", maxTop)
	}
	base := t.base
	if strings.TrimSpace(in.Base) != "" {
		code, err := domain.NormalizeCode(in.Base)
		if err != nil {
			return nil, TopRatesOutput{}, err
		}
		base = code
	}

	quotes, err := t.rates.Top(ctx, n, base)
	if err != nil {
		span.RecordError(err)
		return nil, TopRatesOutput{}, err
	}
	out := TopRatesOutput{Base: string(base), Rates: make([]RateOutput, 0, len(quotes))}
	for _, q := range quotes {
		out.Rates = append(out.Rates, rateOutput(q))
	}
	return nil, out, nil
}

func (t *Tools) RefreshRates(ctx context.Context, _ *mcp.CallToolRequest, in RefreshInput) (*mcp.CallToolResult, RefreshOutput, error) {
	ctx, span := t.tracer.Start(ctx, "mcp.refresh_rates")
	defer span.End()

	var opts rates.RefreshOptions
	if len(in.Sources) > 0 {
		sources, err := domain.ParseSources(strings.Join(in.Sources, ","))
		if err != nil {
			return nil, RefreshOutput{}, err
		}
		opts.Sources = sources
	}

	res, err := t.refresher.Refresh(ctx, opts)
	if err != nil {
		span.RecordError(err)
		return nil, RefreshOutput{}, err
	}
	out := RefreshOutput{
		Outcome:     string(res.Outcome),
		LastRefresh: res.LastRefresh.UTC().Format(time.RFC3339),
		TotalRates:  res.TotalRates,
		Succeeded:   make([]string, 0, len(res.Succeeded)),
	}
	for _, s := range res.Succeeded {
		out.Succeeded = append(out.Succeeded, string(s))
	}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.String())
	}
	return nil, out, nil
}

func rateOutput(q domain.Quote) RateOutput {
	return RateOutput{
		From:      string(q.From),
		To:        string(q.To),
		Rate:      q.Rate.String(),
		UpdatedAt: q.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
