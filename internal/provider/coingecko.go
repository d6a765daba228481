package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"fxledger/internal/domain"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoOptions configures a CoinGeckoSource. Zero values fall back to defaults.
type CoinGeckoOptions struct {
	BaseURL   string
	APIKey    string
	Pivot     domain.Code
	Codes     []domain.Code
	Timeout   time.Duration
	PerMinute int
}

// CoinGeckoSource quotes crypto currencies against the pivot using /simple/price.
type CoinGeckoSource struct {
	client  *http.Client
	baseURL string
	apiKey  string
	pivot   domain.Code
	codes   []domain.Code
	tracer  trace.Tracer
	limiter *rate.Limiter
	now     func() time.Time
}

// NewCoinGeckoSource creates a source limited to 8 requests per minute by default.
func NewCoinGeckoSource(tracer trace.Tracer, opts CoinGeckoOptions) *CoinGeckoSource {
	if opts.BaseURL == "" {
		opts.BaseURL = coingeckoBaseURL
	}
	if opts.Pivot == "" {
		opts.Pivot = "USD"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PerMinute == 0 {
		opts.PerMinute = 8
	}
	return &CoinGeckoSource{
		client:  &http.Client{Timeout: opts.Timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  strings.TrimSpace(opts.APIKey),
		pivot:   opts.Pivot,
		codes:   opts.Codes,
		tracer:  tracer,
		limiter: newLimiter(opts.PerMinute, 2),
		now:     time.Now,
	}
}

func (s *CoinGeckoSource) Name() domain.Source { return domain.SourceCoinGecko }

// HasCredentials is always true: the public API works without a key.
func (s *CoinGeckoSource) HasCredentials() bool { return true }

// FetchQuotes returns one CODE->pivot point per requested code CoinGecko knows.
// With no codes the configured list is used.
func (s *CoinGeckoSource) FetchQuotes(ctx context.Context, codes ...domain.Code) ([]domain.RatePoint, error) {
	ctx, span := s.tracer.Start(ctx, "coingecko.fetch-quotes")
	defer span.End()

	if len(codes) == 0 {
		codes = s.codes
	}
	ids := make([]string, 0, len(codes))
	for _, code := range codes {
		id, ok := domain.CoinGeckoID[code]
		if !ok {
			log.WithField("currency", code).Debug("coingecko: no coin id, skipping")
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	span.SetAttributes(attribute.Int("ids", len(ids)))
	if len(ids) == 0 {
		return nil, domain.NewFetchError(domain.SourceCoinGecko, domain.ErrMalformedResponse, errors.New("no requested code maps to a coin id"))
	}

	vs := strings.ToLower(string(s.pivot))
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s&include_last_updated_at=true",
		s.baseURL, strings.Join(ids, ","), vs)

	var header http.Header
	if s.apiKey != "" {
		header = http.Header{"x-cg-demo-api-key": []string{s.apiKey}}
	}

	body, err := doRequest(ctx, s.client, s.limiter, url, header)
	if err != nil {
		span.RecordError(err)
		return nil, classify(domain.SourceCoinGecko, err)
	}

	points, err := s.parse(body, vs)
	if err != nil {
		span.RecordError(err)
		return nil, domain.NewFetchError(domain.SourceCoinGecko, domain.ErrMalformedResponse, err)
	}
	return points, nil
}

// parse reads {"bitcoin": {"usd": 65000, "last_updated_at": 1711843200}, ...}.
func (s *CoinGeckoSource) parse(body []byte, vs string) ([]domain.RatePoint, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]map[string]json.Number
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse prices: %w", err)
	}

	now := s.now().UTC()
	points := make([]domain.RatePoint, 0, len(raw))
	for id, data := range raw {
		code, ok := domain.CoinGeckoIDToCode[id]
		if !ok {
			continue
		}
		price, ok := data[vs]
		if !ok {
			continue
		}
		value, err := decimal.NewFromString(price.String())
		if err != nil || !value.IsPositive() {
			log.WithFields(log.Fields{"currency": code, "value": price.String()}).Warn("coingecko: dropping non-positive price")
			continue
		}
		observed := now
		if ts, ok := data["last_updated_at"]; ok {
			if n, err := ts.Int64(); err == nil && n > 0 {
				observed = time.Unix(n, 0).UTC()
			}
		}
		points = append(points, domain.RatePoint{
			From:       code,
			To:         s.pivot,
			Value:      value,
			Source:     domain.SourceCoinGecko,
			ObservedAt: observed,
		})
	}
	if len(points) == 0 {
		return nil, errors.New("response contained no usable prices")
	}
	sort.Slice(points, func(i, j int) bool { return points[i].From < points[j].From })
	return points, nil
}
