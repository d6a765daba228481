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

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const exchangeRateBaseURL = "https://v6.exchangerate-api.com/v6"

type ExchangeRateOptions struct {
	BaseURL   string
	APIKey    string
	Pivot     domain.Code
	Codes     []domain.Code
	Timeout   time.Duration
	PerMinute int
}

// ExchangeRateSource quotes fiat currencies from exchangerate-api's /latest/{pivot}.
// Points come back as pivot->CODE.
type ExchangeRateSource struct {
	client  *http.Client
	baseURL string
	apiKey  string
	pivot   domain.Code
	codes   []domain.Code
	tracer  trace.Tracer
	limiter *rate.Limiter
	now     func() time.Time
}

func NewExchangeRateSource(tracer trace.Tracer, opts ExchangeRateOptions) *ExchangeRateSource {
	if opts.BaseURL == "" {
		opts.BaseURL = exchangeRateBaseURL
	}
	if opts.Pivot == "" {
		opts.Pivot = "USD"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PerMinute == 0 {
		opts.PerMinute = 30
	}
	return &ExchangeRateSource{
		client:  &http.Client{Timeout: opts.Timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  strings.TrimSpace(opts.APIKey),
		pivot:   opts.Pivot,
		codes:   opts.Codes,
		tracer:  tracer,
		limiter: newLimiter(opts.PerMinute, 1),
		now:     time.Now,
	}
}

func (s *ExchangeRateSource) Name() domain.Source { return domain.SourceExchangeRate }

func (s *ExchangeRateSource) HasCredentials() bool { return s.apiKey != "" }

func (s *ExchangeRateSource) FetchQuotes(ctx context.Context, codes ...domain.Code) ([]domain.RatePoint, error) {
	ctx, span := s.tracer.Start(ctx, "exchangerate.fetch-quotes")
	defer span.End()

	if !s.HasCredentials() {
		return nil, domain.NewFetchError(domain.SourceExchangeRate, domain.ErrAuth, errors.New("EXCHANGERATE_API_KEY is not set"))
	}
	if len(codes) == 0 {
		codes = s.codes
	}
	span.SetAttributes(attribute.Int("codes", len(codes)))

	url := fmt.Sprintf("%s/%s/latest/%s", s.baseURL, s.apiKey, s.pivot)
	body, err := doRequest(ctx, s.client, s.limiter, url, nil)
	if err != nil {
		span.RecordError(err)
		var se *statusError
		if errors.As(err, &se) {
			if fe := s.apiError(body); fe != nil {
				return nil, fe
			}
		}
		return nil, s.redact(classify(domain.SourceExchangeRate, err))
	}

	doc, err := decodeLoose(body)
	if err != nil {
		return nil, domain.NewFetchError(domain.SourceExchangeRate, domain.ErrMalformedResponse, err)
	}
	if fe := s.apiErrorFromDoc(doc); fe != nil {
		span.RecordError(fe)
		return nil, fe
	}

	points, err := s.parse(doc, codes)
	if err != nil {
		span.RecordError(err)
		return nil, domain.NewFetchError(domain.SourceExchangeRate, domain.ErrMalformedResponse, err)
	}
	return points, nil
}

func (s *ExchangeRateSource) apiError(body []byte) *domain.FetchError {
	doc, err := decodeLoose(body)
	if err != nil {
		return nil
	}
	return s.apiErrorFromDoc(doc)
}

// apiErrorFromDoc inspects {"result": "error", "error-type": "invalid-key"}.
func (s *ExchangeRateSource) apiErrorFromDoc(doc interface{}) *domain.FetchError {
	result, err := jsonpath.Get("$.result", doc)
	if err != nil {
		return nil
	}
	if r, _ := result.(string); r == "success" {
		return nil
	}
	errType := "unknown"
	if v, err := jsonpath.Get(`$["error-type"]`, doc); err == nil {
		if str, ok := v.(string); ok {
			errType = str
		}
	}
	cause := fmt.Errorf("api result %v: %s", result, errType)
	switch errType {
	case "invalid-key", "inactive-account", "missing-key":
		return domain.NewFetchError(domain.SourceExchangeRate, domain.ErrAuth, cause)
	case "quota-reached":
		return domain.NewFetchError(domain.SourceExchangeRate, domain.ErrNetwork, cause)
	default:
		return domain.NewFetchError(domain.SourceExchangeRate, domain.ErrMalformedResponse, cause)
	}
}

func (s *ExchangeRateSource) parse(doc interface{}, codes []domain.Code) ([]domain.RatePoint, error) {
	rates, err := jsonpath.Get("$.conversion_rates", doc)
	if err != nil {
		if rates, err = jsonpath.Get("$.rates", doc); err != nil {
			return nil, errors.New("response has no conversion_rates")
		}
	}
	table, ok := rates.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("conversion_rates has unexpected type %T", rates)
	}

	observed := s.now().UTC()
	if ts, err := jsonpath.Get("$.time_last_update_unix", doc); err == nil {
		if n, err := toDecimal(ts); err == nil && n.IsPositive() {
			observed = time.Unix(n.IntPart(), 0).UTC()
		}
	}

	wanted := make(map[domain.Code]bool, len(codes))
	for _, c := range codes {
		wanted[c] = true
	}

	points := make([]domain.RatePoint, 0, len(codes))
	for raw, v := range table {
		code, err := domain.NormalizeCode(raw)
		if err != nil || code == s.pivot {
			continue
		}
		if len(wanted) > 0 && !wanted[code] {
			continue
		}
		value, err := toDecimal(v)
		if err != nil || !value.IsPositive() {
			log.WithFields(log.Fields{"currency": code, "value": v}).Warn("exchangerate: dropping non-positive rate")
			continue
		}
		points = append(points, domain.RatePoint{
			From:       s.pivot,
			To:         code,
			Value:      value,
			Source:     domain.SourceExchangeRate,
			ObservedAt: observed,
		})
	}
	if len(points) == 0 {
		return nil, errors.New("response contained no requested rates")
	}
	sort.Slice(points, func(i, j int) bool { return points[i].To < points[j].To })
	return points, nil
}

// redact keeps the API key, which is part of the URL, out of error text.
func (s *ExchangeRateSource) redact(fe *domain.FetchError) *domain.FetchError {
	if fe.Err == nil || s.apiKey == "" || !strings.Contains(fe.Err.Error(), s.apiKey) {
		return fe
	}
	return domain.NewFetchError(fe.Source, fe.Kind, errors.New(strings.ReplaceAll(fe.Err.Error(), s.apiKey, "***")))
}

func decodeLoose(body []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Decimal{}, fmt.Errorf("not a number: %T", v)
	}
}
