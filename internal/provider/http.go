package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"fxledger/internal/domain"

	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// statusError is a non-200 response.
type statusError struct {
	code int
	body []byte
}

func (e *statusError) Error() string {
	body := e.body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Sprintf("API error %d: %s", e.code, string(body))
}

func doRequest(ctx context.Context, client *http.Client, limiter *rate.Limiter, url string, header http.Header) ([]byte, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, &statusError{code: resp.StatusCode, body: body}
	}
	return body, nil
}

// classify maps transport and status failures onto the fetch error kinds.
func classify(source domain.Source, err error) *domain.FetchError {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fe
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusUnauthorized || se.code == http.StatusForbidden:
			return domain.NewFetchError(source, domain.ErrAuth, err)
		case se.code == http.StatusTooManyRequests || se.code >= 500:
			return domain.NewFetchError(source, domain.ErrNetwork, err)
		default:
			return domain.NewFetchError(source, domain.ErrMalformedResponse, err)
		}
	}

	// timeouts, refused connections, cancelled waits
	return domain.NewFetchError(source, domain.ErrNetwork, err)
}
