package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidCurrencyCode = errors.New("invalid currency code")
	ErrSameCurrency        = errors.New("currency equals base currency")
	ErrUserNotFound        = errors.New("user not found")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrInvalidUsername     = errors.New("username must not be empty")
	ErrPasswordTooShort    = errors.New("password must be at least 4 characters")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrPortfolioNotFound   = errors.New("portfolio not found")
	ErrNotLoggedIn         = errors.New("not logged in")

	ErrConfiguration      = errors.New("configuration error")
	ErrAuth               = errors.New("authentication failed")
	ErrNetwork            = errors.New("network failure")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrNoSourcesAvailable = errors.New("no quote sources available")
	ErrStaleCache         = errors.New("rate cache is stale")
	ErrUnknownCurrency    = errors.New("unknown currency")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientHold   = errors.New("insufficient holdings")
	ErrPersistenceWrite   = errors.New("persistence write failed")
)

// ConfigurationError stops the process from starting.
type ConfigurationError struct {
	Missing []string
	Invalid map[string]string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	for _, key := range sortedKeys(e.Invalid) {
		parts = append(parts, fmt.Sprintf("invalid %s: %s", key, e.Invalid[key]))
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// FetchError is a per-source failure. Kind is one of ErrAuth, ErrNetwork, ErrMalformedResponse.
type FetchError struct {
	Source Source
	Kind   error
	Err    error
}

func NewFetchError(source Source, kind, err error) *FetchError {
	return &FetchError{Source: source, Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName is the short label used in logs and metrics.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "unknown"
	}
}

// SourceFailure is one entry of a partial-refresh warning list.
type SourceFailure struct {
	Source  Source `json:"source"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func FailureFrom(source Source, err error) SourceFailure {
	return SourceFailure{Source: source, Kind: KindName(err), Message: err.Error()}
}

func (f SourceFailure) String() string {
	return fmt.Sprintf("%s (%s): %s", f.Source, f.Kind, f.Message)
}

type NoSourcesAvailableError struct {
	Failures []SourceFailure
}

func (e *NoSourcesAvailableError) Error() string {
	if len(e.Failures) == 0 {
		return "no quote sources available: none configured"
	}
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.String())
	}
	return "no quote sources available: " + strings.Join(msgs, "; ")
}

func (e *NoSourcesAvailableError) Is(target error) bool { return target == ErrNoSourcesAvailable }

type StaleCacheError struct {
	LastRefresh time.Time
	TTL         time.Duration
}

func (e *StaleCacheError) Error() string {
	if e.LastRefresh.IsZero() {
		return "rate cache is stale: never refreshed"
	}
	return fmt.Sprintf("rate cache is stale: last refresh %s exceeds ttl %s",
		e.LastRefresh.UTC().Format(time.RFC3339), e.TTL)
}

func (e *StaleCacheError) Is(target error) bool { return target == ErrStaleCache }

type UnknownCurrencyError struct {
	Code Code
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency %s", e.Code)
}

func (e *UnknownCurrencyError) Is(target error) bool { return target == ErrUnknownCurrency }

type InsufficientFundsError struct {
	Code      Code
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s %s, required %s %s",
		e.Available.String(), e.Code, e.Required.String(), e.Code)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

type InsufficientHoldingsError struct {
	Code      Code
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("insufficient holdings: available %s %s, requested %s %s",
		e.Available.String(), e.Code, e.Requested.String(), e.Code)
}

func (e *InsufficientHoldingsError) Is(target error) bool { return target == ErrInsufficientHold }

// PersistenceWriteError leaves the target at its last good state.
type PersistenceWriteError struct {
	Target string
	Err    error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Target, e.Err)
}

func (e *PersistenceWriteError) Unwrap() []error { return []error{ErrPersistenceWrite, e.Err} }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
