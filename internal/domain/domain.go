package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Code is a normalized currency symbol such as USD or BTC.
type Code string

var codePattern = regexp.MustCompile(`^[A-Z0-9]{2,5}$`)

// NormalizeCode trims and upper-cases raw input and validates the result.
func NormalizeCode(raw string) (Code, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !codePattern.MatchString(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrencyCode, raw)
	}
	return Code(code), nil
}

// MustCode is NormalizeCode for constants and tests.
func MustCode(raw string) Code {
	c, err := NormalizeCode(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Code) String() string { return string(c) }

// ParseCodes splits a comma separated list, skipping blanks.
func ParseCodes(raw string) ([]Code, error) {
	var out []Code
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		code, err := NormalizeCode(part)
		if err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, nil
}

// Source identifies an external quote provider.
type Source string

const (
	SourceCoinGecko    Source = "coingecko"
	SourceExchangeRate Source = "exchangerate"
)

// DefaultSourcePriority is used to break observed_at ties.
var DefaultSourcePriority = []Source{SourceCoinGecko, SourceExchangeRate}

// ParseSource accepts the CLI spellings of a provider name.
func ParseSource(raw string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "coingecko":
		return SourceCoinGecko, nil
	case "exchangerate", "exchangerate-api", "exchangerate_api":
		return SourceExchangeRate, nil
	}
	return "", fmt.Errorf("unknown source %q", raw)
}

// ParseSources parses a comma separated priority list.
func ParseSources(raw string) ([]Source, error) {
	var out []Source
	seen := make(map[Source]bool)
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseSource(part)
		if err != nil {
			return nil, err
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

type CurrencyKind string

const (
	KindFiat   CurrencyKind = "FIAT"
	KindCrypto CurrencyKind = "CRYPTO"
)

// Currency carries display metadata for a known code.
type Currency struct {
	Code      Code
	Name      string
	Kind      CurrencyKind
	Issuer    string // fiat only
	Algorithm string // crypto only
	MarketCap float64
}

// Display renders the one-line description shown next to rates.
func (c Currency) Display() string {
	if c.Kind == KindCrypto {
		return fmt.Sprintf("[CRYPTO] %s - %s (Algo: %s, MCAP: %.2e)", c.Code, c.Name, c.Algorithm, c.MarketCap)
	}
	return fmt.Sprintf("[FIAT] %s - %s (Issuing: %s)", c.Code, c.Name, c.Issuer)
}

var registry = map[Code]Currency{
	"USD": {Code: "USD", Name: "US Dollar", Kind: KindFiat, Issuer: "United States"},
	"EUR": {Code: "EUR", Name: "Euro", Kind: KindFiat, Issuer: "Eurozone"},
	"GBP": {Code: "GBP", Name: "Pound Sterling", Kind: KindFiat, Issuer: "United Kingdom"},
	"RUB": {Code: "RUB", Name: "Russian Ruble", Kind: KindFiat, Issuer: "Russia"},
	"JPY": {Code: "JPY", Name: "Japanese Yen", Kind: KindFiat, Issuer: "Japan"},
	"CHF": {Code: "CHF", Name: "Swiss Franc", Kind: KindFiat, Issuer: "Switzerland"},
	"BTC": {Code: "BTC", Name: "Bitcoin", Kind: KindCrypto, Algorithm: "SHA-256", MarketCap: 1.12e12},
	"ETH": {Code: "ETH", Name: "Ethereum", Kind: KindCrypto, Algorithm: "Ethash", MarketCap: 4.5e11},
	"SOL": {Code: "SOL", Name: "Solana", Kind: KindCrypto, Algorithm: "Proof of History", MarketCap: 7.0e10},
}

// LookupCurrency returns registry metadata for code.
func LookupCurrency(code Code) (Currency, bool) {
	c, ok := registry[code]
	return c, ok
}

// CoinGeckoID maps currency codes to CoinGecko coin ids.
var CoinGeckoID = map[Code]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"LTC":  "litecoin",
}

// CoinGeckoIDToCode is the reverse of CoinGeckoID.
var CoinGeckoIDToCode = func() map[string]Code {
	out := make(map[string]Code, len(CoinGeckoID))
	for code, id := range CoinGeckoID {
		out[id] = code
	}
	return out
}()

// SortCodes sorts codes ascending in place and returns them.
func SortCodes(codes []Code) []Code {
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
