// Package present formats ledger values for people. Amounts are rounded only
// here, never inside calculations.
package present

import (
	"time"

	"fxledger/internal/domain"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	balancePlaces = 4
	valuePlaces   = 2
	ratePlaces    = 8
)

// Money formats a value in code. Fiat codes known to go-money use their
// symbol and minor units; anything else gets two places and the code.
func Money(value decimal.Decimal, code domain.Code) string {
	if c, ok := domain.LookupCurrency(code); !ok || c.Kind == domain.KindFiat {
		if cur := money.GetCurrency(string(code)); cur != nil {
			minor := value.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
			return cur.Formatter().Format(minor.IntPart())
		}
	}
	return value.StringFixed(valuePlaces) + " " + string(code)
}

// Balance shows a wallet balance with four places.
func Balance(value decimal.Decimal) string {
	return value.StringFixed(balancePlaces)
}

// Rate keeps enough places for small cross rates such as USD→BTC.
func Rate(value decimal.Decimal) string {
	if value.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return value.StringFixed(balancePlaces)
	}
	return value.StringFixed(ratePlaces)
}

func Timestamp(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
