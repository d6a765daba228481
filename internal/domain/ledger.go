package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           string    `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	RegisteredAt time.Time `json:"registration_date"`
}

// Wallet maps currency codes to non-negative balances.
type Wallet map[Code]decimal.Decimal

// Balance returns zero for codes not present.
func (w Wallet) Balance(code Code) decimal.Decimal {
	if b, ok := w[code]; ok {
		return b
	}
	return decimal.Zero
}

func (w Wallet) Clone() Wallet {
	out := make(Wallet, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Codes returns the wallet's codes sorted ascending.
func (w Wallet) Codes() []Code {
	out := make([]Code, 0, len(w))
	for code := range w {
		out = append(out, code)
	}
	return SortCodes(out)
}

// Equal compares balances numerically; missing entries count as zero.
func (w Wallet) Equal(other Wallet) bool {
	for code, b := range w {
		if !b.Equal(other.Balance(code)) {
			return false
		}
	}
	for code, b := range other {
		if !b.Equal(w.Balance(code)) {
			return false
		}
	}
	return true
}

type Portfolio struct {
	UserID string `json:"user_id"`
	Wallet Wallet `json:"wallets"`
}

// Clone returns a portfolio whose wallet can be mutated independently.
func (p *Portfolio) Clone() *Portfolio {
	return &Portfolio{UserID: p.UserID, Wallet: p.Wallet.Clone()}
}
