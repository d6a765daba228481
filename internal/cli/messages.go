package cli

import (
	"errors"

	"fxledger/internal/domain"
)

// Message maps ledger and rate errors to the text shown to the user.
func Message(err error) string {
	var (
		funds    *domain.InsufficientFundsError
		holdings *domain.InsufficientHoldingsError
		unknown  *domain.UnknownCurrencyError
		stale    *domain.StaleCacheError
		noSrc    *domain.NoSourcesAvailableError
		cfgErr   *domain.ConfigurationError
		writeErr *domain.PersistenceWriteError
	)
	switch {
	case errors.As(err, &funds):
		return "Insufficient funds: available " + funds.Available.String() + " " + string(funds.Code) +
			", required " + funds.Required.String() + " " + string(funds.Code)
	case errors.As(err, &holdings):
		return "Insufficient funds: available " + holdings.Available.String() + " " + string(holdings.Code) +
			", requested " + holdings.Requested.String() + " " + string(holdings.Code)
	case errors.As(err, &unknown):
		return "Unknown currency '" + string(unknown.Code) + "'. Run 'show-rates' to list supported codes."
	case errors.As(err, &stale):
		return "Rate cache is stale. Run 'update-rates' to refresh it."
	case errors.As(err, &noSrc):
		return "Rates could not be updated: " + noSrc.Error()
	case errors.As(err, &cfgErr):
		return cfgErr.Error()
	case errors.As(err, &writeErr):
		return "Could not save " + writeErr.Target + ": " + writeErr.Err.Error()
	case errors.Is(err, domain.ErrNotLoggedIn):
		return "You are not logged in. Run 'login' first."
	case errors.Is(err, domain.ErrUserNotFound):
		return "User not found."
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "Wrong password."
	case errors.Is(err, domain.ErrUsernameTaken):
		return "Username is already taken."
	case errors.Is(err, domain.ErrInvalidAmount):
		return "'amount' must be a positive number."
	case errors.Is(err, domain.ErrSameCurrency):
		return "Cannot trade the base currency against itself."
	default:
		return err.Error()
	}
}
