package logging

import (
	"errors"

	"fxledger/internal/domain"

	"github.com/sirupsen/logrus"
)

// ActionLog records usecase boundaries (BUY, SELL, REGISTER, LOGIN, ...) as
// one structured line per finished action.
type ActionLog struct {
	logger  logrus.FieldLogger
	verbose bool
}

func NewActionLog(logger logrus.FieldLogger, verbose bool) *ActionLog {
	return &ActionLog{logger: logger, verbose: verbose}
}

func (a *ActionLog) Begin(action string, fields logrus.Fields) {
	a.logger.WithFields(a.filter(fields)).WithField("action", action).Debug("action started")
}

func (a *ActionLog) End(action string, fields logrus.Fields, err error) {
	entry := a.logger.WithFields(a.filter(fields)).WithField("action", action)
	if err != nil {
		entry.WithFields(logrus.Fields{
			"result":     "ERROR",
			"error_type": ErrorType(err),
			"error":      err.Error(),
		}).Warn(action)
		return
	}
	entry.WithField("result", "OK").Info(action)
}

func (a *ActionLog) filter(fields logrus.Fields) logrus.Fields {
	if a.verbose {
		return fields
	}
	out := make(logrus.Fields, len(fields))
	for k, v := range fields {
		if k == "balance_before" || k == "balance_after" {
			continue
		}
		out[k] = v
	}
	return out
}

// ErrorType names the taxonomy kind of err for logs.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrStaleCache):
		return "StaleCacheError"
	case errors.Is(err, domain.ErrUnknownCurrency):
		return "UnknownCurrencyError"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "InsufficientFundsError"
	case errors.Is(err, domain.ErrInsufficientHold):
		return "InsufficientHoldingsError"
	case errors.Is(err, domain.ErrPersistenceWrite):
		return "PersistenceWriteError"
	case errors.Is(err, domain.ErrNoSourcesAvailable):
		return "NoSourcesAvailableError"
	case errors.Is(err, domain.ErrAuth):
		return "AuthError"
	case errors.Is(err, domain.ErrNetwork):
		return "NetworkError"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "MalformedResponseError"
	case errors.Is(err, domain.ErrConfiguration):
		return "ConfigurationError"
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidCurrencyCode),
		errors.Is(err, domain.ErrSameCurrency), errors.Is(err, domain.ErrInvalidUsername),
		errors.Is(err, domain.ErrPasswordTooShort):
		return "ValidationError"
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUserNotFound):
		return "AuthenticationError"
	default:
		return "Error"
	}
}
