package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"fxledger/internal/domain"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 4

// Register creates a user and its portfolio funded with the starting balance
// in the base currency.
func (s *Service) Register(ctx context.Context, username, password string) (user *domain.User, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.register")
	defer span.End()

	username = strings.TrimSpace(username)
	fields := logrus.Fields{"username": username}
	s.actions.Begin("REGISTER", fields)
	defer func() {
		if user != nil {
			fields["user_id"] = user.ID
		}
		s.actions.End("REGISTER", fields, err)
	}()

	if username == "" {
		return nil, domain.ErrInvalidUsername
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, domain.ErrPasswordTooShort
	}
	if _, err := s.users.FindUserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUsernameTaken, username)
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: string(hash),
		RegisteredAt: s.now().UTC(),
	}
	wallet := domain.Wallet{}
	if s.startingBalance.IsPositive() {
		wallet[s.base] = s.startingBalance
	}
	if err := s.users.CreateUser(ctx, u, domain.Portfolio{UserID: u.ID, Wallet: wallet}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// Login checks the password and returns the user.
func (s *Service) Login(ctx context.Context, username, password string) (user *domain.User, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.login")
	defer span.End()

	username = strings.TrimSpace(username)
	fields := logrus.Fields{"username": username}
	s.actions.Begin("LOGIN", fields)
	defer func() {
		if user != nil {
			fields["user_id"] = user.ID
		}
		s.actions.End("LOGIN", fields, err)
	}()

	if username == "" {
		return nil, domain.ErrInvalidUsername
	}
	u, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

// User looks a user up by id.
func (s *Service) User(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindUserByID(ctx, id)
}
