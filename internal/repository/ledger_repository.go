package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fxledger/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const uniqueViolation = "23505"

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LedgerRepository stores users and portfolios in Postgres. Wallets are kept
// as JSONB with decimal strings so no precision is lost.
type LedgerRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewLedgerRepository(pool PgxPool, tracer trace.Tracer) *LedgerRepository {
	return &LedgerRepository{pool: pool, tracer: tracer}
}

// CreateUser inserts the user and its portfolio in one statement.
func (r *LedgerRepository) CreateUser(ctx context.Context, user domain.User, portfolio domain.Portfolio) error {
	ctx, span := r.tracer.Start(ctx, "ledger-repo.create-user")
	defer span.End()

	wallet, err := encodeWallet(portfolio.Wallet)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`WITH u AS (
		     INSERT INTO users (id, username, password_hash, registered_at)
		     VALUES ($1, $2, $3, $4)
		     RETURNING id
		 )
		 INSERT INTO portfolios (user_id, wallet)
		 SELECT id, $5::jsonb FROM u`,
		user.ID, user.Username, user.PasswordHash, user.RegisteredAt, wallet,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrUsernameTaken
	}
	if err != nil {
		span.RecordError(err)
		return &domain.PersistenceWriteError{Target: "users", Err: err}
	}
	return nil
}

func (r *LedgerRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "ledger-repo.find-user-by-username")
	defer span.End()

	return r.scanUser(r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, registered_at FROM users WHERE username = $1`,
		username,
	))
}

func (r *LedgerRepository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "ledger-repo.find-user-by-id")
	defer span.End()

	return r.scanUser(r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, registered_at FROM users WHERE id = $1`,
		id,
	))
}

func (r *LedgerRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var registered time.Time
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &registered)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.RegisteredAt = registered.UTC()
	return &u, nil
}

func (r *LedgerRepository) LoadPortfolio(ctx context.Context, userID string) (*domain.Portfolio, error) {
	ctx, span := r.tracer.Start(ctx, "ledger-repo.load-portfolio")
	defer span.End()

	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT wallet FROM portfolios WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPortfolioNotFound
	}
	if err != nil {
		return nil, err
	}
	wallet := domain.Wallet{}
	if err := json.Unmarshal(raw, &wallet); err != nil {
		return nil, fmt.Errorf("decode wallet of %s: %w", userID, err)
	}
	return &domain.Portfolio{UserID: userID, Wallet: wallet}, nil
}

// SavePortfolio replaces the stored wallet in a single UPDATE.
func (r *LedgerRepository) SavePortfolio(ctx context.Context, p *domain.Portfolio) error {
	ctx, span := r.tracer.Start(ctx, "ledger-repo.save-portfolio")
	defer span.End()

	wallet, err := encodeWallet(p.Wallet)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE portfolios SET wallet = $2::jsonb, updated_at = NOW() WHERE user_id = $1`,
		p.UserID, wallet,
	)
	if err != nil {
		span.RecordError(err)
		return &domain.PersistenceWriteError{Target: "portfolio", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPortfolioNotFound
	}
	return nil
}

func encodeWallet(w domain.Wallet) (string, error) {
	if w == nil {
		w = domain.Wallet{}
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("encode wallet: %w", err)
	}
	return string(raw), nil
}
