package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fxledger/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type StorageSuite struct {
	suite.Suite
	dir string
	ctx context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.ctx = context.Background()
}

func (s *StorageSuite) TestRateStoreMissingFileIsEmpty() {
	store := NewRateFileStore(filepath.Join(s.dir, "rates.json"))
	table, err := store.Load(s.ctx)
	s.Require().NoError(err)
	s.False(table.Refreshed())
	s.NotNil(table.Rates)
}

func (s *StorageSuite) TestRateStoreRoundTrip() {
	store := NewRateFileStore(filepath.Join(s.dir, "nested", "rates.json"))
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	table := domain.NewRateTable("USD")
	table.LastRefresh = now
	table.Rates["BTC"] = domain.RateEntry{Rate: decimal.RequireFromString("65000.5"), Source: domain.SourceCoinGecko, ObservedAt: now}

	s.Require().NoError(store.Save(s.ctx, table))
	loaded, err := store.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.Code("USD"), loaded.Pivot)
	s.True(loaded.LastRefresh.Equal(now))
	s.True(loaded.Rates["BTC"].Rate.Equal(decimal.RequireFromString("65000.5")))
}

func (s *StorageSuite) TestFailedReplaceKeepsLastGoodFile() {
	path := filepath.Join(s.dir, "rates.json")
	store := NewRateFileStore(path)
	good := domain.NewRateTable("USD")
	good.LastRefresh = time.Now().UTC()
	good.Rates["BTC"] = domain.RateEntry{Rate: decimal.NewFromInt(1)}
	s.Require().NoError(store.Save(s.ctx, good))

	orig := renameFile
	renameFile = func(string, string) error { return errors.New("crash") }
	defer func() { renameFile = orig }()

	bad := good.Clone()
	bad.Rates["BTC"] = domain.RateEntry{Rate: decimal.NewFromInt(2)}
	s.Require().Error(store.Save(s.ctx, bad))

	loaded, err := store.Load(s.ctx)
	s.Require().NoError(err)
	s.True(loaded.Rates["BTC"].Rate.Equal(decimal.NewFromInt(1)))

	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	s.Len(entries, 1, "temp file must be cleaned up")
}

func (s *StorageSuite) TestRateStoreCorruptFile() {
	path := filepath.Join(s.dir, "rates.json")
	s.Require().NoError(os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := NewRateFileStore(path).Load(s.ctx)
	s.Error(err)
}

func (s *StorageSuite) TestHistoryAppendOnly() {
	store := NewHistoryFileStore(filepath.Join(s.dir, "history.json"))
	for _, id := range []string{"a", "b", "c"} {
		s.Require().NoError(store.Append(s.ctx, domain.HistoryEntry{ID: id, Pivot: "USD"}))
	}

	all, err := store.List(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("a", all[0].ID)
	s.Equal("c", all[2].ID)

	last, err := store.List(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal([]string{"b", "c"}, []string{last[0].ID, last[1].ID})
}

func (s *StorageSuite) TestLedgerCreateAndFind() {
	store := NewLedgerFileStore(filepath.Join(s.dir, "users.json"), filepath.Join(s.dir, "portfolios.json"))
	user := domain.User{ID: "u1", Username: "alice", PasswordHash: "hash"}
	portfolio := domain.Portfolio{UserID: "u1", Wallet: domain.Wallet{"USD": decimal.NewFromInt(1000)}}

	s.Require().NoError(store.CreateUser(s.ctx, user, portfolio))
	s.ErrorIs(store.CreateUser(s.ctx, domain.User{ID: "u2", Username: "alice"}, domain.Portfolio{UserID: "u2"}), domain.ErrUsernameTaken)

	found, err := store.FindUserByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("u1", found.ID)

	byID, err := store.FindUserByID(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)

	_, err = store.FindUserByUsername(s.ctx, "bob")
	s.ErrorIs(err, domain.ErrUserNotFound)

	p, err := store.LoadPortfolio(s.ctx, "u1")
	s.Require().NoError(err)
	s.True(p.Wallet.Balance("USD").Equal(decimal.NewFromInt(1000)))

	_, err = store.LoadPortfolio(s.ctx, "u2")
	s.ErrorIs(err, domain.ErrPortfolioNotFound)
}

func (s *StorageSuite) TestLedgerSavePortfolioReplaces() {
	store := NewLedgerFileStore(filepath.Join(s.dir, "users.json"), filepath.Join(s.dir, "portfolios.json"))
	s.Require().NoError(store.CreateUser(s.ctx, domain.User{ID: "u1", Username: "alice"}, domain.Portfolio{UserID: "u1", Wallet: domain.Wallet{}}))

	updated := &domain.Portfolio{UserID: "u1", Wallet: domain.Wallet{
		"USD": decimal.RequireFromString("350"),
		"BTC": decimal.RequireFromString("0.01"),
	}}
	s.Require().NoError(store.SavePortfolio(s.ctx, updated))

	p, err := store.LoadPortfolio(s.ctx, "u1")
	s.Require().NoError(err)
	s.True(p.Wallet.Equal(updated.Wallet))
}

func (s *StorageSuite) TestSession() {
	store := NewSessionFileStore(filepath.Join(s.dir, "session.json"))
	_, err := store.Load()
	s.ErrorIs(err, domain.ErrNotLoggedIn)

	s.Require().NoError(store.Save(Session{UserID: "u1", Username: "alice"}))
	sess, err := store.Load()
	s.Require().NoError(err)
	s.Equal("alice", sess.Username)

	s.Require().NoError(store.Clear())
	s.Require().NoError(store.Clear())
	_, err = store.Load()
	s.ErrorIs(err, domain.ErrNotLoggedIn)
}
