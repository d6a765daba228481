package storage

import (
	"context"
	"sort"
	"sync"

	"fxledger/internal/domain"
)

// LedgerFileStore keeps users and portfolios in two JSON files.
type LedgerFileStore struct {
	usersPath      string
	portfoliosPath string
	mu             sync.Mutex
}

func NewLedgerFileStore(usersPath, portfoliosPath string) *LedgerFileStore {
	return &LedgerFileStore{usersPath: usersPath, portfoliosPath: portfoliosPath}
}

func (s *LedgerFileStore) loadUsers() ([]domain.User, error) {
	var users []domain.User
	_, err := readJSON(s.usersPath, &users)
	return users, err
}

func (s *LedgerFileStore) loadPortfolios() ([]domain.Portfolio, error) {
	var portfolios []domain.Portfolio
	_, err := readJSON(s.portfoliosPath, &portfolios)
	return portfolios, err
}

// CreateUser stores user and its initial portfolio. The portfolio file is
// written first so a user record never exists without a portfolio.
func (s *LedgerFileStore) CreateUser(ctx context.Context, user domain.User, portfolio domain.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
	}

	portfolios, err := s.loadPortfolios()
	if err != nil {
		return err
	}
	portfolios = upsertPortfolio(portfolios, portfolio)
	if err := writeJSONAtomic(s.portfoliosPath, portfolios); err != nil {
		return &domain.PersistenceWriteError{Target: "portfolios", Err: err}
	}

	users = append(users, user)
	if err := writeJSONAtomic(s.usersPath, users); err != nil {
		return &domain.PersistenceWriteError{Target: "users", Err: err}
	}
	return nil
}

func (s *LedgerFileStore) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findUser(func(u domain.User) bool { return u.Username == username })
}

func (s *LedgerFileStore) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findUser(func(u domain.User) bool { return u.ID == id })
}

func (s *LedgerFileStore) findUser(match func(domain.User) bool) (*domain.User, error) {
	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *LedgerFileStore) LoadPortfolio(ctx context.Context, userID string) (*domain.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	portfolios, err := s.loadPortfolios()
	if err != nil {
		return nil, err
	}
	for _, p := range portfolios {
		if p.UserID == userID {
			if p.Wallet == nil {
				p.Wallet = domain.Wallet{}
			}
			return &p, nil
		}
	}
	return nil, domain.ErrPortfolioNotFound
}

// SavePortfolio atomically replaces the stored portfolio of p.UserID.
func (s *LedgerFileStore) SavePortfolio(ctx context.Context, p *domain.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	portfolios, err := s.loadPortfolios()
	if err != nil {
		return err
	}
	portfolios = upsertPortfolio(portfolios, *p)
	if err := writeJSONAtomic(s.portfoliosPath, portfolios); err != nil {
		return &domain.PersistenceWriteError{Target: "portfolios", Err: err}
	}
	return nil
}

func upsertPortfolio(list []domain.Portfolio, p domain.Portfolio) []domain.Portfolio {
	for i := range list {
		if list[i].UserID == p.UserID {
			list[i] = p
			return list
		}
	}
	list = append(list, p)
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list
}
