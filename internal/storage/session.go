package storage

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"fxledger/internal/domain"
)

// Session is the logged-in CLI user.
type Session struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	LoginAt  time.Time `json:"login_at"`
}

type SessionFileStore struct {
	path string
}

func NewSessionFileStore(path string) *SessionFileStore {
	return &SessionFileStore{path: path}
}

// Load returns domain.ErrNotLoggedIn when no session is stored.
func (s *SessionFileStore) Load() (*Session, error) {
	var sess Session
	found, err := readJSON(s.path, &sess)
	if err != nil {
		return nil, err
	}
	if !found || sess.UserID == "" {
		return nil, domain.ErrNotLoggedIn
	}
	return &sess, nil
}

func (s *SessionFileStore) Save(sess Session) error {
	return writeJSONAtomic(s.path, sess)
}

func (s *SessionFileStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
