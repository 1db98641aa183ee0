// Package userstore keeps user accounts in a JSON file and issues bearer
// tokens for authenticated sessions. Sessions live in memory only.
package userstore

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

const defaultTokenTTL = 24 * time.Hour

type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type session struct {
	username  string
	expiresAt time.Time
}

type Store struct {
	mu       sync.Mutex
	path     string
	users    map[string]User
	sessions map[string]session
	tokenTTL time.Duration
	now      func() time.Time
}

type Option interface {
	apply(s *Store)
}

var (
	_ Option = tokenTTLOption(0)
	_ Option = nowFuncOption(nil)
)

type tokenTTLOption time.Duration

func (o tokenTTLOption) apply(s *Store) {
	s.tokenTTL = time.Duration(o)
}

func WithTokenTTL(ttl time.Duration) tokenTTLOption {
	return tokenTTLOption(ttl)
}

type nowFuncOption func() time.Time

func (o nowFuncOption) apply(s *Store) {
	s.now = o
}

func WithNowFunc(now func() time.Time) nowFuncOption {
	return nowFuncOption(now)
}

// New loads the user file at path, starting empty when it does not exist.
func New(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:     path,
		users:    make(map[string]User),
		sessions: make(map[string]session),
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
	}
	for _, o := range opts {
		o.apply(s)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.users)
}

// save must be called with s.mu held.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

func (s *Store) Register(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.users[username] = User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	return s.save()
}

// Login verifies the credentials and issues a session token.
func (s *Store) Login(username, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	token := uuid.NewString()
	s.sessions[token] = session{
		username:  username,
		expiresAt: s.now().Add(s.tokenTTL),
	}
	return token, nil
}

// Verify resolves a session token to its username. Expired sessions are
// deleted by the Verify call that observes them.
func (s *Store) Verify(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return "", false
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return "", false
	}
	return sess.username, true
}

// Logout revokes a session token. Revoking an unknown token is a no-op.
func (s *Store) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}
