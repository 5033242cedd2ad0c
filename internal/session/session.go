package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var ErrEmptyAccessToken = errors.New("access token must not be empty")

// Session is the credential pair of the signed-in user. Both tokens are opaque.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (s Session) Empty() bool {
	return s.AccessToken == ""
}

// ExpiresAt reads the exp claim when the access token is a JWT.
// The signature is not verified; the backend remains the authority.
func (s Session) ExpiresAt() (time.Time, bool) {
	if s.AccessToken == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// Store is the single source of truth for the current credential pair.
// It loads the persisted session lazily on first use.
type Store struct {
	persister Persister
	logger    *zap.Logger
	now       func() time.Time

	once       sync.Once
	mu         sync.RWMutex
	current    Session
	generation uint64
	listeners  []func(Session)
}

func New(persister Persister, logger *zap.Logger) *Store {
	if persister == nil {
		persister = NewMemory()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		persister: persister,
		logger:    logger,
		now:       time.Now,
	}
}

// Set stores both tokens and overwrites any prior session. The in-memory
// session is updated even when persisting fails.
func (s *Store) Set(access, refresh string) error {
	if access == "" {
		return ErrEmptyAccessToken
	}
	s.load()

	next := Session{AccessToken: access, RefreshToken: refresh}

	s.mu.Lock()
	s.current = next
	s.generation++
	listeners := append([]func(Session){}, s.listeners...)
	s.mu.Unlock()

	err := s.persister.Save(next)
	if err != nil {
		s.logger.Warn("persisting session failed", zap.Error(err))
	}

	notify(listeners, next)
	return err
}

// Clear removes both tokens. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	s.load()

	s.mu.Lock()
	wasSet := !s.current.Empty()
	s.current = Session{}
	if wasSet {
		s.generation++
	}
	listeners := append([]func(Session){}, s.listeners...)
	s.mu.Unlock()

	err := s.persister.Remove()
	if err != nil {
		s.logger.Warn("removing persisted session failed", zap.Error(err))
	}

	if wasSet {
		notify(listeners, Session{})
	}
	return err
}

func (s *Store) AccessToken() (string, bool) {
	cur := s.Current()
	return cur.AccessToken, cur.AccessToken != ""
}

func (s *Store) RefreshToken() (string, bool) {
	cur := s.Current()
	return cur.RefreshToken, cur.RefreshToken != ""
}

func (s *Store) IsAuthenticated() bool {
	_, ok := s.AccessToken()
	return ok
}

func (s *Store) Current() Session {
	s.load()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Generation changes every time the session is replaced or cleared.
func (s *Store) Generation() uint64 {
	s.load()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// OnChange registers fn to be called after every Set and every Clear that removed a session.
func (s *Store) OnChange(fn func(Session)) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) load() {
	s.once.Do(func() {
		loaded, err := s.persister.Load()
		if err != nil {
			s.logger.Warn("loading persisted session failed, starting anonymous", zap.Error(err))
			return
		}
		if loaded.Empty() {
			return
		}

		if exp, ok := loaded.ExpiresAt(); ok && !exp.After(s.now()) {
			s.logger.Debug("dropping expired session", zap.Time("expired_at", exp))
			if err := s.persister.Remove(); err != nil {
				s.logger.Warn("removing expired session failed", zap.Error(err))
			}
			return
		}

		s.mu.Lock()
		s.current = loaded
		s.mu.Unlock()
	})
}

func notify(listeners []func(Session), s Session) {
	for _, fn := range listeners {
		fn(s)
	}
}
