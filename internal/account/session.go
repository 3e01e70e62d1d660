package account

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
	"github.com/jwplayer/ott-web-app-sub004/internal/store"
)

const sessionKey = "auth"

// ErrTokenExpired is returned when storing a token whose exp is in the past.
var ErrTokenExpired = errors.New("access token expired")

type sessionRecord struct {
	AccessToken string           `json:"accessToken"`
	Customer    *domain.Customer `json:"customer,omitempty"`
}

// Session holds the signed-in customer and their access token. It is
// persisted so that a restart, or another process sharing the storage,
// sees the same login.
type Session struct {
	storage *store.Store
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	token    string
	expires  time.Time // zero when the token carries no exp claim
	customer *domain.Customer
}

func NewSession(storage *store.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{storage: storage, logger: logger, now: time.Now}
}

// Load replaces the in-memory session with the persisted one
func (s *Session) Load() {
	rec, ok := store.Get[sessionRecord](s.storage, sessionKey)
	if !ok || rec.AccessToken == "" {
		s.reset()
		return
	}

	expires, err := tokenExpiry(rec.AccessToken)
	if err != nil {
		s.logger.Warn("discarding unreadable stored access token", "error", err)
		s.reset()
		return
	}

	s.mu.Lock()
	s.token = rec.AccessToken
	s.expires = expires
	s.customer = rec.Customer
	s.mu.Unlock()
}

// Set stores a new login. The token must be a readable JWT that has not expired.
func (s *Session) Set(token string, customer domain.Customer) error {
	expires, err := tokenExpiry(token)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	if !expires.IsZero() && !s.now().Before(expires) {
		return ErrTokenExpired
	}

	s.mu.Lock()
	s.token = token
	s.expires = expires
	s.customer = &customer
	s.mu.Unlock()

	s.storage.SetItem(sessionKey, sessionRecord{AccessToken: token, Customer: &customer})
	return nil
}

// Clear forgets the login in memory and in storage
func (s *Session) Clear() {
	s.reset()
	s.storage.RemoveItem(sessionKey)
}

func (s *Session) reset() {
	s.mu.Lock()
	s.token = ""
	s.expires = time.Time{}
	s.customer = nil
	s.mu.Unlock()
}

// Token returns the access token, or "" when signed out or expired
func (s *Session) Token() string {
	if !s.IsAuthenticated() {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Customer() (domain.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.customer == nil {
		return domain.Customer{}, false
	}
	return *s.customer, true
}

// IsAuthenticated reports whether a token is present and not expired
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	return s.expires.IsZero() || s.now().Before(s.expires)
}

// tokenExpiry reads the exp claim without verifying the signature; the
// token is only ever verified by the API that issued it.
func tokenExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
