package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/Agroly/store/internal/commerce"
	"github.com/Agroly/store/internal/entity"
	"github.com/Agroly/store/internal/localstate"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const (
	userKey  = "user"
	tokenKey = "token"

	minPasswordLen = 5
)

// emailRe mirrors the storefront's client-side check.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrShortPassword = errors.New("password must be at least 5 characters long")
)

// Authenticator is the slice of the commerce client the session needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*commerce.AuthResponse, error)
	Register(ctx context.Context, reg commerce.Registration) (*commerce.AuthResponse, error)
}

// Session owns the authenticated identity for the current gateway session:
// the in-memory user plus the persisted user/token pair. Validation happens
// locally before any network call; auth failures come back as a single
// message from the remote API.
type Session struct {
	mu    sync.Mutex
	state localstate.Store
	auth  Authenticator
	user  *entity.User
	token string
}

func New(state localstate.Store, auth Authenticator) *Session {
	return &Session{state: state, auth: auth}
}

// Restore loads the persisted session. Malformed user state or an expired
// token degrades silently to unauthenticated.
func (s *Session) Restore() {
	token, ok, err := s.state.Get(tokenKey)
	if err != nil || !ok {
		return
	}
	if expired(token) {
		logger.Info().Msg("Persisted session token expired, logging out")
		s.clearPersisted()
		return
	}

	raw, ok, err := s.state.Get(userKey)
	if err != nil || !ok {
		return
	}

	var user entity.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		logger.Warn().Err(err).Msg("Persisted user is malformed, starting unauthenticated")
		return
	}

	s.mu.Lock()
	s.user = &user
	s.token = token
	s.mu.Unlock()
}

// Login validates the email locally, then exchanges credentials with the
// remote API and persists the returned session.
func (s *Session) Login(ctx context.Context, email, password string) (*entity.User, error) {
	if !emailRe.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	auth, err := s.auth.Login(ctx, email, password)
	if err != nil {
		logger.Error().Err(err).Msg("Login failed")
		return nil, err
	}
	return s.install(auth)
}

// Register validates email and password locally, then creates the account
// and persists the returned session.
func (s *Session) Register(ctx context.Context, reg commerce.Registration) (*entity.User, error) {
	if !emailRe.MatchString(reg.Email) {
		return nil, ErrInvalidEmail
	}
	if len(reg.Password) < minPasswordLen {
		return nil, ErrShortPassword
	}

	auth, err := s.auth.Register(ctx, reg)
	if err != nil {
		logger.Error().Err(err).Msg("Registration failed")
		return nil, err
	}
	return s.install(auth)
}

// Logout drops the session. The cart deliberately survives login state
// changes, so nothing else is touched.
func (s *Session) Logout() {
	s.clearPersisted()
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.mu.Unlock()
}

// Current returns the authenticated user, if any.
func (s *Session) Current() (entity.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return entity.User{}, false
	}
	return *s.user, true
}

// Token returns the opaque session credential, if any. Presence implies
// authenticated; the gateway cannot verify it.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *Session) install(auth *commerce.AuthResponse) (*entity.User, error) {
	raw, err := json.Marshal(auth.User)
	if err != nil {
		return nil, err
	}
	if err := s.state.Set(tokenKey, auth.Token); err != nil {
		logger.Error().Err(err).Msg("Error persisting session token")
		return nil, err
	}
	if err := s.state.Set(userKey, string(raw)); err != nil {
		logger.Error().Err(err).Msg("Error persisting user")
		return nil, err
	}

	user := auth.User
	s.mu.Lock()
	s.user = &user
	s.token = auth.Token
	s.mu.Unlock()
	return &user, nil
}

func (s *Session) clearPersisted() {
	if err := s.state.Delete(tokenKey); err != nil {
		logger.Error().Err(err).Msg("Error deleting persisted token")
	}
	if err := s.state.Delete(userKey); err != nil {
		logger.Error().Err(err).Msg("Error deleting persisted user")
	}
}

// expired peeks at the token claims without verifying the signature. Tokens
// are opaque by contract; when one happens to be a JWT with an exp claim we
// use it to avoid restoring a session the server will reject anyway.
func expired(token string) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
