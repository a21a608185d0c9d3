package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid token")
)

const issuer = "prometrage"

// Session identifies an authenticated device. There is no per-user identity:
// every holder of the shared password gets the same rights.
type Session struct {
	ID        string
	ExpiresAt time.Time
}

type Manager struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(password, secret string, ttl time.Duration) *Manager {
	return &Manager{
		password: []byte(password),
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *Manager) CheckPassword(candidate string) error {
	if len(m.password) == 0 || subtle.ConstantTimeCompare(m.password, []byte(candidate)) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

// Login exchanges the shared password for a signed session token.
func (m *Manager) Login(password string) (string, Session, error) {
	if err := m.CheckPassword(password); err != nil {
		return "", Session{}, err
	}

	now := m.now()
	session := Session{ID: uuid.NewString(), ExpiresAt: now.Add(m.ttl)}
	claims := jwt.RegisteredClaims{
		ID:        session.ID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign token: %w", err)
	}
	return token, session, nil
}

func (m *Manager) Parse(token string) (Session, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}
	return Session{ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}
