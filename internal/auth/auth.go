// Package auth issues and verifies the bearer tokens that guard the API.
// Users are configured as username to bcrypt hash pairs; tokens are HS256 JWTs.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

// DefaultTokenTTL applies when Config.TokenTTL is zero.
const DefaultTokenTTL = time.Hour

const issuer = "sam-opportunity-crawler"

var (
	// ErrInvalidCredentials covers unknown users and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for malformed, expired, or forged tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// dummyHash keeps unknown-user logins as slow as wrong-password ones.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z5iZ0ZzH1j6cE9uP4v5oM8cW")

// Config drives a Service.
type Config struct {
	Enabled  bool
	Secret   string
	TokenTTL time.Duration
	// Users maps usernames to bcrypt hashes.
	Users map[string]string
}

// Token is the login response.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service authenticates users and validates tokens.
type Service struct {
	enabled bool
	secret  []byte
	ttl     time.Duration
	users   map[string]string
	clock   crawler.Clock
}

// NewService validates cfg. A disabled service lets every request through.
func NewService(cfg Config, clock crawler.Clock) (*Service, error) {
	if cfg.Enabled && strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: secret is required when enabled")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	users := make(map[string]string, len(cfg.Users))
	for name, hash := range cfg.Users {
		users[strings.ToLower(strings.TrimSpace(name))] = hash
	}
	return &Service{
		enabled: cfg.Enabled,
		secret:  []byte(cfg.Secret),
		ttl:     cfg.TokenTTL,
		users:   users,
		clock:   clock,
	}, nil
}

// Enabled reports whether bearer tokens are enforced.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Login checks the password and issues a token for username.
func (s *Service) Login(username, password string) (Token, error) {
	hash, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}
	return s.Issue(username)
}

// Issue signs a token for subject.
func (s *Service) Issue(subject string) (Token, error) {
	now := s.clock.Now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Token: signed, ExpiresAt: expires.UTC().Truncate(time.Second)}, nil
}

// Verify parses raw and returns its subject.
func (s *Service) Verify(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// HashPassword produces a bcrypt hash for the users config.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

type contextKey struct{}

// Subject returns the authenticated username stored by Middleware.
func Subject(ctx context.Context) string {
	sub, _ := ctx.Value(contextKey{}).(string)
	return sub
}

// WithSubject stores sub on ctx.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, contextKey{}, sub)
}

// Middleware rejects requests without a valid bearer token.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.enabled {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			unauthorized(w, "missing bearer token")
			return
		}
		sub, err := s.Verify(strings.TrimSpace(raw))
		if err != nil {
			unauthorized(w, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sub)))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="samcrawler"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
