// Package auth issues and validates signed session tokens.
package auth

import (
	"errors"
	"strings"
	"time"

	"townsquare/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind separates access tokens from refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Config is the immutable signing configuration.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
}

// Identity is what a valid token proves about its bearer.
type Identity struct {
	Subject string
	Level   int
}

// Claims is the JWT payload.
type Claims struct {
	Level int       `json:"lvl"`
	Kind  TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// Option customizes a TokenService.
type Option func(*TokenService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// TokenService signs and verifies HS256 tokens. It holds no mutable state and
// is safe for concurrent use.
type TokenService struct {
	secret []byte
	cfg    Config
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService validates cfg and returns a ready service.
func NewTokenService(cfg Config, opts ...Option) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}

	s := &TokenService{
		secret: []byte(cfg.Secret),
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
	}
	s.parser = jwt.NewParser(parserOpts...)

	return s, nil
}

// IssueAccessToken mints a short-lived token for subject.
func (s *TokenService) IssueAccessToken(subject string, level int) (string, error) {
	return s.issue(subject, level, KindAccess, s.cfg.AccessTTL)
}

// IssueRefreshToken mints a long-lived token usable only to obtain access tokens.
func (s *TokenService) IssueRefreshToken(subject string, level int) (string, error) {
	return s.issue(subject, level, KindRefresh, s.cfg.RefreshTTL)
}

func (s *TokenService) issue(subject string, level int, kind TokenKind, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: subject is required")
	}

	now := s.now()
	claims := Claims{
		Level: level,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate checks an access token. Every failure is ErrInvalidCredential.
func (s *TokenService) Validate(raw string) (Identity, error) {
	return s.validate(raw, KindAccess)
}

// ValidateRefresh checks a refresh token. Every failure is ErrInvalidCredential.
func (s *TokenService) ValidateRefresh(raw string) (Identity, error) {
	return s.validate(raw, KindRefresh)
}

// Refresh exchanges a refresh token for a new access token with the same
// subject and level. Refresh tokens stay usable until they expire.
func (s *TokenService) Refresh(refreshToken string) (string, error) {
	id, err := s.ValidateRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	return s.IssueAccessToken(id.Subject, id.Level)
}

func (s *TokenService) validate(raw string, want TokenKind) (Identity, error) {
	raw = StripBearer(raw)
	if raw == "" {
		return Identity{}, models.ErrInvalidCredential
	}

	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, models.ErrInvalidCredential
	}
	if claims.Kind != want || claims.Subject == "" || !models.ValidLevel(claims.Level) {
		return Identity{}, models.ErrInvalidCredential
	}

	return Identity{Subject: claims.Subject, Level: claims.Level}, nil
}

// StripBearer removes an optional "Bearer" scheme prefix. A scheme with no
// token yields "".
func StripBearer(raw string) string {
	raw = strings.TrimSpace(raw)
	fields := strings.Fields(raw)
	if len(fields) > 0 && strings.EqualFold(fields[0], "bearer") {
		return strings.TrimSpace(raw[len(fields[0]):])
	}
	return raw
}
