package service

import (
	"context"
	"log/slog"
	"strings"

	"townsquare/internal/auth"
	"townsquare/internal/middleware"
	"townsquare/internal/models"
	"townsquare/internal/observability"
	"townsquare/internal/repository"
	"townsquare/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer is the part of the token service account flows need.
type TokenIssuer interface {
	IssueAccessToken(subject string, level int) (string, error)
	IssueRefreshToken(subject string, level int) (string, error)
	Refresh(refreshToken string) (string, error)
}

// SignupInput is a registration request.
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// Session is what a successful login hands back.
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

// AuthService registers users and exchanges passwords for tokens.
type AuthService struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	opts       options
	bcryptCost int
	// dummyHash is compared against when the account does not exist so both
	// failure paths spend the same time in bcrypt.
	dummyHash []byte
}

// NewAuthService returns a new AuthService.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, opts ...Option) *AuthService {
	return newAuthService(users, tokens, bcrypt.DefaultCost, opts...)
}

func newAuthService(users repository.UserRepository, tokens TokenIssuer, cost int, opts ...Option) *AuthService {
	dummy, err := bcrypt.GenerateFromPassword([]byte("townsquare-dummy-password"), cost)
	if err != nil {
		panic(err)
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		opts:       buildOptions(opts),
		bcryptCost: cost,
		dummyHash:  dummy,
	}
}

// Signup creates a newcomer account.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hashed),
		Level:    models.LevelNewcomer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "User registered", slog.String("user_id", user.ID))
	return user, nil
}

// Login checks a password and issues an access and a refresh token. Unknown
// email and wrong password fail identically. A running suspension blocks login.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		observability.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	hash := s.dummyHash
	if user != nil {
		hash = []byte(user.Password)
	}
	cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if user == nil || cmpErr != nil {
		observability.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	if user.IsSuspended(s.opts.now()) {
		observability.LoginAttempts.WithLabelValues("suspended").Inc()
		middleware.Logger.InfoContext(ctx, "Login refused for suspended account",
			slog.String("user_id", user.ID),
			slog.Time("suspended_until", *user.SuspendedUntil),
		)
		return nil, models.NewSuspendedError(*user.SuspendedUntil)
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Level)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID, user.Level)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	observability.LoginAttempts.WithLabelValues("success").Inc()
	observability.TokensIssued.WithLabelValues(string(auth.KindAccess)).Inc()
	observability.TokensIssued.WithLabelValues(string(auth.KindRefresh)).Inc()

	return &Session{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// Refresh trades a refresh token for a new access token. The refresh token
// itself is not rotated.
func (s *AuthService) Refresh(_ context.Context, refreshToken string) (string, error) {
	access, err := s.tokens.Refresh(refreshToken)
	if err != nil {
		return "", models.NewUnauthorizedError("Authorization required")
	}
	observability.TokensIssued.WithLabelValues(string(auth.KindAccess)).Inc()
	return access, nil
}
