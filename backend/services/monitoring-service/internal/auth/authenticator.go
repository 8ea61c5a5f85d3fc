package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/models"
	"energymonitor/backend/services/monitoring-service/internal/repository"
)

var (
	// ErrDenied is returned for unknown users, inactive users and wrong passwords alike.
	ErrDenied = errors.New("auth: access denied")
	// ErrUserExists is returned when registering a taken username or email.
	ErrUserExists = errors.New("auth: user already exists")
)

// UserRepository defines storage contract used by the authenticator.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// Authenticator verifies credentials against stored password hashes. It never
// compares plaintext.
type Authenticator struct {
	repo      UserRepository
	hasher    Hasher
	tokenizer *TokenService
	logger    *zap.Logger
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt int64
	User      *models.User
}

// NewAuthenticator builds Authenticator.
func NewAuthenticator(repo UserRepository, hasher Hasher, tokenizer *TokenService, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		repo:      repo,
		hasher:    hasher,
		tokenizer: tokenizer,
		logger:    logger,
	}
}

// Authenticate resolves a username and password to a user id.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (int64, error) {
	user, err := a.verify(ctx, username, password)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// Login authenticates and issues a bearer token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := a.verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	token, expires, err := a.tokenizer.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	a.logger.Info("user logged in", zap.Int64("user_id", user.ID))
	return &Session{Token: token, ExpiresAt: expires.Unix(), User: user}, nil
}

// Register creates an account with a hashed password.
func (a *Authenticator) Register(ctx context.Context, user models.User, password string) (*models.User, error) {
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Username == "" || user.Email == "" {
		return nil, errors.New("auth: username and email are required")
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := a.repo.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	a.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return &user, nil
}

// Users lists every account.
func (a *Authenticator) Users(ctx context.Context) ([]models.User, error) {
	return a.repo.List(ctx)
}

func (a *Authenticator) verify(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrDenied
	}

	user, err := a.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrDenied
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrDenied
	}
	if err := a.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrDenied
	}
	return user, nil
}
