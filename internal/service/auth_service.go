package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"wager-ledger/config"
	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports"
	"wager-ledger/pkg/apperror"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

const minPasswordLength = 8

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	accounts ports.AccountStore
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	authCfg  config.AuthConfig
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	accounts ports.AccountStore,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	authCfg config.AuthConfig,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		accounts: accounts,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		authCfg:  authCfg,
	}
}

// Register creates an account with a zero balance. Usernames listed in
// auth.admin_usernames get the admin role.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.Account, error) {
	username := strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(username) {
		return nil, apperror.Validation("username must be 3-32 letters, digits or underscores")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	role := domain.RoleUser
	if s.authCfg.IsAdmin(username) {
		role = domain.RoleAdmin
	}

	now := time.Now().UTC()
	account := &domain.Account{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		AvatarRef:    req.AvatarRef,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			return nil, apperror.ErrUsernameExists()
		}
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("create account: %w", err))
	}

	return account, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	account, err := s.accounts.Get(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", time.Time{}, apperror.ErrStorageUnavailable(fmt.Errorf("find account: %w", err))
	}
	if account == nil {
		_, _ = s.hashSvc.Verify(password, dummyPasswordHash)
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, account.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(account.Username, account.Role)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}
