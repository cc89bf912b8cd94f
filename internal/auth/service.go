// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/careerpilot/ledger-service/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
)

// AccountOpener is the slice of the ledger the auth flow needs: open an
// account with the signup bonus at registration, and pay the referrer
// when a referral code matches.
type AccountOpener interface {
	OpenAccount(ctx context.Context, userID string) (int64, error)
	CreditReferral(
		ctx context.Context,
		referrerID, description string,
	) (int64, error)
}

type Service struct {
	repo     Repository
	jwt      *JWTManager
	accounts AccountOpener
	redis    *redis.Client
}

func NewService(
	repo Repository,
	jwtManager *JWTManager,
	accounts AccountOpener,
	redisClient *redis.Client,
) *Service {
	return &Service{
		repo:     repo,
		jwt:      jwtManager,
		accounts: accounts,
		redis:    redisClient,
	}
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	referralCode, err := core.GenerateReferralCode()
	if err != nil {
		return nil, fmt.Errorf("generate referral code: %w", err)
	}

	var referrer *User
	if req.ReferralCode != "" {
		referrer, err = s.repo.GetByReferralCode(ctx, req.ReferralCode)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("lookup referrer: %w", err)
		}
	}

	user := &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(req.Email),
		PasswordHash: passwordHash,
		Name:         req.Name,
		Role:         RoleUser,
		ReferralCode: &referralCode,
	}
	if referrer != nil {
		user.ReferredBy = &referrer.ID
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	balance, err := s.accounts.OpenAccount(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("open account: %w", err)
	}

	if referrer != nil {
		_, err := s.accounts.CreditReferral(
			ctx,
			referrer.ID,
			"Referral bonus for "+user.Email,
		)
		if err != nil {
			// The new account is fine; the referrer grant can be replayed
			// by support tooling.
			slog.Error("referral credit failed",
				"referrer_id", referrer.ID,
				"error", err,
			)
		}
	}

	return s.createAuthResponse(user, balance)
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*AuthResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		user.PasswordHash = newHash
		if err := s.repo.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
			// Login succeeded; the upgrade retries on the next login.
			slog.Error("password hash upgrade failed",
				"user_id", user.ID,
				"error", err,
			)
		} else {
			slog.Debug("password hash upgraded", "user_id", user.ID)
		}
	}

	return s.createAuthResponse(user, -1)
}

// Logout blacklists the presented token until its natural expiry.
func (s *Service) Logout(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	key := "blacklist:" + jti
	if err := s.redis.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

// LogoutAll bumps the user's token version, invalidating every
// outstanding token at the next version check.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}
	return nil
}

// CurrentTokenVersion backs the verifier's version check: tokens issued
// before the user's last logout-all carry a stale version and are refused.
func (s *Service) CurrentTokenVersion(
	ctx context.Context,
	userID string,
) (int, error) {
	return s.repo.GetTokenVersion(ctx, userID)
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	jti string,
) (bool, error) {
	exists, err := s.redis.Exists(ctx, "blacklist:"+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) createAuthResponse(
	user *User,
	balance int64,
) (*AuthResponse, error) {
	token, expiresAt, err := s.jwt.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	resp := &AuthResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User: UserResponse{
			ID:           user.ID,
			Email:        user.Email,
			Name:         user.Name,
			Role:         user.Role,
			ReferralCode: user.ReferralCode,
		},
	}
	if balance >= 0 {
		resp.Balance = &balance
	}

	return resp, nil
}
