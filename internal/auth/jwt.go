// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/careerpilot/ledger-service/internal/config"
	"github.com/careerpilot/ledger-service/internal/core"
	"github.com/careerpilot/ledger-service/internal/middleware"
)

type Claims struct {
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 access tokens. Revocation works
// two ways: a per-user token version bump invalidates everything issued
// before it, and individual tokens can be blacklisted by jti until they
// expire.
type JWTManager struct {
	secret       []byte
	expire       time.Duration
	issuer       string
	audience     string
	blacklisted  func(ctx context.Context, jti string) (bool, error)
	tokenVersion func(ctx context.Context, userID string) (int, error)
}

func NewJWTManager(
	cfg config.JWTConfig,
	blacklisted func(ctx context.Context, jti string) (bool, error),
	tokenVersion func(ctx context.Context, userID string) (int, error),
) (*JWTManager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt: secret is required")
	}

	return &JWTManager{
		secret:       []byte(cfg.Secret),
		expire:       cfg.AccessTokenExpire,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		blacklisted:  blacklisted,
		tokenVersion: tokenVersion,
	}, nil
}

func (m *JWTManager) IssueAccessToken(user *User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.expire)

	claims := Claims{
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

func (m *JWTManager) VerifyAccessToken(
	ctx context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf(
					"unexpected signing method: %v",
					t.Header["alg"],
				)
			}
			return m.secret, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, core.ErrTokenInvalid
	}

	if !token.Valid {
		return nil, core.ErrTokenInvalid
	}

	if m.blacklisted != nil {
		revoked, err := m.blacklisted(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check blacklist: %w", err)
		}
		if revoked {
			return nil, core.ErrTokenRevoked
		}
	}

	if m.tokenVersion != nil {
		current, err := m.tokenVersion(ctx, claims.Subject)
		if err != nil {
			return nil, fmt.Errorf("check token version: %w", err)
		}
		if claims.TokenVersion < current {
			return nil, core.ErrTokenRevoked
		}
	}

	return &middleware.AccessTokenClaims{
		UserID:       claims.Subject,
		Role:         claims.Role,
		TokenVersion: claims.TokenVersion,
		JTI:          claims.ID,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}
