// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"

	"github.com/careerpilot/ledger-service/internal/core"
)

type fakeUserRepo struct {
	byEmail     map[string]*User
	byCode      map[string]*User
	hashUpdates int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*User),
		byCode:  make(map[string]*User),
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *User) error {
	if _, ok := r.byEmail[user.Email]; ok {
		return core.ErrDuplicateKey
	}
	r.byEmail[user.Email] = user
	if user.ReferralCode != nil {
		r.byCode[*user.ReferralCode] = user
	}
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, core.ErrNotFound
}

// GetByEmail returns a copy, like a row scan would; mutating the result
// does not touch the stored user.
func (r *fakeUserRepo) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByReferralCode(
	ctx context.Context,
	code string,
) (*User, error) {
	u, ok := r.byCode[code]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetTokenVersion(
	ctx context.Context,
	id string,
) (int, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return u.TokenVersion, nil
}

func (r *fakeUserRepo) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	u.TokenVersion++
	return nil
}

func (r *fakeUserRepo) UpdatePasswordHash(
	ctx context.Context,
	id, hash string,
) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	r.hashUpdates++
	return nil
}

type fakeAccounts struct {
	opened    []string
	referrals []string
}

func (a *fakeAccounts) OpenAccount(
	ctx context.Context,
	userID string,
) (int64, error) {
	a.opened = append(a.opened, userID)
	return 20, nil
}

func (a *fakeAccounts) CreditReferral(
	ctx context.Context,
	referrerID, description string,
) (int64, error) {
	a.referrals = append(a.referrals, referrerID)
	return 30, nil
}

func newAuthService(t *testing.T) (*Service, *fakeUserRepo, *fakeAccounts) {
	t.Helper()

	repo := newFakeUserRepo()
	manager, err := NewJWTManager(testJWTConfig(), nil, repo.GetTokenVersion)
	require.NoError(t, err)

	accounts := &fakeAccounts{}
	return NewService(repo, manager, accounts, nil), repo, accounts
}

func TestRegister_OpensAccountWithSignupBonus(t *testing.T) {
	svc, _, accounts := newAuthService(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "New@Example.com",
		Password: "correct-horse-battery",
		Name:     "New User",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "new@example.com", resp.User.Email)
	require.NotNil(t, resp.User.ReferralCode)
	assert.Len(t, *resp.User.ReferralCode, 12)
	require.NotNil(t, resp.Balance)
	assert.Equal(t, int64(20), *resp.Balance)
	assert.Equal(t, []string{resp.User.ID}, accounts.opened)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthService(t)

	req := RegisterRequest{
		Email:    "dup@example.com",
		Password: "correct-horse-battery",
		Name:     "First",
	}
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRegister_CreditsReferrer(t *testing.T) {
	svc, _, accounts := newAuthService(t)

	referrer, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "referrer@example.com",
		Password: "correct-horse-battery",
		Name:     "Referrer",
	})
	require.NoError(t, err)
	require.NotNil(t, referrer.User.ReferralCode)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Email:        "friend@example.com",
		Password:     "correct-horse-battery",
		Name:         "Friend",
		ReferralCode: *referrer.User.ReferralCode,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{referrer.User.ID}, accounts.referrals)
}

func TestRegister_UnknownReferralCodeIsIgnored(t *testing.T) {
	svc, _, accounts := newAuthService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:        "solo@example.com",
		Password:     "correct-horse-battery",
		Name:         "Solo",
		ReferralCode: "NOSUCHCODE",
	})
	require.NoError(t, err)
	assert.Empty(t, accounts.referrals)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "login@example.com",
		Password: "correct-horse-battery",
		Name:     "Login User",
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "Login@Example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Nil(t, resp.Balance)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "login@example.com",
		Password: "wrong-password-here",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "irrelevant-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutAll_RevokesOutstandingTokens(t *testing.T) {
	svc, _, _ := newAuthService(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "everywhere@example.com",
		Password: "correct-horse-battery",
		Name:     "Everywhere",
	})
	require.NoError(t, err)

	claims, err := svc.jwt.VerifyAccessToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.LogoutAll(context.Background(), claims.UserID))

	_, err = svc.jwt.VerifyAccessToken(context.Background(), resp.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

// legacyHash encodes password with outdated argon2id parameters so the
// login path has an upgrade to perform.
func legacyHash(t *testing.T, password string) string {
	t.Helper()

	salt := []byte("0123456789abcdef")
	hash := argon2.IDKey([]byte(password), salt, 1, 32*1024, 2, 32)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		32*1024,
		1,
		2,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func TestLogin_PersistsUpgradedPasswordHash(t *testing.T) {
	svc, repo, _ := newAuthService(t)

	old := legacyHash(t, "correct-horse-battery")
	require.NoError(t, repo.Create(context.Background(), &User{
		ID:           "legacy-user",
		Email:        "legacy@example.com",
		PasswordHash: old,
		Name:         "Legacy",
		Role:         RoleUser,
	}))

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "legacy@example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.hashUpdates, "upgraded hash must be written back")

	stored, err := repo.GetByEmail(context.Background(), "legacy@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, old, stored.PasswordHash)

	// The stored hash now carries current parameters: verification
	// succeeds with no further upgrade suggested.
	valid, rehash, err := core.VerifyPasswordTimingSafe(
		"correct-horse-battery",
		&stored.PasswordHash,
	)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Empty(t, rehash)
}

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		code, err := core.GenerateReferralCode()
		require.NoError(t, err)
		assert.Len(t, code, 12)
		assert.Equal(t, strings.ToUpper(code), code)
		assert.False(t, seen[code], "codes must not repeat")
		seen[code] = true
	}
}
