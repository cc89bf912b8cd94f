// AngelaMos | 2026
// repository.go

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/careerpilot/ledger-service/internal/core"
)

type Repository interface {
	Create(ctx context.Context, userID string, startingBalance int64) error
	GetByUserID(ctx context.Context, userID string) (*Account, error)
	GetForUpdate(ctx context.Context, userID string) (*Account, error)
	AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error)
	UnlockTemplate(
		ctx context.Context,
		userID, templateID string,
	) (alreadyUnlocked bool, err error)
	RecordStreak(ctx context.Context, userID string, update StreakUpdate) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(
	ctx context.Context,
	userID string,
	startingBalance int64,
) error {
	query := `
		INSERT INTO accounts (user_id, balance)
		VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, userID, startingBalance); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	return nil
}

const selectAccount = `
	SELECT user_id, balance, unlocked_templates, streak_current,
	       streak_longest, streak_last_date, created_at, updated_at
	FROM accounts
	WHERE user_id = $1`

func (r *repository) GetByUserID(
	ctx context.Context,
	userID string,
) (*Account, error) {
	return r.get(ctx, selectAccount, userID)
}

// GetForUpdate reads the account under a row lock held until the
// enclosing transaction commits. Read-modify-write flows like the streak
// advance go through this so concurrent callers serialize on the row
// instead of both acting on the same stale read.
func (r *repository) GetForUpdate(
	ctx context.Context,
	userID string,
) (*Account, error) {
	return r.get(ctx, selectAccount+" FOR UPDATE", userID)
}

func (r *repository) get(
	ctx context.Context,
	query, userID string,
) (*Account, error) {
	var acct Account
	err := r.db.GetContext(ctx, &acct, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &acct, nil
}

// AdjustBalance applies delta in a single conditional update. The WHERE
// clause is the affordability check: concurrent debits against the same
// account serialize on the row and the losing one matches zero rows, so
// the balance can never go negative.
func (r *repository) AdjustBalance(
	ctx context.Context,
	userID string,
	delta int64,
) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1 AND balance + $2 >= 0
		RETURNING balance`

	var newBalance int64
	err := r.db.GetContext(ctx, &newBalance, query, userID, delta)
	if errors.Is(err, sql.ErrNoRows) {
		exists, existsErr := r.exists(ctx, userID)
		if existsErr != nil {
			return 0, existsErr
		}
		if !exists {
			return 0, fmt.Errorf("adjust balance: %w", core.ErrNotFound)
		}
		return 0, fmt.Errorf("adjust balance: %w", core.ErrInsufficientFunds)
	}
	if err != nil {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}

	return newBalance, nil
}

// UnlockTemplate adds templateID to the unlock set. The containment guard
// makes the add idempotent and race-safe: only one concurrent caller sees
// a row change, everyone else observes alreadyUnlocked.
func (r *repository) UnlockTemplate(
	ctx context.Context,
	userID, templateID string,
) (bool, error) {
	query := `
		UPDATE accounts
		SET unlocked_templates = unlocked_templates || to_jsonb($2::text),
		    updated_at = NOW()
		WHERE user_id = $1
		  AND NOT (unlocked_templates @> to_jsonb($2::text))`

	result, err := r.db.ExecContext(ctx, query, userID, templateID)
	if err != nil {
		return false, fmt.Errorf("unlock template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlock template: %w", err)
	}

	if rows == 1 {
		return false, nil
	}

	exists, err := r.exists(ctx, userID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("unlock template: %w", core.ErrNotFound)
	}

	return true, nil
}

func (r *repository) RecordStreak(
	ctx context.Context,
	userID string,
	update StreakUpdate,
) error {
	query := `
		UPDATE accounts
		SET streak_current = $2, streak_longest = $3, streak_last_date = $4,
		    updated_at = NOW()
		WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query,
		userID,
		update.Current,
		update.Longest,
		update.LastDate,
	)
	if err != nil {
		return fmt.Errorf("record streak: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record streak: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("record streak: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) exists(ctx context.Context, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE user_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID); err != nil {
		return false, fmt.Errorf("check account exists: %w", err)
	}

	return exists, nil
}
