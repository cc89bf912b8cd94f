// AngelaMos | 2026
// journal.go

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/careerpilot/ledger-service/internal/core"
)

// Journal is the append-only transaction log. Entries are never mutated
// or deleted; the partial unique index on external_reference is the
// authoritative idempotency guard for gateway-verified payments.
type Journal interface {
	Append(ctx context.Context, tx *Transaction) error
	ExistsByReference(ctx context.Context, reference string) (bool, error)
	ListForUser(
		ctx context.Context,
		userID string,
		params ListParams,
	) ([]Transaction, int, error)
	SumByKindInRange(
		ctx context.Context,
		kind Kind,
		from, to time.Time,
	) (int64, error)
	SumCompletedForUser(ctx context.Context, userID string) (int64, error)
}

type journal struct {
	db core.DBTX
}

func NewJournal(db core.DBTX) Journal {
	return &journal{db: db}
}

func (j *journal) Append(ctx context.Context, tx *Transaction) error {
	query := `
		INSERT INTO transactions
			(id, user_id, amount, kind, description, status,
			 external_reference, gateway)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := j.db.GetContext(ctx, &tx.CreatedAt, query,
		tx.ID,
		tx.UserID,
		tx.Amount,
		tx.Kind,
		tx.Description,
		tx.Status,
		tx.ExternalReference,
		tx.Gateway,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("append transaction: %w", core.ErrDuplicateReference)
		}
		return fmt.Errorf("append transaction: %w", err)
	}

	return nil
}

// ExistsByReference is a cheap pre-check used to short-circuit duplicate
// verification attempts before calling the payment gateway. The unique
// index on Append remains the authoritative guard.
func (j *journal) ExistsByReference(
	ctx context.Context,
	reference string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM transactions WHERE external_reference = $1
		)`

	var exists bool
	if err := j.db.GetContext(ctx, &exists, query, reference); err != nil {
		return false, fmt.Errorf("check reference exists: %w", err)
	}

	return exists, nil
}

type ListParams struct {
	Page     int
	PageSize int
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (j *journal) ListForUser(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Transaction, int, error) {
	params.Normalize()

	countQuery := `SELECT COUNT(*) FROM transactions WHERE user_id = $1`

	var total int
	if err := j.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `
		SELECT id, user_id, amount, kind, description, status,
		       external_reference, gateway, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var txs []Transaction
	err := j.db.SelectContext(
		ctx,
		&txs,
		query,
		userID,
		params.PageSize,
		params.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	return txs, total, nil
}

func (j *journal) SumByKindInRange(
	ctx context.Context,
	kind Kind,
	from, to time.Time,
) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE kind = $1 AND status = 'completed'
		  AND created_at >= $2 AND created_at < $3`

	var sum int64
	if err := j.db.GetContext(ctx, &sum, query, kind, from, to); err != nil {
		return 0, fmt.Errorf("sum by kind: %w", err)
	}

	return sum, nil
}

// SumCompletedForUser supports reconciliation: for any user the sum of
// completed entries must equal the account balance.
func (j *journal) SumCompletedForUser(
	ctx context.Context,
	userID string,
) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND status = 'completed'`

	var sum int64
	if err := j.db.GetContext(ctx, &sum, query, userID); err != nil {
		return 0, fmt.Errorf("sum for user: %w", err)
	}

	return sum, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
