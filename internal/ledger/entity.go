// AngelaMos | 2026
// entity.go

package ledger

import (
	"time"
)

// Kind is the closed set of ledger event types. Free-form strings are not
// accepted anywhere past the HTTP boundary.
type Kind string

const (
	KindPurchase      Kind = "purchase"
	KindUsage         Kind = "usage"
	KindAdReward      Kind = "ad_reward"
	KindStreakBonus   Kind = "streak_bonus"
	KindDailyLogin    Kind = "daily_login"
	KindReferralBonus Kind = "referral_bonus"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindUsage, KindAdReward,
		KindStreakBonus, KindDailyLogin, KindReferralBonus:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transaction is an immutable journal entry. Amount is signed: negative
// for deductions, positive for credits. Corrections are made with
// compensating entries, never edits.
type Transaction struct {
	ID                string    `db:"id"`
	UserID            string    `db:"user_id"`
	Amount            int64     `db:"amount"`
	Kind              Kind      `db:"kind"`
	Description       string    `db:"description"`
	Status            Status    `db:"status"`
	ExternalReference *string   `db:"external_reference"`
	Gateway           *string   `db:"gateway"`
	CreatedAt         time.Time `db:"created_at"`
}
