// AngelaMos | 2026
// dto.go

package ledger

import (
	"time"
)

type DeductRequest struct {
	Cost        int64  `json:"cost"         validate:"required,gt=0"`
	ServiceName string `json:"service_name" validate:"required,min=1,max=100"`
}

type CreditRequest struct {
	UserID      string `json:"user_id"     validate:"omitempty,uuid4"`
	Amount      int64  `json:"amount"      validate:"required,gt=0"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

type WatchAdRequest struct {
	Type string `json:"type" validate:"required,oneof=standard premium"`
}

type VerifyPaymentRequest struct {
	Reference string `json:"reference" validate:"required,min=1,max=128"`
}

type UnlockTemplateRequest struct {
	TemplateID string `json:"template_id" validate:"required,min=1,max=64"`
	Cost       int64  `json:"cost"        validate:"gte=0"`
}

type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

type CreditResponse struct {
	Balance          int64 `json:"balance"`
	Added            int64 `json:"added"`
	AlreadyProcessed bool  `json:"already_processed,omitempty"`
}

type AdRewardResponse struct {
	Balance     int64 `json:"balance"`
	Added       int64 `json:"added"`
	Streak      int   `json:"streak"`
	StreakBonus int64 `json:"streak_bonus"`
}

type UnlockTemplateResponse struct {
	Balance           int64    `json:"balance"`
	UnlockedTemplates []string `json:"unlocked_templates"`
	AlreadyUnlocked   bool     `json:"already_unlocked"`
}

type TransactionResponse struct {
	ID                string    `json:"id"`
	Amount            int64     `json:"amount"`
	Kind              Kind      `json:"kind"`
	Description       string    `json:"description"`
	Status            Status    `json:"status"`
	ExternalReference *string   `json:"external_reference,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func ToTransactionResponse(t *Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                t.ID,
		Amount:            t.Amount,
		Kind:              t.Kind,
		Description:       t.Description,
		Status:            t.Status,
		ExternalReference: t.ExternalReference,
		CreatedAt:         t.CreatedAt,
	}
}

func ToTransactionResponseList(txs []Transaction) []TransactionResponse {
	responses := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		responses = append(responses, ToTransactionResponse(&t))
	}
	return responses
}
