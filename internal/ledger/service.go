// AngelaMos | 2026
// service.go

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/careerpilot/ledger-service/internal/account"
	"github.com/careerpilot/ledger-service/internal/core"
	"github.com/careerpilot/ledger-service/internal/settings"
)

const gatewayPaystack = "paystack"

// Service implements the entitlement operations. Every operation that
// touches a balance writes its journal entry in the same database
// transaction, so the account and the journal stay consistent even when
// one of the two writes fails.
type Service struct {
	store    Store
	verifier Verifier
	settings *settings.Service

	verifyTimeout     time.Duration
	fallbackRateMinor int64

	// now is injectable for streak tests.
	now func() time.Time
}

func NewService(
	store Store,
	verifier Verifier,
	settingsSvc *settings.Service,
	verifyTimeout time.Duration,
	fallbackRateMinor int64,
) *Service {
	return &Service{
		store:             store,
		verifier:          verifier,
		settings:          settingsSvc,
		verifyTimeout:     verifyTimeout,
		fallbackRateMinor: fallbackRateMinor,
		now:               time.Now,
	}
}

func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	acct, err := s.store.Accounts().GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

func (s *Service) Account(
	ctx context.Context,
	userID string,
) (*account.Account, error) {
	return s.store.Accounts().GetByUserID(ctx, userID)
}

// OpenAccount creates the account with the configured signup bonus and
// journals the grant, keeping the balance equal to the journal sum from
// the first day.
func (s *Service) OpenAccount(ctx context.Context, userID string) (int64, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return 0, err
	}

	bonus := cfg.Credits.SignupBonus

	err = s.store.InTx(ctx, func(st Store) error {
		if err := st.Accounts().Create(ctx, userID, bonus); err != nil {
			return err
		}

		if bonus == 0 {
			return nil
		}

		return st.Journal().Append(ctx, &Transaction{
			ID:          uuid.New().String(),
			UserID:      userID,
			Amount:      bonus,
			Kind:        KindPurchase,
			Description: "Signup bonus",
			Status:      StatusCompleted,
		})
	})
	if err != nil {
		return 0, err
	}

	return bonus, nil
}

// DeductForUsage charges cost credits for a paid service call. The
// conditional balance update is the authoritative affordability check;
// the re-read on failure only supplies the shortfall for the client.
func (s *Service) DeductForUsage(
	ctx context.Context,
	userID string,
	cost int64,
	serviceName string,
) (int64, error) {
	if cost <= 0 {
		return 0, fmt.Errorf("deduct: cost must be positive: %w", core.ErrInvalidInput)
	}

	var newBalance int64

	err := s.store.InTx(ctx, func(st Store) error {
		balance, err := st.Accounts().AdjustBalance(ctx, userID, -cost)
		if errors.Is(err, core.ErrInsufficientFunds) {
			acct, getErr := st.Accounts().GetByUserID(ctx, userID)
			if getErr != nil {
				return getErr
			}
			return core.InsufficientCreditsError(cost, acct.Balance)
		}
		if err != nil {
			return err
		}

		newBalance = balance

		return st.Journal().Append(ctx, &Transaction{
			ID:          uuid.New().String(),
			UserID:      userID,
			Amount:      -cost,
			Kind:        KindUsage,
			Description: "Used for " + serviceName,
			Status:      StatusCompleted,
		})
	})
	if err != nil {
		return 0, err
	}

	return newBalance, nil
}

type CreditResult struct {
	Balance          int64
	Added            int64
	AlreadyProcessed bool
}

// CreditForPurchase credits amount, using externalRef (when present) as a
// global idempotency key. A duplicate reference is a benign outcome: the
// purchase was already honored, the balance is left unchanged.
func (s *Service) CreditForPurchase(
	ctx context.Context,
	userID string,
	amount int64,
	description string,
	externalRef, gateway *string,
) (CreditResult, error) {
	if amount <= 0 {
		return CreditResult{}, fmt.Errorf(
			"credit: amount must be positive: %w",
			core.ErrInvalidInput,
		)
	}

	if externalRef != nil {
		exists, err := s.store.Journal().ExistsByReference(ctx, *externalRef)
		if err != nil {
			return CreditResult{}, err
		}
		if exists {
			return s.alreadyProcessed(ctx, userID)
		}
	}

	var newBalance int64

	err := s.store.InTx(ctx, func(st Store) error {
		balance, err := st.Accounts().AdjustBalance(ctx, userID, amount)
		if err != nil {
			return err
		}
		newBalance = balance

		return st.Journal().Append(ctx, &Transaction{
			ID:                uuid.New().String(),
			UserID:            userID,
			Amount:            amount,
			Kind:              KindPurchase,
			Description:       description,
			Status:            StatusCompleted,
			ExternalReference: externalRef,
			Gateway:           gateway,
		})
	})
	if errors.Is(err, core.ErrDuplicateReference) {
		// Lost the race against a concurrent delivery of the same
		// reference; the rollback restored the balance.
		return s.alreadyProcessed(ctx, userID)
	}
	if err != nil {
		return CreditResult{}, err
	}

	return CreditResult{Balance: newBalance, Added: amount}, nil
}

func (s *Service) alreadyProcessed(
	ctx context.Context,
	userID string,
) (CreditResult, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return CreditResult{}, err
	}
	return CreditResult{Balance: balance, AlreadyProcessed: true}, nil
}

// VerifyAndCreditPayment confirms a payment reference with the gateway
// and credits the account at most once per reference, no matter how many
// times the client (or a retried webhook) calls it. The balance is never
// touched before the gateway answers definitively.
func (s *Service) VerifyAndCreditPayment(
	ctx context.Context,
	userID, reference string,
) (CreditResult, error) {
	exists, err := s.store.Journal().ExistsByReference(ctx, reference)
	if err != nil {
		return CreditResult{}, err
	}
	if exists {
		return s.alreadyProcessed(ctx, userID)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	payment, err := s.verifier.Verify(verifyCtx, reference)
	if err != nil {
		slog.Warn("payment verification error",
			"reference", reference,
			"error", err,
		)
		return CreditResult{}, core.VerificationFailedError(reference)
	}

	if !payment.Completed {
		return CreditResult{}, core.VerificationFailedError(reference)
	}

	credits := s.creditsFromPayment(payment)
	if credits <= 0 {
		return CreditResult{}, core.VerificationFailedError(reference)
	}

	gateway := gatewayPaystack
	return s.CreditForPurchase(
		ctx,
		userID,
		credits,
		"Credit purchase via "+gateway,
		&reference,
		&gateway,
	)
}

// creditsFromPayment prefers the credits amount pinned in the gateway
// metadata at checkout; absent that, it converts the verified amount at
// the configured minor-units-per-credit rate.
func (s *Service) creditsFromPayment(p VerifiedPayment) int64 {
	if raw, ok := p.Metadata["credits"]; ok {
		if credits, err := strconv.ParseInt(raw, 10, 64); err == nil && credits > 0 {
			return credits
		}
	}
	return p.AmountMinor / s.fallbackRateMinor
}

type AdRewardResult struct {
	Balance      int64
	TotalAwarded int64
	Streak       int
	StreakBonus  int64
}

// RewardAdWatch grants the base reward for every watch and advances the
// daily streak at most once per calendar day. The milestone bonus is paid
// only the moment the streak first reaches a milestone length.
func (s *Service) RewardAdWatch(
	ctx context.Context,
	userID, watchType string,
) (AdRewardResult, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return AdRewardResult{}, err
	}

	policy := cfg.Credits
	baseReward := policy.AdReward(watchType)
	today := dateOnly(s.now())

	var result AdRewardResult

	err = s.store.InTx(ctx, func(st Store) error {
		// The locking read serializes concurrent watches on the account
		// row: the second transaction sees the first one's streak commit,
		// so the daily increment and its milestone bonus happen once.
		acct, err := st.Accounts().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		streak, incremented := nextStreak(acct, today)
		longest := acct.StreakLongest
		if streak > longest {
			longest = streak
		}

		var bonus int64
		if incremented {
			bonus = policy.MilestoneBonus(streak)
		}

		balance, err := st.Accounts().AdjustBalance(ctx, userID, baseReward+bonus)
		if err != nil {
			return err
		}

		err = st.Accounts().RecordStreak(ctx, userID, account.StreakUpdate{
			Current:  streak,
			Longest:  longest,
			LastDate: today,
		})
		if err != nil {
			return err
		}

		err = st.Journal().Append(ctx, &Transaction{
			ID:          uuid.New().String(),
			UserID:      userID,
			Amount:      baseReward,
			Kind:        KindAdReward,
			Description: fmt.Sprintf("Ad reward (%s)", watchType),
			Status:      StatusCompleted,
		})
		if err != nil {
			return err
		}

		if bonus > 0 {
			err = st.Journal().Append(ctx, &Transaction{
				ID:          uuid.New().String(),
				UserID:      userID,
				Amount:      bonus,
				Kind:        KindStreakBonus,
				Description: fmt.Sprintf("%d-day streak bonus", streak),
				Status:      StatusCompleted,
			})
			if err != nil {
				return err
			}
		}

		result = AdRewardResult{
			Balance:      balance,
			TotalAwarded: baseReward + bonus,
			Streak:       streak,
			StreakBonus:  bonus,
		}
		return nil
	})
	if err != nil {
		return AdRewardResult{}, err
	}

	return result, nil
}

// nextStreak computes the streak after a watch on day today. Yesterday's
// reward continues the run, a reward earlier today leaves it untouched,
// anything older restarts at one.
func nextStreak(acct *account.Account, today time.Time) (int, bool) {
	if acct.StreakLastDate == nil {
		return 1, true
	}

	last := dateOnly(*acct.StreakLastDate)
	switch {
	case last.Equal(today):
		return acct.StreakCurrent, false
	case last.Equal(today.AddDate(0, 0, -1)):
		return acct.StreakCurrent + 1, true
	default:
		return 1, true
	}
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

type UnlockResult struct {
	Balance           int64
	UnlockedTemplates []string
	AlreadyUnlocked   bool
}

// UnlockTemplate charges cost once per template. Re-unlocking is a no-op:
// the set membership is checked-and-added atomically, and when the caller
// already owns the template no deduction happens.
func (s *Service) UnlockTemplate(
	ctx context.Context,
	userID, templateID string,
	cost int64,
) (UnlockResult, error) {
	if cost < 0 {
		return UnlockResult{}, fmt.Errorf(
			"unlock: cost must not be negative: %w",
			core.ErrInvalidInput,
		)
	}

	var result UnlockResult

	err := s.store.InTx(ctx, func(st Store) error {
		alreadyUnlocked, err := st.Accounts().UnlockTemplate(ctx, userID, templateID)
		if err != nil {
			return err
		}

		if alreadyUnlocked {
			acct, getErr := st.Accounts().GetByUserID(ctx, userID)
			if getErr != nil {
				return getErr
			}
			result = UnlockResult{
				Balance:           acct.Balance,
				UnlockedTemplates: acct.UnlockedTemplates,
				AlreadyUnlocked:   true,
			}
			return nil
		}

		balance, err := st.Accounts().AdjustBalance(ctx, userID, -cost)
		if errors.Is(err, core.ErrInsufficientFunds) {
			acct, getErr := st.Accounts().GetByUserID(ctx, userID)
			if getErr != nil {
				return getErr
			}
			// Rolling back also undoes the set-add above.
			return core.InsufficientCreditsError(cost, acct.Balance)
		}
		if err != nil {
			return err
		}

		if cost > 0 {
			err = st.Journal().Append(ctx, &Transaction{
				ID:          uuid.New().String(),
				UserID:      userID,
				Amount:      -cost,
				Kind:        KindUsage,
				Description: "Unlocked template " + templateID,
				Status:      StatusCompleted,
			})
			if err != nil {
				return err
			}
		}

		acct, err := st.Accounts().GetByUserID(ctx, userID)
		if err != nil {
			return err
		}

		result = UnlockResult{
			Balance:           balance,
			UnlockedTemplates: acct.UnlockedTemplates,
		}
		return nil
	})
	if err != nil {
		return UnlockResult{}, err
	}

	return result, nil
}

// CreditReferral grants the configured referral bonus to the referrer.
func (s *Service) CreditReferral(
	ctx context.Context,
	referrerID, description string,
) (int64, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return 0, err
	}

	bonus := cfg.Credits.ReferralBonus
	if bonus <= 0 {
		return s.Balance(ctx, referrerID)
	}

	var newBalance int64

	err = s.store.InTx(ctx, func(st Store) error {
		balance, err := st.Accounts().AdjustBalance(ctx, referrerID, bonus)
		if err != nil {
			return err
		}
		newBalance = balance

		return st.Journal().Append(ctx, &Transaction{
			ID:          uuid.New().String(),
			UserID:      referrerID,
			Amount:      bonus,
			Kind:        KindReferralBonus,
			Description: description,
			Status:      StatusCompleted,
		})
	})
	if err != nil {
		return 0, err
	}

	return newBalance, nil
}

func (s *Service) Transactions(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Transaction, int, error) {
	return s.store.Journal().ListForUser(ctx, userID, params)
}

type ReconcileResult struct {
	UserID     string
	Balance    int64
	JournalSum int64
	Consistent bool
}

// Reconcile compares the cached balance against the journal sum for one
// user. A mismatch means a bug, not a correctable state.
func (s *Service) Reconcile(
	ctx context.Context,
	userID string,
) (ReconcileResult, error) {
	acct, err := s.store.Accounts().GetByUserID(ctx, userID)
	if err != nil {
		return ReconcileResult{}, err
	}

	sum, err := s.store.Journal().SumCompletedForUser(ctx, userID)
	if err != nil {
		return ReconcileResult{}, err
	}

	return ReconcileResult{
		UserID:     userID,
		Balance:    acct.Balance,
		JournalSum: sum,
		Consistent: acct.Balance == sum,
	}, nil
}

func (s *Service) SumByKindInRange(
	ctx context.Context,
	kind Kind,
	from, to time.Time,
) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("sum: invalid kind %q: %w", kind, core.ErrInvalidInput)
	}
	return s.store.Journal().SumByKindInRange(ctx, kind, from, to)
}
