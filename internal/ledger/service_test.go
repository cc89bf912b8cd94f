// AngelaMos | 2026
// service_test.go

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerpilot/ledger-service/internal/account"
	"github.com/careerpilot/ledger-service/internal/core"
	"github.com/careerpilot/ledger-service/internal/settings"
)

// fakeStore replicates the storage semantics the service relies on: the
// conditional balance update that refuses to go negative, the unique
// external-reference guard, and transaction rollback on error.
type fakeStore struct {
	txMu sync.Mutex

	mu       sync.Mutex
	accounts map[string]*account.Account
	entries  []*Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]*account.Account)}
}

func (f *fakeStore) Accounts() account.Repository { return &fakeAccounts{f} }
func (f *fakeStore) Journal() Journal             { return &fakeJournal{f} }

func (f *fakeStore) InTx(ctx context.Context, fn func(Store) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	snapshot := f.clone()
	if err := fn(f); err != nil {
		f.mu.Lock()
		f.accounts = snapshot.accounts
		f.entries = snapshot.entries
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) clone() *fakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()

	accounts := make(map[string]*account.Account, len(f.accounts))
	for id, acct := range f.accounts {
		copied := *acct
		copied.UnlockedTemplates = append(
			account.TemplateSet(nil),
			acct.UnlockedTemplates...,
		)
		accounts[id] = &copied
	}

	entries := make([]*Transaction, len(f.entries))
	copy(entries, f.entries)

	return &fakeStore{accounts: accounts, entries: entries}
}

func (f *fakeStore) seedAccount(userID string, balance int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[userID] = &account.Account{
		UserID:            userID,
		Balance:           balance,
		UnlockedTemplates: account.TemplateSet{},
	}
}

func (f *fakeStore) seedStreakAccount(
	userID string,
	balance int64,
	streak int,
	lastDate time.Time,
) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[userID] = &account.Account{
		UserID:            userID,
		Balance:           balance,
		UnlockedTemplates: account.TemplateSet{},
		StreakCurrent:     streak,
		StreakLongest:     streak,
		StreakLastDate:    &lastDate,
	}
}

func (f *fakeStore) entriesFor(userID string) []*Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Transaction
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

type fakeAccounts struct{ store *fakeStore }

func (a *fakeAccounts) Create(
	ctx context.Context,
	userID string,
	startingBalance int64,
) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	if _, ok := a.store.accounts[userID]; ok {
		return core.ErrDuplicateKey
	}
	a.store.accounts[userID] = &account.Account{
		UserID:            userID,
		Balance:           startingBalance,
		UnlockedTemplates: account.TemplateSet{},
	}
	return nil
}

func (a *fakeAccounts) GetByUserID(
	ctx context.Context,
	userID string,
) (*account.Account, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	acct, ok := a.store.accounts[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *acct
	copied.UnlockedTemplates = append(
		account.TemplateSet(nil),
		acct.UnlockedTemplates...,
	)
	return &copied, nil
}

func (a *fakeAccounts) GetForUpdate(
	ctx context.Context,
	userID string,
) (*account.Account, error) {
	// fakeStore serializes whole transactions, so the plain read already
	// behaves like a locked one here.
	return a.GetByUserID(ctx, userID)
}

func (a *fakeAccounts) AdjustBalance(
	ctx context.Context,
	userID string,
	delta int64,
) (int64, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	acct, ok := a.store.accounts[userID]
	if !ok {
		return 0, core.ErrNotFound
	}
	if acct.Balance+delta < 0 {
		return 0, core.ErrInsufficientFunds
	}
	acct.Balance += delta
	return acct.Balance, nil
}

func (a *fakeAccounts) UnlockTemplate(
	ctx context.Context,
	userID, templateID string,
) (bool, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	acct, ok := a.store.accounts[userID]
	if !ok {
		return false, core.ErrNotFound
	}
	if acct.UnlockedTemplates.Contains(templateID) {
		return true, nil
	}
	acct.UnlockedTemplates = append(acct.UnlockedTemplates, templateID)
	return false, nil
}

func (a *fakeAccounts) RecordStreak(
	ctx context.Context,
	userID string,
	update account.StreakUpdate,
) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	acct, ok := a.store.accounts[userID]
	if !ok {
		return core.ErrNotFound
	}
	acct.StreakCurrent = update.Current
	acct.StreakLongest = update.Longest
	lastDate := update.LastDate
	acct.StreakLastDate = &lastDate
	return nil
}

// rowLockStore drops fakeStore's coarse transaction lock so concurrent
// transactions interleave the way READ COMMITTED allows. Only GetForUpdate
// serializes: it takes the account row lock and holds it until the
// transaction ends, matching SELECT ... FOR UPDATE.
type rowLockStore struct {
	*fakeStore
	rowMu   sync.Mutex
	readers chan struct{}
}

func newRowLockStore() *rowLockStore {
	return &rowLockStore{
		fakeStore: newFakeStore(),
		readers:   make(chan struct{}),
	}
}

func (s *rowLockStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx := &rowLockTx{store: s}
	defer tx.release()
	return fn(tx)
}

type rowLockTx struct {
	store  *rowLockStore
	locked bool
}

func (t *rowLockTx) Accounts() account.Repository {
	return &interleavingAccounts{
		fakeAccounts: &fakeAccounts{t.store.fakeStore},
		tx:           t,
	}
}

func (t *rowLockTx) Journal() Journal { return &fakeJournal{t.store.fakeStore} }

func (t *rowLockTx) InTx(ctx context.Context, fn func(Store) error) error {
	return fn(t)
}

func (t *rowLockTx) release() {
	if t.locked {
		t.locked = false
		t.store.rowMu.Unlock()
	}
}

type interleavingAccounts struct {
	*fakeAccounts
	tx *rowLockTx
}

func (a *interleavingAccounts) GetForUpdate(
	ctx context.Context,
	userID string,
) (*account.Account, error) {
	if !a.tx.locked {
		a.tx.store.rowMu.Lock()
		a.tx.locked = true
	}
	return a.fakeAccounts.GetByUserID(ctx, userID)
}

// GetByUserID pairs up with a concurrent reader before returning,
// reproducing the window a plain SELECT leaves between read and write.
func (a *interleavingAccounts) GetByUserID(
	ctx context.Context,
	userID string,
) (*account.Account, error) {
	acct, err := a.fakeAccounts.GetByUserID(ctx, userID)
	select {
	case a.tx.store.readers <- struct{}{}:
	case <-a.tx.store.readers:
	case <-time.After(100 * time.Millisecond):
	}
	return acct, err
}

type fakeJournal struct{ store *fakeStore }

func (j *fakeJournal) Append(ctx context.Context, tx *Transaction) error {
	j.store.mu.Lock()
	defer j.store.mu.Unlock()

	if tx.ExternalReference != nil {
		for _, existing := range j.store.entries {
			if existing.ExternalReference != nil &&
				*existing.ExternalReference == *tx.ExternalReference {
				return core.ErrDuplicateReference
			}
		}
	}

	tx.CreatedAt = time.Now()
	copied := *tx
	j.store.entries = append(j.store.entries, &copied)
	return nil
}

func (j *fakeJournal) ExistsByReference(
	ctx context.Context,
	reference string,
) (bool, error) {
	j.store.mu.Lock()
	defer j.store.mu.Unlock()

	for _, e := range j.store.entries {
		if e.ExternalReference != nil && *e.ExternalReference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (j *fakeJournal) ListForUser(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Transaction, int, error) {
	j.store.mu.Lock()
	defer j.store.mu.Unlock()

	var all []Transaction
	for i := len(j.store.entries) - 1; i >= 0; i-- {
		if j.store.entries[i].UserID == userID {
			all = append(all, *j.store.entries[i])
		}
	}

	params.Normalize()
	total := len(all)
	start := params.Offset()
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (j *fakeJournal) SumByKindInRange(
	ctx context.Context,
	kind Kind,
	from, to time.Time,
) (int64, error) {
	j.store.mu.Lock()
	defer j.store.mu.Unlock()

	var sum int64
	for _, e := range j.store.entries {
		// Half-open range, matching the repository's created_at < to.
		if e.Kind == kind && e.Status == StatusCompleted &&
			!e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (j *fakeJournal) SumCompletedForUser(
	ctx context.Context,
	userID string,
) (int64, error) {
	j.store.mu.Lock()
	defer j.store.mu.Unlock()

	var sum int64
	for _, e := range j.store.entries {
		if e.UserID == userID && e.Status == StatusCompleted {
			sum += e.Amount
		}
	}
	return sum, nil
}

type staticSettings struct{ s settings.Settings }

func (r staticSettings) Get(ctx context.Context) (settings.Settings, error) {
	return r.s, nil
}

func (r staticSettings) Update(ctx context.Context, s settings.Settings) error {
	return nil
}

type fakeVerifier struct {
	mu      sync.Mutex
	calls   int
	payment VerifiedPayment
	err     error
}

func (v *fakeVerifier) Verify(
	ctx context.Context,
	reference string,
) (VerifiedPayment, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	return v.payment, v.err
}

func newTestService(store Store, verifier Verifier) *Service {
	settingsSvc := settings.NewService(
		staticSettings{s: settings.Defaults()},
		time.Minute,
	)
	return NewService(store, verifier, settingsSvc, time.Second, 100)
}

func TestOpenAccount_GrantsSignupBonus(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeVerifier{})

	bonus, err := svc.OpenAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), bonus)

	result, err := svc.Reconcile(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, int64(20), result.Balance)
}

func TestDeductForUsage_Success(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 30)
	svc := newTestService(store, &fakeVerifier{})

	balance, err := svc.DeductForUsage(context.Background(), "u1", 15, "fit_analysis")
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance)

	entries := store.entriesFor("u1")
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-15), entries[0].Amount)
	assert.Equal(t, KindUsage, entries[0].Kind)

	// A follow-up charge beyond the remainder reports the exact shortfall
	// and leaves the balance untouched.
	_, err = svc.DeductForUsage(context.Background(), "u1", 20, "fit_analysis")
	require.Error(t, err)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"required": 20, "current": 15}, appErr.Details)

	balance, err = svc.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance)
	assert.Len(t, store.entriesFor("u1"), 1)
}

func TestDeductForUsage_InsufficientCredits(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 15)
	svc := newTestService(store, &fakeVerifier{})

	_, err := svc.DeductForUsage(context.Background(), "u1", 30, "fit_analysis")
	require.Error(t, err)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 402, appErr.Status)
	assert.Equal(t, "INSUFFICIENT_CREDITS", appErr.Code)
	assert.Equal(t, map[string]int64{"required": 30, "current": 15}, appErr.Details)

	balance, err := svc.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance)
	assert.Empty(t, store.entriesFor("u1"))
}

func TestDeductForUsage_RejectsNonPositiveCost(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 15)
	svc := newTestService(store, &fakeVerifier{})

	_, err := svc.DeductForUsage(context.Background(), "u1", 0, "x")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.DeductForUsage(context.Background(), "u1", -5, "x")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestDeductForUsage_ConcurrentDebits(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 10)
	svc := newTestService(store, &fakeVerifier{})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.DeductForUsage(context.Background(), "u1", 10, "x")
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range results {
		if err != nil {
			failures++
			appErr, ok := core.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, "INSUFFICIENT_CREDITS", appErr.Code)
		}
	}
	assert.Equal(t, 1, failures, "exactly one debit must lose")

	balance, err := svc.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Len(t, store.entriesFor("u1"), 1)
}

func TestCreditForPurchase_IdempotentByReference(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	svc := newTestService(store, &fakeVerifier{})

	ref := "pay_123"
	first, err := svc.CreditForPurchase(
		context.Background(), "u1", 50, "Credit purchase", &ref, nil,
	)
	require.NoError(t, err)
	assert.Equal(t, int64(50), first.Balance)
	assert.Equal(t, int64(50), first.Added)
	assert.False(t, first.AlreadyProcessed)

	second, err := svc.CreditForPurchase(
		context.Background(), "u1", 50, "Credit purchase", &ref, nil,
	)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, int64(50), second.Balance)

	assert.Len(t, store.entriesFor("u1"), 1)
}

func TestCreditForPurchase_NilReferenceNeverDeduplicates(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	svc := newTestService(store, &fakeVerifier{})

	for range 2 {
		result, err := svc.CreditForPurchase(
			context.Background(), "u1", 10, "Manual top-up", nil, nil,
		)
		require.NoError(t, err)
		assert.False(t, result.AlreadyProcessed)
	}

	balance, err := svc.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)
}

func TestVerifyAndCreditPayment_CreditsFromMetadata(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	verifier := &fakeVerifier{payment: VerifiedPayment{
		Completed:   true,
		AmountMinor: 99999,
		Metadata:    map[string]string{"credits": "50"},
	}}
	svc := newTestService(store, verifier)

	result, err := svc.VerifyAndCreditPayment(context.Background(), "u1", "pay_abc")
	require.NoError(t, err)
	assert.Equal(t, int64(50), result.Balance)

	entries := store.entriesFor("u1")
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ExternalReference)
	assert.Equal(t, "pay_abc", *entries[0].ExternalReference)
	require.NotNil(t, entries[0].Gateway)
	assert.Equal(t, "paystack", *entries[0].Gateway)
}

func TestVerifyAndCreditPayment_FallbackRate(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	verifier := &fakeVerifier{payment: VerifiedPayment{
		Completed:   true,
		AmountMinor: 500,
	}}
	svc := newTestService(store, verifier)

	result, err := svc.VerifyAndCreditPayment(context.Background(), "u1", "pay_def")
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Balance)
}

func TestVerifyAndCreditPayment_GatewayFailure(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	verifier := &fakeVerifier{err: errors.New("gateway down")}
	svc := newTestService(store, verifier)

	_, err := svc.VerifyAndCreditPayment(context.Background(), "u1", "pay_ghi")
	require.Error(t, err)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VERIFICATION_FAILED", appErr.Code)

	balance, err := svc.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Empty(t, store.entriesFor("u1"))
}

func TestVerifyAndCreditPayment_IncompletePayment(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	verifier := &fakeVerifier{payment: VerifiedPayment{Completed: false}}
	svc := newTestService(store, verifier)

	_, err := svc.VerifyAndCreditPayment(context.Background(), "u1", "pay_jkl")
	require.Error(t, err)
	assert.Empty(t, store.entriesFor("u1"))
}

func TestVerifyAndCreditPayment_DuplicateSkipsGateway(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	verifier := &fakeVerifier{payment: VerifiedPayment{
		Completed:   true,
		AmountMinor: 500,
	}}
	svc := newTestService(store, verifier)

	_, err := svc.VerifyAndCreditPayment(context.Background(), "u1", "pay_mno")
	require.NoError(t, err)

	result, err := svc.VerifyAndCreditPayment(context.Background(), "u1", "pay_mno")
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, 1, verifier.calls, "duplicate must not re-verify")
}

func TestRewardAdWatch_StartsStreak(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	svc := newTestService(store, &fakeVerifier{})
	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	}

	result, err := svc.RewardAdWatch(context.Background(), "u1", "standard")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streak)
	assert.Equal(t, int64(2), result.TotalAwarded)
	assert.Equal(t, int64(0), result.StreakBonus)
	assert.Equal(t, int64(2), result.Balance)
}

func TestRewardAdWatch_SameDayDoesNotAdvanceStreak(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	svc := newTestService(store, &fakeVerifier{})
	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	}

	_, err := svc.RewardAdWatch(context.Background(), "u1", "standard")
	require.NoError(t, err)

	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	}
	result, err := svc.RewardAdWatch(context.Background(), "u1", "standard")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streak)
	assert.Equal(t, int64(2), result.TotalAwarded, "base reward still paid")
	assert.Equal(t, int64(4), result.Balance)
}

func TestRewardAdWatch_MilestoneBonus(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	svc := newTestService(store, &fakeVerifier{})

	day := func(d int) func() time.Time {
		return func() time.Time {
			return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC)
		}
	}

	for d := 1; d <= 2; d++ {
		svc.now = day(d)
		result, err := svc.RewardAdWatch(context.Background(), "u1", "standard")
		require.NoError(t, err)
		assert.Equal(t, d, result.Streak)
		assert.Equal(t, int64(0), result.StreakBonus)
	}

	svc.now = day(3)
	result, err := svc.RewardAdWatch(context.Background(), "u1", "standard")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Streak)
	assert.Equal(t, int64(5), result.StreakBonus)
	assert.Equal(t, int64(7), result.TotalAwarded)

	var bonusEntries int
	for _, e := range store.entriesFor("u1") {
		if e.Kind == KindStreakBonus {
			bonusEntries++
			assert.Equal(t, int64(5), e.Amount)
		}
	}
	assert.Equal(t, 1, bonusEntries)
}

func TestRewardAdWatch_ConcurrentWatchesPayMilestoneOnce(t *testing.T) {
	store := newRowLockStore()
	yesterday := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	store.seedStreakAccount("u1", 0, 2, yesterday)

	svc := newTestService(store, &fakeVerifier{})
	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}

	// Both watches race with the streak one day short of a milestone. The
	// row lock makes the loser re-read after the winner commits, so only
	// one advances the streak and journals the bonus.
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RewardAdWatch(context.Background(), "u1", "standard")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var bonuses int
	for _, e := range store.entriesFor("u1") {
		if e.Kind == KindStreakBonus {
			bonuses++
		}
	}
	assert.Equal(t, 1, bonuses, "milestone bonus must be journaled once")

	acct, err := svc.Account(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, acct.StreakCurrent)
	// Two base rewards plus a single milestone bonus.
	assert.Equal(t, int64(9), acct.Balance)
}

func TestRewardAdWatch_GapResetsStreak(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	svc := newTestService(store, &fakeVerifier{})

	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	_, err := svc.RewardAdWatch(context.Background(), "u1", "standard")
	require.NoError(t, err)

	svc.now = func() time.Time {
		return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	}
	result, err := svc.RewardAdWatch(context.Background(), "u1", "standard")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Streak)

	// Two missed days.
	svc.now = func() time.Time {
		return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	}
	result, err = svc.RewardAdWatch(context.Background(), "u1", "standard")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streak)

	acct, err := svc.Account(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, acct.StreakLongest, "longest streak survives the reset")
}

func TestRewardAdWatch_PremiumReward(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	svc := newTestService(store, &fakeVerifier{})

	result, err := svc.RewardAdWatch(context.Background(), "u1", "premium")
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.TotalAwarded)
}

func TestUnlockTemplate_ChargesOnce(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 20)
	svc := newTestService(store, &fakeVerifier{})

	first, err := svc.UnlockTemplate(context.Background(), "u1", "tpl_modern", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), first.Balance)
	assert.False(t, first.AlreadyUnlocked)
	assert.Contains(t, first.UnlockedTemplates, "tpl_modern")

	second, err := svc.UnlockTemplate(context.Background(), "u1", "tpl_modern", 10)
	require.NoError(t, err)
	assert.True(t, second.AlreadyUnlocked)
	assert.Equal(t, int64(10), second.Balance, "re-unlock is free")

	assert.Len(t, store.entriesFor("u1"), 1)
}

func TestUnlockTemplate_InsufficientCreditsRollsBackUnlock(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 5)
	svc := newTestService(store, &fakeVerifier{})

	_, err := svc.UnlockTemplate(context.Background(), "u1", "tpl_modern", 10)
	require.Error(t, err)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "INSUFFICIENT_CREDITS", appErr.Code)

	acct, err := svc.Account(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, acct.UnlockedTemplates.Contains("tpl_modern"))
	assert.Equal(t, int64(5), acct.Balance)
}

func TestCreditReferral(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	svc := newTestService(store, &fakeVerifier{})

	balance, err := svc.CreditReferral(context.Background(), "u1", "Referral bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	entries := store.entriesFor("u1")
	require.Len(t, entries, 1)
	assert.Equal(t, KindReferralBonus, entries[0].Kind)
}

func TestReconcile_DetectsDrift(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	svc := newTestService(store, &fakeVerifier{})

	_, err := svc.CreditForPurchase(
		context.Background(), "u1", 50, "Credit purchase", nil, nil,
	)
	require.NoError(t, err)
	_, err = svc.DeductForUsage(context.Background(), "u1", 15, "fit_analysis")
	require.NoError(t, err)

	result, err := svc.Reconcile(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, int64(35), result.Balance)
	assert.Equal(t, int64(35), result.JournalSum)

	// Corrupt the cached balance behind the journal's back.
	store.mu.Lock()
	store.accounts["u1"].Balance = 99
	store.mu.Unlock()

	result, err = svc.Reconcile(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, result.Consistent)
}

func TestSumByKindInRange_RejectsUnknownKind(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeVerifier{})

	_, err := svc.SumByKindInRange(
		context.Background(),
		Kind("refund"),
		time.Now().Add(-time.Hour),
		time.Now(),
	)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSumByKindInRange_UpperBoundExclusive(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeVerifier{})

	cut := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.entries = append(store.entries,
		&Transaction{
			UserID:    "u1",
			Amount:    50,
			Kind:      KindPurchase,
			Status:    StatusCompleted,
			CreatedAt: cut.Add(-time.Hour),
		},
		&Transaction{
			UserID:    "u1",
			Amount:    70,
			Kind:      KindPurchase,
			Status:    StatusCompleted,
			CreatedAt: cut,
		},
	)

	total, err := svc.SumByKindInRange(
		context.Background(),
		KindPurchase,
		cut.AddDate(0, 0, -1),
		cut,
	)
	require.NoError(t, err)
	assert.Equal(t, int64(50), total,
		"an entry at the upper bound belongs to the next window")
}

func TestNextStreak(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	lastWeek := today.AddDate(0, 0, -7)

	tests := []struct {
		name        string
		lastDate    *time.Time
		current     int
		wantStreak  int
		wantAdvance bool
	}{
		{"first watch", nil, 0, 1, true},
		{"consecutive day", &yesterday, 4, 5, true},
		{"same day", &today, 4, 4, false},
		{"after gap", &lastWeek, 4, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := &account.Account{
				StreakCurrent:  tt.current,
				StreakLastDate: tt.lastDate,
			}
			streak, advanced := nextStreak(acct, today)
			assert.Equal(t, tt.wantStreak, streak)
			assert.Equal(t, tt.wantAdvance, advanced)
		})
	}
}

func TestListParams_Normalize(t *testing.T) {
	p := ListParams{Page: 0, PageSize: 0}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
	assert.Equal(t, 0, p.Offset())

	p = ListParams{Page: 3, PageSize: 500}
	p.Normalize()
	assert.Equal(t, 100, p.PageSize)
	assert.Equal(t, 200, p.Offset())
}

func TestTransactions_NewestFirst(t *testing.T) {
	store := newFakeStore()
	store.seedAccount("u1", 0)
	svc := newTestService(store, &fakeVerifier{})

	for i := range 3 {
		_, err := svc.CreditForPurchase(
			context.Background(),
			"u1",
			int64(i+1),
			fmt.Sprintf("Top-up %d", i+1),
			nil,
			nil,
		)
		require.NoError(t, err)
	}

	entries, total, err := svc.Transactions(
		context.Background(),
		"u1",
		ListParams{Page: 1, PageSize: 2},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].Amount)
	assert.Equal(t, int64(2), entries[1].Amount)
}
