package domain

import (
	"github.com/Fleurer/meme/internal/merrors"
	"github.com/Fleurer/meme/pkg/money"
)

// Account is a mutable aggregate holding per-asset balances for one
// account id. An account is empty iff every balance it holds has active = 0
// and frozen = 0; accounts may only be cancelled while empty.
type Account struct {
	ID       string
	Balances map[string]Balance
}

// NewAccount creates an empty account with no balances.
func NewAccount(id string) *Account {
	return &Account{ID: id, Balances: make(map[string]Balance)}
}

// FindBalance returns the stored Balance for coinType, or a zero Balance
// with Revision 0 if the account has never touched that asset.
func (a *Account) FindBalance(coinType string) Balance {
	if b, ok := a.Balances[coinType]; ok {
		return b
	}
	return ZeroBalance
}

// Adjust validates and applies a BalanceRevision against the account's
// current state for rev.CoinType. It fails with BalanceError if the
// revision's old_active/old_frozen witnesses don't match the stored
// balance (optimistic-concurrency mismatch) or if either resulting value
// would be negative. On success the stored balance becomes
// (new_active, new_frozen, current.revision + 1).
func (a *Account) Adjust(rev BalanceRevision) error {
	current := a.FindBalance(rev.CoinType)

	if !rev.OldActive.Equal(current.Active) || !rev.OldFrozen.Equal(current.Frozen) {
		return &merrors.BalanceError{
			AccountID: a.ID,
			CoinType:  rev.CoinType,
			Reason:    "optimistic-concurrency mismatch: balance changed since revision was built",
		}
	}
	if rev.NewActive.IsNegative() || rev.NewFrozen.IsNegative() {
		return &merrors.BalanceError{
			AccountID: a.ID,
			CoinType:  rev.CoinType,
			Reason:    "resulting active or frozen balance would be negative",
		}
	}

	a.Balances[rev.CoinType] = Balance{
		Active:   rev.NewActive,
		Frozen:   rev.NewFrozen,
		Revision: current.Revision + 1,
	}
	return nil
}

// CanAdjust reports whether Adjust(rev) would succeed against the
// account's current state, without mutating anything. Used to validate a
// batch of revisions across several accounts before committing any of
// them, so a multi-account event either applies in full or not at all.
func (a *Account) CanAdjust(rev BalanceRevision) bool {
	current := a.FindBalance(rev.CoinType)
	if !rev.OldActive.Equal(current.Active) || !rev.OldFrozen.Equal(current.Frozen) {
		return false
	}
	return !rev.NewActive.IsNegative() && !rev.NewFrozen.IsNegative()
}

// BaselineRevision returns a zero-diff revision anchored at the account's
// current balance for coinType: old_* = new_* = the stored balance. It is
// the chaining origin passed to BuildNext by event Build functions.
func (a *Account) BaselineRevision(coinType string) BalanceRevision {
	cur := a.FindBalance(coinType)
	return BalanceRevision{
		AccountID: a.ID,
		CoinType:  coinType,
		OldActive: cur.Active,
		OldFrozen: cur.Frozen,
		NewActive: cur.Active,
		NewFrozen: cur.Frozen,
	}
}

// BuildRevision derives a single BalanceRevision for coinType starting
// from the account's current balance and applying activeDiff/frozenDiff.
// Fails with BalanceError if either resulting value would be negative.
func (a *Account) BuildRevision(coinType string, activeDiff, frozenDiff money.Money) (BalanceRevision, error) {
	return a.BaselineRevision(coinType).BuildNext(activeDiff, frozenDiff)
}

// IsEmpty reports whether every balance held by the account has
// active = 0 and frozen = 0.
func (a *Account) IsEmpty() bool {
	for _, b := range a.Balances {
		if !b.Active.IsZero() || !b.Frozen.IsZero() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the account, used when an event needs to
// insulate a snapshot from subsequent mutation before commit.
func (a *Account) Clone() *Account {
	cp := &Account{ID: a.ID, Balances: make(map[string]Balance, len(a.Balances))}
	for k, v := range a.Balances {
		cp.Balances[k] = v
	}
	return cp
}
