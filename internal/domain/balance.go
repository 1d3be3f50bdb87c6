package domain

import (
	"github.com/Fleurer/meme/internal/merrors"
	"github.com/Fleurer/meme/pkg/money"
)

// Balance is the per (account, asset) state: active is spendable, frozen is
// reserved by live orders, revision is a monotonically increasing per-balance
// optimistic-concurrency counter.
type Balance struct {
	Active   money.Money
	Frozen   money.Money
	Revision uint64
}

// ZeroBalance is the balance of an asset an account has never touched.
var ZeroBalance = Balance{Active: money.Zero, Frozen: money.Zero, Revision: 0}

// BalanceRevision is an immutable proposed transition of one balance,
// produced optimistically against a read snapshot and re-checked at apply
// time against the live Balance.old_active/old_frozen witnesses.
type BalanceRevision struct {
	AccountID string
	CoinType  string
	OldActive money.Money
	OldFrozen money.Money
	NewActive money.Money
	NewFrozen money.Money
}

// BuildBalanceRevision produces a zero-origin revision: old_active =
// old_frozen = 0, new_* = the given active/frozen.
func BuildBalanceRevision(accountID, coinType string, active, frozen money.Money) BalanceRevision {
	return BalanceRevision{
		AccountID: accountID,
		CoinType:  coinType,
		OldActive: money.Zero,
		OldFrozen: money.Zero,
		NewActive: active,
		NewFrozen: frozen,
	}
}

// ActiveDiff returns new_active - old_active.
func (r BalanceRevision) ActiveDiff() money.Money {
	return r.NewActive.Sub(r.OldActive)
}

// FrozenDiff returns new_frozen - old_frozen.
func (r BalanceRevision) FrozenDiff() money.Money {
	return r.NewFrozen.Sub(r.OldFrozen)
}

// Equal reports value equality across all fields.
func (r BalanceRevision) Equal(other BalanceRevision) bool {
	return r.AccountID == other.AccountID &&
		r.CoinType == other.CoinType &&
		r.OldActive.Equal(other.OldActive) &&
		r.OldFrozen.Equal(other.OldFrozen) &&
		r.NewActive.Equal(other.NewActive) &&
		r.NewFrozen.Equal(other.NewFrozen)
}

// BuildNext derives a follow-on revision whose old_* equals this revision's
// new_*, chaining multiple revisions within one event before any commit.
// Fails with BalanceError if either resulting new_* would be negative.
func (r BalanceRevision) BuildNext(activeDiff, frozenDiff money.Money) (BalanceRevision, error) {
	newActive := r.NewActive.Add(activeDiff)
	newFrozen := r.NewFrozen.Add(frozenDiff)
	if newActive.IsNegative() || newFrozen.IsNegative() {
		return BalanceRevision{}, &merrors.BalanceError{
			AccountID: r.AccountID,
			CoinType:  r.CoinType,
			Reason:    "resulting active or frozen balance would be negative",
		}
	}
	return BalanceRevision{
		AccountID: r.AccountID,
		CoinType:  r.CoinType,
		OldActive: r.NewActive,
		OldFrozen: r.NewFrozen,
		NewActive: newActive,
		NewFrozen: newFrozen,
	}, nil
}
