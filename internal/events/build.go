package events

import (
	"time"

	"github.com/Fleurer/meme/internal/domain"
	"github.com/Fleurer/meme/internal/repo"
	"github.com/Fleurer/meme/pkg/money"
	"github.com/Fleurer/meme/pkg/types"
)

func targetRevision(r *repo.Repository) uint64 {
	return r.Revision() + 1
}

// BuildAccountCreated prepares an idempotent account-creation event.
func BuildAccountCreated(r *repo.Repository, accountID string) *Event {
	return &Event{kind: AccountCreated, revision: targetRevision(r), accountID: accountID}
}

// BuildAccountCanceled prepares an account-cancellation event. Whether
// the account is eligible (empty) is checked at Apply time, since that is
// when the authoritative state is read.
func BuildAccountCanceled(r *repo.Repository, accountID string) *Event {
	return &Event{kind: AccountCanceled, revision: targetRevision(r), accountID: accountID}
}

// BuildAccountCredited prepares a credit event: id must be fresh (checked
// at Apply via the credits bloom filter) and accountID must exist.
func BuildAccountCredited(r *repo.Repository, id, accountID, coinType string, amount money.Money) (*Event, error) {
	acc, err := r.FindAccount(accountID)
	if err != nil {
		return nil, err
	}
	rev, err := acc.BuildRevision(coinType, amount, money.Zero)
	if err != nil {
		return nil, err
	}
	return &Event{
		kind:      AccountCredited,
		revision:  targetRevision(r),
		accountID: accountID,
		id:        id,
		coinType:  coinType,
		amount:    amount,
		rev:       rev,
	}, nil
}

// BuildAccountDebited prepares a debit event: same shape as credit, with
// active_diff = -amount. Apply fails with BalanceError if this would
// overdraw the account.
func BuildAccountDebited(r *repo.Repository, id, accountID, coinType string, amount money.Money) (*Event, error) {
	acc, err := r.FindAccount(accountID)
	if err != nil {
		return nil, err
	}
	rev, err := acc.BuildRevision(coinType, amount.Neg(), money.Zero)
	if err != nil {
		return nil, err
	}
	return &Event{
		kind:      AccountDebited,
		revision:  targetRevision(r),
		accountID: accountID,
		id:        id,
		coinType:  coinType,
		amount:    amount,
		rev:       rev,
	}, nil
}

// BuildExchangeCreated prepares an idempotent order-book creation event.
func BuildExchangeCreated(r *repo.Repository, coinType, priceType string) *Event {
	return &Event{kind: ExchangeCreated, revision: targetRevision(r), coinType: coinType, priceType: priceType}
}

// BuildOrderCreated validates and constructs a new order, computes its
// freeze revision against the account's current balance, and snapshots
// the order so later mutation of the caller's copy cannot leak into the
// prepared event. timestamp, if zero, defaults to time.Now().
func BuildOrderCreated(r *repo.Repository, id string, variant types.Variant, accountID, coinType, priceType string, price, amount, feeRate money.Money, timestamp time.Time) (*Event, error) {
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	order, err := domain.NewOrder(id, variant, accountID, coinType, priceType, price, amount, feeRate, timestamp)
	if err != nil {
		return nil, err
	}
	acc, err := r.FindAccount(accountID)
	if err != nil {
		return nil, err
	}
	freeze := order.FreezeAmount()
	rev, err := acc.BuildRevision(order.OutcomeType(), freeze.Neg(), freeze)
	if err != nil {
		return nil, err
	}
	return &Event{
		kind:     OrderCreated,
		revision: targetRevision(r),
		order:    order.Clone(),
		rev:      rev,
	}, nil
}

// BuildOrderCanceled prepares an order-cancellation event: the full
// remaining freeze is returned to active balance.
func BuildOrderCanceled(r *repo.Repository, orderID string) (*Event, error) {
	order, err := r.FindOrder(orderID)
	if err != nil {
		return nil, err
	}
	acc, err := r.FindAccount(order.AccountID)
	if err != nil {
		return nil, err
	}
	restFreeze := order.RestFreezeAmount()
	rev, err := acc.BuildRevision(order.OutcomeType(), restFreeze, restFreeze.Neg())
	if err != nil {
		return nil, err
	}
	return &Event{
		kind:     OrderCanceled,
		revision: targetRevision(r),
		orderID:  orderID,
		rev:      rev,
	}, nil
}

// BuildOrderDealt peeks the named book's best crossing bid/ask, computes
// both sides' deals, and chains the four balance revisions those deals
// imply. ok is false when the book has no cross right now (not an
// error). For a self-trade (same account on both sides) the ask side's
// revisions are chained onto the bid side's, since both orders then
// share the same two balances.
func BuildOrderDealt(r *repo.Repository, exchangeID string, now time.Time) (ev *Event, ok bool, err error) {
	bidOrder, askOrder, bidDeal, askDeal, matched, err := r.MatchAndComputeDeals(exchangeID, now)
	if err != nil {
		return nil, false, err
	}
	if !matched {
		return nil, false, nil
	}

	bidAccount, err := r.FindAccount(bidOrder.AccountID)
	if err != nil {
		return nil, false, err
	}
	askAccount, err := r.FindAccount(askOrder.AccountID)
	if err != nil {
		return nil, false, err
	}

	bidUnfreeze := money.Zero
	if bidDeal.RestAmount.IsZero() {
		bidUnfreeze = bidDeal.RestFreezeAmount
	}
	askUnfreeze := money.Zero
	if askDeal.RestAmount.IsZero() {
		askUnfreeze = askDeal.RestFreezeAmount
	}

	bidIncomeRev, err := bidAccount.BaselineRevision(bidOrder.IncomeType()).BuildNext(bidDeal.Income, money.Zero)
	if err != nil {
		return nil, false, err
	}
	bidOutcomeRev, err := bidAccount.BaselineRevision(bidOrder.OutcomeType()).BuildNext(bidUnfreeze, bidDeal.Outcome.Add(bidUnfreeze).Neg())
	if err != nil {
		return nil, false, err
	}

	var askIncomeRev, askOutcomeRev domain.BalanceRevision
	if bidOrder.AccountID == askOrder.AccountID {
		// bid.IncomeType() == ask.OutcomeType() and bid.OutcomeType() ==
		// ask.IncomeType(): both sides touch the same two balances, so the
		// ask-side revisions must chain onto the bid-side ones rather than
		// read a now-stale baseline.
		askOutcomeRev, err = bidIncomeRev.BuildNext(askUnfreeze, askDeal.Outcome.Add(askUnfreeze).Neg())
		if err != nil {
			return nil, false, err
		}
		askIncomeRev, err = bidOutcomeRev.BuildNext(askDeal.Income, money.Zero)
		if err != nil {
			return nil, false, err
		}
	} else {
		askIncomeRev, err = askAccount.BaselineRevision(askOrder.IncomeType()).BuildNext(askDeal.Income, money.Zero)
		if err != nil {
			return nil, false, err
		}
		askOutcomeRev, err = askAccount.BaselineRevision(askOrder.OutcomeType()).BuildNext(askUnfreeze, askDeal.Outcome.Add(askUnfreeze).Neg())
		if err != nil {
			return nil, false, err
		}
	}

	return &Event{
		kind:          OrderDealt,
		revision:      targetRevision(r),
		bidOrderID:    bidOrder.ID,
		askOrderID:    askOrder.ID,
		bidDeal:       bidDeal,
		askDeal:       askDeal,
		bidIncomeRev:  bidIncomeRev,
		bidOutcomeRev: bidOutcomeRev,
		askIncomeRev:  askIncomeRev,
		askOutcomeRev: askOutcomeRev,
	}, true, nil
}
