package events

import (
	"github.com/Fleurer/meme/internal/domain"
	"github.com/Fleurer/meme/internal/merrors"
	"github.com/Fleurer/meme/internal/repo"
	"github.com/Fleurer/meme/pkg/money"
)

// Event is the tagged union of every committable state transition. Only
// the fields relevant to Kind are populated; the rest are zero. Build a
// value with one of the Build* functions in build.go and submit it with
// Repository.Commit, which calls TargetRevision and Apply.
type Event struct {
	kind     Kind
	revision uint64

	accountID string
	id        string // credit/debit/order id, subject to ValidateID + dedup
	coinType  string
	priceType string
	amount    money.Money
	rev       domain.BalanceRevision // single-revision events

	order *domain.Order // OrderCreated: the new order snapshot

	orderID string // OrderCanceled

	bidOrderID, askOrderID                                     string // OrderDealt
	bidDeal, askDeal                                            domain.Deal
	bidIncomeRev, bidOutcomeRev, askIncomeRev, askOutcomeRev domain.BalanceRevision
}

// Kind reports which variant this event is.
func (e *Event) Kind() Kind {
	return e.kind
}

// TargetRevision is the repo.revision this event was built against plus
// one — Commit rejects the event unless this equals repo.revision+1.
func (e *Event) TargetRevision() uint64 {
	return e.revision
}

// Apply dispatches to this event's variant-specific apply logic. Each
// case validates every precondition before writing anything, so a
// failing Apply leaves the repository exactly as it was.
func (e *Event) Apply(r *repo.Repository) error {
	switch e.kind {
	case AccountCreated:
		return e.applyAccountCreated(r)
	case AccountCanceled:
		return e.applyAccountCanceled(r)
	case AccountCredited:
		return e.applyAccountCredited(r)
	case AccountDebited:
		return e.applyAccountDebited(r)
	case ExchangeCreated:
		return e.applyExchangeCreated(r)
	case OrderCreated:
		return e.applyOrderCreated(r)
	case OrderCanceled:
		return e.applyOrderCanceled(r)
	case OrderDealt:
		return e.applyOrderDealt(r)
	default:
		return &merrors.ValidationError{Field: "kind", Reason: "unknown event kind"}
	}
}

func (e *Event) applyAccountCreated(r *repo.Repository) error {
	if _, ok := r.GetAccount(e.accountID); ok {
		return nil // idempotent: revision still advances, no-op otherwise
	}
	r.PutAccount(domain.NewAccount(e.accountID))
	return nil
}

func (e *Event) applyAccountCanceled(r *repo.Repository) error {
	acc, ok := r.GetAccount(e.accountID)
	if !ok {
		return nil // idempotent: already absent
	}
	if !acc.IsEmpty() {
		return &merrors.CancelError{AccountID: e.accountID, Reason: "account still holds active or frozen balance"}
	}
	r.DeleteAccount(e.accountID)
	return nil
}

func (e *Event) applyAccountCredited(r *repo.Repository) error {
	if err := repo.ValidateID(e.id); err != nil {
		return err
	}
	acc, err := r.FindAccount(e.accountID)
	if err != nil {
		return err
	}
	if !acc.CanAdjust(e.rev) {
		return &merrors.BalanceError{AccountID: e.accountID, CoinType: e.coinType, Reason: "credit revision stale relative to current balance"}
	}
	if r.TestAndMarkCredit(e.id) {
		return &merrors.ConflictedError{Kind: "credit", ID: e.id}
	}
	return acc.Adjust(e.rev)
}

func (e *Event) applyAccountDebited(r *repo.Repository) error {
	if err := repo.ValidateID(e.id); err != nil {
		return err
	}
	acc, err := r.FindAccount(e.accountID)
	if err != nil {
		return err
	}
	if !acc.CanAdjust(e.rev) {
		return &merrors.BalanceError{AccountID: e.accountID, CoinType: e.coinType, Reason: "debit revision stale or would overdraw the balance"}
	}
	if r.TestAndMarkDebit(e.id) {
		return &merrors.ConflictedError{Kind: "debit", ID: e.id}
	}
	return acc.Adjust(e.rev)
}

func (e *Event) applyExchangeCreated(r *repo.Repository) error {
	id := e.coinType + "-" + e.priceType
	if _, ok := r.GetExchange(id); ok {
		return nil // idempotent
	}
	r.PutExchange(domain.NewExchange(e.coinType, e.priceType))
	return nil
}

func (e *Event) applyOrderCreated(r *repo.Repository) error {
	if err := repo.ValidateID(e.order.ID); err != nil {
		return err
	}
	acc, err := r.FindAccount(e.order.AccountID)
	if err != nil {
		return err
	}
	ex, err := r.FindExchange(e.order.ExchangeID())
	if err != nil {
		return err
	}
	if !acc.CanAdjust(e.rev) {
		return &merrors.BalanceError{AccountID: e.order.AccountID, CoinType: e.order.OutcomeType(), Reason: "insufficient active balance to freeze for order"}
	}
	if r.TestAndMarkOrderID(e.order.ID) {
		return &merrors.ConflictedError{Kind: "order", ID: e.order.ID}
	}
	if err := acc.Adjust(e.rev); err != nil {
		return err
	}
	r.PutOrder(e.order)
	ex.Enqueue(e.order)
	return nil
}

func (e *Event) applyOrderCanceled(r *repo.Repository) error {
	order, err := r.FindOrder(e.orderID)
	if err != nil {
		return err
	}
	acc, err := r.FindAccount(order.AccountID)
	if err != nil {
		return err
	}
	if err := acc.Adjust(e.rev); err != nil {
		return err
	}
	r.DeleteOrder(order.ID)
	if ex, ok := r.GetExchange(order.ExchangeID()); ok {
		ex.Dequeue(order)
	}
	return nil
}

func (e *Event) applyOrderDealt(r *repo.Repository) error {
	bidOrder, err := r.FindOrder(e.bidOrderID)
	if err != nil {
		return err
	}
	askOrder, err := r.FindOrder(e.askOrderID)
	if err != nil {
		return err
	}
	bidAccount, err := r.FindAccount(bidOrder.AccountID)
	if err != nil {
		return err
	}
	askAccount, err := r.FindAccount(askOrder.AccountID)
	if err != nil {
		return err
	}
	selfTrade := bidOrder.AccountID == askOrder.AccountID

	if !bidAccount.CanAdjust(e.bidIncomeRev) || !bidAccount.CanAdjust(e.bidOutcomeRev) {
		return &merrors.BalanceError{AccountID: bidOrder.AccountID, CoinType: bidOrder.IncomeType(), Reason: "bid-side revision stale relative to current balance"}
	}
	if !selfTrade {
		if !askAccount.CanAdjust(e.askIncomeRev) || !askAccount.CanAdjust(e.askOutcomeRev) {
			return &merrors.BalanceError{AccountID: askOrder.AccountID, CoinType: askOrder.IncomeType(), Reason: "ask-side revision stale relative to current balance"}
		}
	}

	if err := bidOrder.AppendDeal(e.bidDeal); err != nil {
		return err
	}
	if err := askOrder.AppendDeal(e.askDeal); err != nil {
		bidOrder.Deals = bidOrder.Deals[:len(bidOrder.Deals)-1] // undo the bid-side append
		return err
	}

	// Bid side first, then ask: for a self-trade the two sides are the
	// same account and ask's chained revisions assume bid's have already
	// landed.
	if err := bidAccount.Adjust(e.bidIncomeRev); err != nil {
		return err
	}
	if err := bidAccount.Adjust(e.bidOutcomeRev); err != nil {
		return err
	}
	if err := askAccount.Adjust(e.askIncomeRev); err != nil {
		return err
	}
	if err := askAccount.Adjust(e.askOutcomeRev); err != nil {
		return err
	}

	if ex, ok := r.GetExchange(bidOrder.ExchangeID()); ok {
		ex.DequeueIfCompleted(bidOrder)
		ex.DequeueIfCompleted(askOrder)
	}
	return nil
}
