package repo

import (
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Fleurer/meme/internal/domain"
	"github.com/Fleurer/meme/internal/merrors"
)

// bloomExpectedItems and bloomFalsePositiveRate size the three dedup
// filters: generous enough headroom that a long-lived repository does not
// see its false-positive rate climb in practice, while keeping each
// filter's memory footprint modest (about 14.4M bits, roughly 1.8 MB, at
// this size/rate).
const (
	bloomExpectedItems     = 1_000_000
	bloomFalsePositiveRate = 0.001
)

// Committable is implemented by internal/events.Event. Repository depends
// only on this narrow interface so the two packages don't import each
// other in a cycle: events imports repo to read and mutate it, repo never
// imports events.
type Committable interface {
	TargetRevision() uint64
	Apply(r *Repository) error
}

// Repository is the matching engine's root aggregate: every account,
// order, and exchange book, the monotonically increasing commit
// revision, and the three duplicate-id guards.
//
// Repository is not safe for concurrent use by itself — per the core's
// single-threaded cooperative model, the surrounding collaborator (the
// HTTP/WebSocket façade in internal/api) is responsible for serializing
// every call, typically with one mutex guarding Commit and the queries
// that must observe a consistent snapshot.
type Repository struct {
	revision uint64

	accounts  *EntitiesSet[*domain.Account]
	orders    *EntitiesSet[*domain.Order]
	exchanges *EntitiesSet[*domain.Exchange]

	creditsSeen *bloom.BloomFilter
	debitsSeen  *bloom.BloomFilter
	ordersSeen  *bloom.BloomFilter
}

// New creates an empty repository at revision 0.
func New() *Repository {
	return &Repository{
		accounts:    NewEntitiesSet[*domain.Account]("account"),
		orders:      NewEntitiesSet[*domain.Order]("order"),
		exchanges:   NewEntitiesSet[*domain.Exchange]("exchange"),
		creditsSeen: bloom.NewWithEstimates(bloomExpectedItems, bloomFalsePositiveRate),
		debitsSeen:  bloom.NewWithEstimates(bloomExpectedItems, bloomFalsePositiveRate),
		ordersSeen:  bloom.NewWithEstimates(bloomExpectedItems, bloomFalsePositiveRate),
	}
}

// Revision returns the number of events committed so far.
func (r *Repository) Revision() uint64 {
	return r.revision
}

// Commit submits ev for application. It fails with RevisionError if
// ev.TargetRevision() does not equal revision+1; otherwise it invokes
// ev.Apply, and on success advances the revision by one. A failing Apply
// must leave the repository unchanged — see each event's Apply for how it
// validates in full before writing anything.
func (r *Repository) Commit(ev Committable) error {
	want := r.revision + 1
	if ev.TargetRevision() != want {
		return &merrors.RevisionError{Expected: want, Actual: ev.TargetRevision()}
	}
	if err := ev.Apply(r); err != nil {
		return err
	}
	r.revision = want
	return nil
}

// --- accounts ---

func (r *Repository) FindAccount(id string) (*domain.Account, error) {
	return r.accounts.Find(id)
}

func (r *Repository) GetAccount(id string) (*domain.Account, bool) {
	return r.accounts.Get(id)
}

// PutAccount inserts or overwrites an account. Exported for
// internal/events' Apply implementations; not part of the query surface.
func (r *Repository) PutAccount(acc *domain.Account) {
	r.accounts.Put(acc.ID, acc)
}

// DeleteAccount removes an account. Exported for internal/events' Apply
// implementations.
func (r *Repository) DeleteAccount(id string) {
	r.accounts.Delete(id)
}

// --- orders ---

func (r *Repository) FindOrder(id string) (*domain.Order, error) {
	return r.orders.Find(id)
}

func (r *Repository) GetOrder(id string) (*domain.Order, bool) {
	return r.orders.Get(id)
}

// PutOrder inserts or overwrites an order. Exported for internal/events'
// Apply implementations.
func (r *Repository) PutOrder(o *domain.Order) {
	r.orders.Put(o.ID, o)
}

// DeleteOrder removes an order. Exported for internal/events' Apply
// implementations.
func (r *Repository) DeleteOrder(id string) {
	r.orders.Delete(id)
}

// --- exchanges ---

func (r *Repository) FindExchange(id string) (*domain.Exchange, error) {
	return r.exchanges.Find(id)
}

func (r *Repository) GetExchange(id string) (*domain.Exchange, bool) {
	return r.exchanges.Get(id)
}

// PutExchange inserts or overwrites an exchange book. Exported for
// internal/events' Apply implementations.
func (r *Repository) PutExchange(e *domain.Exchange) {
	r.exchanges.Put(e.ID(), e)
}

// --- duplicate-id guards ---

// TestAndMarkCredit reports whether id was already present in the credits
// filter and marks it present either way — a single bloom op per apply.
func (r *Repository) TestAndMarkCredit(id string) bool {
	return r.creditsSeen.TestAndAdd([]byte(id))
}

// TestAndMarkDebit is TestAndMarkCredit's debit-side counterpart.
func (r *Repository) TestAndMarkDebit(id string) bool {
	return r.debitsSeen.TestAndAdd([]byte(id))
}

// TestAndMarkOrderID is TestAndMarkCredit's order-id counterpart.
func (r *Repository) TestAndMarkOrderID(id string) bool {
	return r.ordersSeen.TestAndAdd([]byte(id))
}

// --- snapshot support ---

// RangeAccounts calls fn for every account. Iteration order is
// unspecified.
func (r *Repository) RangeAccounts(fn func(*domain.Account) bool) {
	r.accounts.Range(func(_ string, a *domain.Account) bool { return fn(a) })
}

// RangeOrders calls fn for every order. Iteration order is unspecified.
func (r *Repository) RangeOrders(fn func(*domain.Order) bool) {
	r.orders.Range(func(_ string, o *domain.Order) bool { return fn(o) })
}

// RangeExchanges calls fn for every exchange book. Iteration order is
// unspecified.
func (r *Repository) RangeExchanges(fn func(*domain.Exchange) bool) {
	r.exchanges.Range(func(_ string, e *domain.Exchange) bool { return fn(e) })
}

// MarshalBloomFilters serializes the three duplicate-id guards to their
// binary encoding, for embedding in a snapshot document.
func (r *Repository) MarshalBloomFilters() (credits, debits, orders []byte, err error) {
	if credits, err = r.creditsSeen.MarshalBinary(); err != nil {
		return nil, nil, nil, err
	}
	if debits, err = r.debitsSeen.MarshalBinary(); err != nil {
		return nil, nil, nil, err
	}
	if orders, err = r.ordersSeen.MarshalBinary(); err != nil {
		return nil, nil, nil, err
	}
	return credits, debits, orders, nil
}

// RestoreBloomFilters replaces the three duplicate-id guards from their
// binary encoding. Used only while reconstructing a Repository from a
// snapshot, before it is exposed to any caller.
func (r *Repository) RestoreBloomFilters(credits, debits, orders []byte) error {
	if err := r.creditsSeen.UnmarshalBinary(credits); err != nil {
		return err
	}
	if err := r.debitsSeen.UnmarshalBinary(debits); err != nil {
		return err
	}
	if err := r.ordersSeen.UnmarshalBinary(orders); err != nil {
		return err
	}
	return nil
}

// SetRevision overwrites the commit counter directly. Used only while
// reconstructing a Repository from a snapshot.
func (r *Repository) SetRevision(rev uint64) {
	r.revision = rev
}

// MatchAndComputeDeals peeks the best crossing bid/ask on the named
// exchange, resolves them against the orders set, and computes the deal
// pair as of now. ok is false when the book has no cross right now.
func (r *Repository) MatchAndComputeDeals(exchangeID string, now time.Time) (bid, ask *domain.Order, bidDeal, askDeal domain.Deal, ok bool, err error) {
	ex, found := r.exchanges.Get(exchangeID)
	if !found {
		return nil, nil, domain.Deal{}, domain.Deal{}, false, nil
	}
	bidHead, askHead, matched := ex.Match()
	if !matched {
		return nil, nil, domain.Deal{}, domain.Deal{}, false, nil
	}
	bid, err = r.orders.Find(bidHead.ID)
	if err != nil {
		return nil, nil, domain.Deal{}, domain.Deal{}, false, err
	}
	ask, err = r.orders.Find(askHead.ID)
	if err != nil {
		return nil, nil, domain.Deal{}, domain.Deal{}, false, err
	}
	bidDeal, askDeal, err = domain.ComputeDeals(bid, ask, now)
	if err != nil {
		return nil, nil, domain.Deal{}, domain.Deal{}, false, err
	}
	return bid, ask, bidDeal, askDeal, true, nil
}
