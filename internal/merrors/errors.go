// Package merrors declares the matching engine's recoverable error
// taxonomy (spec §7). Every error a caller of the core can receive is one
// of these seven types, each carrying enough structured context for the
// caller to decide whether a retry makes sense.
package merrors

import "fmt"

// NotFoundError is returned when a lookup in an EntitiesSet fails.
type NotFoundError struct {
	Kind string // "account", "order", "exchange"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s#%s not found", e.Kind, e.ID)
}

// BalanceError is returned on an optimistic-concurrency mismatch or a
// would-be-negative balance.
type BalanceError struct {
	AccountID string
	CoinType  string
	Reason    string
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("invalid balance for account %s coin %s: %s", e.AccountID, e.CoinType, e.Reason)
}

// CancelError is returned when a cancellation precondition is violated,
// e.g. cancelling a non-empty account.
type CancelError struct {
	AccountID string
	Reason    string
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("cannot cancel account %s: %s", e.AccountID, e.Reason)
}

// ConflictedError is returned when a bloom filter detects a duplicate
// credit/debit/order identifier. Bloom filters may false-positive, so a
// caller receiving this for a genuinely fresh id should retry with a new
// one rather than treat it as a hard failure.
type ConflictedError struct {
	Kind string // "credit", "debit", "order"
	ID   string
}

func (e *ConflictedError) Error() string {
	return fmt.Sprintf("%s id %s is already occupied", e.Kind, e.ID)
}

// ValidationError is returned for a malformed identifier or argument.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DealError is returned when append_deal's ordering preconditions are
// violated, i.e. a deal is applied out of sequence against its order.
type DealError struct {
	OrderID string
	Reason  string
}

func (e *DealError) Error() string {
	return fmt.Sprintf("cannot append deal to order %s: %s", e.OrderID, e.Reason)
}

// RevisionError is returned when a committed event's revision does not
// equal repo.revision + 1.
type RevisionError struct {
	Expected uint64
	Actual   uint64
}

func (e *RevisionError) Error() string {
	return fmt.Sprintf("revision mismatch: expected %d, got %d", e.Expected, e.Actual)
}
