package domain

import (
	"testing"

	"github.com/Fleurer/meme/pkg/money"
)

// TestAccountCreditDebitCancel exercises spec scenario 1: create, credit,
// debit, overdraft rejection, debit-to-empty, cancel eligibility.
func TestAccountCreditDebitCancel(t *testing.T) {
	t.Parallel()

	acc := NewAccount("123")

	credit := BuildBalanceRevision("123", "btc", money.New("100"), money.Zero)
	if err := acc.Adjust(credit); err != nil {
		t.Fatalf("credit: %v", err)
	}

	debit90, err := credit.BuildNext(money.New("-90"), money.Zero)
	if err != nil {
		t.Fatalf("build debit90: %v", err)
	}
	if err := acc.Adjust(debit90); err != nil {
		t.Fatalf("debit 90: %v", err)
	}
	bal := acc.FindBalance("btc")
	if !bal.Active.Equal(money.New("10")) {
		t.Fatalf("active = %s, want 10", bal.Active)
	}

	overdraft, err := debit90.BuildNext(money.New("-20"), money.Zero)
	if err == nil {
		t.Fatalf("expected BalanceError building overdraft revision, got next=%+v", overdraft)
	}

	debit10, err := debit90.BuildNext(money.New("-10"), money.Zero)
	if err != nil {
		t.Fatalf("build debit10: %v", err)
	}
	if err := acc.Adjust(debit10); err != nil {
		t.Fatalf("debit 10: %v", err)
	}
	if !acc.IsEmpty() {
		t.Fatal("expected account to be empty after debiting to zero")
	}
}

func TestAccountAdjustRejectsStaleRevision(t *testing.T) {
	t.Parallel()

	acc := NewAccount("123")
	rev := BuildBalanceRevision("123", "btc", money.New("100"), money.Zero)
	if err := acc.Adjust(rev); err != nil {
		t.Fatalf("first adjust: %v", err)
	}

	// Re-applying the same zero-origin revision is now stale: the account's
	// current active is 100, not rev.OldActive (0).
	if err := acc.Adjust(rev); err == nil {
		t.Fatal("expected BalanceError on stale (already-applied) revision")
	}
}

func TestAccountCloneIsIndependent(t *testing.T) {
	t.Parallel()

	acc := NewAccount("123")
	rev := BuildBalanceRevision("123", "btc", money.New("100"), money.Zero)
	_ = acc.Adjust(rev)

	clone := acc.Clone()
	next, _ := rev.BuildNext(money.New("-10"), money.Zero)
	_ = acc.Adjust(next)

	if clone.FindBalance("btc").Active.Equal(acc.FindBalance("btc").Active) {
		t.Fatal("mutating original after Clone should not affect the clone")
	}
}
