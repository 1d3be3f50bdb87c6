package domain

import (
	"testing"

	"github.com/Fleurer/meme/pkg/money"
)

func TestBuildBalanceRevision(t *testing.T) {
	t.Parallel()

	rev := BuildBalanceRevision("account1", "btc", money.New("100"), money.New("0"))
	if !rev.OldActive.IsZero() || !rev.OldFrozen.IsZero() {
		t.Fatalf("expected zero-origin revision, got old_active=%s old_frozen=%s", rev.OldActive, rev.OldFrozen)
	}
	if !rev.ActiveDiff().Equal(money.New("100")) {
		t.Fatalf("active diff = %s, want 100", rev.ActiveDiff())
	}
}

func TestBalanceRevisionBuildNext(t *testing.T) {
	t.Parallel()

	origin := BuildBalanceRevision("account1", "btc", money.New("100"), money.New("0"))

	freeze, err := origin.BuildNext(money.New("-10.1000"), money.New("10.1000"))
	if err != nil {
		t.Fatalf("BuildNext freeze: %v", err)
	}
	if !freeze.NewActive.Equal(money.New("89.9000")) {
		t.Fatalf("new_active = %s, want 89.9000", freeze.NewActive)
	}
	if !freeze.OldActive.Equal(money.New("100")) {
		t.Fatalf("chained old_active = %s, want 100 (origin's new_active)", freeze.OldActive)
	}

	_, err = origin.BuildNext(money.New("-200"), money.New("0"))
	if err == nil {
		t.Fatal("expected BalanceError for overdraft, got nil")
	}
}

func TestBalanceRevisionEqual(t *testing.T) {
	t.Parallel()

	a := BuildBalanceRevision("account1", "btc", money.New("10"), money.New("0"))
	b := BuildBalanceRevision("account1", "btc", money.New("10"), money.New("0"))
	if !a.Equal(b) {
		t.Fatal("expected equal revisions built with identical args")
	}
}
