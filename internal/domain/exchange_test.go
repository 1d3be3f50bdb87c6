package domain

import (
	"testing"
	"time"

	"github.com/Fleurer/meme/pkg/money"
	"github.com/Fleurer/meme/pkg/types"
)

func mustOrder(t *testing.T, id string, variant types.Variant, accountID string, price, amount, fee string, ts int64) *Order {
	t.Helper()
	o, err := NewOrder(id, variant, accountID, "ltc", "btc", money.New(price), money.New(amount), money.New(fee), time.Unix(ts, 0))
	if err != nil {
		t.Fatalf("NewOrder(%s): %v", id, err)
	}
	return o
}

func TestExchangeEnqueueDequeueRoundTrip(t *testing.T) {
	t.Parallel()

	ex := NewExchange("ltc", "btc")
	bid := mustOrder(t, "bid1", types.Bid, "account1", "0.1", "1.0", "0.01", 1)
	ex.Enqueue(bid)

	if _, _, ok := ex.Match(); ok {
		t.Fatal("lone bid must not match")
	}

	ex.Dequeue(bid)
	if best := ex.bestOrder(types.Bid); best != nil {
		t.Fatalf("book should be empty after dequeue, found %v", best)
	}
}

func TestExchangeMatchPicksBestPriceThenFIFO(t *testing.T) {
	t.Parallel()

	ex := NewExchange("ltc", "btc")
	bidLow := mustOrder(t, "bid-low", types.Bid, "account1", "0.09", "1.0", "0.01", 1)
	bidHigh := mustOrder(t, "bid-high", types.Bid, "account1", "0.11", "1.0", "0.01", 2)
	bidHighLater := mustOrder(t, "bid-high-later", types.Bid, "account1", "0.11", "1.0", "0.01", 3)
	ex.Enqueue(bidLow)
	ex.Enqueue(bidHigh)
	ex.Enqueue(bidHighLater)

	ask := mustOrder(t, "ask1", types.Ask, "account2", "0.1", "0.4", "0.01", 3)
	ex.Enqueue(ask)

	bid, matchedAsk, ok := ex.Match()
	if !ok {
		t.Fatal("expected a cross")
	}
	if bid.ID != "bid-high" {
		t.Fatalf("matched bid = %s, want bid-high (best price, first in at that price)", bid.ID)
	}
	if matchedAsk.ID != "ask1" {
		t.Fatalf("matched ask = %s, want ask1", matchedAsk.ID)
	}
}

// TestComputeDealsScenario3 exercises spec scenario 3's first match:
// Bid(bid1, amount 1.0, price 0.1, fee 0.01, ts=1) crossing
// Ask(ask1, amount 0.4, price 0.1, fee 0.01, ts=2).
func TestComputeDealsScenario3(t *testing.T) {
	t.Parallel()

	bid := mustOrder(t, "bid1", types.Bid, "account1", "0.1", "1.0", "0.01", 1)
	ask := mustOrder(t, "ask1", types.Ask, "account2", "0.1", "0.4", "0.01", 2)

	bidDeal, askDeal, err := ComputeDeals(bid, ask, time.Unix(10, 0))
	if err != nil {
		t.Fatalf("ComputeDeals: %v", err)
	}

	if !bidDeal.Amount.Equal(money.New("0.4")) {
		t.Fatalf("deal amount = %s, want 0.4", bidDeal.Amount)
	}
	if !bidDeal.Outcome.Equal(money.New("0.0404")) {
		t.Fatalf("bid outcome = %s, want 0.0404", bidDeal.Outcome)
	}
	if !bidDeal.Income.Equal(money.New("0.4")) {
		t.Fatalf("bid income = %s, want 0.4", bidDeal.Income)
	}
	if !askDeal.Income.Equal(money.New("0.0396")) {
		t.Fatalf("ask income = %s, want 0.0396", askDeal.Income)
	}
	if !askDeal.Outcome.Equal(money.New("0.4")) {
		t.Fatalf("ask outcome = %s, want 0.4", askDeal.Outcome)
	}

	if err := bid.AppendDeal(bidDeal); err != nil {
		t.Fatalf("bid.AppendDeal: %v", err)
	}
	if err := ask.AppendDeal(askDeal); err != nil {
		t.Fatalf("ask.AppendDeal: %v", err)
	}
	if !ask.IsCompleted() {
		t.Fatal("ask1 should be fully filled by a matching 0.4 bid")
	}
	if !bid.RestAmount().Equal(money.New("0.6")) {
		t.Fatalf("bid rest_amount = %s, want 0.6", bid.RestAmount())
	}
}

// TestComputeDealsPriceRule exercises the passive-price rule: when the bid
// arrives after the ask, the deal prices at the ask (the earlier, passive
// order).
func TestComputeDealsPriceRule(t *testing.T) {
	t.Parallel()

	ask := mustOrder(t, "ask1", types.Ask, "account2", "0.1", "1.0", "0", 1)
	bid := mustOrder(t, "bid1", types.Bid, "account1", "0.12", "1.0", "0", 2)

	bidDeal, askDeal, err := ComputeDeals(bid, ask, time.Unix(10, 0))
	if err != nil {
		t.Fatalf("ComputeDeals: %v", err)
	}
	if !bidDeal.Price.Equal(money.New("0.1")) || !askDeal.Price.Equal(money.New("0.1")) {
		t.Fatalf("deal price = %s/%s, want 0.1 (ask's passive price)", bidDeal.Price, askDeal.Price)
	}
}

func TestComputeDealsRejectsNonCrossing(t *testing.T) {
	t.Parallel()

	bid := mustOrder(t, "bid1", types.Bid, "account1", "0.05", "1.0", "0.01", 1)
	ask := mustOrder(t, "ask1", types.Ask, "account2", "0.1", "1.0", "0.01", 2)

	if _, _, err := ComputeDeals(bid, ask, time.Unix(10, 0)); err == nil {
		t.Fatal("expected DealError for a non-crossing pair")
	}
}

func TestExchangeDequeueIfCompletedPrunesEmptyLevel(t *testing.T) {
	t.Parallel()

	ex := NewExchange("ltc", "btc")
	bid := mustOrder(t, "bid1", types.Bid, "account1", "0.1", "0.4", "0.01", 1)
	ask := mustOrder(t, "ask1", types.Ask, "account2", "0.1", "0.4", "0.01", 2)
	ex.Enqueue(bid)
	ex.Enqueue(ask)

	bidDeal, askDeal, err := ComputeDeals(bid, ask, time.Unix(10, 0))
	if err != nil {
		t.Fatalf("ComputeDeals: %v", err)
	}
	_ = bid.AppendDeal(bidDeal)
	_ = ask.AppendDeal(askDeal)

	ex.DequeueIfCompleted(bid)
	ex.DequeueIfCompleted(ask)

	if _, _, ok := ex.Match(); ok {
		t.Fatal("both sides fully filled; book should be empty")
	}
	if best := ex.bestOrder(types.Bid); best != nil {
		t.Fatal("bid side should be pruned empty")
	}
	if best := ex.bestOrder(types.Ask); best != nil {
		t.Fatal("ask side should be pruned empty")
	}
}
