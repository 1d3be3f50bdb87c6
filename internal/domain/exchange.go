package domain

import (
	"container/list"
	"time"

	"github.com/google/btree"

	"github.com/Fleurer/meme/internal/merrors"
	"github.com/Fleurer/meme/pkg/money"
	"github.com/Fleurer/meme/pkg/types"
)

// priceLevel is one price's FIFO queue of resting orders. index lets
// Dequeue remove an arbitrary (not necessarily head) order in O(1), which
// a plain queue cannot do — a cancelled order is rarely at the head.
type priceLevel struct {
	price  money.Money
	orders *list.List
	index  map[string]*list.Element
}

func newPriceLevel(price money.Money) *priceLevel {
	return &priceLevel{price: price, orders: list.New(), index: make(map[string]*list.Element)}
}

func (pl *priceLevel) empty() bool {
	return pl.orders.Len() == 0
}

// Exchange is a price-time-priority order book for one (coin_type,
// price_type) pair: two ordered maps from price to FIFO queue, one per
// side. Bids are ordered highest-price-first, asks lowest-price-first, so
// both trees expose their best price as Min() in their own less-function.
type Exchange struct {
	CoinType  string
	PriceType string

	bids *btree.BTreeG[*priceLevel] // ordered descending by price
	asks *btree.BTreeG[*priceLevel] // ordered ascending by price
}

// NewExchange creates an empty order book for the given pair.
func NewExchange(coinType, priceType string) *Exchange {
	return &Exchange{
		CoinType:  coinType,
		PriceType: priceType,
		bids: btree.NewG[*priceLevel](32, func(a, b *priceLevel) bool {
			return a.price.GreaterThan(b.price) // descending: best bid is Min()
		}),
		asks: btree.NewG[*priceLevel](32, func(a, b *priceLevel) bool {
			return a.price.LessThan(b.price) // ascending: best ask is Min()
		}),
	}
}

// ID is "{coin_type}-{price_type}", matching Order.ExchangeID.
func (e *Exchange) ID() string {
	return e.CoinType + "-" + e.PriceType
}

func (e *Exchange) treeFor(variant types.Variant) *btree.BTreeG[*priceLevel] {
	if variant == types.Bid {
		return e.bids
	}
	return e.asks
}

func (e *Exchange) levelFor(variant types.Variant, price money.Money, createIfMissing bool) *priceLevel {
	tree := e.treeFor(variant)
	probe := &priceLevel{price: price}
	if found, ok := tree.Get(probe); ok {
		return found
	}
	if !createIfMissing {
		return nil
	}
	level := newPriceLevel(price)
	tree.ReplaceOrInsert(level)
	return level
}

// Enqueue inserts order at the tail of its price level's FIFO queue,
// creating the level if this is the first order at that price.
func (e *Exchange) Enqueue(order *Order) {
	level := e.levelFor(order.Variant, order.Price, true)
	elem := level.orders.PushBack(order)
	level.index[order.ID] = elem
}

// Dequeue removes order from its price level's queue regardless of
// position, pruning the level from the tree if it becomes empty.
func (e *Exchange) Dequeue(order *Order) {
	level := e.levelFor(order.Variant, order.Price, false)
	if level == nil {
		return
	}
	if elem, ok := level.index[order.ID]; ok {
		level.orders.Remove(elem)
		delete(level.index, order.ID)
	}
	if level.empty() {
		e.treeFor(order.Variant).Delete(level)
	}
}

// DequeueIfCompleted removes order from the book iff it has no remaining
// amount; it is a no-op for a still-resting order.
func (e *Exchange) DequeueIfCompleted(order *Order) {
	if order.IsCompleted() {
		e.Dequeue(order)
	}
}

// bestOrder returns the order at the head of the best price level's queue
// on the given side, or nil if that side is empty.
func (e *Exchange) bestOrder(variant types.Variant) *Order {
	tree := e.treeFor(variant)
	var best *priceLevel
	tree.Ascend(func(pl *priceLevel) bool {
		best = pl
		return false
	})
	if best == nil || best.empty() {
		return nil
	}
	return best.orders.Front().Value.(*Order)
}

// BestBid returns the order at the head of the best bid price level, or
// nil if no bid rests on the book.
func (e *Exchange) BestBid() *Order {
	return e.bestOrder(types.Bid)
}

// BestAsk returns the order at the head of the best ask price level, or
// nil if no ask rests on the book.
func (e *Exchange) BestAsk() *Order {
	return e.bestOrder(types.Ask)
}

// Match returns the best resting bid and ask if they currently cross
// (bid.price >= ask.price), along with ok=true. It does not mutate the
// book; the caller computes and applies deals, then calls
// DequeueIfCompleted on each side once balances have been adjusted.
func (e *Exchange) Match() (bid, ask *Order, ok bool) {
	bid = e.bestOrder(types.Bid)
	ask = e.bestOrder(types.Ask)
	if bid == nil || ask == nil {
		return nil, nil, false
	}
	if bid.Price.LessThan(ask.Price) {
		return nil, nil, false
	}
	return bid, ask, true
}

// ComputeDeals derives the pair of Deal records produced by matching bid
// against ask, per the engine's price-time-priority and rounding rules.
// Both orders must have positive rest_amount and bid.price >= ask.price.
// The deal price is the aggressor's opposite: whichever order arrived
// later takes the earlier (passive) order's price.
func ComputeDeals(bid, ask *Order, now time.Time) (bidDeal, askDeal Deal, err error) {
	if bid.Variant != types.Bid || ask.Variant != types.Ask {
		return Deal{}, Deal{}, &merrors.DealError{OrderID: bid.ID, Reason: "ComputeDeals requires one bid and one ask"}
	}
	if bid.Price.LessThan(ask.Price) {
		return Deal{}, Deal{}, &merrors.DealError{OrderID: bid.ID, Reason: "bid price below ask price; orders do not cross"}
	}
	bidRest := bid.RestAmount()
	askRest := ask.RestAmount()
	if !bidRest.IsPositive() || !askRest.IsPositive() {
		return Deal{}, Deal{}, &merrors.DealError{OrderID: bid.ID, Reason: "both orders must have positive rest_amount"}
	}

	dealPrice := bid.Price
	if bid.Timestamp.After(ask.Timestamp) {
		dealPrice = ask.Price
	}

	dealAmount := bidRest
	if askRest.LessThan(bidRest) {
		dealAmount = askRest
	}
	dealAmount = dealAmount.Quantize(money.PrecisionExp, money.TowardZero)

	askOutcome := dealAmount
	bidOutcomeOrigin := dealAmount.Mul(dealPrice).Quantize(money.PrecisionExp, money.TowardZero)
	bidFee := bidOutcomeOrigin.Mul(bid.FeeRate).Quantize(money.PrecisionExp, money.TowardZero)
	askFee := bidOutcomeOrigin.Mul(ask.FeeRate).Quantize(money.PrecisionExp, money.TowardZero)
	bidOutcome := bidOutcomeOrigin.Add(bidFee)
	bidIncome := askOutcome
	askIncome := bidOutcomeOrigin.Sub(askFee)

	bidDeal = Deal{
		OrderID:          bid.ID,
		PairID:           ask.ID,
		Price:            dealPrice,
		Amount:           dealAmount,
		RestAmount:       bidRest.Sub(dealAmount),
		RestFreezeAmount: bid.RestFreezeAmount().Sub(bidOutcome),
		Income:           bidIncome,
		Outcome:          bidOutcome,
		Fee:              bidFee,
		Timestamp:        now,
	}
	askDeal = Deal{
		OrderID:          ask.ID,
		PairID:           bid.ID,
		Price:            dealPrice,
		Amount:           dealAmount,
		RestAmount:       askRest.Sub(dealAmount),
		RestFreezeAmount: ask.RestFreezeAmount().Sub(askOutcome),
		Income:           askIncome,
		Outcome:          askOutcome,
		Fee:              askFee,
		Timestamp:        now,
	}
	return bidDeal, askDeal, nil
}
