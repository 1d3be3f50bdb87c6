package domain

import (
	"time"

	"github.com/Fleurer/meme/internal/merrors"
	"github.com/Fleurer/meme/pkg/money"
	"github.com/Fleurer/meme/pkg/types"
)

// Order is a placed limit order, either a Bid or an Ask. CoinType is the
// asset being bought/sold; PriceType is the asset used to pay.
type Order struct {
	ID        string
	AccountID string
	CoinType  string
	PriceType string
	Variant   types.Variant
	Price     money.Money
	Amount    money.Money
	FeeRate   money.Money
	Timestamp time.Time
	Deals     []Deal
}

// NewOrder constructs and validates a new order. Timestamp defaults to the
// caller-supplied value; callers building at event-build time should pass
// time.Now() (or an explicit override) themselves.
func NewOrder(id string, variant types.Variant, accountID, coinType, priceType string, price, amount, feeRate money.Money, timestamp time.Time) (*Order, error) {
	if !variant.IsValid() {
		return nil, &merrors.ValidationError{Field: "variant", Reason: "must be bid or ask"}
	}
	if !price.IsPositive() {
		return nil, &merrors.ValidationError{Field: "price", Reason: "must be > 0"}
	}
	if !amount.IsPositive() {
		return nil, &merrors.ValidationError{Field: "amount", Reason: "must be > 0"}
	}
	if feeRate.IsNegative() || !feeRate.LessThan(money.New("1")) {
		return nil, &merrors.ValidationError{Field: "fee_rate", Reason: "must satisfy 0 <= fee_rate < 1"}
	}

	return &Order{
		ID:        id,
		AccountID: accountID,
		CoinType:  coinType,
		PriceType: priceType,
		Variant:   variant,
		Price:     price,
		Amount:    amount,
		FeeRate:   feeRate,
		Timestamp: timestamp,
		Deals:     nil,
	}, nil
}

// ExchangeID is the book this order belongs to: "{coin_type}-{price_type}".
func (o *Order) ExchangeID() string {
	return o.CoinType + "-" + o.PriceType
}

// IncomeType is the asset this order receives: coin_type for Bid,
// price_type for Ask.
func (o *Order) IncomeType() string {
	if o.Variant == types.Bid {
		return o.CoinType
	}
	return o.PriceType
}

// OutcomeType is the asset this order pays from: price_type for Bid,
// coin_type for Ask.
func (o *Order) OutcomeType() string {
	if o.Variant == types.Bid {
		return o.PriceType
	}
	return o.CoinType
}

// FreezeAmount is the outcome-asset quantity reserved when the order is
// placed: amount for Ask; amount * price * (1 + fee_rate), half-even
// rounded to PrecisionExp, for Bid.
func (o *Order) FreezeAmount() money.Money {
	if o.Variant == types.Ask {
		return o.Amount
	}
	gross := o.Amount.Mul(o.Price).Mul(money.New("1").Add(o.FeeRate))
	return gross.Quantize(money.PrecisionExp, money.HalfEven)
}

// dealtAmount sums Amount across all recorded deals.
func (o *Order) dealtAmount() money.Money {
	total := money.Zero
	for _, d := range o.Deals {
		total = total.Add(d.Amount)
	}
	return total
}

// dealtOutcome sums Outcome across all recorded deals.
func (o *Order) dealtOutcome() money.Money {
	total := money.Zero
	for _, d := range o.Deals {
		total = total.Add(d.Outcome)
	}
	return total
}

// RestAmount is amount - sum(deal.amount).
func (o *Order) RestAmount() money.Money {
	return o.Amount.Sub(o.dealtAmount())
}

// RestFreezeAmount is freeze_amount - sum(deal.outcome).
func (o *Order) RestFreezeAmount() money.Money {
	return o.FreezeAmount().Sub(o.dealtOutcome())
}

// IsCompleted reports whether the order has no remaining amount.
func (o *Order) IsCompleted() bool {
	return o.RestAmount().IsZero()
}

// AppendDeal records a deal against this order. It fails with DealError if
// the deal's own recorded rest_amount/rest_freeze_amount don't match what
// this order would compute after appending it — the signal that the deal
// was built against a now-stale order state and is being applied out of
// sequence.
func (o *Order) AppendDeal(d Deal) error {
	wouldBeRestAmount := o.RestAmount().Sub(d.Amount)
	wouldBeRestFreeze := o.RestFreezeAmount().Sub(d.Outcome)

	if !d.RestAmount.Equal(wouldBeRestAmount) {
		return &merrors.DealError{
			OrderID: o.ID,
			Reason:  "deal rest_amount does not match order state; apply is out of sequence",
		}
	}
	if !d.RestFreezeAmount.Equal(wouldBeRestFreeze) {
		return &merrors.DealError{
			OrderID: o.ID,
			Reason:  "deal rest_freeze_amount does not match order state; apply is out of sequence",
		}
	}

	o.Deals = append(o.Deals, d)
	return nil
}

// Clone returns a deep copy of the order, used to insulate an event's
// embedded order snapshot from subsequent mutation before commit.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Deals = make([]Deal, len(o.Deals))
	copy(cp.Deals, o.Deals)
	return &cp
}
