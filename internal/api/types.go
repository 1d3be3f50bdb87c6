package api

import (
	"time"

	"github.com/Fleurer/meme/internal/domain"
	"github.com/Fleurer/meme/pkg/money"
	"github.com/Fleurer/meme/pkg/types"
)

// createAccountRequest is the POST /accounts body.
type createAccountRequest struct {
	ID string `json:"id"`
}

// balanceChangeRequest is the body for a credit or debit, keyed by a
// caller-supplied id the engine dedups against.
type balanceChangeRequest struct {
	ID       string      `json:"id"`
	CoinType string      `json:"coin_type"`
	Amount   money.Money `json:"amount"`
}

// createExchangeRequest is the POST /exchanges body.
type createExchangeRequest struct {
	CoinType  string `json:"coin_type"`
	PriceType string `json:"price_type"`
}

// createOrderRequest is the POST /orders body.
type createOrderRequest struct {
	ID        string      `json:"id"`
	Variant   string      `json:"variant"` // "bid" or "ask"
	AccountID string      `json:"account_id"`
	CoinType  string      `json:"coin_type"`
	PriceType string      `json:"price_type"`
	Price     money.Money `json:"price"`
	Amount    money.Money `json:"amount"`
	FeeRate   money.Money `json:"fee_rate"`
}

// matchResponse reports whether a match attempt on an exchange produced a
// commit.
type matchResponse struct {
	Matched   bool   `json:"matched"`
	Revision  uint64 `json:"revision,omitempty"`
	BidOrder  string `json:"bid_order_id,omitempty"`
	AskOrder  string `json:"ask_order_id,omitempty"`
}

// balanceView is a read-only projection of domain.Balance.
type balanceView struct {
	Active   money.Money `json:"active"`
	Frozen   money.Money `json:"frozen"`
	Revision uint64      `json:"revision"`
}

// accountView is a read-only projection of domain.Account.
type accountView struct {
	ID       string                 `json:"id"`
	Balances map[string]balanceView `json:"balances"`
}

func newAccountView(a *domain.Account) accountView {
	v := accountView{ID: a.ID, Balances: make(map[string]balanceView, len(a.Balances))}
	for coin, bal := range a.Balances {
		v.Balances[coin] = balanceView{Active: bal.Active, Frozen: bal.Frozen, Revision: bal.Revision}
	}
	return v
}

// dealView is a read-only projection of domain.Deal.
type dealView struct {
	PairID           string      `json:"pair_id"`
	Price            money.Money `json:"price"`
	Amount           money.Money `json:"amount"`
	RestAmount       money.Money `json:"rest_amount"`
	RestFreezeAmount money.Money `json:"rest_freeze_amount"`
	Income           money.Money `json:"income"`
	Outcome          money.Money `json:"outcome"`
	Fee              money.Money `json:"fee"`
	Timestamp        time.Time   `json:"timestamp"`
}

// orderView is a read-only projection of domain.Order.
type orderView struct {
	ID               string      `json:"id"`
	AccountID        string      `json:"account_id"`
	CoinType         string      `json:"coin_type"`
	PriceType        string      `json:"price_type"`
	Variant          string      `json:"variant"`
	Price            money.Money `json:"price"`
	Amount           money.Money `json:"amount"`
	FeeRate          money.Money `json:"fee_rate"`
	Timestamp        time.Time   `json:"timestamp"`
	RestAmount       money.Money `json:"rest_amount"`
	RestFreezeAmount money.Money `json:"rest_freeze_amount"`
	IsCompleted      bool        `json:"is_completed"`
	Deals            []dealView  `json:"deals"`
}

func newOrderView(o *domain.Order) orderView {
	v := orderView{
		ID:               o.ID,
		AccountID:        o.AccountID,
		CoinType:         o.CoinType,
		PriceType:        o.PriceType,
		Variant:          o.Variant.String(),
		Price:            o.Price,
		Amount:           o.Amount,
		FeeRate:          o.FeeRate,
		Timestamp:        o.Timestamp,
		RestAmount:       o.RestAmount(),
		RestFreezeAmount: o.RestFreezeAmount(),
		IsCompleted:      o.IsCompleted(),
	}
	for _, d := range o.Deals {
		v.Deals = append(v.Deals, dealView{
			PairID: d.PairID, Price: d.Price, Amount: d.Amount,
			RestAmount: d.RestAmount, RestFreezeAmount: d.RestFreezeAmount,
			Income: d.Income, Outcome: d.Outcome, Fee: d.Fee, Timestamp: d.Timestamp,
		})
	}
	return v
}

// exchangeView is a read-only projection of an order book's best prices.
type exchangeView struct {
	ID        string       `json:"id"`
	CoinType  string       `json:"coin_type"`
	PriceType string       `json:"price_type"`
	BestBid   *money.Money `json:"best_bid,omitempty"`
	BestAsk   *money.Money `json:"best_ask,omitempty"`
}

func newExchangeView(e *domain.Exchange) exchangeView {
	v := exchangeView{ID: e.ID(), CoinType: e.CoinType, PriceType: e.PriceType}
	if bid := e.BestBid(); bid != nil {
		p := bid.Price
		v.BestBid = &p
	}
	if ask := e.BestAsk(); ask != nil {
		p := ask.Price
		v.BestAsk = &p
	}
	return v
}

// snapshotView is the GET /snapshot read model: every account, order, and
// exchange book the repository currently holds.
type snapshotView struct {
	Revision  uint64         `json:"revision"`
	Accounts  []accountView  `json:"accounts"`
	Orders    []orderView    `json:"orders"`
	Exchanges []exchangeView `json:"exchanges"`
}

// variantOf parses the create-order request's variant string.
func variantOf(s string) types.Variant {
	return types.Variant(s)
}
