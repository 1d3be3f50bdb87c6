// Package snapshot persists and restores a Repository as a single JSON
// document, using the same atomic write-then-rename strategy the rest of
// this stack uses for crash-safe file persistence.
//
// A snapshot is a serialization of (revision, accounts, orders,
// exchanges, three bloom filters) sufficient to fully reconstitute a
// Repository: replaying committed events from revision r onto a snapshot
// taken at revision r reproduces the same state as applying from
// revision 0, and a round trip through the document preserves decimal
// scale and every Balance.Revision counter exactly. Order books are not
// serialized directly; they are rebuilt by re-enqueuing every
// not-yet-completed order in timestamp order; a price level's FIFO
// ordering depends only on that replay order, not on any stored queue
// structure.
package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Fleurer/meme/internal/domain"
	"github.com/Fleurer/meme/internal/repo"
	"github.com/Fleurer/meme/pkg/money"
	"github.com/Fleurer/meme/pkg/types"
)

// document is the on-disk shape. Field names are part of the format.
type document struct {
	Revision  uint64         `json:"revision"`
	Accounts  []accountDoc   `json:"accounts"`
	Orders    []orderDoc     `json:"orders"`
	Exchanges []exchangeDoc  `json:"exchanges"`
	Blooms    bloomsDoc      `json:"blooms"`
}

type accountDoc struct {
	ID       string                 `json:"id"`
	Balances map[string]balanceDoc `json:"balances"`
}

type balanceDoc struct {
	Active   money.Money `json:"active"`
	Frozen   money.Money `json:"frozen"`
	Revision uint64      `json:"revision"`
}

type dealDoc struct {
	OrderID          string      `json:"order_id"`
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

type orderDoc struct {
	ID        string      `json:"id"`
	AccountID string      `json:"account_id"`
	CoinType  string      `json:"coin_type"`
	PriceType string      `json:"price_type"`
	Variant   string      `json:"variant"`
	Price     money.Money `json:"price"`
	Amount    money.Money `json:"amount"`
	FeeRate   money.Money `json:"fee_rate"`
	Timestamp time.Time   `json:"timestamp"`
	Deals     []dealDoc   `json:"deals"`
}

type exchangeDoc struct {
	CoinType  string `json:"coin_type"`
	PriceType string `json:"price_type"`
}

type bloomsDoc struct {
	Credits string `json:"credits"` // base64 of BloomFilter.MarshalBinary
	Debits  string `json:"debits"`
	Orders  string `json:"orders"`
}

// Save atomically writes r's full state to path: marshal to path+".tmp",
// then rename over path, so a crash mid-write never leaves a truncated
// snapshot in place.
func Save(r *repo.Repository, path string) error {
	doc := document{Revision: r.Revision()}

	r.RangeAccounts(func(a *domain.Account) bool {
		ad := accountDoc{ID: a.ID, Balances: make(map[string]balanceDoc, len(a.Balances))}
		for coin, bal := range a.Balances {
			ad.Balances[coin] = balanceDoc{Active: bal.Active, Frozen: bal.Frozen, Revision: bal.Revision}
		}
		doc.Accounts = append(doc.Accounts, ad)
		return true
	})

	r.RangeOrders(func(o *domain.Order) bool {
		od := orderDoc{
			ID:        o.ID,
			AccountID: o.AccountID,
			CoinType:  o.CoinType,
			PriceType: o.PriceType,
			Variant:   o.Variant.String(),
			Price:     o.Price,
			Amount:    o.Amount,
			FeeRate:   o.FeeRate,
			Timestamp: o.Timestamp,
		}
		for _, d := range o.Deals {
			od.Deals = append(od.Deals, dealDoc{
				OrderID: d.OrderID, PairID: d.PairID, Price: d.Price, Amount: d.Amount,
				RestAmount: d.RestAmount, RestFreezeAmount: d.RestFreezeAmount,
				Income: d.Income, Outcome: d.Outcome, Fee: d.Fee, Timestamp: d.Timestamp,
			})
		}
		doc.Orders = append(doc.Orders, od)
		return true
	})

	r.RangeExchanges(func(e *domain.Exchange) bool {
		doc.Exchanges = append(doc.Exchanges, exchangeDoc{CoinType: e.CoinType, PriceType: e.PriceType})
		return true
	})

	credits, debits, orders, err := r.MarshalBloomFilters()
	if err != nil {
		return fmt.Errorf("marshal bloom filters: %w", err)
	}
	doc.Blooms = bloomsDoc{
		Credits: base64.StdEncoding.EncodeToString(credits),
		Debits:  base64.StdEncoding.EncodeToString(debits),
		Orders:  base64.StdEncoding.EncodeToString(orders),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reconstructs a Repository from path. It returns (nil, nil) if no
// snapshot file exists yet, so callers can fall back to repo.New().
func Load(path string) (*repo.Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	r := repo.New()

	for _, ad := range doc.Accounts {
		acc := domain.NewAccount(ad.ID)
		for coin, bd := range ad.Balances {
			acc.Balances[coin] = domain.Balance{Active: bd.Active, Frozen: bd.Frozen, Revision: bd.Revision}
		}
		r.PutAccount(acc)
	}

	for _, ed := range doc.Exchanges {
		r.PutExchange(domain.NewExchange(ed.CoinType, ed.PriceType))
	}

	orders := make([]*domain.Order, 0, len(doc.Orders))
	for _, od := range doc.Orders {
		variant := types.Variant(od.Variant)
		order, err := domain.NewOrder(od.ID, variant, od.AccountID, od.CoinType, od.PriceType, od.Price, od.Amount, od.FeeRate, od.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("restore order %s: %w", od.ID, err)
		}
		for _, dd := range od.Deals {
			deal := domain.Deal{
				OrderID: dd.OrderID, PairID: dd.PairID, Price: dd.Price, Amount: dd.Amount,
				RestAmount: dd.RestAmount, RestFreezeAmount: dd.RestFreezeAmount,
				Income: dd.Income, Outcome: dd.Outcome, Fee: dd.Fee, Timestamp: dd.Timestamp,
			}
			if err := order.AppendDeal(deal); err != nil {
				return nil, fmt.Errorf("restore deal on order %s: %w", od.ID, err)
			}
		}
		orders = append(orders, order)
		r.PutOrder(order)
	}

	// Re-enqueue not-yet-completed orders in timestamp order so each
	// price level's FIFO priority matches the order the original commits
	// established.
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].Timestamp.Before(orders[j].Timestamp) })
	for _, o := range orders {
		if o.IsCompleted() {
			continue
		}
		ex, ok := r.GetExchange(o.ExchangeID())
		if !ok {
			ex = domain.NewExchange(o.CoinType, o.PriceType)
			r.PutExchange(ex)
		}
		ex.Enqueue(o)
	}

	credits, err := base64.StdEncoding.DecodeString(doc.Blooms.Credits)
	if err != nil {
		return nil, fmt.Errorf("decode credits bloom: %w", err)
	}
	debits, err := base64.StdEncoding.DecodeString(doc.Blooms.Debits)
	if err != nil {
		return nil, fmt.Errorf("decode debits bloom: %w", err)
	}
	ordersSeen, err := base64.StdEncoding.DecodeString(doc.Blooms.Orders)
	if err != nil {
		return nil, fmt.Errorf("decode orders bloom: %w", err)
	}
	if err := r.RestoreBloomFilters(credits, debits, ordersSeen); err != nil {
		return nil, fmt.Errorf("restore bloom filters: %w", err)
	}

	r.SetRevision(doc.Revision)
	return r, nil
}
