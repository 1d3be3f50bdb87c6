package api

import (
	"github.com/Fleurer/meme/internal/domain"
	"github.com/Fleurer/meme/internal/repo"
)

// BuildSnapshot projects the full repository state into the GET /snapshot
// read model. Callers must already hold at least a read lock over r —
// BuildSnapshot itself performs no locking, matching Repository's own
// "caller serializes" contract.
func BuildSnapshot(r *repo.Repository) snapshotView {
	snap := snapshotView{Revision: r.Revision()}

	r.RangeAccounts(func(a *domain.Account) bool {
		snap.Accounts = append(snap.Accounts, newAccountView(a))
		return true
	})
	r.RangeOrders(func(o *domain.Order) bool {
		snap.Orders = append(snap.Orders, newOrderView(o))
		return true
	})
	r.RangeExchanges(func(e *domain.Exchange) bool {
		snap.Exchanges = append(snap.Exchanges, newExchangeView(e))
		return true
	})

	return snap
}
