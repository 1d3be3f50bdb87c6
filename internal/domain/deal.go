package domain

import (
	"time"

	"github.com/Fleurer/meme/pkg/money"
)

// Deal is the per-side record produced when two orders match. Two Deals are
// produced per match, one from each side's perspective; they share Price,
// Amount, and Timestamp.
type Deal struct {
	OrderID           string
	PairID            string
	Price             money.Money
	Amount            money.Money
	RestAmount        money.Money
	RestFreezeAmount  money.Money
	Income            money.Money
	Outcome           money.Money
	Fee               money.Money
	Timestamp         time.Time
}
