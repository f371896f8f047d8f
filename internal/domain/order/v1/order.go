package orderv1

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the side of an order.
type Direction string

const (
	// DirectionBuy represents a buy (bid) order.
	DirectionBuy Direction = "BUY"
	// DirectionSell represents a sell (ask) order.
	DirectionSell Direction = "SELL"
)

// IsValid checks if the direction is one of BUY/SELL.
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Opposite returns the other side of the book.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// Trade is an immutable record of a single fill. OrderID identifies the order
// on the other side of the fill; Price is always the resting order's price.
type Trade struct {
	OrderID int64
	Amount  decimal.Decimal
	Price   decimal.Decimal
}

// SubmitRequest represents a request to submit an order to the engine.
type SubmitRequest struct {
	Asset     string
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Direction Direction
}

// Order represents a single submitted order and its fill history.
//
// Identity fields are immutable after construction. The fill state (pending
// amount and trade list) is guarded by a per-order mutex so that two matching
// passes touching the same resting order never interleave a read-check-fill
// sequence.
type Order struct {
	ID        int64
	Timestamp time.Time
	Asset     string
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Direction Direction

	mu      sync.Mutex
	pending decimal.Decimal
	trades  []Trade
}

// NewOrder creates a new order with pending amount equal to the full amount
// and an empty trade list.
func NewOrder(id int64, timestamp time.Time, asset string, price, amount decimal.Decimal, direction Direction) *Order {
	return &Order{
		ID:        id,
		Timestamp: timestamp,
		Asset:     asset,
		Price:     price,
		Amount:    amount,
		Direction: direction,
		pending:   amount,
	}
}

// PendingAmount returns the unfilled quantity remaining on the order.
func (o *Order) PendingAmount() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending
}

// IsFullyFilled checks if the pending amount is exactly zero.
func (o *Order) IsFullyFilled() bool {
	return o.PendingAmount().IsZero()
}

// Trades returns a defensive copy of the trade list so callers cannot mutate
// engine-internal state through the returned slice.
func (o *Order) Trades() []Trade {
	o.mu.Lock()
	defer o.mu.Unlock()
	trades := make([]Trade, len(o.trades))
	copy(trades, o.trades)
	return trades
}

// AddTrade appends a trade and decrements the pending amount by the trade
// amount, as one atomic step. The caller is responsible for never supplying an
// amount that would drive the pending amount below zero.
func (o *Order) AddTrade(trade Trade) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.record(trade)
}

// record appends a trade and decrements pending. Caller must hold o.mu.
func (o *Order) record(trade Trade) {
	o.trades = append(o.trades, trade)
	o.pending = o.pending.Sub(trade.Amount)
}

// Fill executes the resting order o against the incoming order at the resting
// order's price (maker price) and records one trade on each side. It returns
// the traded amount and false when no trade was possible because o was already
// fully filled by a concurrent matching pass.
//
// o's fill state is re-checked and mutated under o's lock. The incoming order
// is advanced only by the goroutine that submitted it, so its pending amount
// cannot change underneath us here; its own lock is taken just long enough to
// keep the trade append consistent for concurrent readers. An order being
// matched is not yet resting in any book, so the two locks can never be
// acquired in the reverse roles.
func (o *Order) Fill(incoming *Order) (decimal.Decimal, bool) {
	o.mu.Lock()
	if o.pending.IsZero() {
		o.mu.Unlock()
		return decimal.Decimal{}, false
	}

	amount := decimal.Min(incoming.PendingAmount(), o.pending)
	if !amount.IsPositive() {
		o.mu.Unlock()
		return decimal.Decimal{}, false
	}

	o.record(Trade{OrderID: incoming.ID, Amount: amount, Price: o.Price})
	o.mu.Unlock()

	incoming.AddTrade(Trade{OrderID: o.ID, Amount: amount, Price: o.Price})

	return amount, true
}
