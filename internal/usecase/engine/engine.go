package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	orderv1 "github.com/Dmitry-Gorlach/baraka/internal/domain/order/v1"
	"github.com/Dmitry-Gorlach/baraka/internal/usecase/orderbook"
	"github.com/Dmitry-Gorlach/baraka/pkg/errors"
	"github.com/Dmitry-Gorlach/baraka/pkg/logger"
)

// MatchingEngine maintains one order book per asset, assigns order ids and
// matches each newly submitted order against the opposite side of its book.
// Matching runs synchronously on the submitting goroutine; there is no worker
// hand-off.
type MatchingEngine struct {
	books  sync.Map // asset -> *orderbook.OrderBook
	orders sync.Map // order id -> *orderv1.Order
	lastID atomic.Int64
	logger *logger.Logger
}

// NewMatchingEngine creates an empty engine.
func NewMatchingEngine(log *logger.Logger) *MatchingEngine {
	return &MatchingEngine{
		logger: log,
	}
}

// Submit processes a new order request using the current instant as the order
// timestamp.
func (e *MatchingEngine) Submit(ctx context.Context, req orderv1.SubmitRequest) (*orderv1.Order, error) {
	return e.SubmitAt(ctx, req, time.Now())
}

// SubmitAt processes a new order request with an explicit timestamp. The
// timestamp is informational only; the incoming order is matched against the
// book's existing contents regardless of its value.
func (e *MatchingEngine) SubmitAt(ctx context.Context, req orderv1.SubmitRequest, timestamp time.Time) (*orderv1.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	id := e.lastID.Add(1)
	order := orderv1.NewOrder(id, timestamp, req.Asset, req.Price, req.Amount, req.Direction)

	// Register before matching so the order is visible to concurrent lookups
	// while it is still being filled.
	e.orders.Store(id, order)
	ordersSubmitted.Inc()

	book := e.book(req.Asset)
	e.match(ctx, order, book)

	if !order.IsFullyFilled() {
		book.Add(order)
	}

	e.logger.DebugContext(ctx, "order processed",
		logger.Field{Key: "orderID", Value: order.ID},
		logger.Field{Key: "asset", Value: order.Asset},
		logger.Field{Key: "direction", Value: order.Direction},
		logger.Field{Key: "pendingAmount", Value: order.PendingAmount()},
	)

	return order, nil
}

// Lookup returns the live order with the given id, or false if none exists.
// Callers needing a point-in-time snapshot of the fills must copy the trade
// list via Order.Trades.
func (e *MatchingEngine) Lookup(id int64) (*orderv1.Order, bool) {
	value, ok := e.orders.Load(id)
	if !ok {
		return nil, false
	}
	return value.(*orderv1.Order), true
}

// book returns the asset's order book, creating it on first use. LoadOrStore
// keeps creation idempotent when two submissions race on a new asset.
func (e *MatchingEngine) book(asset string) *orderbook.OrderBook {
	if value, ok := e.books.Load(asset); ok {
		return value.(*orderbook.OrderBook)
	}
	value, _ := e.books.LoadOrStore(asset, orderbook.NewOrderBook())
	return value.(*orderbook.OrderBook)
}

// match runs the price-time priority matching algorithm: best opposing level
// first, oldest resting order first within a level, execution at the resting
// order's price. It stops once the incoming order is fully filled or the best
// remaining level no longer crosses.
func (e *MatchingEngine) match(ctx context.Context, incoming *orderv1.Order, book *orderbook.OrderBook) {
	opposite := incoming.Direction.Opposite()

	for !incoming.IsFullyFilled() {
		level, ok := book.Best(opposite)
		if !ok || !crosses(incoming, level.Price()) {
			// Every worse-priced level cannot cross either.
			return
		}

		e.drainLevel(ctx, incoming, level)
		book.Prune(opposite, level)
	}
}

// crosses reports whether the incoming order can trade at the given opposing
// level price: a BUY crosses asks priced at or below its limit, a SELL crosses
// bids priced at or above it.
func crosses(incoming *orderv1.Order, levelPrice decimal.Decimal) bool {
	if incoming.Direction == orderv1.DirectionBuy {
		return levelPrice.LessThanOrEqual(incoming.Price)
	}
	return levelPrice.GreaterThanOrEqual(incoming.Price)
}

// drainLevel fills the incoming order against the level's queue from the
// front until the order is fully filled or the queue runs out. Resting orders
// found already filled by a concurrent pass are discarded without a trade.
func (e *MatchingEngine) drainLevel(ctx context.Context, incoming *orderv1.Order, level *orderbook.Level) {
	for !incoming.IsFullyFilled() {
		resting, ok := level.Peek()
		if !ok {
			return
		}

		amount, traded := resting.Fill(incoming)
		if !traded {
			// Filled elsewhere between our peek and its lock; skip it.
			level.DropFront(resting)
			continue
		}

		tradesExecuted.Inc()
		e.logger.InfoContext(ctx, "trade executed",
			logger.Field{Key: "asset", Value: incoming.Asset},
			logger.Field{Key: "price", Value: resting.Price},
			logger.Field{Key: "amount", Value: amount},
			logger.Field{Key: "incomingOrderID", Value: incoming.ID},
			logger.Field{Key: "restingOrderID", Value: resting.ID},
		)

		if resting.IsFullyFilled() {
			level.DropFront(resting)
		}
	}
}

// validateRequest rejects malformed submissions before any state mutation,
// reporting the first violated field in asset, price, amount, direction order.
func validateRequest(req orderv1.SubmitRequest) error {
	switch {
	case strings.TrimSpace(req.Asset) == "":
		return errors.NewValidation(errors.OrderAssetRequired, "asset", "asset must not be blank")
	case !req.Price.IsPositive():
		return errors.NewValidation(errors.OrderPriceInvalid, "price", "price must be positive")
	case !req.Amount.IsPositive():
		return errors.NewValidation(errors.OrderAmountInvalid, "amount", "amount must be positive")
	case !req.Direction.IsValid():
		return errors.NewValidation(errors.OrderDirectionInvalid, "direction", "direction must be BUY or SELL")
	}
	return nil
}
