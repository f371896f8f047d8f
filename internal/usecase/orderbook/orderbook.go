package orderbook

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	orderv1 "github.com/Dmitry-Gorlach/baraka/internal/domain/order/v1"
)

// Level holds the resting orders sharing one exact price on one side of the
// book. The queue is FIFO in arrival order, which is how time priority is
// realized: orders are only ever appended at the back and drained from the
// front.
type Level struct {
	price decimal.Decimal

	mu    sync.Mutex
	queue []*orderv1.Order
}

func newLevel(price decimal.Decimal) *Level {
	return &Level{price: price}
}

// Price returns the price shared by every order at this level.
func (l *Level) Price() decimal.Decimal {
	return l.price
}

// Peek returns the oldest resting order without removing it.
func (l *Level) Peek() (*orderv1.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	return l.queue[0], true
}

// DropFront removes order from the front of the queue. It is a no-op when the
// front has already been taken by a concurrent matching pass, so two passes
// draining the same level can never discard an order neither of them inspected.
func (l *Level) DropFront(order *orderv1.Order) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 || l.queue[0] != order {
		return false
	}
	l.queue = l.queue[1:]
	return true
}

// Len returns the number of resting orders at this level.
func (l *Level) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Orders returns a copy of the queue in time priority order.
func (l *Level) Orders() []*orderv1.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	orders := make([]*orderv1.Order, len(l.queue))
	copy(orders, l.queue)
	return orders
}

// append adds an order at the back of the queue.
func (l *Level) append(order *orderv1.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, order)
}

// remove deletes a specific order from the queue by identity. Caller holds the
// side lock; the level lock still guards against a concurrent drain.
func (l *Level) remove(order *orderv1.Order) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, o := range l.queue {
		if o == order {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return true
		}
	}
	return false
}

// side is one price-ordered half of a book. Levels are kept sorted best-first:
// descending for bids, ascending for asks. The slice and its membership are
// guarded by mu; the per-level queues carry their own lock so a matching pass
// never holds the side lock while draining.
type side struct {
	descending bool

	mu     sync.RWMutex
	levels []*Level
}

// search returns the insertion index for price in best-first order.
func (s *side) search(price decimal.Decimal) int {
	return sort.Search(len(s.levels), func(i int) bool {
		cmp := s.levels[i].price.Cmp(price)
		if s.descending {
			return cmp <= 0
		}
		return cmp >= 0
	})
}

// add inserts the order into the queue for its exact price, creating the
// price level if absent.
func (s *side) add(order *orderv1.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.search(order.Price)
	if i < len(s.levels) && s.levels[i].price.Cmp(order.Price) == 0 {
		s.levels[i].append(order)
		return
	}

	level := newLevel(order.Price)
	level.append(order)
	s.levels = append(s.levels, nil)
	copy(s.levels[i+1:], s.levels[i:])
	s.levels[i] = level
}

// best returns the best-priced level, if any.
func (s *side) best() (*Level, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.levels) == 0 {
		return nil, false
	}
	return s.levels[0], true
}

// remove deletes a specific order by identity, pruning the level if that
// leaves it empty.
func (s *side) remove(order *orderv1.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.search(order.Price)
	if i >= len(s.levels) || s.levels[i].price.Cmp(order.Price) != 0 {
		return false
	}

	level := s.levels[i]
	if !level.remove(order) {
		return false
	}
	if level.Len() == 0 {
		s.levels = append(s.levels[:i], s.levels[i+1:]...)
	}
	return true
}

// prune deletes the level if its queue is empty. The emptiness check runs
// under the side lock, so an order added concurrently at the same price keeps
// its level alive.
func (s *side) prune(level *Level) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.search(level.price)
	if i >= len(s.levels) || s.levels[i] != level {
		return
	}
	if level.Len() > 0 {
		return
	}
	s.levels = append(s.levels[:i], s.levels[i+1:]...)
}

// prices returns the level prices in iteration order.
func (s *side) prices() []decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prices := make([]decimal.Decimal, len(s.levels))
	for i, level := range s.levels {
		prices[i] = level.price
	}
	return prices
}

// OrderBook holds both sides of one asset's book: bids iterated from the
// highest price down, asks from the lowest price up. The book holds order
// references purely for matching and removal; the engine's id index stays the
// canonical owner of order identity.
type OrderBook struct {
	bids *side
	asks *side
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: &side{descending: true},
		asks: &side{},
	}
}

func (b *OrderBook) sideOf(direction orderv1.Direction) *side {
	if direction == orderv1.DirectionBuy {
		return b.bids
	}
	return b.asks
}

// Add inserts the order into the side selected by its direction, at the back
// of its exact price level's queue.
func (b *OrderBook) Add(order *orderv1.Order) {
	b.sideOf(order.Direction).add(order)
}

// Remove removes a specific order from its side's price level by identity and
// reports whether removal occurred. An emptied level is pruned immediately.
func (b *OrderBook) Remove(order *orderv1.Order) bool {
	return b.sideOf(order.Direction).remove(order)
}

// Best returns the best-priced level on the side holding orders of the given
// direction: the highest bid for BUY, the lowest ask for SELL.
func (b *OrderBook) Best(direction orderv1.Direction) (*Level, bool) {
	return b.sideOf(direction).best()
}

// Prune deletes the level from the given direction's side if it is empty.
func (b *OrderBook) Prune(direction orderv1.Direction, level *Level) {
	b.sideOf(direction).prune(level)
}

// Prices returns the level prices of the given direction's side in iteration
// order: descending for BUY, ascending for SELL.
func (b *OrderBook) Prices(direction orderv1.Direction) []decimal.Decimal {
	return b.sideOf(direction).prices()
}
