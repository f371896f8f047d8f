package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderv1 "github.com/Dmitry-Gorlach/baraka/internal/domain/order/v1"
	"github.com/Dmitry-Gorlach/baraka/pkg/errors"
	"github.com/Dmitry-Gorlach/baraka/pkg/logger"
)

func newTestEngine(t testing.TB) *MatchingEngine {
	t.Helper()
	log, err := logger.NewLogger(logger.WithLoggingLevel(logger.ErrorLevel))
	require.NoError(t, err)
	return NewMatchingEngine(log)
}

func dec(t testing.TB, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

func submit(t *testing.T, e *MatchingEngine, asset string, direction orderv1.Direction, price, amount string) *orderv1.Order {
	t.Helper()
	order, err := e.Submit(context.Background(), orderv1.SubmitRequest{
		Asset:     asset,
		Price:     dec(t, price),
		Amount:    dec(t, amount),
		Direction: direction,
	})
	require.NoError(t, err)
	return order
}

// request builds a submission without touching the testing.T, so helper
// goroutines can submit and leave the asserting to the test goroutine.
func request(asset string, direction orderv1.Direction, price, amount string) orderv1.SubmitRequest {
	return orderv1.SubmitRequest{
		Asset:     asset,
		Price:     decimal.RequireFromString(price),
		Amount:    decimal.RequireFromString(amount),
		Direction: direction,
	}
}

func tradeTotal(trades []orderv1.Trade) decimal.Decimal {
	total := decimal.Zero
	for _, trade := range trades {
		total = total.Add(trade.Amount)
	}
	return total
}

func TestMatchingEngine_Validation(t *testing.T) {
	e := newTestEngine(t)

	valid := orderv1.SubmitRequest{
		Asset:     "BTC",
		Price:     dec(t, "100"),
		Amount:    dec(t, "1"),
		Direction: orderv1.DirectionBuy,
	}

	testCases := []struct {
		name      string
		mutate    func(req *orderv1.SubmitRequest)
		wantField string
		wantCode  errors.ErrorCode
	}{
		{
			name:      "blank asset",
			mutate:    func(req *orderv1.SubmitRequest) { req.Asset = "  " },
			wantField: "asset",
			wantCode:  errors.OrderAssetRequired,
		},
		{
			name:      "zero price",
			mutate:    func(req *orderv1.SubmitRequest) { req.Price = decimal.Zero },
			wantField: "price",
			wantCode:  errors.OrderPriceInvalid,
		},
		{
			name:      "negative price",
			mutate:    func(req *orderv1.SubmitRequest) { req.Price = dec(t, "-5") },
			wantField: "price",
			wantCode:  errors.OrderPriceInvalid,
		},
		{
			name:      "zero amount",
			mutate:    func(req *orderv1.SubmitRequest) { req.Amount = decimal.Zero },
			wantField: "amount",
			wantCode:  errors.OrderAmountInvalid,
		},
		{
			name:      "missing direction",
			mutate:    func(req *orderv1.SubmitRequest) { req.Direction = "" },
			wantField: "direction",
			wantCode:  errors.OrderDirectionInvalid,
		},
		{
			name: "asset checked before price",
			mutate: func(req *orderv1.SubmitRequest) {
				req.Asset = ""
				req.Price = decimal.Zero
			},
			wantField: "asset",
			wantCode:  errors.OrderAssetRequired,
		},
		{
			name: "price checked before amount",
			mutate: func(req *orderv1.SubmitRequest) {
				req.Price = decimal.Zero
				req.Amount = decimal.Zero
			},
			wantField: "price",
			wantCode:  errors.OrderPriceInvalid,
		},
		{
			name: "amount checked before direction",
			mutate: func(req *orderv1.SubmitRequest) {
				req.Amount = dec(t, "-1")
				req.Direction = "HOLD"
			},
			wantField: "amount",
			wantCode:  errors.OrderAmountInvalid,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)

			order, err := e.Submit(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, order)
			assert.True(t, errors.IsValidation(err))
			assert.True(t, errors.ErrorCodeEquals(err, tc.wantCode))

			var details *errors.ErrorDetails
			require.ErrorAs(t, err, &details)
			assert.Equal(t, tc.wantField, details.Field)
		})
	}

	// a rejected submission allocates no id and mutates no state
	order := submit(t, e, "BTC", orderv1.DirectionBuy, "100", "1")
	assert.Equal(t, int64(1), order.ID)
}

func TestMatchingEngine_RestsUnmatchedOrder(t *testing.T) {
	e := newTestEngine(t)

	order := submit(t, e, "BTC", orderv1.DirectionBuy, "100", "5")

	assert.True(t, order.PendingAmount().Equal(dec(t, "5")))
	assert.Empty(t, order.Trades())

	found, ok := e.Lookup(order.ID)
	require.True(t, ok)
	assert.Same(t, order, found)
}

// Scenario: SELL 100@10 rests, BUY 10@10 arrives.
func TestMatchingEngine_PartialFillOfRestingOrder(t *testing.T) {
	e := newTestEngine(t)

	sell := submit(t, e, "X", orderv1.DirectionSell, "10", "100")
	buy := submit(t, e, "X", orderv1.DirectionBuy, "10", "10")

	assert.True(t, buy.IsFullyFilled())
	require.Len(t, buy.Trades(), 1)
	assert.Equal(t, sell.ID, buy.Trades()[0].OrderID)
	assert.True(t, buy.Trades()[0].Amount.Equal(dec(t, "10")))
	assert.True(t, buy.Trades()[0].Price.Equal(dec(t, "10")))

	assert.True(t, sell.PendingAmount().Equal(dec(t, "90")))
	require.Len(t, sell.Trades(), 1)
	assert.Equal(t, buy.ID, sell.Trades()[0].OrderID)
	assert.True(t, sell.Trades()[0].Amount.Equal(dec(t, "10")))
}

// Scenario: SELL 1@50000, BUY 1@50000 fill each other completely.
func TestMatchingEngine_ExactFill(t *testing.T) {
	e := newTestEngine(t)

	sell := submit(t, e, "BTC", orderv1.DirectionSell, "50000", "1")
	buy := submit(t, e, "BTC", orderv1.DirectionBuy, "50000", "1")

	for _, order := range []*orderv1.Order{sell, buy} {
		assert.True(t, order.IsFullyFilled())
		require.Len(t, order.Trades(), 1)
		assert.True(t, order.Trades()[0].Amount.Equal(dec(t, "1")))
		assert.True(t, order.Trades()[0].Price.Equal(dec(t, "50000")))
	}
}

// Scenario: SELL 2@50000, BUY 1@50000 leaves the seller half filled.
func TestMatchingEngine_IncomingFullyFilledRestingPartial(t *testing.T) {
	e := newTestEngine(t)

	sell := submit(t, e, "BTC", orderv1.DirectionSell, "50000", "2")
	buy := submit(t, e, "BTC", orderv1.DirectionBuy, "50000", "1")

	assert.True(t, buy.IsFullyFilled())
	assert.True(t, sell.PendingAmount().Equal(dec(t, "1")))
	assert.Len(t, sell.Trades(), 1)

	// the seller's remainder still rests: a second buy fills it
	buy2 := submit(t, e, "BTC", orderv1.DirectionBuy, "50000", "1")
	assert.True(t, buy2.IsFullyFilled())
	assert.True(t, sell.IsFullyFilled())
}

// Scenario: sells at 50000, 49000, 51000; BUY 2@50500 takes the 49000 and
// 50000 levels at their own prices and never touches 51000.
func TestMatchingEngine_PricePriority(t *testing.T) {
	e := newTestEngine(t)

	sellAt50000 := submit(t, e, "BTC", orderv1.DirectionSell, "50000", "1")
	sellAt49000 := submit(t, e, "BTC", orderv1.DirectionSell, "49000", "1")
	sellAt51000 := submit(t, e, "BTC", orderv1.DirectionSell, "51000", "1")

	buy := submit(t, e, "BTC", orderv1.DirectionBuy, "50500", "2")

	assert.True(t, buy.IsFullyFilled())
	trades := buy.Trades()
	require.Len(t, trades, 2)

	// best price drained first, each trade at the maker's price
	assert.Equal(t, sellAt49000.ID, trades[0].OrderID)
	assert.True(t, trades[0].Price.Equal(dec(t, "49000")))
	assert.Equal(t, sellAt50000.ID, trades[1].OrderID)
	assert.True(t, trades[1].Price.Equal(dec(t, "50000")))

	assert.True(t, sellAt49000.IsFullyFilled())
	assert.True(t, sellAt50000.IsFullyFilled())
	assert.True(t, sellAt51000.PendingAmount().Equal(dec(t, "1")))
	assert.Empty(t, sellAt51000.Trades())
}

// Scenario: three identical sells; a BUY for two fills the two oldest.
func TestMatchingEngine_TimePriority(t *testing.T) {
	e := newTestEngine(t)

	first := submit(t, e, "BTC", orderv1.DirectionSell, "50000", "1")
	second := submit(t, e, "BTC", orderv1.DirectionSell, "50000", "1")
	third := submit(t, e, "BTC", orderv1.DirectionSell, "50000", "1")

	buy := submit(t, e, "BTC", orderv1.DirectionBuy, "50000", "2")

	assert.True(t, buy.IsFullyFilled())
	trades := buy.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, first.ID, trades[0].OrderID)
	assert.Equal(t, second.ID, trades[1].OrderID)

	assert.True(t, third.PendingAmount().Equal(dec(t, "1")))
	assert.Empty(t, third.Trades())
}

// Scenario: orders on different assets never cross.
func TestMatchingEngine_CrossAssetIsolation(t *testing.T) {
	e := newTestEngine(t)

	buy := submit(t, e, "X", orderv1.DirectionBuy, "50000", "1")
	sell := submit(t, e, "Y", orderv1.DirectionSell, "50000", "1")

	assert.True(t, buy.PendingAmount().Equal(dec(t, "1")))
	assert.True(t, sell.PendingAmount().Equal(dec(t, "1")))
	assert.Empty(t, buy.Trades())
	assert.Empty(t, sell.Trades())
}

func TestMatchingEngine_IDsAreSequential(t *testing.T) {
	e := newTestEngine(t)

	for want := int64(1); want <= 5; want++ {
		order := submit(t, e, "BTC", orderv1.DirectionBuy, "1", "1")
		assert.Equal(t, want, order.ID)
	}
}

func TestMatchingEngine_Lookup(t *testing.T) {
	e := newTestEngine(t)

	_, ok := e.Lookup(42)
	assert.False(t, ok)

	order := submit(t, e, "BTC", orderv1.DirectionBuy, "1", "1")
	found, ok := e.Lookup(order.ID)
	require.True(t, ok)
	assert.Same(t, order, found)
}

// A filled order stays queryable and its trade list never changes afterwards.
func TestMatchingEngine_FilledOrderStable(t *testing.T) {
	e := newTestEngine(t)

	sell := submit(t, e, "BTC", orderv1.DirectionSell, "100", "1")
	submit(t, e, "BTC", orderv1.DirectionBuy, "100", "1")

	snapshot := sell.Trades()

	// further traffic at the same price must not touch the filled order
	submit(t, e, "BTC", orderv1.DirectionSell, "100", "1")
	submit(t, e, "BTC", orderv1.DirectionBuy, "100", "1")

	found, ok := e.Lookup(sell.ID)
	require.True(t, ok)
	assert.Equal(t, snapshot, found.Trades())
	assert.True(t, found.IsFullyFilled())
}

func TestMatchingEngine_SubmitAt(t *testing.T) {
	e := newTestEngine(t)
	timestamp := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	order, err := e.SubmitAt(context.Background(), orderv1.SubmitRequest{
		Asset:     "BTC",
		Price:     dec(t, "100"),
		Amount:    dec(t, "1"),
		Direction: orderv1.DirectionSell,
	}, timestamp)
	require.NoError(t, err)
	assert.Equal(t, timestamp, order.Timestamp)

	// an older timestamp grants no priority over orders already resting
	earlier := timestamp.Add(-time.Hour)
	late, err := e.SubmitAt(context.Background(), orderv1.SubmitRequest{
		Asset:     "BTC",
		Price:     dec(t, "100"),
		Amount:    dec(t, "1"),
		Direction: orderv1.DirectionSell,
	}, earlier)
	require.NoError(t, err)

	buy := submit(t, e, "BTC", orderv1.DirectionBuy, "100", "1")
	require.Len(t, buy.Trades(), 1)
	assert.Equal(t, order.ID, buy.Trades()[0].OrderID)
	assert.False(t, late.IsFullyFilled())
}

// Concurrent submissions on both sides of one asset: every order must end
// with its trades reconciling its pending amount, ids must stay unique, and
// total buy volume filled must equal total sell volume filled.
func TestMatchingEngine_ConcurrentSubmissions(t *testing.T) {
	e := newTestEngine(t)

	const perSide = 200
	orders := make([]*orderv1.Order, 2*perSide)
	errs := make([]error, 2*perSide)

	var wg sync.WaitGroup
	wg.Add(2 * perSide)
	for i := 0; i < perSide; i++ {
		go func(i int) {
			defer wg.Done()
			orders[i], errs[i] = e.Submit(context.Background(), request("BTC", orderv1.DirectionBuy, "100", "1"))
		}(i)
		go func(i int) {
			defer wg.Done()
			orders[perSide+i], errs[perSide+i] = e.Submit(context.Background(), request("BTC", orderv1.DirectionSell, "100", "1"))
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	buyFilled, sellFilled := decimal.Zero, decimal.Zero
	for i, order := range orders {
		require.NoError(t, errs[i])
		require.NotNil(t, order)

		assert.False(t, seen[order.ID], "order id assigned twice")
		seen[order.ID] = true

		pending := order.PendingAmount()
		assert.True(t, pending.Sign() >= 0, "pending amount went negative")
		assert.True(t, pending.LessThanOrEqual(order.Amount))

		filled := tradeTotal(order.Trades())
		assert.True(t, order.Amount.Sub(pending).Equal(filled),
			"order %d: amount - pending != sum of trades", order.ID)

		if order.Direction == orderv1.DirectionBuy {
			buyFilled = buyFilled.Add(filled)
		} else {
			sellFilled = sellFilled.Add(filled)
		}
	}

	assert.True(t, buyFilled.Equal(sellFilled), "buy volume %s != sell volume %s", buyFilled, sellFilled)
}

// Racing submissions for a brand-new asset must share a single book: sells
// submitted concurrently are all reachable by one sweeping buy afterwards.
func TestMatchingEngine_ConcurrentBookCreation(t *testing.T) {
	e := newTestEngine(t)

	const sellers = 50
	errs := make([]error, sellers)
	var wg sync.WaitGroup
	wg.Add(sellers)
	for i := 0; i < sellers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Submit(context.Background(), request("NEW", orderv1.DirectionSell, "10", "1"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	buy := submit(t, e, "NEW", orderv1.DirectionBuy, "10", "50")
	assert.True(t, buy.IsFullyFilled())
	assert.Len(t, buy.Trades(), sellers)
}

func TestMatchingEngine_ConcurrentAssetsIndependent(t *testing.T) {
	e := newTestEngine(t)

	assets := []string{"BTC", "ETH", "SOL", "ADA"}
	errs := make([]error, 2*len(assets))
	var wg sync.WaitGroup
	for ai, asset := range assets {
		wg.Add(2)
		go func(ai int, asset string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := e.Submit(context.Background(), request(asset, orderv1.DirectionSell, "100", "1")); err != nil {
					errs[2*ai] = err
					return
				}
			}
		}(ai, asset)
		go func(ai int, asset string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := e.Submit(context.Background(), request(asset, orderv1.DirectionBuy, "100", "1")); err != nil {
					errs[2*ai+1] = err
					return
				}
			}
		}(ai, asset)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	// per-asset fills balance; nothing leaked across books
	for _, asset := range assets {
		buyFilled, sellFilled := decimal.Zero, decimal.Zero
		e.orders.Range(func(_, value any) bool {
			order := value.(*orderv1.Order)
			if order.Asset != asset {
				return true
			}
			for _, trade := range order.Trades() {
				counterparty, ok := e.Lookup(trade.OrderID)
				require.True(t, ok)
				assert.Equal(t, asset, counterparty.Asset)
			}
			if order.Direction == orderv1.DirectionBuy {
				buyFilled = buyFilled.Add(tradeTotal(order.Trades()))
			} else {
				sellFilled = sellFilled.Add(tradeTotal(order.Trades()))
			}
			return true
		})
		assert.True(t, buyFilled.Equal(sellFilled))
	}
}
