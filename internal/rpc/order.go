package rpc

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	orderv1 "github.com/Dmitry-Gorlach/baraka/internal/domain/order/v1"
	"github.com/Dmitry-Gorlach/baraka/pkg/errors"
	"github.com/Dmitry-Gorlach/baraka/pkg/logger"
)

// OrderRPC handles the order HTTP endpoints.
type OrderRPC struct {
	matcher orderv1.Matcher
	logger  logger.Interface
}

// NewOrderRPC creates a new order handler over the given matcher.
func NewOrderRPC(matcher orderv1.Matcher, log logger.Interface) *OrderRPC {
	return &OrderRPC{
		matcher: matcher,
		logger:  log,
	}
}

// orderRequest is the POST /orders body. Decimal fields accept JSON numbers
// as well as strings.
type orderRequest struct {
	Asset     string          `json:"asset"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Direction string          `json:"direction"`
}

type tradeResponse struct {
	OrderID int64           `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
	Price   decimal.Decimal `json:"price"`
}

type orderResponse struct {
	ID            int64           `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Asset         string          `json:"asset"`
	Price         decimal.Decimal `json:"price"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     string          `json:"direction"`
	PendingAmount decimal.Decimal `json:"pendingAmount"`
	Trades        []tradeResponse `json:"trades"`
}

type errorResponse struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// CreateOrder handles POST /orders: it submits the order to the engine and
// answers 201 with the (possibly partially filled) order.
func (o *OrderRPC) CreateOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: "malformed request body"})
		return
	}

	order, err := o.matcher.Submit(c.Request.Context(), orderv1.SubmitRequest{
		Asset:     req.Asset,
		Price:     req.Price,
		Amount:    req.Amount,
		Direction: orderv1.Direction(req.Direction),
	})
	if err != nil {
		var details *errors.ErrorDetails
		if stderrors.As(err, &details) {
			c.JSON(http.StatusBadRequest, errorResponse{
				Field:   details.Field,
				Message: details.Message,
			})
			return
		}

		o.logger.ErrorContext(c.Request.Context(), errors.TracerFromError(err),
			logger.Field{Key: "action", Value: "create_order"},
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

// GetOrder handles GET /orders/:id.
func (o *OrderRPC) GetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Field:   "id",
			Message: "order id must be an integer",
		})
		return
	}

	order, ok := o.matcher.Lookup(id)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Message: "order not found"})
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// toOrderResponse maps an order to its response representation. The trade list
// comes from Order.Trades, so the response never aliases engine state.
func toOrderResponse(order *orderv1.Order) orderResponse {
	trades := order.Trades()
	tradeResponses := make([]tradeResponse, len(trades))
	for i, trade := range trades {
		tradeResponses[i] = tradeResponse{
			OrderID: trade.OrderID,
			Amount:  trade.Amount,
			Price:   trade.Price,
		}
	}

	return orderResponse{
		ID:            order.ID,
		Timestamp:     order.Timestamp,
		Asset:         order.Asset,
		Price:         order.Price,
		Amount:        order.Amount,
		Direction:     string(order.Direction),
		PendingAmount: order.PendingAmount(),
		Trades:        tradeResponses,
	}
}
