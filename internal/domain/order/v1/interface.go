package orderv1

import "context"

// Matcher is the engine surface the transport layer depends on.
type Matcher interface {
	// Submit validates the request, matches the new order against the asset's
	// book and rests any unfilled remainder. It returns the (possibly
	// partially filled) order, or a validation error identifying the first
	// violated field.
	Submit(ctx context.Context, req SubmitRequest) (*Order, error)

	// Lookup returns the order with the given id, or false if none exists.
	Lookup(id int64) (*Order, bool)
}
