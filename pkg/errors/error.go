package errors

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// GeneralInternalServerError represents a generic internal server error.
	GeneralInternalServerError ErrorCode = "general_internal_server_error"
	// GeneralBadRequestError represents a generic bad request error.
	GeneralBadRequestError ErrorCode = "general_bad_request_error"
	// GeneralNotFoundError represents a generic not found error.
	GeneralNotFoundError ErrorCode = "general_not_found_error"

	// OrderAssetRequired is raised when a submission carries no asset.
	OrderAssetRequired ErrorCode = "order_asset_required"
	// OrderPriceInvalid is raised when a submission's price is not positive.
	OrderPriceInvalid ErrorCode = "order_price_invalid"
	// OrderAmountInvalid is raised when a submission's amount is not positive.
	OrderAmountInvalid ErrorCode = "order_amount_invalid"
	// OrderDirectionInvalid is raised when a submission's direction is missing
	// or not one of BUY/SELL.
	OrderDirectionInvalid ErrorCode = "order_direction_invalid"
)

// validationCodes are the codes a submission validation failure may carry.
var validationCodes = map[ErrorCode]bool{
	OrderAssetRequired:    true,
	OrderPriceInvalid:     true,
	OrderAmountInvalid:    true,
	OrderDirectionInvalid: true,
}

// NewValidation creates the ErrorDetails for a rejected submission field.
func NewValidation(code ErrorCode, field, message string) *ErrorDetails {
	return &ErrorDetails{
		Message: message,
		Code:    string(code),
		Field:   field,
	}
}

// IsValidation reports whether err is a submission validation failure.
func IsValidation(err error) bool {
	details, ok := err.(*ErrorDetails)
	if !ok {
		return false
	}
	return validationCodes[ErrorCode(details.Code)]
}
