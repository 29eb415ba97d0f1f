package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound            = errors.New("not found")
	ErrNoRecipients        = errors.New("recipient list must not be empty")
	ErrTooManyRecipients   = errors.New("recipient list exceeds the per-request maximum")
	ErrEmptyMessage        = errors.New("a message body or an image is required")
	ErrInvalidChannel      = errors.New("invalid channel: must be telegram, whatsapp, or webhook")
	ErrQuotaExceeded       = errors.New("message quota exceeded, back off and retry later")
	ErrMissingBuyer        = errors.New("buyer name and phone are required")
	ErrAmbiguousItem       = errors.New("exactly one of product_id or combo_id is required")
	ErrNoActiveCode        = errors.New("no active redemption code available")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSaleNotPending      = errors.New("sale is not pending")
	ErrUnsupportedEvent    = errors.New("unsupported payment event")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrQueueFull           = errors.New("delivery queue is at capacity, try again later")
)
