// Package gmo implements the GMO Coin FX broker gateway: request signing,
// per-method rate limiting, typed REST operations, and the public/private
// WebSocket streams. The gateway is dependency-injected — a Gateway value
// owns its limiter, signer and transports; nothing in here is package state.
package gmo

import (
	"errors"
	"fmt"
)

// Category classifies gateway failures for retry and surfacing decisions.
type Category string

const (
	CatConfig      Category = "CONFIG"
	CatAuth        Category = "AUTH"
	CatClockSkew   Category = "CLOCK_SKEW"
	CatRateLimited Category = "RATE_LIMITED"
	CatMaintenance Category = "MAINTENANCE"
	CatMarketClose Category = "MARKET_CLOSED"
	CatValidation  Category = "VALIDATION"
	CatTransport   Category = "TRANSPORT"
	CatStall       Category = "WS_CONSUMER_STALL"
	CatCancelled   Category = "CANCELLED"
	CatInternal    Category = "INTERNAL"
)

// Transient reports whether a failure in this category may be retried.
func (c Category) Transient() bool {
	switch c {
	case CatRateLimited, CatMaintenance, CatTransport:
		return true
	}
	return false
}

// APIError is a structured broker failure. Code carries the broker's
// original message code (e.g. "ERR-5003") for auditability.
type APIError struct {
	Category Category
	Code     string
	Message  string
	Status   int // HTTP status, 0 for non-HTTP failures
	Err      error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gmo: %s [%s] %s", e.Category, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("gmo: %s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("gmo: %s: %s", e.Category, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsCategory reports whether err is an APIError of the given category.
func IsCategory(err error, c Category) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Category == c
}

// Broker message codes the gateway understands. Anything unmapped is
// VALIDATION: the broker rejected the request and a retry cannot help.
var codeCategories = map[string]Category{
	"ERR-5003": CatRateLimited,
	"ERR-5008": CatClockSkew, // timestamp too old
	"ERR-5009": CatClockSkew, // timestamp in the future
	"ERR-5010": CatAuth,
	"ERR-5011": CatAuth,
	"ERR-5012": CatAuth, // invalid or expired token
	"ERR-5014": CatAuth,
	"ERR-5106": CatValidation,
	"ERR-5126": CatValidation, // size out of range
	"ERR-5201": CatMaintenance,
	"ERR-5202": CatMaintenance,
	"ERR-5218": CatMarketClose,
}

// categorize maps a broker message code to a Category.
func categorize(code string) Category {
	if c, ok := codeCategories[code]; ok {
		return c
	}
	return CatValidation
}

// newCodeError builds an APIError for a broker-reported message code.
func newCodeError(code, message string, httpStatus int) *APIError {
	return &APIError{
		Category: categorize(code),
		Code:     code,
		Message:  message,
		Status:   httpStatus,
	}
}

// transportErr wraps a network/TLS/decode failure.
func transportErr(err error) *APIError {
	return &APIError{Category: CatTransport, Err: err}
}
