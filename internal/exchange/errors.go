package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/common"
)

// Binance futures API error codes this client reacts to.
const (
	codeTooManyRequests  = -1003
	codeTooManyOrders    = -1015
	codeTimestampOutside = -1021
	codeInvalidSignature = -1022
	codeBadAPIKeyFormat  = -2014
	codeRejectedAPIKey   = -2015
)

// AuthError is fatal for the session: the credentials or signature were
// rejected. Callers must abort, never retry.
type AuthError struct {
	Code    int64
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (code %d): %s", e.Code, e.Message)
}

// RateLimitError means the exchange throttled the request. It is surfaced
// to the caller rather than retried here; retrying blindly could duplicate
// order intent.
type RateLimitError struct {
	Code       int64
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (code %d): %s", e.Code, e.Message)
}

// ClockSkewError means the signed timestamp fell outside the exchange's
// recvWindow. Callers should resync the clock and surface the failure.
type ClockSkewError struct {
	Code    int64
	Message string
}

func (e *ClockSkewError) Error() string {
	return fmt.Sprintf("request timestamp outside recvWindow (code %d): %s", e.Code, e.Message)
}

// ConnectivityError wraps transport-level failures (refused connections,
// timeouts, cancelled contexts). Transient; the caller decides whether to
// retry.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("exchange unreachable: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Rejection is an exchange-side business rule violation (insufficient
// margin, reduce-only conflict, ...). Surfaced verbatim, never retried.
type Rejection struct {
	Code    int64
	Message string
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("order rejected by exchange (code %d): %s", e.Code, e.Message)
}

// normalizeError maps raw client errors into the error taxonomy. Every
// network call in this package funnels its error through here; it is the
// single point of error normalization.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeInvalidSignature, codeBadAPIKeyFormat, codeRejectedAPIKey:
			return &AuthError{Code: apiErr.Code, Message: apiErr.Message}
		case codeTooManyRequests, codeTooManyOrders:
			return &RateLimitError{Code: apiErr.Code, Message: apiErr.Message, RetryAfter: time.Minute}
		case codeTimestampOutside:
			return &ClockSkewError{Code: apiErr.Code, Message: apiErr.Message}
		default:
			return &Rejection{Code: apiErr.Code, Message: apiErr.Message}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ConnectivityError{Err: err}
	}

	// Anything that never reached the API contract is a transport failure.
	return &ConnectivityError{Err: err}
}

// IsClockSkew reports whether err indicates a stale request timestamp
func IsClockSkew(err error) bool {
	var skew *ClockSkewError
	return errors.As(err, &skew)
}

// IsConnectivity reports whether err is a transient transport failure
func IsConnectivity(err error) bool {
	var conn *ConnectivityError
	return errors.As(err, &conn)
}

// IsFatal reports whether err should abort the session
func IsFatal(err error) bool {
	var auth *AuthError
	return errors.As(err, &auth)
}
