// Package apperr carries the error taxonomy the HTTP layer maps onto status
// codes. Services wrap collaborator failures into one of these kinds so
// handlers never have to inspect gorm or net errors directly.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation: bad input shape or value, no state change.
	KindValidation
	// KindConflict: duplicate identity or wrong-state transition, no state change.
	KindConflict
	KindNotFound
	// KindGatewayTransient: network/timeout talking to the payment vendor;
	// the caller retries with backoff, it is never treated as a failed payment.
	KindGatewayTransient
	// KindGatewayRejected: the vendor reports the payment failed.
	KindGatewayRejected
	// KindAmbiguous: a success signal could not be confirmed within budget;
	// surfaced as "needs manual follow-up", never auto-confirmed or cancelled.
	KindAmbiguous
)

// Rejection reasons exposed in API error bodies.
const (
	ReasonNotFound           = "NOT_FOUND"
	ReasonInactive           = "INACTIVE"
	ReasonUsageLimitReached  = "USAGE_LIMIT_REACHED"
	ReasonBelowMinimumAmount = "BELOW_MINIMUM_AMOUNT"
	ReasonExpired            = "EXPIRED"
	ReasonDuplicateContact   = "DUPLICATE_CONTACT"
	ReasonWrongState         = "WRONG_STATE"
	ReasonManualFollowUp     = "MANUAL_FOLLOWUP_REQUIRED"
)

type Error struct {
	Kind   Kind
	Reason string
	// Field names the offending input field for field-specific UX errors
	// (e.g. which contact field collided on a duplicate check).
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(reason, msg string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Msg: msg}
}

func ValidationField(reason, field, msg string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Field: field, Msg: msg}
}

func Conflict(reason, msg string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Msg: msg}
}

func ConflictField(reason, field, msg string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Field: field, Msg: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Reason: ReasonNotFound, Msg: msg}
}

func GatewayTransient(msg string, err error) *Error {
	return &Error{Kind: KindGatewayTransient, Msg: msg, Err: err}
}

func GatewayRejected(msg string) *Error {
	return &Error{Kind: KindGatewayRejected, Msg: msg}
}

func Ambiguous(msg string) *Error {
	return &Error{Kind: KindAmbiguous, Reason: ReasonManualFollowUp, Msg: msg}
}

// KindOf reports the taxonomy kind of err, unwrapping as needed.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

func IsKind(err error, k Kind) bool { return KindOf(err) == k }

// As returns the taxonomy error inside err, or nil.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
