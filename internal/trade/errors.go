package trade

import (
	"errors"
	"fmt"
)

// Errors returned by the trade service. Each carries a stable wire code, see
// CodeOf.
var (
	ErrDuplicateRequest      = errors.New("a pending request for this card already exists")
	ErrInvalidOfferedCard    = errors.New("offered card is not in the sender's collection")
	ErrCardNotAllowed        = errors.New("only the requested card may be selected")
	ErrRequestedCardMismatch = errors.New("selection does not match the requested card")
	ErrBothMustSelect        = errors.New("both parties must select a card")
	ErrValueDiffTooHigh      = errors.New("value difference too high")
	ErrForbidden             = errors.New("not allowed for this user")
	ErrInvalidState          = errors.New("invalid state for this action")
	ErrNotFound              = errors.New("not found")

	ErrCardNotOwned     = errors.New("card is not in the user's collection")
	ErrSelectionChanged = errors.New("selections changed since they were shown")
	ErrSelfTrade        = errors.New("cannot trade with yourself")
	ErrMissingCard      = errors.New("a request must name a requested or an offered card")
	ErrInvalidPrice     = errors.New("prices must not be negative")
)

// Wire codes.
const (
	CodeDuplicateRequest      = "duplicate_request"
	CodeInvalidOfferedCard    = "invalid_offered_card"
	CodeCardNotAllowed        = "card_not_allowed"
	CodeRequestedCardMismatch = "requested_card_mismatch"
	CodeBothMustSelect        = "both_must_select"
	CodeValueDiffTooHigh      = "value_diff_too_high"
	CodeForbidden             = "forbidden"
	CodeInvalidState          = "invalid_state"
	CodeNotFound              = "not_found"
	CodeCardNotOwned          = "card_not_owned"
	CodeSelectionChanged      = "selection_changed"
	CodeSelfTrade             = "self_trade"
	CodeMissingCard           = "missing_card"
	CodeInvalidPrice          = "invalid_price"
	CodeInternal              = "internal"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrDuplicateRequest, CodeDuplicateRequest},
	{ErrInvalidOfferedCard, CodeInvalidOfferedCard},
	{ErrCardNotAllowed, CodeCardNotAllowed},
	{ErrRequestedCardMismatch, CodeRequestedCardMismatch},
	{ErrBothMustSelect, CodeBothMustSelect},
	{ErrValueDiffTooHigh, CodeValueDiffTooHigh},
	{ErrForbidden, CodeForbidden},
	{ErrInvalidState, CodeInvalidState},
	{ErrNotFound, CodeNotFound},
	{ErrCardNotOwned, CodeCardNotOwned},
	{ErrSelectionChanged, CodeSelectionChanged},
	{ErrSelfTrade, CodeSelfTrade},
	{ErrMissingCard, CodeMissingCard},
	{ErrInvalidPrice, CodeInvalidPrice},
}

// CodeOf returns the wire code of err, or CodeInternal if err is not one of
// the service errors.
func CodeOf(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// DuplicateRequestError reports the pending request that blocked a new one.
type DuplicateRequestError struct {
	ExistingID string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDuplicateRequest, e.ExistingID)
}

func (e *DuplicateRequestError) Unwrap() error { return ErrDuplicateRequest }
