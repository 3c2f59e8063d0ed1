package models

import (
	"errors"
	"fmt"
)

var (
	ErrNoOrder            = errors.New("no order")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrAlreadyPaid        = errors.New("order already paid")
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrPaymentInProgress  = errors.New("payment already being processed")
	ErrNoProvider         = errors.New("no payment provider")
	ErrInvalidProvider    = errors.New("invalid payment provider")
	ErrInvalidOrderState  = errors.New("invalid order state")
	ErrInvalidTxState     = errors.New("invalid transaction state")
)

// UserError carries a message that is safe to show to the customer or the
// operator. Kind is one of the sentinel errors above.
type UserError struct {
	Kind    error
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Kind
}

func userError(kind error, format string, args ...interface{}) *UserError {
	return &UserError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// UserMessage returns the display message of err if it is a UserError.
func UserMessage(err error) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message, true
	}
	return "", false
}
