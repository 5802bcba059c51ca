package service

import (
	"errors"
	"strings"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrUnknownAddOn       = errors.New("unknown add-on")
	ErrProfileMissing     = errors.New("account profile missing")
	ErrSignupIncomplete   = errors.New("account created but profile could not be saved")
	ErrSubmissionInFlight = errors.New("order submission already in progress")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrOrderNotFound      = errors.New("order not found")
	ErrIllegalTransition  = errors.New("illegal order status transition")
	ErrReviewNotFound     = errors.New("review not found")
	ErrProfileNotFound    = errors.New("profile not found")
)

// ValidationError lists the input fields that failed validation. Nothing
// has been written when it is returned.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Fields, ", ")
}

// SubmitError carries the backend's failure message unchanged so it can be
// shown to the shopper.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return e.Message
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}
