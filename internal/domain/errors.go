package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error types for consistent error handling across the bank.

// ErrNotFound indicates a user, account slot or linked account was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrInvalidAccountType indicates a slot name that is not one of the known accounts,
// or a known account the operation does not accept.
type ErrInvalidAccountType struct {
	Name string
}

func (e *ErrInvalidAccountType) Error() string {
	return fmt.Sprintf("invalid account type: %q", e.Name)
}

// ErrInvalidAmount indicates a non-numeric or non-positive amount, or a
// transfer whose source and destination are the same account.
type ErrInvalidAmount struct {
	Field  string
	Reason string
}

func (e *ErrInvalidAmount) Error() string {
	return fmt.Sprintf("invalid amount on '%s': %s", e.Field, e.Reason)
}

// ErrInsufficientFunds indicates not enough balance for the operation.
type ErrInsufficientFunds struct {
	Account   AccountType
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds in %s: available=%s required=%s",
		e.Account, e.Available.StringFixed(2), e.Required.StringFixed(2))
}

// ErrValidation indicates a validation error (bad input) other than amounts.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrConflict indicates the aggregate changed since it was loaded, or a
// resource already exists (e.g. duplicate email).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrDuplicate indicates a unique key collision the caller may retry with a
// fresh value (generated account numbers).
type ErrDuplicate struct {
	Key string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate key: %s", e.Key)
}

// ErrStorageUnavailable indicates a transient storage fault. Only reads are
// retried; mutations surface it to the caller.
type ErrStorageUnavailable struct {
	Store string
	Err   error
}

func (e *ErrStorageUnavailable) Error() string {
	return fmt.Sprintf("storage unavailable [%s]: %v", e.Store, e.Err)
}

func (e *ErrStorageUnavailable) Unwrap() error {
	return e.Err
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden indicates the caller lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrAccountBlocked indicates the user is suspended.
type ErrAccountBlocked struct {
	Status string
}

func (e *ErrAccountBlocked) Error() string {
	return fmt.Sprintf("account %s", e.Status)
}
