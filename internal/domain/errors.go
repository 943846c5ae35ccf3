package domain

import "errors"

// Errors
var (
	ErrInvalidQuantity              = errors.New("quantity must be a positive integer")
	ErrUnknownItem                  = errors.New("item does not exist")
	ErrItemAlreadyExists            = errors.New("item already exists")
	ErrUnknownAllocation            = errors.New("no allocation exists for this project")
	ErrInsufficientStock            = errors.New("insufficient stock in allocation")
	ErrInsufficientIssuedBalance    = errors.New("quantity exceeds outstanding issued balance for counterparty")
	ErrInvalidNotificationThreshold = errors.New("notification threshold must be non-negative and below allocation quantity")
	ErrNoOpMove                     = errors.New("source and destination project are identical")
	ErrCounterpartyRequired         = errors.New("counterparty is required for this transaction kind")
	ErrCounterpartyNotAllowed       = errors.New("counterparty is not allowed for this transaction kind")
	ErrSupplierNotAllowed           = errors.New("supplier reference is only valid for add and create")
	ErrConcurrentModification       = errors.New("item was modified concurrently, reload and retry")
)
