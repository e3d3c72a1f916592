package domain

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks the required role or ownership
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSaleClosed is returned when minting while the sale is closed or sold out
	ErrSaleClosed = errors.New("sale closed")

	// ErrAllowanceExceeded is returned when a mint would exceed the caller's remaining allowance
	ErrAllowanceExceeded = errors.New("allowance exceeded")

	// ErrRateLimitExceeded is returned when a single call requests more tokens than the mint rate limit
	ErrRateLimitExceeded = errors.New("mint rate limit exceeded")

	// ErrInsufficientDeposit is returned when the attached deposit does not cover the required cost
	ErrInsufficientDeposit = errors.New("insufficient deposit")

	// ErrDuplicateTokenID is returned when minting a token id that already exists
	ErrDuplicateTokenID = errors.New("duplicate token id")

	// ErrTokenNotFound is returned when a token id does not exist
	ErrTokenNotFound = errors.New("token not found")

	// ErrApprovalIDMismatch is returned when a supplied approval id does not match the stored one
	ErrApprovalIDMismatch = errors.New("approval id mismatch")

	// ErrTooManyApprovals is returned when a token would exceed the bounded number of approvals
	ErrTooManyApprovals = errors.New("too many approvals")

	// ErrPayoutTooLong is returned when a payout would exceed the caller-supplied maximum length
	ErrPayoutTooLong = errors.New("payout too long")

	// ErrAlreadyInitialized is returned when initializing a contract that is already initialized
	ErrAlreadyInitialized = errors.New("contract already initialized")

	// ErrNotInitialized is returned when calling any method before initialization
	ErrNotInitialized = errors.New("contract not initialized")

	// ErrReceiverRejected is recorded when a transfer_call receiver rejects the token
	ErrReceiverRejected = errors.New("receiver rejected transfer")

	// ErrLinkdropKeyNotFound is returned when claiming with an unknown or already used public key
	ErrLinkdropKeyNotFound = errors.New("linkdrop key not found")

	// ErrCheddarDepositNotFound is returned when withdrawing from an account with no cheddar balance
	ErrCheddarDepositNotFound = errors.New("cheddar deposit not found")
)
