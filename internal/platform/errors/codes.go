// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Lookup errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// Spawn arbitration errors
	CodeSpawnAlreadyPending Code = "SPAWN_ALREADY_PENDING"
	CodeAlreadyClaimed      Code = "SPAWN_ALREADY_CLAIMED"
	CodeSpawnExpired        Code = "SPAWN_EXPIRED"

	// Ledger errors
	CodeInsufficientFunds     Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientInventory Code = "INSUFFICIENT_INVENTORY"

	// Rate limiting errors
	CodeCooldownActive Code = "COOLDOWN_ACTIVE"

	// Trade errors
	CodeTradeAlreadyActive Code = "TRADE_ALREADY_ACTIVE"
	CodeInvalidTradeState  Code = "INVALID_TRADE_STATE"
	CodeStaleOffer         Code = "TRADE_STALE_OFFER"

	// CodeInternal marks invariant violations and other engine bugs, as
	// opposed to contention or bad input. Callers must log these distinctly.
	CodeInternal Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidArgument:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow the operation
	case CodeSpawnAlreadyPending,
		CodeAlreadyClaimed,
		CodeSpawnExpired,
		CodeInsufficientFunds,
		CodeInsufficientInventory,
		CodeTradeAlreadyActive,
		CodeInvalidTradeState,
		CodeStaleOffer:
		return codes.FailedPrecondition

	// ResourceExhausted - retry after the cooldown window
	case CodeCooldownActive:
		return codes.ResourceExhausted

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeAlreadyExists:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}
