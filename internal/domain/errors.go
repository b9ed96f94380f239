package domain

import "errors"

// Game rule errors. Every public engine operation validates against current
// state before mutating anything, so each of these is returned with zero
// partial state. They are grouped into three recoverable categories that the
// HTTP layer maps to status codes.

// Validation errors - malformed input, rejected before any mutation.
var (
	ErrInvalidConfig        = errors.New("invalid session configuration")
	ErrUnknownBatch         = errors.New("unknown batch index")
	ErrSampleSizeOutOfRange = errors.New("sample size out of configured range")
	ErrInvalidInterval      = errors.New("interval must satisfy 0 <= lower <= upper <= 1")
	ErrUnknownConfidence    = errors.New("confidence level is not a configured tier")
	ErrUnknownPurchaseKind  = errors.New("unknown purchase kind")
	ErrPlayerNameRequired   = errors.New("player name must not be empty")
)

// State conflict errors - the action is well-formed but the current session,
// batch, or player state forbids it.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrPlayerNotFound     = errors.New("player not found in session")
	ErrSessionNotJoinable = errors.New("session is not accepting new players")
	ErrSessionStarted     = errors.New("session has already started")
	ErrSessionNotRunning  = errors.New("session is not running")
	ErrSessionEnded       = errors.New("session has ended")
	ErrSessionNotEnded    = errors.New("session has not ended yet")
	ErrDuplicateName      = errors.New("player name already taken in this session")
	ErrBatchLocked        = errors.New("batch already has a sold policy")
	ErrAlreadySold        = errors.New("player already sold a policy on this batch")
	ErrInspectionRequired = errors.New("batch must be inspected before selling a policy")
)

// Resource errors - the player cannot afford the action.
var (
	ErrInsufficientResources = errors.New("insufficient turns or inspection budget")
	ErrInsufficientScore     = errors.New("insufficient score for purchase")
)

// IsValidation reports whether err is a malformed-input error.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidConfig, ErrUnknownBatch, ErrSampleSizeOutOfRange,
		ErrInvalidInterval, ErrUnknownConfidence, ErrUnknownPurchaseKind,
		ErrPlayerNameRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err is a state-conflict error.
func IsConflict(err error) bool {
	for _, target := range []error{
		ErrSessionNotJoinable, ErrSessionStarted, ErrSessionNotRunning, ErrSessionEnded,
		ErrSessionNotEnded, ErrDuplicateName, ErrBatchLocked, ErrAlreadySold,
		ErrInspectionRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err refers to a missing session or player.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrPlayerNotFound)
}

// IsInsufficient reports whether err is a resource-affordability error.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientResources) || errors.Is(err, ErrInsufficientScore)
}
