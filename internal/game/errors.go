package game

import (
	"errors"
	"fmt"
)

// Error is the error type returned by every match, shop and board operation.
//
// Errors are compared by Code, so errors.Is(err, ErrBoardFull) holds for any
// *Error carrying CodeBoardFull regardless of message or context fields.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// MatchID identifies the affected match, if known.
	MatchID string

	// PlayerID identifies the affected player, if known.
	PlayerID int64

	// Err is the underlying cause (storage errors, mostly).
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	// CodeInsufficientFunds indicates the player cannot pay for the action.
	CodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// CodeInvalidIndex indicates an out-of-range index or an empty slot
	// where an occupied one was required.
	CodeInvalidIndex ErrorCode = "INVALID_INDEX"

	// CodeBoardFull indicates there is no free board slot.
	CodeBoardFull ErrorCode = "BOARD_FULL"

	// CodeInvalidUpgradeSet indicates an upgrade over non-matching or
	// already-upgraded characters.
	CodeInvalidUpgradeSet ErrorCode = "INVALID_UPGRADE_SET"

	// CodeMatchNotFound indicates an unknown match id.
	CodeMatchNotFound ErrorCode = "MATCH_NOT_FOUND"

	// CodePlayerNotFound indicates an unknown player or account in a match.
	CodePlayerNotFound ErrorCode = "PLAYER_NOT_FOUND"

	// CodeInternal covers persistence failures and broken invariants.
	CodeInternal ErrorCode = "INTERNAL"
)

// Sentinels for errors.Is comparisons.
var (
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrInvalidIndex      = &Error{Code: CodeInvalidIndex, Message: "invalid index"}
	ErrBoardFull         = &Error{Code: CodeBoardFull, Message: "board full"}
	ErrInvalidUpgradeSet = &Error{Code: CodeInvalidUpgradeSet, Message: "invalid upgrade set"}
	ErrMatchNotFound     = &Error{Code: CodeMatchNotFound, Message: "match not found"}
	ErrPlayerNotFound    = &Error{Code: CodePlayerNotFound, Message: "player not found"}
	ErrInternal          = &Error{Code: CodeInternal, Message: "internal error"}
)

// ErrStaleVersion is returned by a repository when a save lost a race with
// another writer. The loser reloads and carries on.
var ErrStaleVersion = errors.New("stale match version")

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.MatchID != "" && e.PlayerID != 0 {
		msg = fmt.Sprintf("%s (match=%s, player=%d)", msg, e.MatchID, e.PlayerID)
	} else if e.MatchID != "" {
		msg = fmt.Sprintf("%s (match=%s)", msg, e.MatchID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Errorf builds an *Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err as an INTERNAL error.
func Internal(err error, matchID string) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", MatchID: matchID, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
// Foreign errors are reported as CodeInternal; a nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeInternal
}

// IsNotFound reports whether err is a match or player lookup failure.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == CodeMatchNotFound || code == CodePlayerNotFound
}
