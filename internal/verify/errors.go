package verify

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyVerified  = errors.New("wallet already verified")
	ErrInvalidSignature = errors.New("invalid signature")
)

// NonceError carries the internal rejection reason (unknown, expired,
// replayed) for logs. Clients get a uniform message so the nonce
// machinery can't be probed.
type NonceError struct {
	Cause error
}

func (e *NonceError) Error() string { return "invalid or expired nonce" }
func (e *NonceError) Unwrap() error { return e.Cause }

type InsufficientBalanceError struct {
	Balance  uint64
	Required uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d", e.Balance, e.Required)
}

// UpstreamError marks a failure of an external collaborator; it is not
// attributable to the requester.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }
