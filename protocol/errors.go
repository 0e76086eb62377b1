package protocol

import (
	"errors"
	"fmt"
)

// Error kinds returned by chain adapters. Callers match them with errors.Is;
// every returned error wraps exactly one of these together with the
// identifiers and heights involved.
var (
	ErrTransportFailure          = errors.New("transport failure")
	ErrQueryFailure              = errors.New("query failure")
	ErrInvalidHeight             = errors.New("invalid height")
	ErrMalformedProof            = errors.New("malformed proof")
	ErrFinalityVerification      = errors.New("finality verification failure")
	ErrNotFound                  = errors.New("not found")
	ErrUnsupportedMessageType    = errors.New("unsupported message type")
	ErrUnsupportedClientSettings = errors.New("unsupported client settings")
	ErrEventNotFound             = errors.New("event not found")
	ErrAmbiguousEvent            = errors.New("ambiguous event")
	ErrStillPending              = errors.New("transaction still pending")
	ErrStaleContext              = errors.New("stale lookup context")
	ErrSubmissionFailure         = errors.New("submission failure")
)

// SubmissionError describes a transaction the ledger refused or reverted.
type SubmissionError struct {
	TxHash string
	// Reason is the decoded revert reason, empty when the ledger gave none.
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	msg := ErrSubmissionFailure.Error()
	if e.TxHash != "" {
		msg += fmt.Sprintf(" (tx %s)", e.TxHash)
	}
	if e.Reason != "" {
		msg += fmt.Sprintf(": reverted: %s", e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSubmissionFailure}
	}
	return []error{ErrSubmissionFailure, e.Err}
}

// FinalityError carries the data needed to diagnose a failed finality check offline.
type FinalityError struct {
	BlockNumber uint64
	StateRoot   Bytes32
	Proof       any
	Err         error
}

func (e *FinalityError) Error() string {
	return fmt.Sprintf("%s at block %d (previous state root %s): %v",
		ErrFinalityVerification, e.BlockNumber, e.StateRoot, e.Err)
}

func (e *FinalityError) Unwrap() []error {
	return []error{ErrFinalityVerification, e.Err}
}
