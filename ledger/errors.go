// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import "errors"

var (
	ErrAlreadyInitialized  = errors.New("already initialized")
	ErrNotFound            = errors.New("not found")
	ErrWrongVenue          = errors.New("wrong venue")
	ErrInvalidState        = errors.New("invalid state")
	ErrSubmission          = errors.New("submission rejected")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrFulfillmentTimeout  = errors.New("fulfillment timeout")
	ErrCommitmentTimeout   = errors.New("commitment timeout")
	ErrAccountClosed       = errors.New("account closed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrMalformed           = errors.New("malformed transaction")
)

// taxonomy names each sentinel on the wire. Codes are stable and never
// reused.
var taxonomy = []struct {
	code string
	err  error
}{
	{"already_initialized", ErrAlreadyInitialized},
	{"not_found", ErrNotFound},
	{"wrong_venue", ErrWrongVenue},
	{"invalid_state", ErrInvalidState},
	{"submission_rejected", ErrSubmission},
	{"confirmation_timeout", ErrConfirmationTimeout},
	{"fulfillment_timeout", ErrFulfillmentTimeout},
	{"commitment_timeout", ErrCommitmentTimeout},
	{"account_closed", ErrAccountClosed},
	{"unauthorized", ErrUnauthorized},
	{"invalid_signature", ErrInvalidSignature},
	{"malformed_transaction", ErrMalformed},
}

// ErrorCodes returns the wire codes of the sentinels [err] wraps, in taxonomy
// order.
func ErrorCodes(err error) []string {
	if err == nil {
		return nil
	}
	var codes []string
	for _, s := range taxonomy {
		if errors.Is(err, s.err) {
			codes = append(codes, s.code)
		}
	}
	return codes
}

// remoteError carries an error message received from a venue while still
// matching the sentinels it was sent with.
type remoteError struct {
	msg     string
	matched []error
}

func (e *remoteError) Error() string {
	return e.msg
}

func (e *remoteError) Unwrap() []error {
	return e.matched
}

// RemoteError rebuilds an error that crossed a process boundary as [msg]
// and the codes produced by ErrorCodes. Unknown codes are ignored and the
// message itself is never inspected.
func RemoteError(msg string, codes []string) error {
	var matched []error
	for _, code := range codes {
		for _, s := range taxonomy {
			if s.code == code {
				matched = append(matched, s.err)
				break
			}
		}
	}
	if len(matched) == 0 {
		return errors.New(msg)
	}
	return &remoteError{msg: msg, matched: matched}
}
