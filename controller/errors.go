// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package controller

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/erstate/ledger"
)

var (
	ErrBusy          = errors.New("another operation is in flight")
	ErrMissingClient = errors.New("missing client")
)

// Stage is the part of a lifecycle step that failed.
type Stage string

const (
	StageCheck       Stage = "check"
	StageSubmit      Stage = "submit"
	StageConfirm     Stage = "confirm"
	StageCommitment  Stage = "commitment"
	StagePropagation Stage = "propagation"
	StageFulfillment Stage = "fulfillment"
	StageFetch       Stage = "fetch"
)

// StepError names the lifecycle step, venue and operation that failed so the
// caller can resume from the last state the venues agree on.
type StepError struct {
	Step  string
	Stage Stage
	Venue ledger.Venue
	Op    ledger.Operation
	TxID  ids.ID
	Phase Phase
	Err   error
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed at %s on %s", e.Step, e.Stage, e.Venue)
	if e.Op.Valid() {
		fmt.Fprintf(&b, " (op %s", e.Op)
		if e.TxID != ids.Empty {
			fmt.Fprintf(&b, ", tx %s", e.TxID)
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, " in phase %s: %v", e.Phase, e.Err)
	return b.String()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the venue refused the operation outright, which
// leaves the account unchanged.
func (e *StepError) Rejected() bool {
	return e.Stage == StageCheck || e.Stage == StageSubmit
}
