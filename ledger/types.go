// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

// Venue is one of the two ledgers an account can live on.
type Venue uint8

const (
	Base Venue = iota
	Rollup
)

func (v Venue) String() string {
	switch v {
	case Base:
		return "base"
	case Rollup:
		return "rollup"
	default:
		return fmt.Sprintf("venue(%d)", uint8(v))
	}
}

// Other returns the counterpart venue.
func (v Venue) Other() Venue {
	if v == Base {
		return Rollup
	}
	return Base
}

func (v Venue) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Venue) UnmarshalText(b []byte) error {
	switch string(b) {
	case "base":
		*v = Base
	case "rollup":
		*v = Rollup
	default:
		return fmt.Errorf("%w: unknown venue %q", ErrMalformed, b)
	}
	return nil
}

// Level is how final a transaction is on its venue.
type Level uint8

const (
	Processed Level = iota
	Confirmed
	Finalized
)

func (l Level) String() string {
	switch l {
	case Processed:
		return "processed"
	case Confirmed:
		return "confirmed"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

func ParseLevel(s string) (Level, error) {
	for _, l := range []Level{Processed, Confirmed, Finalized} {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown confirmation level %q", ErrMalformed, s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Result is the status of a transaction as reported by its venue.
type Result struct {
	TxID  ids.ID `json:"txId"`
	Venue Venue  `json:"venue"`
	Slot  uint64 `json:"slot"`
	Level Level  `json:"level"`
}

// CommitmentProof shows that the effects of SourceTx were applied on the
// other venue by TargetTx.
type CommitmentProof struct {
	SourceTx ids.ID `json:"sourceTx"`
	Source   Venue  `json:"source"`
	TargetTx ids.ID `json:"targetTx"`
	Target   Venue  `json:"target"`
	Slot     uint64 `json:"slot"`
}
