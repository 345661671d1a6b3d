// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/ledger"
)

var (
	ErrInvalidFormat    = errors.New("invalid plan format")
	ErrInvalidStep      = errors.New("invalid step")
	ErrUnexpectedResult = errors.New("unexpected result")
)

type Plan struct {
	// The name of the plan.
	Name string `json:"name" yaml:"name"`
	// A description of the plan.
	Description string `json:"description" yaml:"description"`
	// Steps performed in order against one account.
	Steps []Step `json:"steps" yaml:"steps"`
}

type Action string

const (
	Initialize        Action = "initialize"
	Update            Action = "update"
	Delegate          Action = "delegate"
	RequestRandomness Action = "requestRandomness"
	UpdateCommit      Action = "updateCommit"
	Commit            Action = "commit"
	Undelegate        Action = "undelegate"
	Close             Action = "close"
	// Issue runs Op against Venue instead of the venue that owns the account.
	Issue Action = "issue"
	// Fetch only reads the account.
	Fetch Action = "fetch"
	// Sync rebuilds the lifecycle phase from the venues.
	Sync Action = "sync"
)

type Step struct {
	// Description of the step.
	Description string `json:"description" yaml:"description"`
	Action      Action `json:"action"      yaml:"action"`
	// Venue is read by Issue and Fetch. Fetch reads the owning venue when it
	// is empty.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`
	// Op is the operation of Issue.
	Op    string `json:"op,omitempty"    yaml:"op,omitempty"`
	Value int64  `json:"value,omitempty" yaml:"value,omitempty"`
	Seed  uint8  `json:"seed,omitempty"  yaml:"seed,omitempty"`
	// Error names the error the step must fail with.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// Define required assertions against the account after this step.
	Require []Assertion `json:"require,omitempty" yaml:"require,omitempty"`
}

func (s *Step) venue() (ledger.Venue, bool, error) {
	if s.Venue == "" {
		return 0, false, nil
	}
	var v ledger.Venue
	if err := v.UnmarshalText([]byte(s.Venue)); err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *Step) Verify() error {
	switch s.Action {
	case Initialize, Update, Delegate, RequestRandomness, UpdateCommit, Commit, Undelegate, Close, Fetch, Sync:
	case Issue:
		if s.Venue == "" {
			return fmt.Errorf("%w: issue requires a venue", ErrInvalidStep)
		}
		var op ledger.Operation
		if err := op.UnmarshalText([]byte(s.Op)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidStep, err)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidStep, s.Action)
	}
	if _, _, err := s.venue(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}
	if s.Error != "" {
		if _, ok := errorNames[s.Error]; !ok {
			return fmt.Errorf("%w: unknown error %q", ErrInvalidStep, s.Error)
		}
	}
	for _, a := range s.Require {
		if err := a.Verify(); err != nil {
			return err
		}
	}
	return nil
}

var errorNames = map[string]error{
	"alreadyInitialized":  ledger.ErrAlreadyInitialized,
	"notFound":            ledger.ErrNotFound,
	"wrongVenue":          ledger.ErrWrongVenue,
	"invalidState":        ledger.ErrInvalidState,
	"submission":          ledger.ErrSubmission,
	"confirmationTimeout": ledger.ErrConfirmationTimeout,
	"fulfillmentTimeout":  ledger.ErrFulfillmentTimeout,
	"commitmentTimeout":   ledger.ErrCommitmentTimeout,
	"accountClosed":       ledger.ErrAccountClosed,
	"unauthorized":        ledger.ErrUnauthorized,
}

type Field string

const (
	Data       Field = "data"
	Random     Field = "random"
	Round      Field = "round"
	Delegation Field = "delegation"
)

type Operator string

const (
	NumericGt Operator = ">"
	NumericLt Operator = "<"
	NumericGe Operator = ">="
	NumericLe Operator = "<="
	NumericEq Operator = "=="
	NumericNe Operator = "!="
)

type Assertion struct {
	Field Field `json:"field" yaml:"field"`
	// The operator to use for the assertion.
	Operator Operator `json:"operator" yaml:"operator"`
	// The value to compare against.
	Value string `json:"value" yaml:"value"`
}

func (a *Assertion) Verify() error {
	switch a.Operator {
	case NumericGt, NumericLt, NumericGe, NumericLe, NumericEq, NumericNe:
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidStep, a.Operator)
	}
	switch a.Field {
	case Data:
		if _, err := strconv.ParseInt(a.Value, 10, 64); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidStep, a.Field, err)
		}
	case Random, Round:
		if _, err := strconv.ParseUint(a.Value, 10, 64); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidStep, a.Field, err)
		}
	case Delegation:
		if a.Operator != NumericEq && a.Operator != NumericNe {
			return fmt.Errorf("%w: delegation only supports == and !=", ErrInvalidStep)
		}
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidStep, a.Field)
	}
	return nil
}

func compare[T int64 | uint64](op Operator, actual, value T) bool {
	switch op {
	case NumericGt:
		return actual > value
	case NumericLt:
		return actual < value
	case NumericGe:
		return actual >= value
	case NumericLe:
		return actual <= value
	case NumericEq:
		return actual == value
	case NumericNe:
		return actual != value
	default:
		return false
	}
}

// Check reports whether [a] satisfies the assertion. Verify must have
// succeeded.
func (a *Assertion) Check(acct *account.StateAccount) bool {
	switch a.Field {
	case Data:
		v, _ := strconv.ParseInt(a.Value, 10, 64)
		return compare(a.Operator, acct.Data, v)
	case Random:
		v, _ := strconv.ParseUint(a.Value, 10, 64)
		return compare(a.Operator, acct.Random.Value, v)
	case Round:
		v, _ := strconv.ParseUint(a.Value, 10, 64)
		return compare(a.Operator, acct.Random.Round, v)
	case Delegation:
		eq := acct.Delegation.String() == a.Value
		return eq == (a.Operator == NumericEq)
	default:
		return false
	}
}

func (a Assertion) String() string {
	return fmt.Sprintf("%s %s %s", a.Field, a.Operator, a.Value)
}

func (p *Plan) Verify() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: plan %q has no steps", ErrInvalidStep, p.Name)
	}
	for i := range p.Steps {
		if err := p.Steps[i].Verify(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// Unmarshal decodes a json or yaml plan.
func Unmarshal(b []byte) (*Plan, error) {
	var p Plan
	switch {
	case isJSON(b):
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, err
		}
	case isYAML(b):
		if err := yaml.UnmarshalStrict(b, &p); err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidFormat
	}
	return &p, p.Verify()
}

func isJSON(b []byte) bool {
	var js map[string]interface{}
	return json.Unmarshal(b, &js) == nil
}

func isYAML(b []byte) bool {
	var y map[string]interface{}
	return yaml.Unmarshal(b, &y) == nil
}
