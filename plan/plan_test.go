// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/erstate/account"
)

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		steps int
		err   error
	}{
		{
			name: "yaml",
			input: `
name: short
steps:
  - description: create
    action: initialize
  - action: update
    value: 5
    require:
      - field: data
        operator: "=="
        value: "5"
  - action: issue
    venue: rollup
    op: update
    error: wrongVenue
`,
			steps: 3,
		},
		{
			name:  "json",
			input: `{"name":"short","steps":[{"action":"initialize"},{"action":"fetch","venue":"base"}]}`,
			steps: 2,
		},
		{
			name:  "unknown action",
			input: `{"name":"bad","steps":[{"action":"mint"}]}`,
			err:   ErrInvalidStep,
		},
		{
			name:  "issue without venue",
			input: `{"name":"bad","steps":[{"action":"issue","op":"update"}]}`,
			err:   ErrInvalidStep,
		},
		{
			name:  "unknown error",
			input: `{"name":"bad","steps":[{"action":"close","error":"boom"}]}`,
			err:   ErrInvalidStep,
		},
		{
			name:  "unknown operator",
			input: `{"name":"bad","steps":[{"action":"fetch","require":[{"field":"data","operator":"~","value":"1"}]}]}`,
			err:   ErrInvalidStep,
		},
		{
			name:  "no steps",
			input: `{"name":"empty"}`,
			err:   ErrInvalidStep,
		},
		{
			name:  "not a plan",
			input: `- 1`,
			err:   ErrInvalidFormat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			p, err := Unmarshal([]byte(tt.input))
			require.ErrorIs(err, tt.err)
			if tt.err != nil {
				return
			}
			require.Len(p.Steps, tt.steps)
		})
	}
}

func TestDefaultPlan(t *testing.T) {
	require := require.New(t)

	p := Default()
	require.NoError(p.Verify())

	b, err := json.Marshal(p)
	require.NoError(err)
	parsed, err := Unmarshal(b)
	require.NoError(err)
	require.Equal(p, parsed)
}

func TestAssertionCheck(t *testing.T) {
	acct := &account.StateAccount{
		Data:       -3,
		Random:     account.Randomness{Value: 57, Round: 2},
		Delegation: account.Delegated,
	}
	tests := []struct {
		assertion Assertion
		expected  bool
	}{
		{Assertion{Field: Data, Operator: NumericEq, Value: "-3"}, true},
		{Assertion{Field: Data, Operator: NumericGt, Value: "-4"}, true},
		{Assertion{Field: Data, Operator: NumericLt, Value: "-4"}, false},
		{Assertion{Field: Random, Operator: NumericGe, Value: "1"}, true},
		{Assertion{Field: Random, Operator: NumericLe, Value: "56"}, false},
		{Assertion{Field: Round, Operator: NumericNe, Value: "1"}, true},
		{Assertion{Field: Delegation, Operator: NumericEq, Value: "delegated"}, true},
		{Assertion{Field: Delegation, Operator: NumericNe, Value: "delegated"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.assertion.String(), func(t *testing.T) {
			require := require.New(t)

			require.NoError(tt.assertion.Verify())
			require.Equal(tt.expected, tt.assertion.Check(acct))
		})
	}
}
