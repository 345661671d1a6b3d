// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package plan

import (
	"strconv"

	"github.com/ava-labs/erstate/consts"
)

func inRange(f Field) []Assertion {
	return []Assertion{
		{Field: f, Operator: NumericGe, Value: strconv.FormatUint(consts.MinRandomValue, 10)},
		{Field: f, Operator: NumericLe, Value: strconv.FormatUint(consts.MaxRandomValue, 10)},
	}
}

// Default walks one account through its whole lifecycle across both venues.
func Default() *Plan {
	return &Plan{
		Name:        "lifecycle",
		Description: "initialize, delegate, commit, undelegate and close one account",
		Steps: []Step{
			{
				Description: "create the account on the base ledger",
				Action:      Initialize,
				Require: []Assertion{
					{Field: Data, Operator: NumericEq, Value: "0"},
					{Field: Delegation, Operator: NumericEq, Value: "undelegated"},
				},
			},
			{
				Description: "a second initialize is rejected",
				Action:      Initialize,
				Error:       "alreadyInitialized",
			},
			{
				Description: "update on the base ledger",
				Action:      Update,
				Value:       42,
				Require:     []Assertion{{Field: Data, Operator: NumericEq, Value: "42"}},
			},
			{
				Description: "delegate to the rollup",
				Action:      Delegate,
				Require: []Assertion{
					{Field: Data, Operator: NumericEq, Value: "42"},
					{Field: Delegation, Operator: NumericEq, Value: "delegated"},
				},
			},
			{
				Description: "the base ledger no longer accepts updates",
				Action:      Issue,
				Venue:       "base",
				Op:          "update",
				Value:       7,
				Error:       "wrongVenue",
			},
			{
				Description: "request randomness on the rollup",
				Action:      RequestRandomness,
				Require:     inRange(Random),
			},
			{
				Description: "update on the rollup and commit to the base ledger",
				Action:      UpdateCommit,
				Value:       43,
				Venue:       "base",
				Require:     []Assertion{{Field: Data, Operator: NumericEq, Value: "43"}},
			},
			{
				Description: "undelegate back to the base ledger",
				Action:      Undelegate,
				Require: []Assertion{
					{Field: Data, Operator: NumericEq, Value: "43"},
					{Field: Delegation, Operator: NumericEq, Value: "undelegated"},
				},
			},
			{
				Description: "the rollup no longer accepts updates",
				Action:      Issue,
				Venue:       "rollup",
				Op:          "update",
				Value:       7,
				Error:       "wrongVenue",
			},
			{
				Description: "request randomness on the base ledger",
				Action:      RequestRandomness,
				Seed:        1,
				Require: append(inRange(Random),
					Assertion{Field: Round, Operator: NumericEq, Value: "2"},
				),
			},
			{
				Description: "close the account",
				Action:      Close,
			},
			{
				Description: "the closed account is gone",
				Action:      Fetch,
				Venue:       "base",
				Error:       "accountClosed",
			},
			{
				Description: "closing again is rejected",
				Action:      Close,
				Error:       "accountClosed",
			},
		},
	}
}
