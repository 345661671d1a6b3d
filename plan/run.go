// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/controller"
	"github.com/ava-labs/erstate/ledger"
)

type Response struct {
	// The index of the step that generated this response.
	ID          int    `json:"id"          yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Action      Action `json:"action"      yaml:"action"`
	// Phase is the lifecycle phase after the step.
	Phase string `json:"phase" yaml:"phase"`
	// Account is the account as read after the step, if it was read.
	Account *account.StateAccount `json:"account,omitempty" yaml:"account,omitempty"`
	// The error message if available.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Run executes every step of [p] against the account of [c]. It stops at the
// first step whose outcome differs from the plan.
func Run(ctx context.Context, log logging.Logger, c *controller.Controller, p *Plan) ([]*Response, error) {
	if err := p.Verify(); err != nil {
		return nil, err
	}
	responses := make([]*Response, 0, len(p.Steps))
	for i := range p.Steps {
		s := &p.Steps[i]
		r, err := runStep(ctx, c, i, s)
		responses = append(responses, r)
		if err != nil {
			log.Warn("plan step failed",
				zap.String("plan", p.Name),
				zap.Int("step", i),
				zap.String("action", string(s.Action)),
				zap.Stringer("account", c.Address()),
				zap.Error(err),
			)
			return responses, fmt.Errorf("step %d (%s): %w", i, s.Action, err)
		}
		log.Debug("plan step succeeded",
			zap.String("plan", p.Name),
			zap.Int("step", i),
			zap.String("action", string(s.Action)),
			zap.Stringer("account", c.Address()),
		)
	}
	return responses, nil
}

func runStep(ctx context.Context, c *controller.Controller, id int, s *Step) (*Response, error) {
	r := &Response{
		ID:          id,
		Description: s.Description,
		Action:      s.Action,
	}
	acct, err := do(ctx, c, s)
	r.Phase = c.Phase().String()
	r.Account = acct
	if err != nil {
		r.Error = err.Error()
	}

	switch {
	case s.Error != "":
		if !errors.Is(err, errorNames[s.Error]) {
			return r, fmt.Errorf("%w: expected %s but got %v", ErrUnexpectedResult, s.Error, err)
		}
	case err != nil:
		return r, err
	}
	if len(s.Require) == 0 {
		return r, nil
	}
	if r.Account == nil {
		acct, err := fetch(ctx, c, s)
		if err != nil {
			return r, err
		}
		r.Account = acct
	}
	for _, a := range s.Require {
		if !a.Check(r.Account) {
			return r, fmt.Errorf("%w: %s does not hold", ErrUnexpectedResult, a)
		}
	}
	return r, nil
}

func fetch(ctx context.Context, c *controller.Controller, s *Step) (*account.StateAccount, error) {
	v, ok, err := s.venue()
	if err != nil {
		return nil, err
	}
	if !ok {
		return c.Fetch(ctx)
	}
	return c.FetchFrom(ctx, v)
}

func do(ctx context.Context, c *controller.Controller, s *Step) (*account.StateAccount, error) {
	switch s.Action {
	case Initialize:
		return nil, c.Initialize(ctx)
	case Update:
		return nil, c.Update(ctx, s.Value)
	case Delegate:
		return nil, c.Delegate(ctx)
	case RequestRandomness:
		_, err := c.RequestRandomness(ctx, s.Seed)
		return nil, err
	case UpdateCommit:
		return nil, c.UpdateCommit(ctx, s.Value)
	case Commit:
		return nil, c.Commit(ctx)
	case Undelegate:
		return nil, c.Undelegate(ctx)
	case Close:
		return nil, c.Close(ctx)
	case Issue:
		v, _, err := s.venue()
		if err != nil {
			return nil, err
		}
		var op ledger.Operation
		if err := op.UnmarshalText([]byte(s.Op)); err != nil {
			return nil, err
		}
		return nil, c.IssueOn(ctx, v, op, ledger.Args{Value: s.Value, Seed: s.Seed})
	case Fetch:
		return fetch(ctx, c, s)
	case Sync:
		_, err := c.Sync(ctx)
		return nil, err
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidStep, s.Action)
	}
}
