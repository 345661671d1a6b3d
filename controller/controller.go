// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package controller drives one account through its delegation lifecycle.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/commitment"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/oracle"
	"github.com/ava-labs/erstate/poll"
)

// VenueClient reaches one venue and serves commitment proofs for
// transactions that originated on it.
type VenueClient interface {
	ledger.Client
	commitment.ProofSource
}

// Network holds the collaborators shared by the controllers of every
// account. Nothing account-specific is cached in it.
type Network struct {
	Log     logging.Logger
	Tracer  trace.Tracer
	Metrics *Metrics

	Base    VenueClient
	Rollup  VenueClient
	Monitor *commitment.Monitor
	Oracle  *oracle.Client
	Deriver account.Deriver

	// Validator is the rollup operator accounts are delegated to.
	Validator codec.Address
	// Propagation bounds the wait for a committed change to become visible
	// through the other venue's client.
	Propagation poll.Policy
	PollOptions []poll.Option
}

func (n *Network) Verify() error {
	switch {
	case n.Base == nil || n.Base.Venue() != ledger.Base:
		return fmt.Errorf("%w: base", ErrMissingClient)
	case n.Rollup == nil || n.Rollup.Venue() != ledger.Rollup:
		return fmt.Errorf("%w: rollup", ErrMissingClient)
	case n.Monitor == nil, n.Oracle == nil, n.Deriver == nil, n.Tracer == nil, n.Metrics == nil, n.Log == nil:
		return fmt.Errorf("%w: network is incomplete", ErrMissingClient)
	case n.Validator.Empty():
		return fmt.Errorf("%w: missing validator", ledger.ErrMalformed)
	default:
		return n.Propagation.Verify()
	}
}

func (n *Network) client(v ledger.Venue) VenueClient {
	if v == ledger.Rollup {
		return n.Rollup
	}
	return n.Base
}

// Controller runs the lifecycle of the account owned by one signer. Steps
// run one at a time: a step started while another is in flight fails with
// [ErrBusy] instead of waiting.
type Controller struct {
	n     *Network
	owner ledger.Signer
	addr  codec.Address

	busy atomic.Bool

	l     sync.RWMutex
	phase Phase
}

// New derives the account of [owner] and returns its controller.
func New(n *Network, owner ledger.Signer) (*Controller, error) {
	if err := n.Verify(); err != nil {
		return nil, err
	}
	return &Controller{
		n:     n,
		owner: owner,
		addr:  n.Deriver.Derive(owner.Address()),
		phase: Uninitialized,
	}, nil
}

func (c *Controller) Address() codec.Address {
	return c.addr
}

func (c *Controller) Phase() Phase {
	c.l.RLock()
	defer c.l.RUnlock()

	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.l.Lock()
	defer c.l.Unlock()

	c.phase = p
}

func (c *Controller) run(ctx context.Context, step string, f func(ctx context.Context) error) error {
	if !c.busy.CompareAndSwap(false, true) {
		return &StepError{Step: step, Stage: StageCheck, Phase: c.Phase(), Err: fmt.Errorf("%w: %w", ledger.ErrInvalidState, ErrBusy)}
	}
	defer c.busy.Store(false)

	ctx, span := c.n.Tracer.Start(ctx, "Controller."+step, oteltrace.WithAttributes(
		attribute.String("account", c.addr.String()),
		attribute.String("phase", c.Phase().String()),
	))
	defer span.End()

	start := time.Now()
	c.n.Log.Info("starting step",
		zap.String("step", step),
		zap.Stringer("account", c.addr),
		zap.Stringer("phase", c.Phase()),
	)
	err := f(ctx)
	c.n.Metrics.observe(step, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.n.Log.Warn("step failed",
			zap.String("step", step),
			zap.Stringer("account", c.addr),
			zap.Stringer("phase", c.Phase()),
			zap.Error(err),
		)
		return err
	}
	c.n.Log.Info("finished step",
		zap.String("step", step),
		zap.Stringer("account", c.addr),
		zap.Stringer("phase", c.Phase()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (c *Controller) fail(step string, stage Stage, v ledger.Venue, op ledger.Operation, txID ids.ID, err error) error {
	return &StepError{
		Step:  step,
		Stage: stage,
		Venue: v,
		Op:    op,
		TxID:  txID,
		Phase: c.Phase(),
		Err:   err,
	}
}

// expect fails unless the controller is in one of [allowed].
func (c *Controller) expect(step string, op ledger.Operation, allowed ...Phase) error {
	p := c.Phase()
	for _, a := range allowed {
		if p == a {
			return nil
		}
	}
	var err error
	switch {
	case p == Closed:
		err = ledger.ErrAccountClosed
	case p == Uninitialized:
		err = fmt.Errorf("%w: account %s is not initialized", ledger.ErrNotFound, c.addr)
	case p.Transient():
		err = fmt.Errorf("%w: %s is unresolved, sync first", ledger.ErrInvalidState, p)
	default:
		err = fmt.Errorf("%w: %s not allowed in %s", ledger.ErrInvalidState, op, p)
	}
	v, _ := p.Owner()
	return c.fail(step, StageCheck, v, op, ids.Empty, err)
}

// issue signs, submits and confirms [op] on [lc].
func (c *Controller) issue(ctx context.Context, step string, lc VenueClient, op ledger.Operation, args ledger.Args) (ids.ID, error) {
	tx := ledger.NewTransaction(op, c.addr, args)
	if err := tx.Sign(c.owner); err != nil {
		return ids.Empty, c.fail(step, StageSubmit, lc.Venue(), op, ids.Empty, err)
	}
	txID, err := lc.Submit(ctx, tx)
	if err != nil {
		return ids.Empty, c.fail(step, StageSubmit, lc.Venue(), op, ids.Empty, err)
	}
	r, err := lc.Confirm(ctx, txID)
	if err != nil {
		return txID, c.fail(step, StageConfirm, lc.Venue(), op, txID, err)
	}
	c.n.Log.Debug("confirmed transaction",
		zap.String("step", step),
		zap.Stringer("op", op),
		zap.Stringer("txID", txID),
		zap.Stringer("venue", r.Venue),
		zap.Stringer("level", r.Level),
		zap.Uint64("slot", r.Slot),
	)
	return txID, nil
}

// revert restores [p] when [err] shows the venue left the account untouched.
func (c *Controller) revert(err error, p Phase) {
	var se *StepError
	if errors.As(err, &se) && se.Rejected() {
		c.setPhase(p)
	}
}

// commit waits for the proof that [txID] on [source] reached the other venue.
func (c *Controller) commit(ctx context.Context, step string, source ledger.Venue, op ledger.Operation, txID ids.ID) error {
	proof, err := c.n.Monitor.AwaitCommitment(ctx, txID, c.n.client(source))
	if err != nil {
		return c.fail(step, StageCommitment, source, op, txID, err)
	}
	c.n.Log.Debug("observed commitment",
		zap.String("step", step),
		zap.Stringer("sourceTx", proof.SourceTx),
		zap.Stringer("targetTx", proof.TargetTx),
		zap.Stringer("target", proof.Target),
	)
	return nil
}

// propagate polls [v] until its copy of the account satisfies [pred].
func (c *Controller) propagate(
	ctx context.Context,
	step string,
	v ledger.Venue,
	op ledger.Operation,
	txID ids.ID,
	pred func(*account.StateAccount) bool,
) error {
	lc := c.n.client(v)
	_, err := poll.Until(ctx, c.n.Propagation, func(ctx context.Context) (bool, error) {
		a, err := lc.FetchAccount(ctx, c.addr)
		if errors.Is(err, ledger.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return pred(a), nil
	}, c.n.PollOptions...)
	if errors.Is(err, poll.ErrExhausted) {
		err = fmt.Errorf("%w: change not visible on %s: %w", ledger.ErrCommitmentTimeout, v, err)
	}
	if err != nil {
		return c.fail(step, StagePropagation, v, op, txID, err)
	}
	return nil
}

// Initialize creates the account on the base ledger.
func (c *Controller) Initialize(ctx context.Context) error {
	const step = "initialize"
	return c.run(ctx, step, func(ctx context.Context) error {
		switch p := c.Phase(); p {
		case Uninitialized:
		case Closed:
			return c.fail(step, StageCheck, ledger.Base, ledger.Initialize, ids.Empty, ledger.ErrAccountClosed)
		default:
			return c.fail(step, StageCheck, ledger.Base, ledger.Initialize, ids.Empty,
				fmt.Errorf("%w: account %s is %s", ledger.ErrAlreadyInitialized, c.addr, p))
		}
		if _, err := c.issue(ctx, step, c.n.Base, ledger.Initialize, ledger.Args{}); err != nil {
			return err
		}
		c.setPhase(ActiveBase)
		return nil
	})
}

// Update sets the account data through the venue that owns it.
func (c *Controller) Update(ctx context.Context, value int64) error {
	const step = "update"
	return c.run(ctx, step, func(ctx context.Context) error {
		v, err := c.owningVenue(step, ledger.Update)
		if err != nil {
			return err
		}
		return c.update(ctx, step, v, value)
	})
}

func (c *Controller) owningVenue(step string, op ledger.Operation) (ledger.Venue, error) {
	if err := c.expect(step, op, ActiveBase, ActiveRollup); err != nil {
		return 0, err
	}
	v, _ := c.Phase().Owner()
	return v, nil
}

func (c *Controller) update(ctx context.Context, step string, v ledger.Venue, value int64) error {
	_, err := c.issue(ctx, step, c.n.client(v), ledger.Update, ledger.Args{Value: value})
	return err
}

// Delegate moves write authority to the rollup. It returns once the rollup
// serves the delegated account.
func (c *Controller) Delegate(ctx context.Context) error {
	const step = "delegate"
	return c.run(ctx, step, func(ctx context.Context) error {
		if err := c.expect(step, ledger.Delegate, ActiveBase); err != nil {
			return err
		}
		c.setPhase(Delegating)
		txID, err := c.issue(ctx, step, c.n.Base, ledger.Delegate, ledger.Args{Validator: c.n.Validator})
		if err != nil {
			c.revert(err, ActiveBase)
			return err
		}
		if err := c.commit(ctx, step, ledger.Base, ledger.Delegate, txID); err != nil {
			return err
		}
		owner := c.owner.Address()
		if err := c.propagate(ctx, step, ledger.Rollup, ledger.Delegate, txID, func(a *account.StateAccount) bool {
			return a.IsDelegated() && a.Owner == owner
		}); err != nil {
			return err
		}
		c.setPhase(ActiveRollup)
		return nil
	})
}

// RequestRandomness asks the oracle for a value through the venue that owns
// the account and waits for a fulfillment newer than the request.
func (c *Controller) RequestRandomness(ctx context.Context, seed uint8) (account.Randomness, error) {
	const step = "requestRandomness"
	var r account.Randomness
	err := c.run(ctx, step, func(ctx context.Context) error {
		v, err := c.owningVenue(step, ledger.RequestRandomness)
		if err != nil {
			return err
		}
		r, err = c.requestRandomness(ctx, step, v, seed)
		return err
	})
	return r, err
}

func (c *Controller) requestRandomness(ctx context.Context, step string, v ledger.Venue, seed uint8) (account.Randomness, error) {
	lc := c.n.client(v)
	req, err := c.n.Oracle.Request(ctx, lc, c.owner, c.addr, seed)
	if err != nil {
		stage := StageSubmit
		if errors.Is(err, ledger.ErrConfirmationTimeout) {
			stage = StageConfirm
		}
		return account.Randomness{}, c.fail(step, stage, v, ledger.RequestRandomness, ids.Empty, err)
	}
	r, err := c.n.Oracle.AwaitFulfillment(ctx, lc, req)
	if err != nil {
		return account.Randomness{}, c.fail(step, StageFulfillment, v, ledger.RequestRandomness, req.TxID, err)
	}
	c.n.Log.Info("randomness fulfilled",
		zap.Stringer("account", c.addr),
		zap.Stringer("request", req.TxID),
		zap.Uint64("value", r.Value),
		zap.Uint64("round", r.Round),
	)
	return r, nil
}

// UpdateCommit sets the account data on the rollup and waits until the base
// ledger holds it.
func (c *Controller) UpdateCommit(ctx context.Context, value int64) error {
	const step = "updateCommit"
	return c.run(ctx, step, func(ctx context.Context) error {
		return c.commitOp(ctx, step, ledger.UpdateCommit, ledger.Args{Value: value})
	})
}

// Commit pushes the rollup state to the base ledger without changing it.
func (c *Controller) Commit(ctx context.Context) error {
	const step = "commit"
	return c.run(ctx, step, func(ctx context.Context) error {
		return c.commitOp(ctx, step, ledger.Commit, ledger.Args{})
	})
}

func (c *Controller) commitOp(ctx context.Context, step string, op ledger.Operation, args ledger.Args) error {
	if err := c.expect(step, op, ActiveRollup); err != nil {
		return err
	}
	c.setPhase(Committing)
	txID, err := c.issue(ctx, step, c.n.Rollup, op, args)
	if err != nil {
		c.revert(err, ActiveRollup)
		return err
	}
	if err := c.commit(ctx, step, ledger.Rollup, op, txID); err != nil {
		return err
	}
	c.setPhase(ActiveRollup)
	return nil
}

// Undelegate commits the rollup state and returns write authority to the
// base ledger. It returns once the base ledger reports the account
// undelegated.
func (c *Controller) Undelegate(ctx context.Context) error {
	const step = "undelegate"
	return c.run(ctx, step, func(ctx context.Context) error {
		if err := c.expect(step, ledger.Undelegate, ActiveRollup, ActiveBase); err != nil {
			return err
		}
		prev := c.Phase()
		if prev == ActiveBase {
			// Only an account the base ledger still reports delegated can be
			// handed back.
			a, err := c.n.Base.FetchAccount(ctx, c.addr)
			if err != nil {
				return c.fail(step, StageFetch, ledger.Base, ledger.Undelegate, ids.Empty, err)
			}
			if !a.IsDelegated() {
				return c.fail(step, StageCheck, ledger.Base, ledger.Undelegate, ids.Empty,
					fmt.Errorf("%w: account is not delegated", ledger.ErrInvalidState))
			}
		}
		c.setPhase(Undelegating)
		txID, err := c.issue(ctx, step, c.n.Rollup, ledger.Undelegate, ledger.Args{})
		if err != nil {
			c.revert(err, prev)
			return err
		}
		if err := c.commit(ctx, step, ledger.Rollup, ledger.Undelegate, txID); err != nil {
			return err
		}
		if err := c.propagate(ctx, step, ledger.Base, ledger.Undelegate, txID, func(a *account.StateAccount) bool {
			return !a.IsDelegated()
		}); err != nil {
			return err
		}
		c.setPhase(ActiveBase)
		return nil
	})
}

// Close releases the account. It is terminal.
func (c *Controller) Close(ctx context.Context) error {
	const step = "close"
	return c.run(ctx, step, func(ctx context.Context) error {
		if err := c.expect(step, ledger.Close, ActiveBase); err != nil {
			return err
		}
		if _, err := c.issue(ctx, step, c.n.Base, ledger.Close, ledger.Args{}); err != nil {
			if errors.Is(err, ledger.ErrAccountClosed) {
				c.setPhase(Closed)
			}
			return err
		}
		c.setPhase(Closed)
		return nil
	})
}

// IssueOn runs the step for [op] against the client of [v] rather than the
// client the controller would pick. Issuing against the venue that does not
// own the account fails with [ledger.ErrWrongVenue] before anything is
// submitted.
func (c *Controller) IssueOn(ctx context.Context, v ledger.Venue, op ledger.Operation, args ledger.Args) error {
	step := op.String()
	return c.run(ctx, step, func(ctx context.Context) error {
		if err := c.expect(step, op, ActiveBase, ActiveRollup); err != nil {
			return err
		}
		if owner, _ := c.Phase().Owner(); owner != v {
			return c.fail(step, StageCheck, v, op, ids.Empty,
				fmt.Errorf("%w: account is owned by %s", ledger.ErrWrongVenue, owner))
		}
		switch op {
		case ledger.Update:
			return c.update(ctx, step, v, args.Value)
		case ledger.RequestRandomness:
			_, err := c.requestRandomness(ctx, step, v, args.Seed)
			return err
		case ledger.UpdateCommit, ledger.Commit:
			return c.commitOp(ctx, step, op, args)
		default:
			return c.fail(step, StageCheck, v, op, ids.Empty,
				fmt.Errorf("%w: %s changes the owning venue", ledger.ErrInvalidState, op))
		}
	})
}

// Fetch reads the account from the venue that owns it. While a transition
// is unresolved the base ledger is read.
func (c *Controller) Fetch(ctx context.Context) (*account.StateAccount, error) {
	v := ledger.Base
	if p := c.Phase(); p == ActiveRollup || p == Committing {
		v = ledger.Rollup
	}
	return c.FetchFrom(ctx, v)
}

// FetchFrom reads the account from [v].
func (c *Controller) FetchFrom(ctx context.Context, v ledger.Venue) (*account.StateAccount, error) {
	a, err := c.n.client(v).FetchAccount(ctx, c.addr)
	if err != nil {
		return nil, c.fail("fetch", StageFetch, v, 0, ids.Empty, err)
	}
	return a, nil
}

// Sync rebuilds the phase from what the venues hold. Callers use it to
// resume after a step failed part way.
func (c *Controller) Sync(ctx context.Context) (Phase, error) {
	const step = "sync"
	var p Phase
	err := c.run(ctx, step, func(ctx context.Context) error {
		base, err := c.n.Base.FetchAccount(ctx, c.addr)
		switch {
		case errors.Is(err, ledger.ErrAccountClosed):
			p = Closed
		case errors.Is(err, ledger.ErrNotFound):
			p = Uninitialized
		case err != nil:
			return c.fail(step, StageFetch, ledger.Base, 0, ids.Empty, err)
		case !base.IsDelegated():
			p = ActiveBase
		default:
			_, err := c.n.Rollup.FetchAccount(ctx, c.addr)
			switch {
			case err == nil:
				p = ActiveRollup
			case errors.Is(err, ledger.ErrNotFound):
				// Delegated on the base ledger but not served by the rollup:
				// either the delegation is not indexed yet or an undelegation
				// is not yet applied.
				p = Delegating
			default:
				return c.fail(step, StageFetch, ledger.Rollup, 0, ids.Empty, err)
			}
		}
		c.setPhase(p)
		return nil
	})
	return p, err
}
