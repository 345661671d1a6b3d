// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vrf is a randomness provider that serves requests from one oracle
// queue. Randomness is the hash of the provider's signature over the
// request, so anyone holding the provider's public key can check it.
package vrf

import (
	"context"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/consts"
	"github.com/ava-labs/erstate/crypto/ed25519"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/venue"
)

// Source is a venue the provider watches for requests.
type Source interface {
	Venue() ledger.Venue
	Submit(ctx context.Context, tx *ledger.Transaction) (ids.ID, error)
	PendingRandomness(ctx context.Context) ([]*venue.RandomnessRequest, error)
}

type Provider struct {
	log   logging.Logger
	key   ed25519.PrivateKey
	queue codec.Address

	l      sync.Mutex
	served map[ids.ID]struct{}
}

func New(log logging.Logger, key ed25519.PrivateKey, queue codec.Address) *Provider {
	return &Provider{
		log:    log,
		key:    key,
		queue:  queue,
		served: map[ids.ID]struct{}{},
	}
}

// Identity is the signer venues must accept fulfillments from.
func (p *Provider) Identity() codec.Address {
	return p.key.Address()
}

func message(req *venue.RandomnessRequest) []byte {
	msg := make([]byte, 0, codec.AddressLen+consts.SeedLen+ids.IDLen)
	msg = append(msg, req.Queue[:]...)
	msg = append(msg, req.Seed[:]...)
	return append(msg, req.ID[:]...)
}

// Randomness is the output for [req].
func (p *Provider) Randomness(req *venue.RandomnessRequest) [consts.RandomnessLen]byte {
	sig := p.key.Sign(message(req))
	return hashing.ComputeHash256Array(sig[:])
}

// Verify checks that [randomness] was produced for [req] by the holder of
// [pk], given the signature it was derived from.
func Verify(pk ed25519.PublicKey, req *venue.RandomnessRequest, sig ed25519.Signature, randomness [consts.RandomnessLen]byte) bool {
	if !ed25519.Verify(message(req), pk, sig) {
		return false
	}
	return hashing.ComputeHash256Array(sig[:]) == randomness
}

// Fulfill answers every pending request of the provider's queue on [src]
// and returns the number answered.
func (p *Provider) Fulfill(ctx context.Context, src Source) (int, error) {
	reqs, err := src.PendingRandomness(ctx)
	if err != nil {
		return 0, err
	}

	p.l.Lock()
	defer p.l.Unlock()

	pending := make(map[ids.ID]struct{}, len(reqs))
	fulfilled := 0
	for _, req := range reqs {
		pending[req.ID] = struct{}{}
		if req.Queue != p.queue {
			continue
		}
		if _, ok := p.served[req.ID]; ok {
			continue
		}
		tx := ledger.NewTransaction(ledger.ConsumeRandomness, req.Account, ledger.Args{
			Request:    req.ID,
			Randomness: p.Randomness(req),
		})
		if err := tx.Sign(p.key); err != nil {
			return fulfilled, err
		}
		txID, err := src.Submit(ctx, tx)
		if err != nil {
			if ctx.Err() != nil {
				return fulfilled, ctx.Err()
			}
			p.log.Warn("failed to fulfill randomness request",
				zap.Stringer("request", req.ID),
				zap.Stringer("account", req.Account),
				zap.Stringer("venue", src.Venue()),
				zap.Error(err),
			)
			continue
		}
		p.served[req.ID] = struct{}{}
		fulfilled++
		p.log.Debug("fulfilled randomness request",
			zap.Stringer("request", req.ID),
			zap.Stringer("txID", txID),
			zap.Stringer("venue", src.Venue()),
		)
	}
	for id := range p.served {
		if _, ok := pending[id]; !ok {
			delete(p.served, id)
		}
	}
	return fulfilled, nil
}

// Run fulfills requests on [src] every [interval] until [ctx] is done.
func (p *Provider) Run(ctx context.Context, src Source, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := p.Fulfill(ctx, src); err != nil && ctx.Err() == nil {
				p.log.Warn("randomness provider pass failed",
					zap.Stringer("venue", src.Venue()),
					zap.Error(err),
				)
			}
		}
	}
}
