// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/venue"
)

var _ Backend = (*venue.Venue)(nil)

// Backend is the venue a server exposes.
type Backend interface {
	Venue() ledger.Venue
	Slot() uint64
	FinalizedSlot() uint64
	Submit(ctx context.Context, tx *ledger.Transaction) (ids.ID, error)
	Status(ctx context.Context, txID ids.ID) (*ledger.Result, error)
	Account(ctx context.Context, addr codec.Address) (*account.StateAccount, error)
	Commitment(ctx context.Context, txID ids.ID) (*ledger.CommitmentProof, error)
	PendingRandomness() []*venue.RandomnessRequest
}

type JSONRPCServer struct {
	log     logging.Logger
	tracer  trace.Tracer
	backend Backend
}

func NewJSONRPCServer(log logging.Logger, tracer trace.Tracer, backend Backend) *JSONRPCServer {
	return &JSONRPCServer{
		log:     log,
		tracer:  tracer,
		backend: backend,
	}
}

type PingReply struct {
	Success bool `json:"success"`
}

func (j *JSONRPCServer) Ping(_ *http.Request, _ *struct{}, reply *PingReply) (err error) {
	j.log.Info("ping")
	reply.Success = true
	return nil
}

type NetworkReply struct {
	Venue ledger.Venue `json:"venue"`
	Slot  uint64       `json:"slot"`
}

func (j *JSONRPCServer) Network(_ *http.Request, _ *struct{}, reply *NetworkReply) error {
	reply.Venue = j.backend.Venue()
	reply.Slot = j.backend.Slot()
	return nil
}

type SubmitTxArgs struct {
	Tx []byte `json:"tx"`
}

type SubmitTxReply struct {
	TxID ids.ID `json:"txId"`
}

func (j *JSONRPCServer) SubmitTx(
	req *http.Request,
	args *SubmitTxArgs,
	reply *SubmitTxReply,
) error {
	ctx, span := j.tracer.Start(req.Context(), "JSONRPCServer.SubmitTx")
	defer span.End()

	tx, err := ledger.UnmarshalTransaction(args.Tx)
	if err != nil {
		return encodeError(err)
	}
	txID, err := j.backend.Submit(ctx, tx)
	if err != nil {
		j.log.Debug("rejected submission",
			zap.Stringer("op", tx.Op),
			zap.Stringer("account", tx.Account),
			zap.Error(err),
		)
		return encodeError(err)
	}
	reply.TxID = txID
	return nil
}

type TxArgs struct {
	TxID ids.ID `json:"txId"`
}

type TxStatusReply struct {
	Result *ledger.Result `json:"result"`
}

func (j *JSONRPCServer) GetTransactionStatus(req *http.Request, args *TxArgs, reply *TxStatusReply) error {
	ctx, span := j.tracer.Start(req.Context(), "JSONRPCServer.GetTransactionStatus")
	defer span.End()

	r, err := j.backend.Status(ctx, args.TxID)
	if err != nil {
		return encodeError(err)
	}
	reply.Result = r
	return nil
}

type AccountArgs struct {
	Address codec.Address `json:"address"`
}

type AccountReply struct {
	Account *account.StateAccount `json:"account"`
}

func (j *JSONRPCServer) GetAccount(req *http.Request, args *AccountArgs, reply *AccountReply) error {
	ctx, span := j.tracer.Start(req.Context(), "JSONRPCServer.GetAccount")
	defer span.End()

	a, err := j.backend.Account(ctx, args.Address)
	if err != nil {
		return encodeError(err)
	}
	reply.Account = a
	return nil
}

type FinalityMarkerReply struct {
	Slot uint64 `json:"slot"`
}

func (j *JSONRPCServer) LatestFinalityMarker(_ *http.Request, _ *struct{}, reply *FinalityMarkerReply) error {
	reply.Slot = j.backend.FinalizedSlot()
	return nil
}

type CommitmentReply struct {
	Proof *ledger.CommitmentProof `json:"proof"`
}

func (j *JSONRPCServer) GetCommitmentSignature(req *http.Request, args *TxArgs, reply *CommitmentReply) error {
	ctx, span := j.tracer.Start(req.Context(), "JSONRPCServer.GetCommitmentSignature")
	defer span.End()

	proof, err := j.backend.Commitment(ctx, args.TxID)
	if err != nil {
		return encodeError(err)
	}
	reply.Proof = proof
	return nil
}

type PendingRandomnessReply struct {
	Requests []*venue.RandomnessRequest `json:"requests"`
}

func (j *JSONRPCServer) PendingRandomness(_ *http.Request, _ *struct{}, reply *PendingRandomnessReply) error {
	reply.Requests = j.backend.PendingRandomness()
	return nil
}
