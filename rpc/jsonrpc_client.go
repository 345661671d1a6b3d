// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/ids"
	"golang.org/x/time/rate"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/poll"
	"github.com/ava-labs/erstate/requester"
	"github.com/ava-labs/erstate/venue"
)

var _ ledger.Client = (*JSONRPCClient)(nil)

type ClientConfig struct {
	// Level is the confirmation level Confirm waits for.
	Level ledger.Level `json:"level" yaml:"level"`
	// Confirmation bounds Confirm.
	Confirmation poll.Policy `json:"confirmation" yaml:"confirmation"`
	// RequestsPerSecond limits the rate of requests. Zero disables the limit.
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// JSONRPCClient reaches one venue over JSON-RPC. It holds no account state
// and is safe to share between controllers.
type JSONRPCClient struct {
	requester *requester.EndpointRequester
	venue     ledger.Venue
	cfg       ClientConfig
	limiter   *rate.Limiter
	opts      []poll.Option
}

func NewJSONRPCClient(uri string, v ledger.Venue, cfg ClientConfig, opts ...poll.Option) *JSONRPCClient {
	uri = strings.TrimSuffix(uri, "/")
	uri += JSONRPCEndpoint
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &JSONRPCClient{
		requester: requester.New(uri, Name),
		venue:     v,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, burst),
		opts:      opts,
	}
}

func (cli *JSONRPCClient) send(ctx context.Context, method string, params interface{}, reply interface{}) error {
	if err := cli.limiter.Wait(ctx); err != nil {
		return err
	}
	return decodeError(cli.requester.SendRequest(ctx, method, params, reply))
}

func (cli *JSONRPCClient) Venue() ledger.Venue {
	return cli.venue
}

func (cli *JSONRPCClient) Ping(ctx context.Context) (bool, error) {
	resp := new(PingReply)
	err := cli.send(ctx,
		"ping",
		nil,
		resp,
	)
	return resp.Success, err
}

// Network returns the venue the endpoint serves and its current slot. It
// fails with [ErrVenueMismatch] if the endpoint is not the venue the client
// was built for.
func (cli *JSONRPCClient) Network(ctx context.Context) (ledger.Venue, uint64, error) {
	resp := new(NetworkReply)
	if err := cli.send(ctx, "network", nil, resp); err != nil {
		return 0, 0, err
	}
	if resp.Venue != cli.venue {
		return resp.Venue, resp.Slot, fmt.Errorf("%w: expected %s but endpoint serves %s", ErrVenueMismatch, cli.venue, resp.Venue)
	}
	return resp.Venue, resp.Slot, nil
}

func (cli *JSONRPCClient) Submit(ctx context.Context, tx *ledger.Transaction) (ids.ID, error) {
	b, err := tx.Marshal()
	if err != nil {
		return ids.Empty, err
	}
	resp := new(SubmitTxReply)
	err = cli.send(
		ctx,
		"submitTx",
		&SubmitTxArgs{Tx: b},
		resp,
	)
	return resp.TxID, err
}

func (cli *JSONRPCClient) Status(ctx context.Context, txID ids.ID) (*ledger.Result, error) {
	resp := new(TxStatusReply)
	err := cli.send(
		ctx,
		"getTransactionStatus",
		&TxArgs{TxID: txID},
		resp,
	)
	return resp.Result, err
}

func (cli *JSONRPCClient) Confirm(ctx context.Context, txID ids.ID) (*ledger.Result, error) {
	return ledger.AwaitLevel(ctx, cli.cfg.Confirmation, cli.cfg.Level, txID, cli.Status, cli.opts...)
}

func (cli *JSONRPCClient) FetchAccount(ctx context.Context, addr codec.Address) (*account.StateAccount, error) {
	resp := new(AccountReply)
	err := cli.send(
		ctx,
		"getAccount",
		&AccountArgs{Address: addr},
		resp,
	)
	return resp.Account, err
}

func (cli *JSONRPCClient) LatestFinalityMarker(ctx context.Context) (uint64, error) {
	resp := new(FinalityMarkerReply)
	err := cli.send(ctx, "latestFinalityMarker", nil, resp)
	return resp.Slot, err
}

func (cli *JSONRPCClient) CommitmentSignature(ctx context.Context, txID ids.ID) (*ledger.CommitmentProof, error) {
	resp := new(CommitmentReply)
	err := cli.send(
		ctx,
		"getCommitmentSignature",
		&TxArgs{TxID: txID},
		resp,
	)
	return resp.Proof, err
}

func (cli *JSONRPCClient) PendingRandomness(ctx context.Context) ([]*venue.RandomnessRequest, error) {
	resp := new(PendingRandomnessReply)
	err := cli.send(ctx, "pendingRandomness", nil, resp)
	return resp.Requests, err
}
