// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"net/http"

	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/json"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/gorilla/rpc/v2"

	"github.com/ava-labs/erstate/server"
	"github.com/ava-labs/erstate/venue"
)

func NewJSONRPCHandler(
	name string,
	service interface{},
) (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json.NewCodec(), "application/json")
	server.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	return server, server.RegisterService(service, name)
}

// RegisterVenue exposes [v] on [adder] at JSONRPCEndpoint and streams its
// accepted transactions at WebSocketEndpoint.
func RegisterVenue(
	adder server.PathAdder,
	log logging.Logger,
	tracer trace.Tracer,
	v *venue.Venue,
) (*WebSocketServer, error) {
	handler, err := NewJSONRPCHandler(Name, NewJSONRPCServer(log, tracer, v))
	if err != nil {
		return nil, err
	}
	if err := adder.AddRoute(handler, JSONRPCEndpoint); err != nil {
		return nil, err
	}
	ws := NewWebSocketServer(log)
	if err := adder.AddStreamRoute(ws, WebSocketEndpoint); err != nil {
		return nil, err
	}
	v.AddListener(ws)
	return ws, nil
}
