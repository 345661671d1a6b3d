// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ava-labs/erstate/codec"
)

type WebSocketClient struct {
	conn *websocket.Conn

	closeOnce sync.Once
}

// NewWebSocketClient subscribes to the events of [addr] on the venue at
// [uri]. An empty address subscribes to every account.
func NewWebSocketClient(ctx context.Context, uri string, addr codec.Address) (*WebSocketClient, error) {
	uri = strings.TrimSuffix(uri, "/")
	uri = strings.Replace(uri, "http://", "ws://", 1)
	uri = strings.Replace(uri, "https://", "wss://", 1)
	uri += WebSocketEndpoint
	if !addr.Empty() {
		uri += "?account=" + url.QueryEscape(addr.String())
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, uri, nil)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	return &WebSocketClient{conn: conn}, nil
}

// ListenEvent blocks until the next event arrives or the connection closes.
func (c *WebSocketClient) ListenEvent() (*EventMessage, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	e := new(EventMessage)
	if err := json.Unmarshal(msg, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *WebSocketClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}
