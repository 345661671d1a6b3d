// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/venue"
)

var (
	_ venue.Listener = (*WebSocketServer)(nil)
	_ http.Handler   = (*WebSocketServer)(nil)

	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
)

// EventMessage is an accepted transaction as streamed to subscribers.
type EventMessage struct {
	TxID    ids.ID                `json:"txId"`
	Op      ledger.Operation      `json:"op"`
	Venue   ledger.Venue          `json:"venue"`
	Address codec.Address         `json:"address"`
	Account *account.StateAccount `json:"account"`
	Slot    uint64                `json:"slot"`
}

type connection struct {
	conn *websocket.Conn
	// filter is empty when the connection listens to every account.
	filter codec.Address
	send   chan []byte

	closeOnce sync.Once
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// WebSocketServer streams the accepted transactions of a venue. A client
// listens to one account by passing it as the "account" query parameter.
type WebSocketServer struct {
	log logging.Logger

	l     sync.RWMutex
	conns map[*connection]struct{}
}

func NewWebSocketServer(log logging.Logger) *WebSocketServer {
	return &WebSocketServer{
		log:   log,
		conns: map[*connection]struct{}{},
	}
}

func (w *WebSocketServer) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var filter codec.Address
	if s := r.URL.Query().Get("account"); s != "" {
		addr, err := codec.StringToAddress(s)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		filter = addr
	}
	wsConn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log.Debug("failed to upgrade",
			zap.Error(err),
		)
		return
	}
	c := &connection{
		conn:   wsConn,
		filter: filter,
		send:   make(chan []byte, maxPendingMessages),
	}
	w.l.Lock()
	w.conns[c] = struct{}{}
	w.l.Unlock()

	go w.writePump(c)
	go w.readPump(c)
}

func (w *WebSocketServer) remove(c *connection) {
	w.l.Lock()
	_, ok := w.conns[c]
	delete(w.conns, c)
	w.l.Unlock()

	if ok {
		c.close()
	}
}

// Connections is the number of open subscriptions.
func (w *WebSocketServer) Connections() int {
	w.l.RLock()
	defer w.l.RUnlock()

	return len(w.conns)
}

func (w *WebSocketServer) Accepted(e *venue.Event) {
	msg, err := json.Marshal(&EventMessage{
		TxID:    e.TxID,
		Op:      e.Op,
		Venue:   e.Venue,
		Address: e.Address,
		Account: e.Account,
		Slot:    e.Slot,
	})
	if err != nil {
		w.log.Error("failed to marshal event", zap.Error(err))
		return
	}

	w.l.RLock()
	defer w.l.RUnlock()

	for c := range w.conns {
		if !c.filter.Empty() && c.filter != e.Address {
			continue
		}
		select {
		case c.send <- msg:
		default:
			w.log.Verbo("dropping message to subscribed connection due to too many pending messages")
		}
	}
}

func (w *WebSocketServer) readPump(c *connection) {
	defer func() {
		w.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				w.log.Debug("unexpected close in websockets",
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (w *WebSocketServer) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.remove(c)
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				w.log.Debug("closing the connection",
					zap.String("reason", "failed to write message"),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close drops every subscription.
func (w *WebSocketServer) Close() {
	w.l.Lock()
	conns := w.conns
	w.conns = map[*connection]struct{}{}
	w.l.Unlock()

	for c := range conns {
		c.close()
	}
}
