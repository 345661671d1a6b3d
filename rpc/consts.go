// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"time"

	"github.com/ava-labs/avalanchego/utils/units"

	"github.com/ava-labs/erstate/consts"
)

const (
	Name              = consts.Name
	JSONRPCEndpoint   = "/ext/erstate"
	WebSocketEndpoint = "/ext/erstate/ws"

	readHeaderTimeout  = 5 * time.Second
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxReadMessageSize = units.KiB
	maxPendingMessages = 1024
)
