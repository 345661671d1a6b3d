// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"errors"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/ava-labs/erstate/ledger"
)

var (
	ErrClosed        = errors.New("closed")
	ErrVenueMismatch = errors.New("venue mismatch")
)

// encodeError attaches the ledger error codes of [err] as the data of a
// JSON-RPC error.
func encodeError(err error) error {
	if err == nil {
		return nil
	}
	return &json2.Error{
		Code:    json2.E_SERVER,
		Message: err.Error(),
		Data:    ledger.ErrorCodes(err),
	}
}

// decodeError restores the ledger sentinels of a JSON-RPC error. Transport
// failures are returned as is.
func decodeError(err error) error {
	var jsonErr *json2.Error
	if !errors.As(err, &jsonErr) {
		return err
	}
	var codes []string
	if data, ok := jsonErr.Data.([]interface{}); ok {
		for _, d := range data {
			if code, ok := d.(string); ok {
				codes = append(codes, code)
			}
		}
	}
	return ledger.RemoteError(jsonErr.Message, codes)
}
