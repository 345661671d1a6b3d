// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/cockroachdb/pebble"
)

var (
	_ database.Batch   = (*batch)(nil)
	_ database.Batcher = (*Database)(nil)

	errInvalidOperation = errors.New("invalid batch operation")
)

// batch buffers writes until Write commits them in one pebble batch. It is
// not safe for concurrent use.
type batch struct {
	db    *Database
	batch *pebble.Batch
	size  int

	puts    int
	deletes int
	// written is set once the batch was committed since the last Reset.
	written bool
}

func (db *Database) NewBatch() database.Batch {
	return &batch{
		db:    db,
		batch: db.db.NewBatch(),
	}
}

func (b *batch) Put(key, value []byte) error {
	b.size += len(key) + len(value)
	b.puts++
	return b.batch.Set(key, value, nil)
}

func (b *batch) Delete(key []byte) error {
	b.size += len(key)
	b.deletes++
	return b.batch.Delete(key, nil)
}

func (b *batch) Size() int {
	return b.size
}

func (b *batch) Write() error {
	b.db.closeLock.RLock()
	defer b.db.closeLock.RUnlock()

	// pebble panics when committing to a closed database.
	if b.db.closed {
		return database.ErrClosed
	}
	if b.written {
		// A pebble batch can only be committed once.
		next := b.db.db.NewBatch()
		if err := next.Apply(b.batch, nil); err != nil {
			return err
		}
		b.batch = next
	}
	b.written = true
	if err := b.batch.Commit(b.db.writeOpts); err != nil {
		return err
	}
	b.db.metrics.writes.Add(float64(b.puts))
	b.db.metrics.deletes.Add(float64(b.deletes))
	return nil
}

func (b *batch) Reset() {
	b.batch.Reset()
	b.size = 0
	b.puts = 0
	b.deletes = 0
	b.written = false
}

func (b *batch) Replay(w database.KeyValueWriterDeleter) error {
	reader := b.batch.Reader()
	for {
		kind, k, v, ok := reader.Next()
		if !ok {
			return nil
		}
		switch kind {
		case pebble.InternalKeyKindSet:
			if err := w.Put(k, v); err != nil {
				return err
			}
		case pebble.InternalKeyKindDelete:
			if err := w.Delete(k); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %v", errInvalidOperation, kind)
		}
	}
}

func (b *batch) Inner() database.Batch {
	return b
}
