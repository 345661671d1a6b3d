// Copyright (C) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"errors"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	CacheSize int64 `json:"cacheSize" yaml:"cacheSize"`
	Sync      bool  `json:"sync" yaml:"sync"`
	// InMemory keeps every file in memory. Nothing survives Close.
	InMemory bool `json:"inMemory" yaml:"inMemory"`
}

func NewDefaultConfig() Config {
	return Config{
		CacheSize: 64 * 1024 * 1024,
		Sync:      true,
	}
}

// Database is a key-value store on top of pebble that reports missing keys
// with [database.ErrNotFound].
type Database struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	metrics   *metrics

	closeLock sync.RWMutex
	closed    bool
}

func New(file string, cfg Config) (*Database, *prometheus.Registry, error) {
	registry, metrics, err := newMetrics()
	if err != nil {
		return nil, nil, err
	}
	cache := pebble.NewCache(cfg.CacheSize)
	defer cache.Unref()

	opts := &pebble.Options{Cache: cache}
	if cfg.InMemory {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(file, opts)
	if err != nil {
		return nil, nil, err
	}
	writeOpts := pebble.NoSync
	if cfg.Sync {
		writeOpts = pebble.Sync
	}
	return &Database{
		db:        db,
		writeOpts: writeOpts,
		metrics:   metrics,
	}, registry, nil
}

func (db *Database) Has(key []byte) (bool, error) {
	_, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (db *Database) Get(key []byte) ([]byte, error) {
	db.closeLock.RLock()
	defer db.closeLock.RUnlock()

	if db.closed {
		return nil, database.ErrClosed
	}
	start := time.Now()
	data, closer, err := db.db.Get(key)
	db.metrics.getLatency.Observe(float64(time.Since(start)))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	value := make([]byte, len(data))
	copy(value, data)
	return value, closer.Close()
}

func (db *Database) Put(key []byte, value []byte) error {
	db.closeLock.RLock()
	defer db.closeLock.RUnlock()

	if db.closed {
		return database.ErrClosed
	}
	db.metrics.writes.Inc()
	return db.db.Set(key, value, db.writeOpts)
}

func (db *Database) Delete(key []byte) error {
	db.closeLock.RLock()
	defer db.closeLock.RUnlock()

	if db.closed {
		return database.ErrClosed
	}
	db.metrics.deletes.Inc()
	return db.db.Delete(key, db.writeOpts)
}

func (db *Database) Close() error {
	db.closeLock.Lock()
	defer db.closeLock.Unlock()

	if db.closed {
		return database.ErrClosed
	}
	db.closed = true
	return db.db.Close()
}
