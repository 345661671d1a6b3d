// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lockmap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockmapSerializesKey(t *testing.T) {
	require := require.New(t)
	l := New(4)

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock("a")
			counter++
			l.Unlock("a")
		}()
	}
	wg.Wait()
	require.Equal(64, counter)
	require.Zero(l.Locks())
}

func TestLockmapIndependentKeys(t *testing.T) {
	require := require.New(t)
	l := New(4)

	l.Lock("a")
	l.RLock("b")
	l.RLock("b")
	require.Equal(2, l.Locks())

	l.RUnlock("b")
	l.RUnlock("b")
	l.Unlock("a")
	require.Zero(l.Locks())
}
