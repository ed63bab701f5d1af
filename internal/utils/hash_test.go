// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_MatchesSHA256(t *testing.T) {
	data := []byte(`{"name":"rex"}`)
	want := sha256.Sum256(data)

	assert.Equal(t, want[:], Hash(data))
	assert.Equal(t, Hash(data), Hash(data), "hash must be deterministic")
}

func TestETag(t *testing.T) {
	sum := sha256.Sum256([]byte("null"))

	tag := ETag([]byte("null"))

	assert.Equal(t, `"`+hex.EncodeToString(sum[:])+`"`, tag)
	assert.NotEqual(t, tag, ETag([]byte(`"null"`)))
}

func TestHash_Concurrent(t *testing.T) {
	want := Hash([]byte("payload"))

	var wg sync.WaitGroup
	results := make([][]byte, 32)
	for i := range results {
		wg.Go(func() {
			results[i] = Hash([]byte("payload"))
		})
	}
	wg.Wait()

	for _, got := range results {
		require.Equal(t, want, got)
	}
}
