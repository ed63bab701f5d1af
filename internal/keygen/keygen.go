// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package keygen generates chronologically ordered, collision resistant keys
// for new elements of a synchronized collection.
//
// A key is 20 characters long: 8 characters encode the creation time in
// milliseconds and 12 characters carry 72 random bits. Keys generated in the
// same millisecond reuse the previous random part incremented by one, so
// keys produced by one process are strictly increasing.
package keygen

import (
	"crypto/rand"
	"sync"
	"time"
)

// alphabet is ordered by ASCII code so lexicographic order of keys matches
// their creation order.
const alphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

const (
	timeLen   = 8
	randLen   = 12
	KeyLength = timeLen + randLen
)

var decodeMap [128]int8

func init() {
	for i := range decodeMap {
		decodeMap[i] = -1
	}
	for i, c := range alphabet {
		decodeMap[c] = int8(i)
	}
}

// Generator holds the state needed to keep keys ordered within one
// millisecond. The zero value is not usable; call New.
type Generator struct {
	mu        sync.Mutex
	lastMs    int64
	lastRand  [randLen]byte
	nowMillis func() int64
}

// New returns a Generator driven by the wall clock.
func New() *Generator {
	return &Generator{
		nowMillis: func() int64 { return time.Now().UnixMilli() },
		lastMs:    -1,
	}
}

var defaultGenerator = New()

// Next returns a new key from the process-wide generator.
func Next() string {
	return defaultGenerator.Next()
}

// Next returns a new key.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowMillis()
	if now == g.lastMs {
		increment(&g.lastRand)
	} else {
		g.lastMs = now
		randomDigits(&g.lastRand)
	}

	var buf [KeyLength]byte
	ts := now
	for i := timeLen - 1; i >= 0; i-- {
		buf[i] = alphabet[ts%64]
		ts /= 64
	}
	for i, d := range g.lastRand {
		buf[timeLen+i] = alphabet[d]
	}
	return string(buf[:])
}

// increment adds one to digits read as a big-endian base-64 number.
func increment(digits *[randLen]byte) {
	for i := randLen - 1; i >= 0; i-- {
		if digits[i] != 63 {
			digits[i]++
			return
		}
		digits[i] = 0
	}
}

func randomDigits(digits *[randLen]byte) {
	var raw [9]byte
	_, _ = rand.Read(raw[:])
	// 9 bytes = 72 bits = 12 digits of 6 bits
	for i := 0; i < 3; i++ {
		b0, b1, b2 := raw[i*3], raw[i*3+1], raw[i*3+2]
		digits[i*4] = b0 >> 2
		digits[i*4+1] = (b0&0x03)<<4 | b1>>4
		digits[i*4+2] = (b1&0x0F)<<2 | b2>>6
		digits[i*4+3] = b2 & 0x3F
	}
}

// Time extracts the creation time encoded in a key. It reports false when
// key is not a generated key.
func Time(key string) (time.Time, bool) {
	if len(key) != KeyLength {
		return time.Time{}, false
	}
	var ms int64
	for i := 0; i < timeLen; i++ {
		c := key[i]
		if c >= 128 || decodeMap[c] < 0 {
			return time.Time{}, false
		}
		ms = ms*64 + int64(decodeMap[c])
	}
	return time.UnixMilli(ms), true
}

// Successor returns a key that sorts strictly after key and before any other
// key that sorts after key and uses the key alphabet. It is used as an
// inclusive lower bound meaning "greater than key".
func Successor(key string) string {
	return key + alphabet[:1]
}
