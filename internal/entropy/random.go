// Package entropy supplies the seeded generators every stochastic stage
// runs on. Each run owns its generator; nothing here is shared between runs.
// Unseeded runs draw their seed from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
	"time"
)

// NewRand returns a generator for seed and the seed actually used. A
// negative seed is replaced by one drawn from crypto/rand so the run can be
// reproduced from the reported value.
func NewRand(seed int64) (*mrand.Rand, int64) {
	if seed < 0 {
		seed = CryptoSeed()
	}
	return mrand.New(mrand.NewSource(seed)), seed
}

// Derive returns an independent generator for sub-stage k of a run, the way
// world generation offsets its per-pass seeds.
func Derive(seed int64, k int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed + k))
}

// CryptoSeed returns a non-negative seed from crypto/rand, falling back to
// the clock if the system source fails.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		slog.Debug("crypto/rand read failed, seeding from clock", "err", err)
		return time.Now().UnixNano() & (1<<63 - 1)
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}
