// Package sessionindex provides a probabilistic membership index over
// session ids. It guarantees no false negatives: if a session has produced an
// event, MightContain always returns true, so a negative answer lets callers
// skip the database entirely.
package sessionindex

import (
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Index is a bloom filter over session ids.
type Index struct {
	mu        sync.RWMutex
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates an Index sized for the expected number of distinct sessions and
// target false positive rate.
func New(expectedSessions int, targetFPR float64) *Index {
	if expectedSessions <= 0 {
		expectedSessions = 1024
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedSessions)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	k := (m / n) * math.Ln2

	numBits := int(math.Ceil(m))
	if numBits < 64 {
		numBits = 64
	}
	numHashes := int(math.Ceil(k))
	if numHashes < 1 {
		numHashes = 1
	}

	numWords := (numBits + 63) / 64
	return &Index{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// Add records a session id.
func (ix *Index) Add(sessionID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	h1, h2 := hash128(sessionID)
	for i := uint64(0); i < ix.numHashes; i++ {
		pos := (h1 + i*h2) % ix.numBits
		ix.bits[pos/64] |= 1 << (pos % 64)
	}
	ix.count++
}

// MightContain reports whether the session may have produced events. A false
// result is definitive; a true result may be a false positive.
func (ix *Index) MightContain(sessionID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	h1, h2 := hash128(sessionID)
	for i := uint64(0); i < ix.numHashes; i++ {
		pos := (h1 + i*h2) % ix.numBits
		if ix.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of Add calls (not distinct sessions).
func (ix *Index) Count() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.count
}

// hash128 derives two 64-bit hashes for double hashing.
func hash128(s string) (uint64, uint64) {
	h := murmur3.New128()
	h.Write([]byte(s))
	return h.Sum128()
}
