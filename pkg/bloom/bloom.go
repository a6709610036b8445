// Package bloom implements a fixed-capacity bloom filter over auction
// uuids, used by the cold archive to avoid scanning every monthly blob
// on a point lookup.
package bloom

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Filter is a Kirsch-Mitzenmacher double-hashing bloom filter.
type Filter struct {
	mu sync.RWMutex

	m uint64 // bits
	k uint64 // hash count
	n uint64 // target capacity (informational)

	bits    []uint64
	bitsSet uint64
	count   uint64
}

// New constructs a filter sized for capacity n items at target false
// positive rate p: m = ceil(-n*ln(p)/ln(2)^2), k = max(1, round(m/n*ln2)).
func New(n uint64, p float64) *Filter {
	if n == 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}

	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m == 0 {
		m = 1
	}
	k := uint64(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}

	words := (m + 63) / 64
	return &Filter{
		m:    m,
		k:    k,
		n:    n,
		bits: make([]uint64, words),
	}
}

// hashes derives two 64-bit values from a 256-bit BLAKE2b digest of u:
// h1 is the first 8 digest bytes, h2 the xxhash of the remaining 24.
// Every probe position is h1 + i*h2 mod m.
func hashes(u uuid.UUID) (uint64, uint64) {
	sum := blake2b.Sum256(u[:])
	h1 := binary.BigEndian.Uint64(sum[0:8])
	h2 := xxhash.Sum64(sum[8:32])
	return h1, h2
}

func (f *Filter) position(h1, h2 uint64, i uint64) uint64 {
	// h1 + i*h2, computed in uint64 (wrapping is fine - we only need a
	// well-distributed value mod m).
	v := h1 + i*h2
	return v % f.m
}

// Add inserts u into the filter.
func (f *Filter) Add(u uuid.UUID) {
	h1, h2 := hashes(u)

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := uint64(0); i < f.k; i++ {
		f.setBit(f.position(h1, h2, i))
	}
	f.count++
}

// MayContain reports whether u might be present. false means u is
// definitely absent; true means u is maybe present.
func (f *Filter) MayContain(u uuid.UUID) bool {
	h1, h2 := hashes(u)

	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := uint64(0); i < f.k; i++ {
		if !f.getBit(f.position(h1, h2, i)) {
			return false
		}
	}
	return true
}

func (f *Filter) setBit(pos uint64) {
	word, bit := pos/64, pos%64
	mask := uint64(1) << bit
	if f.bits[word]&mask == 0 {
		f.bits[word] |= mask
		f.bitsSet++
	}
}

func (f *Filter) getBit(pos uint64) bool {
	word, bit := pos/64, pos%64
	return f.bits[word]&(uint64(1)<<bit) != 0
}

// Merge unions other into f. Both filters must share identical m,k.
func (f *Filter) Merge(other *Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if f.m != other.m || f.k != other.k {
		return fmt.Errorf("bloom: cannot merge filters with differing m/k (%d/%d vs %d/%d)", f.m, f.k, other.m, other.k)
	}

	f.bitsSet = 0
	for i := range f.bits {
		f.bits[i] |= other.bits[i]
	}
	for i := range f.bits {
		f.bitsSet += uint64(popcount(f.bits[i]))
	}
	f.count += other.count
	return nil
}

func popcount(v uint64) int {
	count := 0
	for v != 0 {
		v &= v - 1
		count++
	}
	return count
}

// EstimatedFPR returns (bits_set/m)^k, the current estimated false
// positive rate given what has actually been inserted.
func (f *Filter) EstimatedFPR() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.m == 0 {
		return 0
	}
	ratio := float64(f.bitsSet) / float64(f.m)
	return math.Pow(ratio, float64(f.k))
}

// Count returns the number of Add calls observed (not deduplicated).
func (f *Filter) Count() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// M returns the bit-array size.
func (f *Filter) M() uint64 {
	return f.m
}

// K returns the hash count.
func (f *Filter) K() uint64 {
	return f.k
}
