package model

import (
	"encoding/binary"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
)

var (
	seedMu   sync.Mutex
	seedSeq  atomic.Int64
	seedBase int64
	seeded   bool
)

// SetSeed fixes the base seed for every subsequently created model RNG,
// making runs reproducible. Called by the seed generic extension after
// parsing.
func SetSeed(seed int64) {
	seedMu.Lock()
	defer seedMu.Unlock()
	seedBase = seed
	seeded = true
	seedSeq.Store(0)
}

// NewRand returns an independent random source for one model instance.
// With a fixed base seed each instance still gets a distinct stream.
func NewRand() *rand.Rand {
	seedMu.Lock()
	defer seedMu.Unlock()
	if seeded {
		return rand.New(rand.NewSource(seedBase + seedSeq.Add(1)))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}

// NormInt samples an integer from a normal distribution centered on a
// uniformly chosen point of [min, max], clamped to the interval. Each call
// draws a new center, so consecutive samples are independent of each other.
func NormInt(rng *rand.Rand, min, max int64, stddev float64) int64 {
	if max <= min {
		return min
	}
	center := min + rng.Int63n(max-min+1)
	v := center + int64(rng.NormFloat64()*stddev)
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}

// RandomIP returns a random IPv4 address as its integer and dotted-quad
// forms.
func RandomIP(rng *rand.Rand, stddev float64) (int64, string) {
	ipInt := NormInt(rng, -1<<31, 1<<31-1, stddev)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(int32(ipInt)))
	return ipInt, net.IP(buf[:]).String()
}

// wellKnownPorts and their selection weights, heavily favoring HTTP
var (
	wellKnownPorts   = []int{21, 22, 23, 25, 80, 110, 220, 443}
	wellKnownWeights = []int{10, 5, 5, 5, 100, 5, 5, 20}
	wellKnownTotal   = 155
)

// RandomValidPort returns a weighted choice among well-known service ports.
func RandomValidPort(rng *rand.Rand) int {
	n := rng.Intn(wellKnownTotal)
	for i, w := range wellKnownWeights {
		if n < w {
			return wellKnownPorts[i]
		}
		n -= w
	}
	return wellKnownPorts[len(wellKnownPorts)-1]
}

// RandomPort returns a well-known port with the given probability, an
// ephemeral port drawn with NormInt otherwise.
func RandomPort(rng *rand.Rand, stddev, validPortProbability float64) int {
	if rng.Float64() < validPortProbability {
		return RandomValidPort(rng)
	}
	return int(NormInt(rng, 1, 32768, stddev))
}
