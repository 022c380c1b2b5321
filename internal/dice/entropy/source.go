// Package entropy provides the die-roll generator used by the roller.
//
// Source blends three inputs into one uniform draw: a cryptographic reader, a
// SplitMix64 stream seeded from high-resolution time, and an ambient accumulator fed by
// whatever the caller observes (keystroke timing, request arrival). The crypto and mix
// terms carry weight 1, so the fractional sum stays uniform even when one input is
// missing or weak.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
)

const (
	// MaxSides is the largest die a Source can roll
	MaxSides = 1 << 32

	twoPow32 = float64(1 << 32)
	twoPow53 = float64(1 << 53)
)

// Weights sets the relative contribution of each input
type Weights struct {
	Crypto  float64
	Mix     float64
	Ambient float64
}

// DefaultWeights keeps unit weight on crypto and mix
var DefaultWeights = Weights{Crypto: 1, Mix: 1, Ambient: 0.381966}

// Config holds the dependencies for a Source
type Config struct {
	// CryptoReader defaults to crypto/rand.Reader
	CryptoReader io.Reader
	// Clock seeds the mix stream and timestamps ambient samples
	Clock clock.Clock
	// Seed overrides the clock-derived mix seed when non-zero
	Seed    uint64
	Weights *Weights
}

// Source is a blended die roller. It is safe for concurrent use.
type Source struct {
	mu      sync.Mutex
	crypto  io.Reader
	clock   clock.Clock
	weights Weights

	mixState     uint64
	ambientState uint64
	ambientCount uint64
	draws        uint64
}

var _ dice.Roller = (*Source)(nil)

// New creates a Source. A nil config uses crypto/rand, the real clock and default weights.
func New(cfg *Config) *Source {
	if cfg == nil {
		cfg = &Config{}
	}

	s := &Source{
		crypto:  cfg.CryptoReader,
		clock:   cfg.Clock,
		weights: DefaultWeights,
	}
	if s.crypto == nil {
		s.crypto = rand.Reader
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if cfg.Weights != nil {
		s.weights = *cfg.Weights
	}

	s.mixState = cfg.Seed
	if s.mixState == 0 {
		// nolint:gosec // nanosecond timestamps are positive
		s.mixState = uint64(s.clock.Now().UnixNano())
	}
	s.ambientState = splitmix64(&s.mixState)

	return s
}

// Stir folds an ambient observation into the generator
func (s *Source) Stir(sample uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ambientCount++
	s.ambientState ^= sample + s.ambientCount*0x9e3779b97f4a7c15
	s.ambientState = splitmix64(&s.ambientState)
}

// StirTime folds an observation timestamp into the generator
func (s *Source) StirTime(t time.Time) {
	// nolint:gosec // bit pattern only
	s.Stir(uint64(t.UnixNano()))
}

// Float64 returns a blended value in [0, 1)
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.float64Locked()
}

func (s *Source) float64Locked() float64 {
	s.draws++

	sum := 0.0
	if c, ok := s.cryptoUnit(); ok {
		sum += s.weights.Crypto * c
	}
	sum += s.weights.Mix * toUnit(splitmix64(&s.mixState))

	// nolint:gosec // bit pattern only
	ambient := s.ambientState ^ uint64(s.clock.Now().UnixNano()) ^ s.draws
	sum += s.weights.Ambient * toUnit(splitmix64(&ambient))

	v := sum - math.Floor(sum)
	if v >= 1 || v < 0 {
		return 0
	}
	return v
}

func (s *Source) cryptoUnit() (float64, bool) {
	var buf [8]byte
	if _, err := io.ReadFull(s.crypto, buf[:]); err != nil {
		return 0, false
	}
	return toUnit(binary.BigEndian.Uint64(buf[:])), true
}

// Roll returns a uniform integer in [1, size]
func (s *Source) Roll(size int) (int, error) {
	if size <= 0 {
		return 0, errors.InvalidArgumentf("die size must be positive: %d", size)
	}
	if uint64(size) > MaxSides {
		return 0, errors.InvalidArgumentf("die size must be at most %d: %d", uint64(MaxSides), size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollLocked(uint64(size)), nil
}

// RollN rolls count dice of the given size
func (s *Source) RollN(count, size int) ([]int, error) {
	if count < 0 {
		return nil, errors.InvalidArgumentf("dice count must not be negative: %d", count)
	}
	results := make([]int, count)
	for i := range results {
		v, err := s.Roll(size)
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

// rollLocked maps 32-bit draws onto [1, sides], rejecting draws past the largest
// multiple of sides
func (s *Source) rollLocked(sides uint64) int {
	limit := (uint64(MaxSides) / sides) * sides
	for {
		draw := uint64(s.float64Locked() * twoPow32)
		if draw < limit {
			// nolint:gosec // bounded by sides
			return int(draw%sides) + 1
		}
	}
}

func toUnit(x uint64) float64 {
	return float64(x>>11) / twoPow53
}

func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
