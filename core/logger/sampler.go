package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler passes numerator out of every denominator events. The ratio
// is packed into one word so Set and Allow never lock.
type ratioSampler struct {
	ratio   atomic.Uint64 // numerator<<32 | denominator; 0 passes everything
	counter atomic.Uint64
}

func newRatioSampler(numerator, denominator int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(numerator, denominator)
	return s
}

// Set replaces the ratio. Non-positive values disable sampling.
func (s *ratioSampler) Set(numerator, denominator int) {
	var packed uint64
	if numerator > 0 && denominator > 0 {
		if numerator > denominator {
			numerator = denominator
		}
		packed = uint64(uint32(numerator))<<32 | uint64(uint32(denominator))
	}
	s.ratio.Store(packed)
	s.counter.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	packed := s.ratio.Load()
	if packed == 0 {
		return true
	}
	num, den := packed>>32, packed&0xffffffff
	n := s.counter.Add(1) - 1
	return n%den < num
}

// parseRatioSpec reads "N/D", "D" (one in D) or "P%" into a ratio.
// Anything unparsable disables sampling.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0
	}
	if pct, ok := strings.CutSuffix(spec, "%"); ok {
		p, err := strconv.Atoi(strings.TrimSpace(pct))
		if err != nil || p <= 0 {
			return 0, 0
		}
		return min(p, 100), 100
	}
	if num, den, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, d
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
