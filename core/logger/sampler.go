package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets keep out of every events through. A zero ratio lets
// everything through.
type sampler struct {
	ratio atomic.Uint64 // keep<<32 | every
	seen  atomic.Uint64
}

func newSampler(keep, every int) *sampler {
	s := &sampler{}
	s.set(keep, every)
	return s
}

func (s *sampler) set(keep, every int) {
	var ratio uint64
	if keep > 0 && every > 0 {
		ratio = uint64(min(keep, every))<<32 | uint64(every)
	}
	s.ratio.Store(ratio)
	s.seen.Store(0)
}

func (s *sampler) allow() bool {
	ratio := s.ratio.Load()
	if ratio == 0 {
		return true
	}
	keep, every := ratio>>32, ratio&0xffffffff
	return (s.seen.Add(1)-1)%every < keep
}

// parseRatio reads "keep/every" or "every" (meaning 1/every). ok is false
// for malformed input; "0" disables sampling.
func parseRatio(spec string) (keep, every int, ok bool) {
	spec = strings.TrimSpace(spec)
	if a, b, found := strings.Cut(spec, "/"); found {
		k, err1 := strconv.Atoi(strings.TrimSpace(a))
		e, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil || k < 0 || e < 0 {
			return 0, 0, false
		}
		return k, e, true
	}
	e, err := strconv.Atoi(spec)
	if err != nil || e < 0 {
		return 0, 0, false
	}
	if e == 0 {
		return 0, 0, true
	}
	return 1, e, true
}
