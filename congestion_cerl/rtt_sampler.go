package congestion_cerl

import (
	"math"
	"time"
)

// noRTTSample marks a minimum that has not seen a sample yet.
const noRTTSample = time.Duration(math.MaxInt64)

// rttSampler keeps the lifetime minimum RTT and the minimum over the
// current measurement window.
type rttSampler struct {
	// Minimum RTT over the connection lifetime.
	baseRTT time.Duration
	// Minimum RTT in the current measurement window.
	minRTT time.Duration
	// Samples accumulated in the current measurement window.
	sampleCount uint32
}

func newRTTSampler() rttSampler {
	return rttSampler{
		baseRTT: noRTTSample,
		minRTT:  noRTTSample,
	}
}

// record ingests one RTT observation. Non-positive samples are ignored.
func (s *rttSampler) record(rtt time.Duration) bool {
	if rtt <= 0 {
		return false
	}
	s.minRTT = min(s.minRTT, rtt)
	s.baseRTT = min(s.baseRTT, rtt)
	s.sampleCount++
	return true
}

// hasSample reports whether the current window can feed queue estimation.
func (s *rttSampler) hasSample() bool {
	return s.sampleCount > 0 && s.minRTT != noRTTSample
}

// resetMinRTT forgets the window minimum but keeps the sample count.
func (s *rttSampler) resetMinRTT() {
	s.minRTT = noRTTSample
}

// resetWindow starts a new measurement window.
func (s *rttSampler) resetWindow() {
	s.sampleCount = 0
	s.minRTT = noRTTSample
}
