package congestion_cerl

import (
	"math/bits"
	"time"

	E "github.com/sagernet/sing/common/exceptions"
)

// The dynamic threshold is 55% of the largest queue length seen so far.
const dynamicThresholdPercent = 55

// queueEstimator derives the bottleneck queue occupancy, in segments, from
// the ratio between the lifetime and the window minimum RTT.
type queueEstimator struct {
	// Estimated queue length in segments.
	length uint32
	// Largest queue length seen on this connection.
	lengthMax uint32
	// Queue length at which a loss counts as congestive.
	threshold uint32
}

// update recomputes the queue length for a window of cwndSegments.
// minRTT must hold a sample and must not be below baseRTT.
func (q *queueEstimator) update(cwndSegments uint32, baseRTT, minRTT time.Duration) {
	if minRTT == noRTTSample || minRTT <= 0 {
		panic(E.New("cerl: queue estimation without an rtt sample"))
	}
	if minRTT < baseRTT {
		panic(E.New("cerl: window minimum rtt ", minRTT, " below base rtt ", baseRTT))
	}
	// floor(cwnd * baseRTT / minRTT) over a 128 bit product. The quotient is
	// at most cwndSegments since baseRTT <= minRTT.
	hi, lo := bits.Mul64(uint64(cwndSegments), uint64(baseRTT))
	target, _ := bits.Div64(hi, lo, uint64(minRTT))
	targetCwnd := uint32(target)
	q.length = cwndSegments - targetCwnd
	if q.length > q.lengthMax {
		q.lengthMax = q.length
	}
	q.threshold = uint32(uint64(q.lengthMax) * dynamicThresholdPercent / 100)
}

// congested reports whether the queue has built up to the threshold.
func (q *queueEstimator) congested() bool {
	return q.length >= q.threshold
}
