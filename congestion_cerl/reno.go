package congestion_cerl

import (
	"time"
)

// Baseline is the AIMD rule Cerl falls back to and extends.
type Baseline interface {
	// SlowStart grows the window by one segment per acknowledged segment
	// without crossing the slow start threshold, and returns the acknowledged
	// segments left over for congestion avoidance.
	SlowStart(state *CongestionState, segmentsAcked uint32) uint32
	// CongestionAvoidance grows the window by one segment per window of
	// acknowledged segments.
	CongestionAvoidance(state *CongestionState, segmentsAcked uint32)
	// IncreaseWindow applies slow start and then congestion avoidance.
	IncreaseWindow(state *CongestionState, segmentsAcked uint32)
	// HalvedSlowStartThreshold returns the threshold after a congestion event.
	HalvedSlowStartThreshold(state *CongestionState, bytesInFlight uint32) uint32
	// Clone returns an independent copy of the baseline state.
	Clone() Baseline
}

// NewReno implements the RFC 5681 slow start and congestion avoidance rules.
type NewReno struct {
	// Segments acknowledged in congestion avoidance since the last increase.
	avoidanceAckCount uint32
}

var (
	_ Baseline  = (*NewReno)(nil)
	_ Algorithm = (*NewReno)(nil)
)

func NewNewReno() *NewReno {
	return &NewReno{}
}

func (r *NewReno) Name() string {
	return "NewReno"
}

func (r *NewReno) SlowStart(state *CongestionState, segmentsAcked uint32) uint32 {
	if segmentsAcked == 0 || state.SegmentSize == 0 {
		return 0
	}
	if state.CongestionWindow >= state.SlowStartThreshold {
		return segmentsAcked
	}
	// Don't let the congestion window cross into the congestion avoidance
	// range.
	room := saturatingSub(state.SlowStartThreshold, state.CongestionWindow)
	roomSegments := (room + state.SegmentSize - 1) / state.SegmentSize
	grown := min(segmentsAcked, roomSegments)
	state.CongestionWindow = min(state.CongestionWindow+grown*state.SegmentSize, state.SlowStartThreshold)
	if state.CongestionWindow >= state.SlowStartThreshold {
		r.avoidanceAckCount = 0
	}
	return segmentsAcked - grown
}

func (r *NewReno) CongestionAvoidance(state *CongestionState, segmentsAcked uint32) {
	r.avoidanceAckCount += segmentsAcked
	window := max(state.CongestionWindowSegments(), 1)
	if r.avoidanceAckCount >= window {
		state.CongestionWindow += r.avoidanceAckCount / window * state.SegmentSize
		r.avoidanceAckCount = r.avoidanceAckCount % window
	}
}

func (r *NewReno) IncreaseWindow(state *CongestionState, segmentsAcked uint32) {
	if state.InSlowStart() {
		segmentsAcked = r.SlowStart(state, segmentsAcked)
		if segmentsAcked == 0 {
			return
		}
	}
	r.CongestionAvoidance(state, segmentsAcked)
}

func (r *NewReno) HalvedSlowStartThreshold(state *CongestionState, bytesInFlight uint32) uint32 {
	return max(bytesInFlight/2, 2*state.SegmentSize)
}

func (r *NewReno) Clone() Baseline {
	return r.clone()
}

func (r *NewReno) clone() *NewReno {
	cloned := *r
	return &cloned
}

// RecordRTTSample is a no-op: NewReno is loss based only.
func (r *NewReno) RecordRTTSample(time.Duration) {}

func (r *NewReno) OnCongestionPhaseChange(Phase) {}

func (r *NewReno) SlowStartThreshold(state *CongestionState, bytesInFlight uint32) uint32 {
	return r.HalvedSlowStartThreshold(state, bytesInFlight)
}

func (r *NewReno) Fork() Algorithm {
	return r.clone()
}
