package congestion_cerl

import (
	"time"
)

// Algorithm is a congestion control strategy driven by a transport binding
// such as Sender. Implementations are owned by a single connection and are
// never called concurrently.
type Algorithm interface {
	// Name identifies the strategy for selection and reporting.
	Name() string
	RecordRTTSample(rtt time.Duration)
	OnCongestionPhaseChange(phase Phase)
	// IncreaseWindow is called once per round trip with the segments
	// acknowledged during it.
	IncreaseWindow(state *CongestionState, segmentsAcked uint32)
	// SlowStartThreshold returns the threshold, in bytes, on entering loss
	// recovery.
	SlowStartThreshold(state *CongestionState, bytesInFlight uint32) uint32
	// Fork returns an independent strategy for an accepted child connection.
	Fork() Algorithm
}
