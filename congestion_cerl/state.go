package congestion_cerl

// CongestionState is the window state owned by the transport connection.
// Algorithms read it and mutate it only through the window growth and
// slow start threshold operations.
type CongestionState struct {
	// Congestion window in bytes.
	CongestionWindow uint32
	// Slow start threshold in bytes.
	SlowStartThreshold uint32
	// Segment (max datagram) size in bytes.
	SegmentSize uint32
	// Highest acknowledged sequence number.
	HighTxAck uint64
	// Highest transmitted sequence number.
	HighTxMark uint64
	// Bytes sent and not yet acknowledged or declared lost.
	BytesInFlight uint32
}

// CongestionWindowSegments returns the congestion window in whole segments.
func (s *CongestionState) CongestionWindowSegments() uint32 {
	if s.SegmentSize == 0 {
		return 0
	}
	return s.CongestionWindow / s.SegmentSize
}

// InSlowStart reports whether the window is below the slow start threshold.
func (s *CongestionState) InSlowStart() bool {
	return s.CongestionWindow < s.SlowStartThreshold
}
