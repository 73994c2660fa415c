package congestion_cerl

import (
	"time"

	"github.com/sagernet/quic-go/congestion"
	"github.com/sagernet/quic-go/monotime"
	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/logger"
)

const (
	// Initial congestion window in packets.
	InitialCongestionWindowPackets = 10
	// Maximum congestion window in packets.
	MaxCongestionWindowPackets = 10000
	// Minimum congestion window in packets.
	minCongestionWindowPackets = 2
	// Headroom below which the sender counts as cwnd limited outside slow start.
	maxBurstPackets = 3

	invalidPacketNumber congestion.PacketNumber = -1
)

// latestRTTProvider is the part of congestion.RTTStatsProvider the sender
// reads.
type latestRTTProvider interface {
	LatestRTT() time.Duration
}

// Sender binds an Algorithm to a QUIC connection. It owns the connection's
// CongestionState and turns per packet callbacks into RTT samples, phase
// changes, one growth event per round trip, and slow start threshold queries
// on loss.
type Sender struct {
	algorithm Algorithm
	logger    logger.Logger
	rttStats  latestRTTProvider

	state CongestionState
	phase Phase

	initialCongestionWindowPackets uint32
	maxCongestionWindowPackets     uint32

	// The packet number of the most recently sent packet.
	largestSentPacket congestion.PacketNumber
	// The largest packet number acknowledged so far.
	largestAckedPacket congestion.PacketNumber
	// The largest packet sent when the window was last cut back.
	largestSentAtLastCutback congestion.PacketNumber
	// Acknowledgement of any packet after currentRoundTripEnd ends the round.
	currentRoundTripEnd congestion.PacketNumber

	// Bytes acknowledged in the current round trip.
	bytesAckedInRound congestion.ByteCount
	// Largest bytes in flight seen in the current round trip.
	maxInFlightInRound congestion.ByteCount
	// Receive time of the ack that produced the last RTT sample.
	lastSampleTime monotime.Time
}

var _ congestion.CongestionControl = (*Sender)(nil)

// NewSender creates a Sender driving algorithm.
func NewSender(
	initialMaxDatagramSize congestion.ByteCount,
	initialCongestionWindowPackets congestion.ByteCount,
	maxCongestionWindowPackets congestion.ByteCount,
	algorithm Algorithm,
	log logger.Logger,
) *Sender {
	if log == nil {
		log = logger.NOP()
	}
	segmentSize := byteCountToUint32(initialMaxDatagramSize)
	s := &Sender{
		algorithm:                      algorithm,
		logger:                         log,
		initialCongestionWindowPackets: byteCountToUint32(initialCongestionWindowPackets),
		maxCongestionWindowPackets:     byteCountToUint32(maxCongestionWindowPackets),
		largestSentPacket:              invalidPacketNumber,
		largestAckedPacket:             invalidPacketNumber,
		largestSentAtLastCutback:       invalidPacketNumber,
		currentRoundTripEnd:            invalidPacketNumber,
	}
	s.state = CongestionState{
		CongestionWindow:   s.initialCongestionWindowPackets * segmentSize,
		SlowStartThreshold: s.maxCongestionWindowPackets * segmentSize,
		SegmentSize:        segmentSize,
	}
	return s
}

// Fork returns a sender for an accepted child connection. The algorithm is
// forked, the window starts from the initial values.
func (s *Sender) Fork() *Sender {
	return NewSender(
		congestion.ByteCount(s.state.SegmentSize),
		congestion.ByteCount(s.initialCongestionWindowPackets),
		congestion.ByteCount(s.maxCongestionWindowPackets),
		s.algorithm.Fork(),
		s.logger,
	)
}

// SetRTTStatsProvider sets the RTT stats provider.
func (s *Sender) SetRTTStatsProvider(provider congestion.RTTStatsProvider) {
	s.rttStats = provider
}

// TimeUntilSend always allows sending immediately: the sender does not pace.
func (s *Sender) TimeUntilSend(bytesInFlight congestion.ByteCount) monotime.Time {
	return 0
}

func (s *Sender) HasPacingBudget(now monotime.Time) bool {
	return true
}

func (s *Sender) OnPacketSent(
	sentTime monotime.Time,
	bytesInFlight congestion.ByteCount,
	packetNumber congestion.PacketNumber,
	bytes congestion.ByteCount,
	isRetransmittable bool,
) {
	if !isRetransmittable {
		return
	}
	s.state.BytesInFlight = byteCountToUint32(bytesInFlight + bytes)
	s.maxInFlightInRound = max(s.maxInFlightInRound, bytesInFlight+bytes)
	s.largestSentPacket = packetNumber
	s.state.HighTxMark = uint64(packetNumber)
	if s.currentRoundTripEnd == invalidPacketNumber {
		s.currentRoundTripEnd = packetNumber
	}
}

func (s *Sender) CanSend(bytesInFlight congestion.ByteCount) bool {
	return bytesInFlight < s.GetCongestionWindow()
}

func (s *Sender) MaybeExitSlowStart() {}

func (s *Sender) OnPacketAcked(
	number congestion.PacketNumber,
	ackedBytes congestion.ByteCount,
	priorInFlight congestion.ByteCount,
	eventTime monotime.Time,
) {
	s.largestAckedPacket = max(s.largestAckedPacket, number)
	s.state.HighTxAck = max(s.state.HighTxAck, uint64(number)+1)
	if priorInFlight > ackedBytes {
		s.state.BytesInFlight = byteCountToUint32(priorInFlight - ackedBytes)
	} else {
		s.state.BytesInFlight = 0
	}
	if s.InRecovery() {
		s.recordRTTSample(eventTime)
		return
	}
	// Entering Open clears the window minimum, so the exit ack's own sample
	// must be recorded after the transition.
	if s.phase != PhaseOpen {
		s.setPhase(PhaseOpen)
	}
	s.recordRTTSample(eventTime)
	s.bytesAckedInRound += ackedBytes
	s.maxInFlightInRound = max(s.maxInFlightInRound, priorInFlight)
	if number <= s.currentRoundTripEnd {
		return
	}
	s.onRoundTripEnd()
}

// onRoundTripEnd fires the growth event for the round that just ended.
func (s *Sender) onRoundTripEnd() {
	s.currentRoundTripEnd = s.largestSentPacket
	segmentSize := congestion.ByteCount(s.state.SegmentSize)
	segmentsAcked := uint32(s.bytesAckedInRound / segmentSize)
	s.bytesAckedInRound %= segmentSize
	if !s.isCwndLimited(s.maxInFlightInRound) {
		// Keep the measurement cadence without growing an unused window.
		segmentsAcked = 0
	}
	s.maxInFlightInRound = 0
	s.algorithm.IncreaseWindow(&s.state, segmentsAcked)
	s.state.CongestionWindow = min(s.state.CongestionWindow, s.maxCongestionWindow())
	s.logger.Trace("cerl sender: round end, acked ", segmentsAcked, " segments, cwnd ", s.state.CongestionWindow, ", ssthresh ", s.state.SlowStartThreshold)
}

// OnCongestionEvent handles a lost packet. Only the first loss of a loss
// episode reduces the window.
func (s *Sender) OnCongestionEvent(number congestion.PacketNumber, lostBytes congestion.ByteCount, priorInFlight congestion.ByteCount) {
	if priorInFlight > lostBytes {
		s.state.BytesInFlight = byteCountToUint32(priorInFlight - lostBytes)
	} else {
		s.state.BytesInFlight = 0
	}
	if number <= s.largestSentAtLastCutback {
		return
	}
	s.setPhase(PhaseRecovery)
	threshold := s.algorithm.SlowStartThreshold(&s.state, byteCountToUint32(priorInFlight))
	s.state.SlowStartThreshold = threshold
	s.state.CongestionWindow = clamp(threshold, s.minCongestionWindow(), s.maxCongestionWindow())
	s.largestSentAtLastCutback = s.largestSentPacket
	s.bytesAckedInRound = 0
	s.logger.Debug("cerl sender: loss of packet ", number, ", cwnd ", s.state.CongestionWindow, ", ssthresh ", s.state.SlowStartThreshold)
}

// OnPacketsLost is called with the least unacked packet; the sender keeps no
// per packet state.
func (s *Sender) OnPacketsLost(leastUnacked congestion.PacketNumber) {}

func (s *Sender) OnRetransmissionTimeout(packetsRetransmitted bool) {
	s.largestSentAtLastCutback = invalidPacketNumber
	if !packetsRetransmitted {
		return
	}
	s.setPhase(PhaseLoss)
	s.state.SlowStartThreshold = s.algorithm.SlowStartThreshold(&s.state, s.state.BytesInFlight)
	s.state.CongestionWindow = s.minCongestionWindow()
	s.bytesAckedInRound = 0
	s.logger.Debug("cerl sender: retransmission timeout, ssthresh ", s.state.SlowStartThreshold)
}

func (s *Sender) SetMaxDatagramSize(size congestion.ByteCount) {
	segmentSize := byteCountToUint32(size)
	if segmentSize < s.state.SegmentSize {
		panic(E.New("cannot decrease max datagram size"))
	}
	if segmentSize == s.state.SegmentSize {
		return
	}
	cwndPackets := s.state.CongestionWindowSegments()
	ssthreshPackets := s.state.SlowStartThreshold / s.state.SegmentSize
	s.state.SegmentSize = segmentSize
	s.state.CongestionWindow = cwndPackets * segmentSize
	s.state.SlowStartThreshold = ssthreshPackets * segmentSize
}

func (s *Sender) InSlowStart() bool {
	return s.state.InSlowStart()
}

func (s *Sender) InRecovery() bool {
	return s.largestAckedPacket != invalidPacketNumber && s.largestAckedPacket <= s.largestSentAtLastCutback
}

func (s *Sender) GetCongestionWindow() congestion.ByteCount {
	return congestion.ByteCount(s.state.CongestionWindow)
}

// Algorithm returns the strategy driven by this sender.
func (s *Sender) Algorithm() Algorithm {
	return s.algorithm
}

// State returns a copy of the congestion state.
func (s *Sender) State() CongestionState {
	return s.state
}

func (s *Sender) Phase() Phase {
	return s.phase
}

func (s *Sender) setPhase(phase Phase) {
	s.phase = phase
	s.algorithm.OnCongestionPhaseChange(phase)
}

// recordRTTSample feeds one sample per ack event to the algorithm.
func (s *Sender) recordRTTSample(eventTime monotime.Time) {
	if s.rttStats == nil || eventTime == s.lastSampleTime {
		return
	}
	s.lastSampleTime = eventTime
	s.algorithm.RecordRTTSample(s.rttStats.LatestRTT())
}

func (s *Sender) isCwndLimited(bytesInFlight congestion.ByteCount) bool {
	congestionWindow := s.GetCongestionWindow()
	if bytesInFlight >= congestionWindow {
		return true
	}
	availableBytes := congestionWindow - bytesInFlight
	slowStartLimited := s.InSlowStart() && bytesInFlight > congestionWindow/2
	return slowStartLimited || availableBytes <= maxBurstPackets*congestion.ByteCount(s.state.SegmentSize)
}

func (s *Sender) minCongestionWindow() uint32 {
	return minCongestionWindowPackets * s.state.SegmentSize
}

func (s *Sender) maxCongestionWindow() uint32 {
	return s.maxCongestionWindowPackets * s.state.SegmentSize
}
