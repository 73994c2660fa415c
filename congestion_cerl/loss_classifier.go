package congestion_cerl

// lossClassifier remembers which part of the sequence space has already
// been charged with a congestive reduction.
type lossClassifier struct {
	// Highest sequence number charged with a congestive reduction.
	maxSentSeqno uint64
	// Highest acknowledged sequence number seen at loss time.
	highestAckSent uint64
}

// classify decides whether a loss is congestive and, if so, charges the
// sequence space up to highTxMark.
func (l *lossClassifier) classify(queue *queueEstimator, highTxAck, highTxMark uint64) bool {
	l.highestAckSent = max(l.highestAckSent, highTxAck)
	// highestAckSent-1 > maxSentSeqno, written to avoid wrapping at zero.
	newEpisode := l.highestAckSent > l.maxSentSeqno+1
	if !queue.congested() || !newEpisode {
		return false
	}
	l.maxSentSeqno = highTxMark
	return true
}

// ComputeSsThresh returns the slow start threshold, in bytes, to use on
// entering loss recovery. A loss observed while the estimated queue is at or
// above the dynamic threshold, and not already charged to the current
// episode, halves the window like the baseline. Any other loss is taken as a
// random loss and the window is preserved.
func (c *Cerl) ComputeSsThresh(state *CongestionState, bytesInFlight uint32) uint32 {
	if c.loss.classify(&c.queue, state.HighTxAck, state.HighTxMark) {
		c.logger.Debug("cerl: congestive loss, queue ", c.queue.length, " >= threshold ", c.queue.threshold, ", halving window")
		return c.baseline.HalvedSlowStartThreshold(state, bytesInFlight)
	}
	c.logger.Debug("cerl: random loss, queue ", c.queue.length, ", threshold ", c.queue.threshold, ", keeping window")
	return max(bytesInFlight, 2*state.SegmentSize)
}
