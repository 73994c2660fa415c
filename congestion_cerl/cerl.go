package congestion_cerl

import (
	"time"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/logger"
)

// Growth events with no more than this many RTT samples in the window are
// handed to the baseline unchanged.
const minRTTSamples = 2

// Options configures a Cerl instance.
type Options struct {
	Logger logger.Logger
	// Baseline defaults to NewReno.
	Baseline Baseline
	// Initial value of the dynamic queue length threshold, in segments. It is
	// replaced at the first growth event.
	DynamicThreshold uint32
}

// Cerl tells congestive losses from random losses by estimating the
// bottleneck queue from RTT inflation. Congestive losses halve the window as
// the baseline does, random losses keep it.
type Cerl struct {
	logger   logger.Logger
	baseline Baseline
	sampler  rttSampler
	mode     Mode
	queue    queueEstimator
	loss     lossClassifier
}

var _ Algorithm = (*Cerl)(nil)

func New(options Options) *Cerl {
	c := &Cerl{
		logger:   options.Logger,
		baseline: options.Baseline,
		sampler:  newRTTSampler(),
		mode:     ModeEnabled,
		queue:    queueEstimator{threshold: options.DynamicThreshold},
	}
	if c.logger == nil {
		c.logger = logger.NOP()
	}
	if c.baseline == nil {
		c.baseline = NewNewReno()
	}
	return c
}

func (c *Cerl) Name() string {
	return "Cerl"
}

// RecordRTTSample updates the window and lifetime RTT minimums.
// Zero and negative samples are ignored.
func (c *Cerl) RecordRTTSample(rtt time.Duration) {
	if !c.sampler.record(rtt) {
		return
	}
	c.logger.Trace("cerl: rtt sample ", rtt, ", min ", c.sampler.minRTT, ", base ", c.sampler.baseRTT, ", count ", c.sampler.sampleCount)
}

// OnCongestionPhaseChange enables the delay based logic in the open phase and
// disables it in any other phase.
func (c *Cerl) OnCongestionPhaseChange(phase Phase) {
	mode := modeForPhase(phase)
	if mode == ModeEnabled {
		c.sampler.resetMinRTT()
	}
	if mode != c.mode {
		c.logger.Debug("cerl: phase ", phase, ", mode ", c.mode, " -> ", mode)
	}
	c.mode = mode
}

// OnGrowthEvent closes one measurement window: it refreshes the queue
// estimate, grows the window through the baseline and starts a new window.
// The current window must hold at least one RTT sample.
func (c *Cerl) OnGrowthEvent(state *CongestionState, segmentsAcked uint32) {
	if !c.sampler.hasSample() {
		panic(E.New("cerl: growth event without an rtt sample in the window"))
	}
	// The queue estimate is kept fresh even while disabled so that loss
	// classification always sees current data.
	c.queue.update(state.CongestionWindowSegments(), c.sampler.baseRTT, c.sampler.minRTT)
	c.logger.Trace("cerl: queue ", c.queue.length, ", max ", c.queue.lengthMax, ", threshold ", c.queue.threshold)

	switch {
	case c.mode == ModeDisabled:
		c.baseline.IncreaseWindow(state, segmentsAcked)
	case c.sampler.sampleCount <= minRTTSamples:
		c.baseline.IncreaseWindow(state, segmentsAcked)
	case state.InSlowStart():
		c.baseline.SlowStart(state, segmentsAcked)
	default:
		c.baseline.CongestionAvoidance(state, segmentsAcked)
	}

	c.sampler.resetWindow()
}

// IncreaseWindow runs a growth event when the window holds an RTT sample and
// otherwise grows through the baseline, leaving the window open.
func (c *Cerl) IncreaseWindow(state *CongestionState, segmentsAcked uint32) {
	if !c.sampler.hasSample() {
		c.baseline.IncreaseWindow(state, segmentsAcked)
		return
	}
	c.OnGrowthEvent(state, segmentsAcked)
}

func (c *Cerl) SlowStartThreshold(state *CongestionState, bytesInFlight uint32) uint32 {
	return c.ComputeSsThresh(state, bytesInFlight)
}

// Clone returns an independent instance for an accepted child connection.
// RTT history is kept; mode, queue and loss bookkeeping start over.
func (c *Cerl) Clone() *Cerl {
	return &Cerl{
		logger:   c.logger,
		baseline: c.baseline.Clone(),
		sampler:  c.sampler,
		mode:     ModeEnabled,
	}
}

func (c *Cerl) Fork() Algorithm {
	return c.Clone()
}

func (c *Cerl) Mode() Mode {
	return c.mode
}

// State is a snapshot of the Cerl variables.
type State struct {
	BaseRTT          time.Duration
	MinRTT           time.Duration
	RTTSampleCount   uint32
	Mode             Mode
	QueueLength      uint32
	QueueLengthMax   uint32
	DynamicThreshold uint32
	MaxSentSeqno     uint64
	HighestAckSent   uint64
}

// State returns a snapshot. BaseRTT and MinRTT are zero before a sample.
func (c *Cerl) State() State {
	state := State{
		BaseRTT:          c.sampler.baseRTT,
		MinRTT:           c.sampler.minRTT,
		RTTSampleCount:   c.sampler.sampleCount,
		Mode:             c.mode,
		QueueLength:      c.queue.length,
		QueueLengthMax:   c.queue.lengthMax,
		DynamicThreshold: c.queue.threshold,
		MaxSentSeqno:     c.loss.maxSentSeqno,
		HighestAckSent:   c.loss.highestAckSent,
	}
	if state.BaseRTT == noRTTSample {
		state.BaseRTT = 0
	}
	if state.MinRTT == noRTTSample {
		state.MinRTT = 0
	}
	return state
}
