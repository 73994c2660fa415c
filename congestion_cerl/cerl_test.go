package congestion_cerl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSegmentSize = 1000

type baselineCall struct {
	method        string
	segmentsAcked uint32
}

// recordingBaseline records which baseline rule Cerl delegated to.
type recordingBaseline struct {
	NewReno
	calls []baselineCall
}

func (b *recordingBaseline) SlowStart(state *CongestionState, segmentsAcked uint32) uint32 {
	b.calls = append(b.calls, baselineCall{"SlowStart", segmentsAcked})
	return b.NewReno.SlowStart(state, segmentsAcked)
}

func (b *recordingBaseline) CongestionAvoidance(state *CongestionState, segmentsAcked uint32) {
	b.calls = append(b.calls, baselineCall{"CongestionAvoidance", segmentsAcked})
	b.NewReno.CongestionAvoidance(state, segmentsAcked)
}

func (b *recordingBaseline) IncreaseWindow(state *CongestionState, segmentsAcked uint32) {
	b.calls = append(b.calls, baselineCall{"IncreaseWindow", segmentsAcked})
	b.NewReno.IncreaseWindow(state, segmentsAcked)
}

func (b *recordingBaseline) HalvedSlowStartThreshold(state *CongestionState, bytesInFlight uint32) uint32 {
	b.calls = append(b.calls, baselineCall{"HalvedSlowStartThreshold", bytesInFlight})
	return b.NewReno.HalvedSlowStartThreshold(state, bytesInFlight)
}

func (b *recordingBaseline) Clone() Baseline {
	return &recordingBaseline{NewReno: b.NewReno}
}

func (b *recordingBaseline) lastMethod() string {
	if len(b.calls) == 0 {
		return ""
	}
	return b.calls[len(b.calls)-1].method
}

func newTestState(cwndSegments, ssthreshSegments uint32) *CongestionState {
	return &CongestionState{
		CongestionWindow:   cwndSegments * testSegmentSize,
		SlowStartThreshold: ssthreshSegments * testSegmentSize,
		SegmentSize:        testSegmentSize,
	}
}

func recordSamples(c *Cerl, samples ...time.Duration) {
	for _, sample := range samples {
		c.RecordRTTSample(sample)
	}
}

func TestCerlName(t *testing.T) {
	require.Equal(t, "Cerl", New(Options{}).Name())
}

func TestCerlNewDefaults(t *testing.T) {
	c := New(Options{DynamicThreshold: 7})
	state := c.State()
	require.Equal(t, ModeEnabled, state.Mode)
	require.Equal(t, uint32(7), state.DynamicThreshold)
	require.Zero(t, state.BaseRTT)
	require.Zero(t, state.MinRTT)
	require.IsType(t, &NewReno{}, c.baseline)
}

func TestCerlSeedReplacedByFirstGrowthEvent(t *testing.T) {
	c := New(Options{DynamicThreshold: 7})
	recordSamples(c, 100*time.Millisecond)
	c.OnGrowthEvent(newTestState(20, 64), 1)
	require.Zero(t, c.State().DynamicThreshold)
}

func TestCerlEqualRTTsGiveEmptyQueue(t *testing.T) {
	c := New(Options{})
	recordSamples(c, 100*time.Millisecond)
	c.OnGrowthEvent(newTestState(20, 64), 0)
	state := c.State()
	require.Zero(t, state.QueueLength)
	require.Zero(t, state.QueueLengthMax)
	require.Zero(t, state.DynamicThreshold)
}

func TestCerlDoubledRTTMeasuresHalfWindowQueue(t *testing.T) {
	c := New(Options{})
	recordSamples(c, 100*time.Millisecond)
	c.OnGrowthEvent(newTestState(20, 64), 0)
	recordSamples(c, 200*time.Millisecond)
	c.OnGrowthEvent(newTestState(20, 64), 0)
	state := c.State()
	require.Equal(t, 100*time.Millisecond, state.BaseRTT)
	require.Equal(t, uint32(10), state.QueueLength)
	require.Equal(t, uint32(10), state.QueueLengthMax)
	require.Equal(t, uint32(5), state.DynamicThreshold)
}

func TestCerlGrowthEventResetsWindow(t *testing.T) {
	c := New(Options{})
	recordSamples(c, 120*time.Millisecond, 110*time.Millisecond, 130*time.Millisecond)
	c.OnGrowthEvent(newTestState(10, 64), 3)
	state := c.State()
	require.Zero(t, state.RTTSampleCount)
	require.Zero(t, state.MinRTT)
	require.Equal(t, 110*time.Millisecond, state.BaseRTT)
}

func TestCerlFirstSamplesDelegateToBaseline(t *testing.T) {
	for _, phase := range []Phase{PhaseOpen, PhaseRecovery} {
		baseline := &recordingBaseline{}
		c := New(Options{Baseline: baseline})
		c.OnCongestionPhaseChange(phase)
		recordSamples(c, 100*time.Millisecond)
		c.OnGrowthEvent(newTestState(4, 64), 2)
		require.Equal(t, []baselineCall{{"IncreaseWindow", 2}}, baseline.calls, phase.String())
	}
}

func TestCerlBootstrapConstantIsTwoSamples(t *testing.T) {
	baseline := &recordingBaseline{}
	c := New(Options{Baseline: baseline})
	recordSamples(c, 100*time.Millisecond, 100*time.Millisecond)
	c.OnGrowthEvent(newTestState(4, 64), 1)
	require.Equal(t, "IncreaseWindow", baseline.lastMethod())

	recordSamples(c, 100*time.Millisecond, 100*time.Millisecond, 100*time.Millisecond)
	c.OnGrowthEvent(newTestState(4, 64), 1)
	require.Equal(t, "SlowStart", baseline.lastMethod())
}

func TestCerlEnabledBranching(t *testing.T) {
	baseline := &recordingBaseline{}
	c := New(Options{Baseline: baseline})

	recordSamples(c, 100*time.Millisecond, 100*time.Millisecond, 100*time.Millisecond)
	state := newTestState(4, 64)
	c.OnGrowthEvent(state, 4)
	require.Equal(t, "SlowStart", baseline.lastMethod())
	require.Equal(t, uint32(8*testSegmentSize), state.CongestionWindow)

	recordSamples(c, 100*time.Millisecond, 100*time.Millisecond, 100*time.Millisecond)
	state = newTestState(64, 64)
	c.OnGrowthEvent(state, 64)
	require.Equal(t, "CongestionAvoidance", baseline.lastMethod())
	require.Equal(t, uint32(65*testSegmentSize), state.CongestionWindow)
}

func TestCerlDisabledDelegatesAndStillEstimates(t *testing.T) {
	baseline := &recordingBaseline{}
	c := New(Options{Baseline: baseline})
	recordSamples(c, 100*time.Millisecond)
	c.OnGrowthEvent(newTestState(20, 64), 0)

	c.OnCongestionPhaseChange(PhaseRecovery)
	require.Equal(t, ModeDisabled, c.Mode())
	recordSamples(c, 200*time.Millisecond, 200*time.Millisecond, 200*time.Millisecond)
	c.OnGrowthEvent(newTestState(20, 64), 5)
	require.Equal(t, baselineCall{"IncreaseWindow", 5}, baseline.calls[len(baseline.calls)-1])
	require.Equal(t, uint32(10), c.State().QueueLength)
	require.Zero(t, c.State().RTTSampleCount)
}

func TestCerlModeController(t *testing.T) {
	c := New(Options{})
	for _, phase := range []Phase{PhaseDisorder, PhaseRecovery, PhaseLoss} {
		c.OnCongestionPhaseChange(PhaseOpen)
		require.Equal(t, ModeEnabled, c.Mode())
		c.OnCongestionPhaseChange(phase)
		require.Equal(t, ModeDisabled, c.Mode(), phase.String())
	}
}

func TestCerlOpenPhaseResetsMinRTT(t *testing.T) {
	c := New(Options{})
	recordSamples(c, 150*time.Millisecond)
	c.OnCongestionPhaseChange(PhaseOpen)
	state := c.State()
	require.Zero(t, state.MinRTT)
	require.Equal(t, uint32(1), state.RTTSampleCount)
	require.Equal(t, 150*time.Millisecond, state.BaseRTT)
}

func TestCerlNonPositiveSamplesAreIgnored(t *testing.T) {
	c := New(Options{})
	recordSamples(c, 100*time.Millisecond)
	before := c.State()
	for i := 0; i < 5; i++ {
		c.RecordRTTSample(0)
		c.RecordRTTSample(-time.Millisecond)
	}
	require.Equal(t, before, c.State())
}

func TestCerlGrowthEventWithoutSamplePanics(t *testing.T) {
	c := New(Options{})
	require.Panics(t, func() {
		c.OnGrowthEvent(newTestState(10, 64), 1)
	})

	recordSamples(c, 100*time.Millisecond)
	c.OnCongestionPhaseChange(PhaseOpen)
	require.Panics(t, func() {
		c.OnGrowthEvent(newTestState(10, 64), 1)
	})
}

func TestCerlIncreaseWindowWithoutSampleUsesBaseline(t *testing.T) {
	baseline := &recordingBaseline{}
	c := New(Options{Baseline: baseline})
	state := newTestState(4, 64)
	require.NotPanics(t, func() {
		c.IncreaseWindow(state, 2)
	})
	require.Equal(t, []baselineCall{{"IncreaseWindow", 2}}, baseline.calls)
	require.Equal(t, uint32(6*testSegmentSize), state.CongestionWindow)
}

func TestCerlDynamicThresholdNonDecreasing(t *testing.T) {
	c := New(Options{})
	recordSamples(c, 50*time.Millisecond)
	c.OnGrowthEvent(newTestState(10, 64), 0)

	var last uint32
	for _, sample := range []time.Duration{80, 200, 60, 300, 51, 120, 50} {
		recordSamples(c, sample*time.Millisecond)
		c.OnGrowthEvent(newTestState(40, 64), 0)
		threshold := c.State().DynamicThreshold
		require.GreaterOrEqual(t, threshold, last)
		last = threshold
	}
}

func TestCerlRTTOrderingProperty(t *testing.T) {
	c := New(Options{})
	samples := []time.Duration{90, 70, 110, 70, 200, 65}
	for i, sample := range samples {
		c.RecordRTTSample(sample * time.Millisecond)
		state := c.State()
		require.LessOrEqual(t, state.BaseRTT, state.MinRTT)
		for _, recorded := range samples[:i+1] {
			require.LessOrEqual(t, state.MinRTT, recorded*time.Millisecond)
		}
	}
}

func TestCerlClone(t *testing.T) {
	c := New(Options{})
	recordSamples(c, 100*time.Millisecond)
	c.OnGrowthEvent(newTestState(20, 64), 0)
	recordSamples(c, 200*time.Millisecond)
	c.OnGrowthEvent(newTestState(20, 64), 0)
	c.ComputeSsThresh(&CongestionState{SegmentSize: testSegmentSize, HighTxAck: 40, HighTxMark: 60}, 10*testSegmentSize)
	recordSamples(c, 180*time.Millisecond, 190*time.Millisecond)
	c.OnCongestionPhaseChange(PhaseRecovery)

	cloned := c.Clone()
	require.Equal(t, State{
		BaseRTT:        100 * time.Millisecond,
		MinRTT:         180 * time.Millisecond,
		RTTSampleCount: 2,
		Mode:           ModeEnabled,
	}, cloned.State())

	// The clone does not alias the parent.
	cloned.RecordRTTSample(20 * time.Millisecond)
	require.Equal(t, 100*time.Millisecond, c.State().BaseRTT)
	require.Equal(t, ModeDisabled, c.Mode())
	require.Equal(t, uint64(60), c.State().MaxSentSeqno)
	require.NotSame(t, c.baseline, cloned.baseline)
	require.IsType(t, &Cerl{}, c.Fork())
}
