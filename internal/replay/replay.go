package replay

import (
	"fmt"

	"github.com/sagernet/sing-cerl/congestion_cerl"
	"github.com/sagernet/sing-cerl/registry"
	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/logger"
)

// Step is the state after one event.
type Step struct {
	Index              int
	Event              string
	CongestionWindow   uint32
	SlowStartThreshold uint32
	// Cerl is set when the replayed algorithm is Cerl.
	Cerl *congestion_cerl.State
}

type Result struct {
	Algorithm string
	Steps     []Step
}

// Final returns the last step, or the zero Step for an empty result.
func (r *Result) Final() Step {
	if len(r.Steps) == 0 {
		return Step{}
	}
	return r.Steps[len(r.Steps)-1]
}

// Run replays trace through the named algorithm. An empty name selects the
// trace's algorithm, then Cerl.
func Run(trace *Trace, algorithmName string, log logger.Logger) (*Result, error) {
	if len(trace.Events) == 0 {
		return nil, E.New("trace has no events")
	}
	if algorithmName == "" {
		algorithmName = trace.Algorithm
	}
	if algorithmName == "" {
		algorithmName = registry.NameCerl
	}
	algorithm, err := registry.New(algorithmName, congestion_cerl.Options{
		Logger:           log,
		DynamicThreshold: trace.DynamicThreshold,
	})
	if err != nil {
		return nil, err
	}
	state := congestion_cerl.CongestionState{
		CongestionWindow:   trace.InitialWindow * trace.SegmentSize,
		SlowStartThreshold: ^uint32(0),
		SegmentSize:        trace.SegmentSize,
	}
	if trace.InitialThreshold > 0 {
		state.SlowStartThreshold = trace.InitialThreshold * trace.SegmentSize
	}
	result := &Result{
		Algorithm: algorithm.Name(),
		Steps:     make([]Step, 0, len(trace.Events)),
	}
	for index, event := range trace.Events {
		parsed, err := event.action()
		if err != nil {
			return nil, E.Cause(err, "event ", index)
		}
		description := apply(algorithm, &state, parsed)
		step := Step{
			Index:              index,
			Event:              description,
			CongestionWindow:   state.CongestionWindow,
			SlowStartThreshold: state.SlowStartThreshold,
		}
		if cerl, isCerl := algorithm.(*congestion_cerl.Cerl); isCerl {
			cerlState := cerl.State()
			step.Cerl = &cerlState
		}
		result.Steps = append(result.Steps, step)
	}
	return result, nil
}

func apply(algorithm congestion_cerl.Algorithm, state *congestion_cerl.CongestionState, event action) string {
	switch event.kind {
	case eventRTT:
		algorithm.RecordRTTSample(event.rtt)
		return fmt.Sprint("rtt ", event.rtt)
	case eventPhase:
		algorithm.OnCongestionPhaseChange(event.phase)
		return fmt.Sprint("phase ", event.phase)
	case eventGrow:
		algorithm.IncreaseWindow(state, uint32(event.value))
		return fmt.Sprint("grow ", event.value)
	case eventSent:
		state.HighTxMark = event.value
		return fmt.Sprint("sent ", event.value)
	case eventAck:
		state.HighTxAck = max(state.HighTxAck, event.value)
		return fmt.Sprint("ack ", event.value)
	default:
		state.BytesInFlight = uint32(event.value)
		state.SlowStartThreshold = algorithm.SlowStartThreshold(state, state.BytesInFlight)
		state.CongestionWindow = state.SlowStartThreshold
		return fmt.Sprint("loss ", event.value)
	}
}
