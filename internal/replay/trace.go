package replay

import (
	"os"
	"time"

	"github.com/sagernet/sing-cerl/congestion_cerl"
	E "github.com/sagernet/sing/common/exceptions"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSegmentSize   = 1448
	DefaultInitialWindow = congestion_cerl.InitialCongestionWindowPackets
)

// Trace is a recorded sequence of congestion events for one connection.
// Windows are given in segments, everything else in bytes.
type Trace struct {
	Algorithm        string  `yaml:"algorithm,omitempty"`
	SegmentSize      uint32  `yaml:"segment_size,omitempty"`
	InitialWindow    uint32  `yaml:"initial_window,omitempty"`
	InitialThreshold uint32  `yaml:"initial_threshold,omitempty"`
	DynamicThreshold uint32  `yaml:"dynamic_threshold,omitempty"`
	Events           []Event `yaml:"events"`
}

// Event carries exactly one action.
type Event struct {
	RTT   string  `yaml:"rtt,omitempty"`
	Phase string  `yaml:"phase,omitempty"`
	Grow  *uint32 `yaml:"grow,omitempty"`
	Sent  *uint64 `yaml:"sent,omitempty"`
	Ack   *uint64 `yaml:"ack,omitempty"`
	Loss  *Loss   `yaml:"loss,omitempty"`
}

type Loss struct {
	InFlight uint32 `yaml:"in_flight"`
}

type eventKind int

const (
	eventRTT eventKind = iota
	eventPhase
	eventGrow
	eventSent
	eventAck
	eventLoss
)

// action is a validated Event.
type action struct {
	kind  eventKind
	rtt   time.Duration
	phase congestion_cerl.Phase
	value uint64
}

func (e Event) action() (action, error) {
	var (
		result action
		count  int
	)
	if e.RTT != "" {
		rtt, err := time.ParseDuration(e.RTT)
		if err != nil {
			return action{}, E.Cause(err, "parse rtt")
		}
		result = action{kind: eventRTT, rtt: rtt}
		count++
	}
	if e.Phase != "" {
		phase, err := congestion_cerl.ParsePhase(e.Phase)
		if err != nil {
			return action{}, err
		}
		result = action{kind: eventPhase, phase: phase}
		count++
	}
	if e.Grow != nil {
		result = action{kind: eventGrow, value: uint64(*e.Grow)}
		count++
	}
	if e.Sent != nil {
		result = action{kind: eventSent, value: *e.Sent}
		count++
	}
	if e.Ack != nil {
		result = action{kind: eventAck, value: *e.Ack}
		count++
	}
	if e.Loss != nil {
		result = action{kind: eventLoss, value: uint64(e.Loss.InFlight)}
		count++
	}
	switch count {
	case 0:
		return action{}, E.New("empty event")
	case 1:
		return result, nil
	default:
		return action{}, E.New("event has ", count, " actions")
	}
}

// Parse decodes and validates a YAML trace, filling in defaults.
func Parse(content []byte) (*Trace, error) {
	var trace Trace
	err := yaml.Unmarshal(content, &trace)
	if err != nil {
		return nil, E.Cause(err, "decode trace")
	}
	if trace.SegmentSize == 0 {
		trace.SegmentSize = DefaultSegmentSize
	}
	if trace.InitialWindow == 0 {
		trace.InitialWindow = DefaultInitialWindow
	}
	if len(trace.Events) == 0 {
		return nil, E.New("trace has no events")
	}
	for index, event := range trace.Events {
		_, err = event.action()
		if err != nil {
			return nil, E.Cause(err, "event ", index)
		}
	}
	return &trace, nil
}

func Load(path string) (*Trace, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, E.Cause(err, "read trace")
	}
	return Parse(content)
}
