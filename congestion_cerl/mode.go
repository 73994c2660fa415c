package congestion_cerl

import (
	"strings"

	E "github.com/sagernet/sing/common/exceptions"
)

// Phase is the congestion phase reported by the transport.
type Phase int

const (
	// PhaseOpen means no loss is in progress.
	PhaseOpen Phase = iota
	// PhaseDisorder means duplicate acknowledgments or reordering were seen.
	PhaseDisorder
	// PhaseRecovery means fast recovery is in progress.
	PhaseRecovery
	// PhaseLoss means a retransmission timeout fired.
	PhaseLoss
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "OPEN"
	case PhaseDisorder:
		return "DISORDER"
	case PhaseRecovery:
		return "RECOVERY"
	case PhaseLoss:
		return "LOSS"
	default:
		return "UNKNOWN"
	}
}

// ParsePhase parses a phase name, case-insensitively.
func ParsePhase(name string) (Phase, error) {
	switch strings.ToLower(name) {
	case "open":
		return PhaseOpen, nil
	case "disorder":
		return PhaseDisorder, nil
	case "recovery":
		return PhaseRecovery, nil
	case "loss":
		return PhaseLoss, nil
	default:
		return 0, E.New("unknown congestion phase: ", name)
	}
}

// Mode tells whether the delay based logic is currently trusted.
type Mode int

const (
	ModeEnabled Mode = iota
	ModeDisabled
)

func (m Mode) String() string {
	switch m {
	case ModeEnabled:
		return "ENABLED"
	case ModeDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// modeForPhase maps a reported phase to the mode it implies.
func modeForPhase(phase Phase) Mode {
	if phase == PhaseOpen {
		return ModeEnabled
	}
	return ModeDisabled
}
