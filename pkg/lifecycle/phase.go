package lifecycle

import "fmt"

// Phase is the lifecycle state of a cache version.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInstalling
	PhaseWaiting
	PhaseActivating
	PhaseActive
	// PhaseRedundant marks a version whose install failed.
	PhaseRedundant
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInstalling:
		return "installing"
	case PhaseWaiting:
		return "waiting"
	case PhaseActivating:
		return "activating"
	case PhaseActive:
		return "active"
	case PhaseRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}
