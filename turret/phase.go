package turret

// Phase is the match phase published by the timing task and consumed by the
// shooting task. It has a single writer and is only updated at tick
// boundaries; because the scheduler runs the timing task to completion before
// the shooting task, readers never observe a torn value.
type Phase int

// The match phases, in order of a normal match.
const (
	PhaseWaitForInput Phase = iota
	PhaseStarting
	PhaseShooting
	PhaseStopped
	PhaseReturning
)

func (p Phase) String() string {
	switch p {
	case PhaseWaitForInput:
		return "wait_for_input"
	case PhaseStarting:
		return "starting"
	case PhaseShooting:
		return "shooting"
	case PhaseStopped:
		return "stopped"
	case PhaseReturning:
		return "returning"
	default:
		return "unknown"
	}
}
