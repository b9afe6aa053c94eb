package aim

// State is the position of the controller in an aim attempt.
type State int

const (
	StateIdle State = iota
	StateSideAiming
	StatePitchAiming
	StateBallisticCommit
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSideAiming:
		return "SIDE_AIMING"
	case StatePitchAiming:
		return "PITCH_AIMING"
	case StateBallisticCommit:
		return "BALLISTIC_COMMIT"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
