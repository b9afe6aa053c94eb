package aim

// Roll is a bang-bang roll command.
type Roll int

const (
	RollStatic Roll = iota
	RollLeft
	RollRight
)

func (r Roll) String() string {
	switch r {
	case RollStatic:
		return "STATIC"
	case RollLeft:
		return "LEFT"
	case RollRight:
		return "RIGHT"
	default:
		return "UNKNOWN"
	}
}

// Actuator moves the two axes. Commands are fire-and-forget: a nil error
// means the command was handed to the driver, not that the servo arrived.
// Commands on one axis must be executed in the order they are issued.
type Actuator interface {
	// SetPitch commands the pitch servo to a mechanical angle in degrees.
	SetPitch(deg float64) error
	// SetRoll starts, or with RollStatic stops, a roll movement.
	SetRoll(dir Roll) error
}
