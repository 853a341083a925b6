package provisioner

type State int

const (
	Idle State = iota
	HotspotActive
	PortalServing
	AwaitingCredentials
	Stopping
	Joining
	RollingBack
	Joined
	TimedOut
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case HotspotActive:
		return "HOTSPOT ACTIVE"
	case PortalServing:
		return "PORTAL SERVING"
	case AwaitingCredentials:
		return "AWAITING CREDENTIALS"
	case Stopping:
		return "STOPPING"
	case Joining:
		return "JOINING"
	case RollingBack:
		return "ROLLING BACK"
	case Joined:
		return "JOINED"
	case TimedOut:
		return "TIMED OUT"
	case Failed:
		return "FAILED"
	default:
		return "INVALID STATE"
	}
}

// Terminal reports whether no further transitions follow
func (s State) Terminal() bool {
	return s == Joined || s == TimedOut || s == Failed
}

type Status struct {
	State State
	// Attempt is the number of the current hotspot cycle, starting at 1
	Attempt int
}
