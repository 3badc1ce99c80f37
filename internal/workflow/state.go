package workflow

// State is the current stage of a sync workflow. Transitions are linear per
// direction; Failed is reachable from every stage between Idle and Done.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StatePolling
	StateDownloading
	StateExtracting
	StateImporting
	StateDumping
	StateCompressing
	StateUploading
	StateTriggering
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateRequesting:  "requesting",
	StatePolling:     "polling",
	StateDownloading: "downloading",
	StateExtracting:  "extracting",
	StateImporting:   "importing",
	StateDumping:     "dumping",
	StateCompressing: "compressing",
	StateUploading:   "uploading",
	StateTriggering:  "triggering remote import",
	StateDone:        "done",
	StateFailed:      "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
