package harvest

import "fmt"

// State is a step of the pipeline state machine
type State int

const (
	StateIdle State = iota
	StateFetchingListing
	StateExtracting
	StateDownloading
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingListing:
		return "fetching_listing"
	case StateExtracting:
		return "extracting"
	case StateDownloading:
		return "downloading"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition is reported to the state hook. Index is the record being
// downloaded and is -1 outside StateDownloading. Total is the number of
// records known so far.
type Transition struct {
	RunID string
	State State
	Index int
	Total int
}

func (t Transition) String() string {
	if t.State == StateDownloading {
		return fmt.Sprintf("%s(%d)", t.State, t.Index)
	}
	return t.State.String()
}
