package paginate

// State of the pagination controller.
type State int

const (
	Idle State = iota
	FetchingPage
	Blocked
	EmptyCandidate
	HasRecords
	Advancing
	Done
)

var stateNames = [...]string{
	Idle:           "idle",
	FetchingPage:   "fetching",
	Blocked:        "blocked",
	EmptyCandidate: "empty",
	HasRecords:     "records",
	Advancing:      "advancing",
	Done:           "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
