package chat

import "fmt"

// Status is the orchestrator's position in the turn protocol.
type Status int

const (
	StatusIdle Status = iota
	StatusClassifying
	StatusPlanning
	StatusActing
	StatusNotifying
	StatusComplete
)

var statusNames = [...]string{
	StatusIdle:        "idle",
	StatusClassifying: "classifying",
	StatusPlanning:    "planning",
	StatusActing:      "acting",
	StatusNotifying:   "notifying",
	StatusComplete:    "complete",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// CanSubmit reports whether a new message may start a turn.
func (s Status) CanSubmit() bool {
	return s == StatusIdle || s == StatusComplete
}

// Busy is the complement of CanSubmit.
func (s Status) Busy() bool { return !s.CanSubmit() }

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}
