package models

import (
	"encoding/json"
	"fmt"
)

// SessionStep is the follow-up input a text-channel session is waiting for
type SessionStep int

const (
	StepMenu SessionStep = iota
	StepAwaitStop
	StepAwaitBus
)

var stepNames = map[SessionStep]string{
	StepMenu:      "menu",
	StepAwaitStop: "await_stop",
	StepAwaitBus:  "await_bus",
}

func (s SessionStep) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SessionStep(%d)", int(s))
}

// MarshalJSON stores the step by name so sessions stay readable in the cache
func (s SessionStep) MarshalJSON() ([]byte, error) {
	name, ok := stepNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown session step %d", int(s))
	}
	return json.Marshal(name)
}

// UnmarshalJSON parses a step name; unknown names fall back to the menu
func (s *SessionStep) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for step, n := range stepNames {
		if n == name {
			*s = step
			return nil
		}
	}
	*s = StepMenu
	return nil
}

// Session is the per-sender state of the SMS command dispatcher
type Session struct {
	Step SessionStep `json:"step"`
}

// SessionAction tells a session store what to do with the result of an update
type SessionAction int

const (
	SessionKeep SessionAction = iota
	SessionSave
	SessionClear
)

// SessionUpdateFunc computes the next session from the current one (nil when absent)
type SessionUpdateFunc func(current *Session) (*Session, SessionAction, error)
