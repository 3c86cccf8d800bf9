// Package ignition classifies raw power-state codes and detects engine
// startup and shutdown between consecutive samples.
package ignition

import "time"

// State is one sample of the raw ignition code.
type State struct {
	Raw       int       `json:"raw"`
	Timestamp time.Time `json:"timestamp"`
}

var labels = map[int]string{
	0: "off",
	1: "lock",
	2: "off",
	3: "acc",
	4: "on",
	5: "start",
}

func (s State) IsOn() bool {
	return s.Raw == 4 || s.Raw == 5
}

func (s State) IsOff() bool {
	return s.Raw == 0 || s.Raw == 2
}

// IsIntermediate is true for codes that are neither on nor off, such as
// accessory mode.
func (s State) IsIntermediate() bool {
	return !s.IsOn() && !s.IsOff()
}

// Label is a short name for the raw code.
func (s State) Label() string {
	if l, ok := labels[s.Raw]; ok {
		return l
	}
	return "unknown"
}

// Transition is the result of comparing two samples.
type Transition struct {
	From          State `json:"from"`
	To            State `json:"to"`
	HasTransition bool  `json:"has_transition"`
	IsStartup     bool  `json:"is_startup"`
	IsShutdown    bool  `json:"is_shutdown"`
}

// Detect compares two consecutive samples. Only off to on and on to off
// count; anything involving an intermediate code does not.
func Detect(prev, cur State) Transition {
	startup := prev.IsOff() && cur.IsOn()
	shutdown := prev.IsOn() && cur.IsOff()

	return Transition{
		From:          prev,
		To:            cur,
		HasTransition: startup || shutdown,
		IsStartup:     startup,
		IsShutdown:    shutdown,
	}
}
