package app

import "github.com/dkeye/VideoChat/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a recipient whose send queue is full.
type Policy interface {
	OnBackPressure(event string, member core.SessionID) BackpressureAction
}

// SimplePolicy sheds video and disconnects members that cannot keep up
// with control and chat events.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(event string, _ core.SessionID) BackpressureAction {
	if event == EventVideoFrame {
		return DropFrame
	}
	return KickMember
}
