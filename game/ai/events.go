package ai

// EventSink receives fire-and-forget notifications from a controller.
// Emission is at-least-once per qualifying transition; sinks must tolerate repeats.
type EventSink interface {
	OnStateChanged(from, to State)
	OnTargetDetected()
	OnTargetLost()
	OnTargetCaught()
}

// NopSink discards every notification.
type NopSink struct{}

func (NopSink) OnStateChanged(State, State) {}
func (NopSink) OnTargetDetected() {}
func (NopSink) OnTargetLost() {}
func (NopSink) OnTargetCaught() {}

// MultiSink fans notifications out to every member in order.
type MultiSink []EventSink

func (m MultiSink) OnStateChanged(from, to State) {
	for _, s := range m {
		s.OnStateChanged(from, to)
	}
}

func (m MultiSink) OnTargetDetected() {
	for _, s := range m {
		s.OnTargetDetected()
	}
}

func (m MultiSink) OnTargetLost() {
	for _, s := range m {
		s.OnTargetLost()
	}
}

func (m MultiSink) OnTargetCaught() {
	for _, s := range m {
		s.OnTargetCaught()
	}
}
