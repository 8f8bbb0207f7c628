package rainfall

import "github.com/jonboulle/clockwork"

// clock stamps prediction results and drives the drift detector cooldown.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
