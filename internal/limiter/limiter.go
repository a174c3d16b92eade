package limiter

// Merges caps how many merge calls may run at once in this process. Anything
// past the cap is turned away immediately rather than queued, so a burst of
// uploads cannot pile PDFs up in memory.
type Merges struct {
	sem chan struct{}
}

func New(max int) *Merges {
	if max <= 0 {
		max = 4
	}
	return &Merges{sem: make(chan struct{}, max)}
}

// Acquire tries to reserve a slot. Returns a release function and true if
// allowed; otherwise a no-op and false.
func (m *Merges) Acquire() (func(), bool) {
	select {
	case m.sem <- struct{}{}:
		return func() { <-m.sem }, true
	default:
		return func() {}, false
	}
}

// InFlight reports the number of currently reserved slots.
func (m *Merges) InFlight() int { return len(m.sem) }
