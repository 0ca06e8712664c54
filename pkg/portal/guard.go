package portal

import "sync/atomic"

// SubmitGuard allows one submission at a time, like a form button that stays
// disabled until the request settles.
type SubmitGuard struct {
	busy atomic.Bool
}

// Do runs fn unless another Do is still running, in which case it returns
// ErrSubmissionInFlight without calling fn.
func (g *SubmitGuard) Do(fn func() error) error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrSubmissionInFlight
	}
	defer g.busy.Store(false)
	return fn()
}

// Busy reports whether a submission is running.
func (g *SubmitGuard) Busy() bool {
	return g.busy.Load()
}
