package ui

import (
	"sync"
	"time"
)

// Scroll reconciliation tuning.
const (
	// BottomTolerance is how many lines from the bottom still count as
	// "at the bottom".
	BottomTolerance = 50
	// RearmDelay is the quiet period after a manual scroll before
	// auto-follow re-arms.
	RearmDelay = 3 * time.Second
	// settleDelay covers the window where a programmatic jump is still
	// being reported back as scroll activity.
	settleDelay = 100 * time.Millisecond
)

// Surface is the scrollable view the reconciler drives.
type Surface interface {
	// DistanceFromBottom returns how many lines the view is above the
	// bottom of its content.
	DistanceFromBottom() int
	// GotoBottom jumps the view to the bottom.
	GotoBottom()
}

// ScrollReconciler decides when growing content should pull the view to
// the bottom. Manual scrolling away suspends auto-follow; it re-arms
// as soon as the user returns near the bottom, or after a quiet period
// whose expiry re-checks that the user actually made it back.
// Programmatic jumps are masked so they are not mistaken for the user.
type ScrollReconciler struct {
	mu            sync.Mutex
	scrolledAway  bool
	autoScrolling bool
	rearm         *Debouncer
	settle        *time.Timer
}

// NewScrollReconciler returns a reconciler with auto-follow armed.
func NewScrollReconciler() *ScrollReconciler {
	return &ScrollReconciler{rearm: NewDebouncer(RearmDelay)}
}

// OnUserScroll handles a scroll event from the surface.
func (r *ScrollReconciler) OnUserScroll(s Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.autoScrolling {
		// Echo of our own GotoBottom, not the user.
		return
	}

	if s.DistanceFromBottom() > BottomTolerance {
		r.scrolledAway = true
		r.rearm.Debounce(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			// Re-arm only if the user is back near the bottom by now; a
			// reader parked further up stays unfollowed.
			if s.DistanceFromBottom() <= BottomTolerance {
				r.scrolledAway = false
			}
		})
		return
	}

	// Back near the bottom: re-arm immediately.
	r.scrolledAway = false
	r.rearm.Cancel()
}

// OnContentGrowth handles new content arriving on the surface.
func (r *ScrollReconciler) OnContentGrowth(s Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scrolledAway {
		return
	}

	r.autoScrolling = true
	s.GotoBottom()
	if r.settle != nil {
		r.settle.Stop()
	}
	r.settle = time.AfterFunc(settleDelay, func() {
		r.mu.Lock()
		r.autoScrolling = false
		r.mu.Unlock()
	})
}

// Following reports whether auto-follow is currently armed.
func (r *ScrollReconciler) Following() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.scrolledAway
}

// Close cancels pending timers.
func (r *ScrollReconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rearm.Cancel()
	if r.settle != nil {
		r.settle.Stop()
	}
}
