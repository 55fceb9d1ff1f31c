package helpers

import (
	"time"

	"github.com/temoto/atomic_clock"
)

// Backoff is limited exponential retry delay for reconnecting transports.
// First attempt is never delayed, each failure multiplies next delay by K,
// success resets it. Not safe for concurrent use.
//
// for {
//   if backoff.DelayBefore() > 0 { skip attempt }
//   err := op()
//   backoff.Update(err == nil)
// }
type Backoff struct {
	next time.Duration
	last atomic_clock.Clock

	Min time.Duration
	Max time.Duration
	K   float32
}

// DelayBefore is remaining wait until next attempt is allowed.
func (self *Backoff) DelayBefore() time.Duration {
	if self.next == 0 || self.last.IsZero() {
		return 0
	}
	since := atomic_clock.Since(&self.last)
	if since >= self.next {
		return 0
	}
	return (self.next - since) / time.Millisecond * time.Millisecond
}

func (self *Backoff) Update(success bool) {
	self.last.SetNow()
	if success {
		self.next = 0
		return
	}
	if self.next == 0 {
		self.next = self.Min
	} else {
		self.next = time.Duration(float32(self.next) * self.K)
	}
	if self.next < self.Min {
		self.next = self.Min
	}
	if self.Max != 0 && self.next > self.Max {
		self.next = self.Max
	}
}

// Next is the delay that will follow current failure streak.
func (self *Backoff) Next() time.Duration { return self.next }
