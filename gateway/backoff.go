package gateway

import "time"

// backoff produces the delay before each reconnect attempt: the initial
// interval, doubling after every failure, capped at max, reset to the
// initial interval after a successful connect.
type backoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, next: initial}
}

// Next returns the delay to wait before the next attempt and advances the
// progression.
func (b *backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Reset restarts the progression after a successful connect.
func (b *backoff) Reset() {
	b.next = b.initial
}
