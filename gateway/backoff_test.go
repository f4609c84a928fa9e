package gateway

import (
	"testing"
	"time"
)

func TestBackoffProgression(t *testing.T) {
	b := newBackoff(time.Second, 30*time.Second)

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoffResetAfterSuccess(t *testing.T) {
	b := newBackoff(time.Second, 30*time.Second)

	b.Next()
	b.Next()
	b.Next()
	b.Reset()

	if got := b.Next(); got != time.Second {
		t.Errorf("delay after reset = %v, want 1s", got)
	}
	if got := b.Next(); got != 2*time.Second {
		t.Errorf("second delay after reset = %v, want 2s", got)
	}
}
