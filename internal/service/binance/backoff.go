package binance

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// LinearBackOff waits attempt*Base after each consecutive failure and gives
// up once MaxAttempts delays have been handed out. Reset starts over.
// It is not safe for concurrent use.
type LinearBackOff struct {
	Base        time.Duration
	MaxAttempts int
	attempt     int
}

var _ backoff.BackOff = (*LinearBackOff)(nil)

func NewLinearBackOff(base time.Duration, maxAttempts int) *LinearBackOff {
	return &LinearBackOff{Base: base, MaxAttempts: maxAttempts}
}

// NextBackOff returns the next delay or backoff.Stop.
func (b *LinearBackOff) NextBackOff() time.Duration {
	if b.attempt >= b.MaxAttempts {
		return backoff.Stop
	}
	b.attempt++
	return time.Duration(b.attempt) * b.Base
}

func (b *LinearBackOff) Reset() { b.attempt = 0 }

// Attempts is the number of delays handed out since the last Reset.
func (b *LinearBackOff) Attempts() int { return b.attempt }
