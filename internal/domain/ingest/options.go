package ingest

import "time"

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithClock sets the clock used to stamp events without a usable happened_at.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}
