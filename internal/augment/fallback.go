package augment

import (
	"context"
	"time"
)

// Fallback produces deterministic timestamp descriptions without any
// external call.
type Fallback struct {
	Now func() time.Time
}

func NewFallback() *Fallback {
	return &Fallback{Now: time.Now}
}

func (f *Fallback) Generate(ctx context.Context, req Request) (*Descriptions, error) {
	return FallbackDescriptions(f.now()), nil
}

func (f *Fallback) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// FallbackDescriptions is what a tracked execution records when no provider
// answered.
func FallbackDescriptions(at time.Time) *Descriptions {
	ts := at.Format("20060102_150405")
	return &Descriptions{
		Software:    "Code executed at " + ts,
		Computation: "Computation executed at " + ts,
		Inputs:      map[string]string{},
		Outputs:     map[string]string{},
	}
}
