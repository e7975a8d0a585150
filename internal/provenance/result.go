package provenance

import (
	"fmt"
	"strings"
)

// TrackingResult summarizes one recorded execution.
type TrackingResult struct {
	ComputationID string
	SoftwareID    string
	InputCount    int
	OutputCount   int
	ReusedCount   int
	NewInputCount int
	Warnings      []Warning
}

func (r *TrackingResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tracked computation: %s\n", r.ComputationID)
	fmt.Fprintf(&sb, "  Software: %s\n", r.SoftwareID)
	fmt.Fprintf(&sb, "  Inputs: %d datasets (%d reused, %d new)\n", r.InputCount, r.ReusedCount, r.NewInputCount)
	fmt.Fprintf(&sb, "  Outputs: %d datasets", r.OutputCount)
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "\n  Warning: %s", w)
	}
	return sb.String()
}
