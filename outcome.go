package patchkit

import (
	"github.com/samber/lo"
)

// Status is the result of patching a single target
type Status string

const (
	// StatusApplied means the patch was written
	StatusApplied Status = "applied"
	// StatusFailed means the target was skipped because of an error
	StatusFailed Status = "failed"
	// StatusPlanned means a dry run computed the patch without writing it
	StatusPlanned Status = "planned"
)

// Outcome reports what happened to one target
type Outcome struct {
	// Target is collection/id for records or "owner - name" for settings sections
	Target string `json:"target"`
	Status Status `json:"status"`
	// Changes lists the fields or setting keys written (or that would be written)
	Changes []string `json:"changes,omitempty"`
	// Patch is the merge patch computed for a record
	Patch *Document `json:"patch,omitempty"`
	Err   error     `json:"-"`
}

// Report collects the outcomes of one patch step
type Report struct {
	RunID    string    `json:"run_id"`
	Kind     string    `json:"kind"`
	Lookup   string    `json:"lookup"`
	Outcomes []Outcome `json:"outcomes"`
	// Written is set when a settings step replaced its file
	Written bool `json:"written"`
}

// Targets returns the number of targets found
func (r *Report) Targets() int {
	return len(r.Outcomes)
}

// Count returns the number of outcomes with the given status
func (r *Report) Count(status Status) int {
	return lo.CountBy(r.Outcomes, func(o Outcome) bool {
		return o.Status == status
	})
}
