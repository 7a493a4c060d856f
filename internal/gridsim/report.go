package gridsim

import (
	"fmt"
	"io"
)

// Report summarises a run.
type Report struct {
	Robots        int
	Steps         int
	Proposed      int
	Moves         int
	Rejected      int
	AtomicSteps   int
	FallbackSteps int
	Verifications int

	// Final status counts.
	Idle       int
	Moving     int
	BlockedNow int

	VerifyErr error
}

func (r *Report) add(res StepResult) {
	r.Steps++
	r.Proposed += res.Proposed
	r.Moves += res.Moves
	r.Rejected += res.Rejected
	if res.Atomic {
		r.AtomicSteps++
	} else {
		r.FallbackSteps++
	}
}

// Consistent reports whether the final consistency check passed.
func (r Report) Consistent() bool { return r.VerifyErr == nil }

// WriteTo writes a human-readable summary.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	verify := "ok"
	if r.VerifyErr != nil {
		verify = r.VerifyErr.Error()
	}
	n, err := fmt.Fprintf(w,
		"robots:        %d\n"+
			"steps:         %d (atomic %d, fallback %d)\n"+
			"moves:         %d of %d proposed, %d rejected\n"+
			"final status:  idle %d, moving %d, blocked %d\n"+
			"verify:        %s (%d checks)\n",
		r.Robots,
		r.Steps, r.AtomicSteps, r.FallbackSteps,
		r.Moves, r.Proposed, r.Rejected,
		r.Idle, r.Moving, r.BlockedNow,
		verify, r.Verifications,
	)
	return int64(n), err
}
