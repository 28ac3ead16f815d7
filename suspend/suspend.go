// Package suspend implements the suspend/resume planners: policies that may
// split a job's execution across multiple, non-contiguous intervals within
// its deadline window, assuming a constant power draw (no startup
// penalties — see package ilp for the phase-aware planner).
package suspend

import (
	"fmt"
	"sort"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/job"
	"github.com/greenqueue/carbonsim/schedule"
)

// Planner produces a multi-interval RunPlan for a job against its carbon
// deadline window. horizon is window.Len(); a valid plan's total run length
// equals j.Length and all intervals lie within [0, horizon).
type Planner interface {
	Plan(j job.Job, window carbon.Series) (schedule.RunPlan, error)
}

// Threshold walks the job's deadline window tick by tick, running it on any
// tick strictly below the Quantile-th percentile of the carbon series over
// the next Horizon ticks (the CLI sets 24h) from the job's arrival. A remaining-
// wait budget counts down on every above-threshold tick it passes over;
// once that budget is exhausted, every remaining tick is forced to run
// regardless of threshold, so the job still finishes inside its deadline.
// This is the remaining_work/remaining_wait walk of compute_schedule_threshold.
//
// window must start at the job's current_time (its arrival tick) and may
// extend past the deadline, up to the end of the carbon series; Plan slices
// out both the deadline sub-window and the separate lookahead sub-window it
// needs from that one series.
type Threshold struct {
	// Quantile is the percentile threshold (0, 1), e.g. 0.3 for the 30th
	// percentile used by the reference policy.
	Quantile float64
	// Horizon caps how many ticks ahead the threshold is computed over; if
	// 0, the rest of the series (from current_time onward) is used.
	Horizon int
}

func (t Threshold) Plan(j job.Job, window carbon.Series) (schedule.RunPlan, error) {
	deadlineLen := j.Length + j.WaitingTime
	if deadlineLen > window.Len() {
		deadlineLen = window.Len()
	}
	if deadlineLen < j.Length {
		return schedule.RunPlan{}, fmt.Errorf("suspend: window shorter than job length")
	}
	candidate := window.Window(0, deadlineLen)

	horizon := t.Horizon
	if horizon <= 0 || horizon > window.Len() {
		horizon = window.Len()
	}
	lookahead := window.Window(0, horizon)
	theta, err := lookahead.Quantile(t.Quantile)
	if err != nil {
		return schedule.RunPlan{}, err
	}

	scheduled := make([]bool, candidate.Len())
	remainingWork := j.Length
	remainingWait := j.WaitingTime
	for i := 0; i < candidate.Len() && remainingWork > 0; i++ {
		if candidate.At(i) < theta || remainingWait == 0 {
			scheduled[i] = true
			remainingWork--
		} else {
			remainingWait--
		}
	}
	if remainingWork > 0 {
		return schedule.RunPlan{}, fmt.Errorf("suspend: window exhausted before job could complete")
	}
	return schedule.FromSlots(scheduled), nil
}

// OptimalConstantPower selects the j.Length globally cheapest ticks in the
// window (ignoring contiguity, since power draw is constant with no
// startup cost), matching compute_schedule_optimal's
// sort-by-[intensity,index] selection.
type OptimalConstantPower struct{}

func (OptimalConstantPower) Plan(j job.Job, window carbon.Series) (schedule.RunPlan, error) {
	if window.Len() < j.Length {
		return schedule.RunPlan{}, fmt.Errorf("suspend: window shorter than job length")
	}
	type slot struct {
		index     int
		intensity float64
	}
	slots := make([]slot, window.Len())
	for i := 0; i < window.Len(); i++ {
		slots[i] = slot{index: i, intensity: window.At(i)}
	}
	sort.SliceStable(slots, func(a, b int) bool {
		if slots[a].intensity != slots[b].intensity {
			return slots[a].intensity < slots[b].intensity
		}
		return slots[a].index < slots[b].index
	})

	indices := make([]int, j.Length)
	for i := 0; i < j.Length; i++ {
		indices[i] = slots[i].index
	}
	return schedule.FromIndices(indices), nil
}
