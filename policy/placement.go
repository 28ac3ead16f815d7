// Package policy implements the single-interval, non-preemptive placement
// policies: pure functions of (job, carbon window) that choose one start
// offset for a job that is expected to run straight through without
// suspension.
package policy

import (
	"fmt"
	"math"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/job"
	"github.com/greenqueue/carbonsim/schedule"
)

// Placer chooses a single contiguous start time for a job given the carbon
// subtrace spanning its deadline window and the tick-equivalent of one hour
// (the native carbon-series resolution; 1 when operating directly on an
// hourly series, or the upsample factor F when the series has been
// upsampled to a finer tick). Implementations must be pure functions of
// their inputs, per spec.md's determinism requirement.
type Placer interface {
	Place(j job.Job, window carbon.Series, hourTicks int) (schedule.Schedule, error)
}

// carbonAt evaluates the job's instantaneous power draw at offset i into a
// straight-through execution that itself begins a fresh resume (so
// time_since_resume = i) from the job's WorkDoneBefore progress, so that
// checkpoint-aware profiles assigned to a previously-split subtask resume
// from the correct phase.
func carbonAt(j job.Job, i int) float64 {
	return j.Profile.At(i, j.WorkDoneBefore)
}

// carbonCost computes the carbon integral for running j straight through
// starting at offset s within window:
//
//	carbon(s) = sum_{i=0..length-1} power(i) * window[s+i] * CPUs
//
// This is proportional to, not equal to, absolute gCO2 emitted (no dt
// factor is applied, matching the reference implementation's convention;
// see DESIGN.md).
func carbonCost(j job.Job, window carbon.Series, s int) (float64, error) {
	if s < 0 || s+j.Length > window.Len() {
		return 0, fmt.Errorf("policy: window too short for start %d, length %d (window len %d)", s, j.Length, window.Len())
	}
	var total float64
	for i := 0; i < j.Length; i++ {
		total += carbonAt(j, i) * window.At(s+i) * float64(j.CPUs)
	}
	return total, nil
}

// alignedStarts enumerates the hour-aligned candidate starts in
// [0, waiting], falling back to just {0} if none fit the window (trace
// exhaustion).
func alignedStarts(j job.Job, window carbon.Series, hourTicks int) []int {
	if hourTicks < 1 {
		hourTicks = 1
	}
	var starts []int
	for s := 0; s <= j.WaitingTime; s += hourTicks {
		if s+j.Length <= window.Len() {
			starts = append(starts, s)
		}
	}
	if len(starts) == 0 {
		return []int{0}
	}
	return starts
}

func scheduleAt(j job.Job, window carbon.Series, s int) (schedule.Schedule, error) {
	cost, err := carbonCost(j, window, s)
	if err != nil {
		// Trace exhausted: fall back to s=0 per spec.md §7.
		cost, err = carbonCost(j, window, 0)
		if err != nil {
			return schedule.Schedule{}, err
		}
		return schedule.NewSchedule(0, j.Length, cost), nil
	}
	return schedule.NewSchedule(s, j.Length, cost), nil
}

// LowestInstantaneous picks the tick with the lowest instantaneous carbon
// intensity in [0, waiting], ignoring job length. Ties broken by lowest s.
type LowestInstantaneous struct{}

func (LowestInstantaneous) Place(j job.Job, window carbon.Series, _ int) (schedule.Schedule, error) {
	if j.WaitingTime == 0 {
		return scheduleAt(j, window, 0)
	}
	limit := j.WaitingTime + 1
	if limit > window.Len() {
		limit = window.Len()
	}
	if limit <= 0 {
		return scheduleAt(j, window, 0)
	}
	best := 0
	bestVal := window.At(0)
	for s := 1; s < limit; s++ {
		if window.At(s) < bestVal {
			bestVal = window.At(s)
			best = s
		}
	}
	return scheduleAt(j, window, best)
}

// OracleBestSlot exhaustively searches hour-aligned starts for the one that
// minimizes the carbon integral.
type OracleBestSlot struct{}

func (OracleBestSlot) Place(j job.Job, window carbon.Series, hourTicks int) (schedule.Schedule, error) {
	if j.WaitingTime == 0 {
		return scheduleAt(j, window, 0)
	}
	best := schedule.Schedule{}
	bestCost := math.Inf(1)
	found := false
	for _, s := range alignedStarts(j, window, hourTicks) {
		cost, err := carbonCost(j, window, s)
		if err != nil {
			continue
		}
		if cost < bestCost {
			bestCost = cost
			best = schedule.NewSchedule(s, j.Length, cost)
			found = true
		}
	}
	if !found {
		return scheduleAt(j, window, 0)
	}
	return best, nil
}

// OracleSavingsPerWait maximizes (carbon(0) - carbon(s)) / (s + length)
// over hour-aligned starts, preferring short waits with large savings.
type OracleSavingsPerWait struct{}

func (OracleSavingsPerWait) Place(j job.Job, window carbon.Series, hourTicks int) (schedule.Schedule, error) {
	if j.WaitingTime == 0 {
		return scheduleAt(j, window, 0)
	}
	baseline, err := carbonCost(j, window, 0)
	if err != nil {
		return scheduleAt(j, window, 0)
	}
	best := schedule.Schedule{}
	bestScore := math.Inf(-1)
	found := false
	for _, s := range alignedStarts(j, window, hourTicks) {
		cost, err := carbonCost(j, window, s)
		if err != nil {
			continue
		}
		score := (baseline - cost) / float64(s+j.Length)
		if score > bestScore {
			bestScore = score
			best = schedule.NewSchedule(s, j.Length, cost)
			found = true
		}
	}
	if !found {
		return scheduleAt(j, window, 0)
	}
	return best, nil
}

// AverageLengthWaiting computes the oracle-savings-per-wait start using a
// surrogate job of the same CPUs/profile but length equal to the job's
// expected (trace-wide average) length, then evaluates the real job's
// carbon cost at that start. Models ignorance of true length at scheduling
// time.
type AverageLengthWaiting struct{}

func (AverageLengthWaiting) Place(j job.Job, window carbon.Series, hourTicks int) (schedule.Schedule, error) {
	surrogate := j.Subtask(j.ExpectedTime(), 0)
	surrogateSchedule, err := (OracleSavingsPerWait{}).Place(surrogate, window, hourTicks)
	if err != nil {
		return schedule.Schedule{}, err
	}
	return scheduleAt(j, window, surrogateSchedule.StartOffset)
}

// BestWaiting computes the oracle-best-slot start using the surrogate
// average-length job, then evaluates the real job's carbon cost at that
// start.
type BestWaiting struct{}

func (BestWaiting) Place(j job.Job, window carbon.Series, hourTicks int) (schedule.Schedule, error) {
	surrogate := j.Subtask(j.ExpectedTime(), 0)
	surrogateSchedule, err := (OracleBestSlot{}).Place(surrogate, window, hourTicks)
	if err != nil {
		return schedule.Schedule{}, err
	}
	return scheduleAt(j, window, surrogateSchedule.StartOffset)
}

// ByName resolves spec.md's carbon_policy configuration values to a Placer.
func ByName(name string) (Placer, error) {
	switch name {
	case "waiting":
		return BestWaiting{}, nil
	case "lowest":
		return LowestInstantaneous{}, nil
	case "oracle":
		return OracleBestSlot{}, nil
	case "cst_oracle":
		return OracleSavingsPerWait{}, nil
	case "cst_average":
		return AverageLengthWaiting{}, nil
	default:
		return nil, fmt.Errorf("policy: unknown carbon_policy %q", name)
	}
}
