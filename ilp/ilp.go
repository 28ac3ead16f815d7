// Package ilp implements the phase-aware suspend/resume planner: the only
// planner that accounts for startup-replay cost on every resume and for
// which work is safely checkpointed. It searches exactly over the small
// discrete state space (ticks x banked-progress x resumes-used) rather than
// delegating to an external MILP solver, since the per-job windows here are
// bounded by the deadline horizon.
package ilp

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/job"
	"github.com/greenqueue/carbonsim/power"
	"github.com/greenqueue/carbonsim/schedule"
	"github.com/greenqueue/carbonsim/simlog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultMaxResumes matches the reference implementation's cap on how many
// times a job may restart from suspension.
const DefaultMaxResumes = 5

// boundSlack tolerates the floating-point noise in the simplex solve and in
// bestCost's tick-by-tick accumulation when comparing the two.
const boundSlack = 1e-6

// logger is package-level because Plan must keep the scheduler.PlanFunc
// signature (job.Job, carbon.Series) -> (schedule.RunPlan, error); SetLogger
// lets cmd/carbonsim wire in the run's structured logger without widening
// that contract.
var logger = simlog.Noop()

// SetLogger directs LowerBound-violation diagnostics to l instead of
// discarding them.
func SetLogger(l *zap.SugaredLogger) {
	logger = l
}

// PhaseAware plans multi-interval execution for jobs whose power.Profile
// carries startup/work phase structure. suspend.Threshold and
// suspend.OptimalConstantPower both assume power draw is constant with no
// startup cost; this planner is for everything else.
type PhaseAware struct {
	// MaxResumes caps the number of times the job may restart from
	// suspension. Zero means DefaultMaxResumes.
	MaxResumes int
}

// state is a node in the exact search: banked is the work progress that
// survives a pause (accumulated up to the last checkpoint), resumes counts
// how many times a run has been started, and elapsed is ticks consumed by
// the run in progress (-1 while idle).
type state struct {
	banked  int
	resumes int
	elapsed int
}

type transition struct {
	from state
	ran  bool
}

// Plan searches for the minimum-carbon assignment of run/idle ticks across
// window that completes j.Length work ticks within MaxResumes resumes,
// honoring profile startup replay and checkpoint banking.
func (p PhaseAware) Plan(j job.Job, window carbon.Series) (schedule.RunPlan, error) {
	maxResumes := p.MaxResumes
	if maxResumes <= 0 {
		maxResumes = DefaultMaxResumes
	}
	if window.Len() == 0 {
		return schedule.RunPlan{}, fmt.Errorf("ilp: empty window")
	}

	profile := j.Profile
	ds := profile.StartupDuration()
	total := j.Length
	capElapsed := ds + total

	start := state{banked: j.WorkDoneBefore, resumes: 0, elapsed: -1}
	dp := map[state]float64{start: 0}
	history := make([]map[state]transition, window.Len())

	for t := 0; t < window.Len(); t++ {
		next := make(map[state]float64, len(dp))
		choice := make(map[state]transition, len(dp))
		intensity := window.At(t)

		relax := func(st state, cost float64, ran bool, from state) {
			if old, ok := next[st]; !ok || cost < old {
				next[st] = cost
				choice[st] = transition{from: from, ran: ran}
			}
		}

		for st, cost := range dp {
			progress := st.banked
			if st.elapsed >= 0 {
				progress = st.banked + max0(st.elapsed-ds)
			}

			// idle this tick
			idleBanked := st.banked
			if st.elapsed >= 0 {
				idleBanked = profile.BankedProgress(st.banked, max0(st.elapsed-ds))
			}
			relax(state{banked: idleBanked, resumes: st.resumes, elapsed: -1}, cost, false, st)

			if progress >= total {
				continue // complete; running further only wastes carbon
			}

			// run this tick
			switch {
			case st.elapsed == -1:
				if st.resumes >= maxResumes {
					continue
				}
				added := profile.At(0, st.banked) * intensity * float64(j.CPUs)
				relax(state{banked: st.banked, resumes: st.resumes + 1, elapsed: 1}, cost+added, true, st)
			default:
				e := st.elapsed
				added := profile.At(e, st.banked) * intensity * float64(j.CPUs)
				newElapsed := e + 1
				if newElapsed > capElapsed {
					newElapsed = capElapsed
				}
				relax(state{banked: st.banked, resumes: st.resumes, elapsed: newElapsed}, cost+added, true, st)
			}
		}
		dp = next
		history[t] = choice
	}

	var best state
	bestCost := 0.0
	found := false
	for st, cost := range dp {
		progress := st.banked
		if st.elapsed >= 0 {
			progress = st.banked + max0(st.elapsed-ds)
		}
		if progress >= total && (!found || cost < bestCost) {
			bestCost = cost
			best = st
			found = true
		}
	}
	if !found {
		return fallbackStraightThrough(j, window), nil
	}

	if bound, err := LowerBound(j, window); err != nil {
		logger.Debugw("ilp: skipping lower-bound sanity check", "error", err)
	} else if bestCost < bound-boundSlack {
		logger.Warnw("ilp: phase-aware plan cost fell below its convex lower bound",
			"job_id", j.ID, "best_cost", bestCost, "lower_bound", bound)
	}

	scheduled := make([]bool, window.Len())
	cur := best
	for t := window.Len() - 1; t >= 0; t-- {
		tr, ok := history[t][cur]
		if !ok {
			break
		}
		scheduled[t] = tr.ran
		cur = tr.from
	}
	return schedule.FromSlots(scheduled), nil
}

// fallbackStraightThrough schedules the job contiguously from tick 0,
// matching the trace-exhausted fallback used by the single-interval
// placement policies, for the rare case where no resumes-respecting plan
// completes the job within the window.
func fallbackStraightThrough(j job.Job, window carbon.Series) schedule.RunPlan {
	end := j.Profile.StartupDuration() + j.Length
	if end > window.Len() {
		end = window.Len()
	}
	scheduled := make([]bool, window.Len())
	for i := 0; i < end; i++ {
		scheduled[i] = true
	}
	return schedule.FromSlots(scheduled)
}

func max0(x int) int {
	if x < 0 {
		return 0
	}
	return x
}

// LowerBound computes a convex relaxation of the phase-aware planning
// problem: ignoring startup replay and checkpoint boundaries, it asks how
// little carbon a plan could possibly spend running j.Length ticks at the
// profile's average work-phase power, allowing fractional tick occupancy.
// When every work phase draws the same power, no real plan costs less than
// this bound; with unequal work-phase powers a plan can cost less. Plan
// calls it after its exact search to log a warning if bestCost falls below
// it, rather than to construct a schedule itself.
func LowerBound(j job.Job, window carbon.Series) (float64, error) {
	n := window.Len()
	if n == 0 {
		return 0, fmt.Errorf("ilp: empty window")
	}
	avgWatts := averageWorkWatts(j.Profile)
	target := float64(j.Length)
	if target > float64(n) {
		target = float64(n)
	}

	// minimize sum(c_i * x_i)
	// s.t.    x_i + s_i = 1   for each tick i  (caps occupancy at 1)
	//         sum(x_i) = target
	//         x, s >= 0
	c := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		c[i] = window.At(i) * avgWatts * float64(j.CPUs)
	}

	rows, cols := n+1, 2*n
	a := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	for i := 0; i < n; i++ {
		a.Set(i, i, 1)
		a.Set(i, n+i, 1)
		b[i] = 1
		a.Set(n, i, 1)
	}
	b[n] = target

	optF, _, err := lp.Simplex(nil, c, a, b, 0)
	if err != nil {
		return 0, fmt.Errorf("ilp: lp relaxation failed: %w", err)
	}
	return optF, nil
}

func averageWorkWatts(p power.Profile) float64 {
	var energy, duration float64
	for _, ph := range p.Work {
		energy += ph.Watts * float64(ph.Duration)
		duration += float64(ph.Duration)
	}
	if duration == 0 {
		return 0
	}
	return energy / duration
}
