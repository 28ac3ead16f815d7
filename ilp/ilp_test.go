package ilp

import (
	"testing"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/job"
	"github.com/greenqueue/carbonsim/power"
	"github.com/greenqueue/carbonsim/simlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stagedProfile() power.Profile {
	return power.Profile{
		Name:    "staged",
		Startup: []power.Phase{{Name: "boot", Duration: 1, Watts: 5}},
		Work: []power.Phase{
			{Name: "a", Duration: 2, Watts: 10},
			{Name: "b", Duration: 1, Watts: 10, Checkpoint: true},
			{Name: "c", Duration: 2, Watts: 10},
		},
	}
}

func stagedJob(t *testing.T, waiting int) job.Job {
	t.Helper()
	ctx := job.SchedulingContext{WaitingTimesSeconds: []int{waiting}}
	j, err := job.New(1, 0, 5, 1, stagedProfile(), ctx)
	require.NoError(t, err)
	return j
}

func TestPhaseAwareCompletesWithinWindow(t *testing.T) {
	window := carbon.New([]float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5})
	j := stagedJob(t, 9)

	plan, err := PhaseAware{MaxResumes: 5}.Plan(j, window)
	require.NoError(t, err)
	assert.True(t, plan.Valid(window.Len()))
	assert.NotEmpty(t, plan.Intervals)
}

func TestPhaseAwarePrefersCheapTicks(t *testing.T) {
	// A long run of expensive ticks followed by a cheap stretch long enough
	// to run the whole job straight through without any restart penalty.
	window := carbon.New([]float64{100, 100, 100, 100, 1, 1, 1, 1, 1, 1})
	j := stagedJob(t, 9)

	plan, err := PhaseAware{MaxResumes: 5}.Plan(j, window)
	require.NoError(t, err)
	assert.True(t, plan.Valid(window.Len()))
	for _, iv := range plan.Intervals {
		assert.GreaterOrEqual(t, iv.StartOffset, 4)
	}
}

func TestPhaseAwareRespectsMaxResumesOfOne(t *testing.T) {
	window := carbon.New([]float64{9, 1, 9, 1, 9, 1, 9, 1, 9, 1})
	j := stagedJob(t, 9)

	plan, err := PhaseAware{MaxResumes: 1}.Plan(j, window)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(plan.Intervals), 1)
}

func TestPhaseAwareFallsBackWhenInfeasible(t *testing.T) {
	window := carbon.New([]float64{1, 1})
	j := stagedJob(t, 1)

	plan, err := PhaseAware{MaxResumes: 1}.Plan(j, window)
	require.NoError(t, err)
	assert.True(t, plan.Valid(window.Len()))
}

func TestLowerBoundDoesNotError(t *testing.T) {
	window := carbon.New([]float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5})
	j := stagedJob(t, 9)

	bound, err := LowerBound(j, window)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, bound, 0.0)
}

// With every work phase at the same power, no feasible schedule can beat the
// convex relaxation LowerBound computes: a straight-through run (one
// contiguous interval, zero restarts) must still cost at least as much as
// the bound. Plan relies on exactly
// this property for the sanity check it runs after its own search.
func TestLowerBoundDoesNotExceedAStraightThroughSchedule(t *testing.T) {
	window := carbon.New([]float64{9, 1, 9, 1, 9, 1, 9, 1, 9, 1})
	j := stagedJob(t, 9)

	bound, err := LowerBound(j, window)
	require.NoError(t, err)

	profile := j.Profile
	var cost float64
	for e := 0; e < profile.StartupDuration()+j.Length && e < window.Len(); e++ {
		cost += profile.At(e, j.WorkDoneBefore) * window.At(e) * float64(j.CPUs)
	}
	assert.GreaterOrEqual(t, cost, bound-boundSlack)
}

// SetLogger must accept the run's real logger and Plan must keep working
// (and calling LowerBound internally) once it does.
func TestSetLoggerThenPlanStillSucceeds(t *testing.T) {
	SetLogger(simlog.Noop())
	defer SetLogger(simlog.Noop())

	window := carbon.New([]float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5})
	j := stagedJob(t, 9)

	plan, err := PhaseAware{MaxResumes: 5}.Plan(j, window)
	require.NoError(t, err)
	assert.True(t, plan.Valid(window.Len()))
}
