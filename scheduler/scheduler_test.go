package scheduler

import (
	"testing"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/cluster"
	"github.com/greenqueue/carbonsim/job"
	"github.com/greenqueue/carbonsim/policy"
	"github.com/greenqueue/carbonsim/power"
	"github.com/greenqueue/carbonsim/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJob(t *testing.T, length, waiting, cpus int) job.Job {
	t.Helper()
	ctx := job.SchedulingContext{WaitingTimesSeconds: []int{waiting}}
	j, err := job.New(1, 0, length, cpus, power.Constant(length), ctx)
	require.NoError(t, err)
	return j
}

func TestSubmitThenTickDispatchesAtReadyTime(t *testing.T) {
	window := carbon.New([]float64{10, 10, 1, 10, 10, 10})
	j := mustJob(t, 1, 5, 1)

	f := New(DispatchNormal)
	plan := FromPlacer(policy.OracleBestSlot{}, 1)
	require.NoError(t, f.Submit(0, j, window, plan))

	acct := cluster.New(window.Len(), 0, 0.0624, 0.4, 1)
	assert.Empty(t, f.Tick(1, window, acct))
	records := f.Tick(2, window, acct)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].StartTime)
}

func TestCostAwareEarlyDispatchesWithReservedCapacity(t *testing.T) {
	window := carbon.New([]float64{1, 1, 1, 1})
	j := mustJob(t, 1, 3, 1)

	f := New(DispatchCostAware)
	staticPlan := func(j job.Job, w carbon.Series) (schedule.RunPlan, error) {
		return schedule.RunPlan{Intervals: []schedule.Interval{{StartOffset: 3, RunLength: 1}}}, nil
	}
	require.NoError(t, f.Submit(0, j, window, staticPlan))

	acct := cluster.New(window.Len(), 4, 0.0624, 0.4, 1)
	records := f.Tick(0, window, acct)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].StartTime)
}

func TestSpotAwareSkipsShortestBucket(t *testing.T) {
	window := carbon.New([]float64{1, 1, 1, 1})
	j := mustJob(t, 1, 3, 1) // length 1s classifies as "0-2", the shortest bucket

	f := New(DispatchSpotAware)
	staticPlan := func(j job.Job, w carbon.Series) (schedule.RunPlan, error) {
		return schedule.RunPlan{Intervals: []schedule.Interval{{StartOffset: 3, RunLength: 1}}}, nil
	}
	require.NoError(t, f.Submit(0, j, window, staticPlan))

	acct := cluster.New(window.Len(), 4, 0.0624, 0.4, 1)
	assert.Empty(t, f.Tick(0, window, acct))
	assert.Equal(t, 1, f.Len())
}

// Universal invariant (spec.md §8): for every job dispatched, the sum of
// subtask lengths equals the original length.
func TestDispatchedSubtaskLengthsSumToOriginal(t *testing.T) {
	window := carbon.New([]float64{1, 1, 1, 1, 1, 1, 1, 1})
	j := mustJob(t, 5, 5, 1)

	f := New(DispatchNormal)
	multiPlan := func(j job.Job, w carbon.Series) (schedule.RunPlan, error) {
		return schedule.RunPlan{Intervals: []schedule.Interval{
			{StartOffset: 0, RunLength: 2},
			{StartOffset: 3, RunLength: 1},
			{StartOffset: 6, RunLength: 2},
		}}, nil
	}
	require.NoError(t, f.Submit(0, j, window, multiPlan))

	acct := cluster.New(window.Len(), 0, 0.0624, 0.4, 1)
	var records []cluster.DetailRecord
	for t := 0; t < window.Len(); t++ {
		records = append(records, f.Tick(t, window, acct)...)
	}

	var total int
	for _, r := range records {
		total += r.Length
	}
	assert.Equal(t, j.Length, total)
}

func TestSubmitAccumulatesWorkDoneBeforeAcrossIntervals(t *testing.T) {
	window := carbon.New([]float64{1, 1, 1, 1, 1, 1})
	j := mustJob(t, 4, 4, 1)

	f := New(DispatchNormal)
	multiPlan := func(j job.Job, w carbon.Series) (schedule.RunPlan, error) {
		return schedule.RunPlan{Intervals: []schedule.Interval{{StartOffset: 0, RunLength: 2}, {StartOffset: 3, RunLength: 2}}}, nil
	}
	require.NoError(t, f.Submit(0, j, window, multiPlan))
	require.Equal(t, 2, f.Len())
	assert.Equal(t, 0, f.queue[0].subtask.WorkDoneBefore)
	assert.Equal(t, 2, f.queue[1].subtask.WorkDoneBefore)

	acct := cluster.New(window.Len(), 0, 0.0624, 0.4, 1)
	first := f.Tick(0, window, acct)
	require.Len(t, first, 1)
	second := f.Tick(3, window, acct)
	require.Len(t, second, 1)
	util := acct.CPUUtilization()
	assert.Equal(t, []int{1, 1, 0, 1, 1, 0}, util)
}
