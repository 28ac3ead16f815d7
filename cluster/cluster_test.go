package cluster

import (
	"testing"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/job"
	"github.com/greenqueue/carbonsim/power"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJob(t *testing.T, length, cpus int) job.Job {
	t.Helper()
	ctx := job.SchedulingContext{WaitingTimesSeconds: []int{100}}
	j, err := job.New(1, 0, length, cpus, power.Constant(length), ctx)
	require.NoError(t, err)
	return j
}

// scenario 5: reserved_instances=4, max_observed_time=3600s, on_demand=0.0624/h
// -> settlement dollar_cost = 4 * 0.4 * 0.0624 * 1h = 0.09984.
func TestSettleScenario5(t *testing.T) {
	a := New(4000, 4, 0.0624, 0.4, 1)
	j := mustJob(t, 1, 1)
	window := carbon.New(make([]float64, 4000))

	a.Dispatch(j, window, 3600)
	rec := a.Settle()

	assert.Equal(t, ReservedSettlementID, rec.ID)
	assert.InDelta(t, 0.09984, rec.DollarCost, 1e-9)
}

func TestDispatchChargesOnDemandWhenReservedExhausted(t *testing.T) {
	a := New(100, 0, 0.0624, 0.4, 1)
	j := mustJob(t, 3600, 1)
	window := carbon.New(make([]float64, 100))

	rec := a.Dispatch(j, window, 0)
	assert.Greater(t, rec.DollarCost, 0.0)
}

func TestDispatchIsFreeWhenReservedCovers(t *testing.T) {
	a := New(100, 10, 0.0624, 0.4, 1)
	j := mustJob(t, 10, 2)
	window := carbon.New(make([]float64, 100))

	rec := a.Dispatch(j, window, 0)
	assert.Equal(t, 0.0, rec.DollarCost)
}

func TestDispatchAccumulatesCPUUtilization(t *testing.T) {
	a := New(10, 0, 0.0624, 0.4, 1)
	j := mustJob(t, 3, 2)
	window := carbon.New(make([]float64, 10))

	a.Dispatch(j, window, 2)
	util := a.CPUUtilization()
	assert.Equal(t, []int{0, 0, 2, 2, 2, 0, 0, 0, 0, 0}, util)
}

func TestDispatchMarksTraceEndReason(t *testing.T) {
	a := New(5, 0, 0.0624, 0.4, 1)
	j := mustJob(t, 10, 1)
	window := carbon.New(make([]float64, 5))

	rec := a.Dispatch(j, window, 2)
	assert.Equal(t, "trace_end", rec.Reason)
}
