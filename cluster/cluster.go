// Package cluster implements the Cluster Accountant: the single component
// that mutates simulation-wide state (CPU utilization, carbon and dollar
// totals, per-job records) as the Scheduler Front-End dispatches subtasks.
package cluster

import (
	"sync"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/job"
)

// ReservedSettlementID is the sentinel job ID used for the reserved-instance
// settlement row appended at shutdown.
const ReservedSettlementID = -1

// DetailRecord is one dispatched subtask's accounting row, matching the
// Details output table in spec.md §6.
type DetailRecord struct {
	ID            int
	ArrivalTime   int
	Length        int
	CPUs          int
	LengthClass   string
	ResourceClass string
	CarbonCost    float64
	DollarCost    float64
	StartTime     int
	WaitingTime   int
	ExitTime      int
	Reason        string
}

// Accountant tracks CPU-seconds, carbon cost, dollar cost, and
// reserved-instance utilization for one simulation run. Mutated exclusively
// through Dispatch and Settle; safe for concurrent use so a parameter-sweep
// driver may advance several independent simulations' clusters from
// separate worker goroutines.
type Accountant struct {
	mu sync.Mutex

	cpuUtilization []int

	reservedInstances int
	reservedDiscount  float64
	onDemandHourly    float64
	tickSeconds       int

	totalCarbon      float64
	totalDollars     float64
	maxObservedStart int
	details          []DetailRecord
}

// New builds an Accountant over a series of seriesLength ticks, each
// tickSeconds seconds long, with reservedInstances reserved CPU slots
// billed at reservedDiscount of onDemandHourly (per CPU-hour).
func New(seriesLength, reservedInstances int, onDemandHourly, reservedDiscount float64, tickSeconds int) *Accountant {
	return &Accountant{
		cpuUtilization:    make([]int, seriesLength),
		reservedInstances: reservedInstances,
		reservedDiscount:  reservedDiscount,
		onDemandHourly:    onDemandHourly,
		tickSeconds:       tickSeconds,
	}
}

// AvailableReserved reports how many reserved CPU slots are free at tick t,
// assuming currently-utilized CPUs consume reserved capacity first.
func (a *Accountant) AvailableReserved(t int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.availableReservedLocked(t)
}

func (a *Accountant) availableReservedLocked(t int) int {
	used := 0
	if t >= 0 && t < len(a.cpuUtilization) {
		used = a.cpuUtilization[t]
	}
	avail := a.reservedInstances - used
	if avail < 0 {
		return 0
	}
	return avail
}

// Dispatch charges a subtask starting at tStart: integrates its power
// profile against window to accumulate carbon, adds CPU-seconds to the
// utilization vector over [tStart, tStart+length), and charges on-demand
// dollars unless reserved capacity covers the whole job (reserved usage is
// prepaid and settled once, at Settle, rather than per tick). reason
// becomes "trace_end" if the window is exhausted before the subtask
// finishes.
func (a *Accountant) Dispatch(j job.Job, window carbon.Series, tStart int) DetailRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	reservedCovers := a.availableReservedLocked(tStart) >= j.CPUs
	reason := "dispatched"

	var carbonCost float64
	for i := 0; i < j.Length; i++ {
		t := tStart + i
		if t >= window.Len() {
			reason = "trace_end"
			break
		}
		power := j.Profile.At(i, j.WorkDoneBefore)
		carbonCost += power * float64(j.CPUs) * window.At(t)
		if t < len(a.cpuUtilization) {
			a.cpuUtilization[t] += j.CPUs
		}
	}

	var dollarCost float64
	if !reservedCovers {
		onDemandPerTick := a.onDemandHourly / (3600.0 / float64(a.tickSeconds))
		dollarCost = onDemandPerTick * float64(j.CPUs) * float64(j.Length)
	}

	if tStart > a.maxObservedStart {
		a.maxObservedStart = tStart
	}

	rec := DetailRecord{
		ID:            j.ID,
		ArrivalTime:   j.ArrivalTime,
		Length:        j.Length,
		CPUs:          j.CPUs,
		LengthClass:   j.LengthClass(),
		ResourceClass: j.ResourceClass(),
		CarbonCost:    carbonCost,
		DollarCost:    dollarCost,
		StartTime:     tStart,
		WaitingTime:   tStart - j.ArrivalTime,
		ExitTime:      tStart + j.Length,
		Reason:        reason,
	}
	a.details = append(a.details, rec)
	a.totalCarbon += carbonCost
	a.totalDollars += dollarCost
	return rec
}

// Settle appends and returns the reserved-instance settlement row: the
// flat, discounted charge for prepaid capacity, amortized over the latest
// subtask start time observed across the whole run. Call once, after the
// simulation's last dispatch.
func (a *Accountant) Settle() DetailRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	settlement := float64(a.reservedInstances) * a.reservedDiscount * a.onDemandHourly *
		float64(a.maxObservedStart) / (3600.0 / float64(a.tickSeconds))

	rec := DetailRecord{
		ID:         ReservedSettlementID,
		DollarCost: settlement,
		Reason:     "reserved_settlement",
	}
	a.details = append(a.details, rec)
	a.totalDollars += settlement
	return rec
}

// Details returns the accumulated per-job records, in dispatch order,
// including the settlement row if Settle has been called.
func (a *Accountant) Details() []DetailRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]DetailRecord, len(a.details))
	copy(out, a.details)
	return out
}

// CPUUtilization returns a copy of the per-tick CPU-utilization vector.
func (a *Accountant) CPUUtilization() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int, len(a.cpuUtilization))
	copy(out, a.cpuUtilization)
	return out
}

// TotalCarbon returns the cumulative carbon cost across all dispatches.
func (a *Accountant) TotalCarbon() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalCarbon
}

// TotalDollars returns the cumulative dollar cost, including settlement if
// Settle has been called.
func (a *Accountant) TotalDollars() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalDollars
}
