// Package scheduler implements the Scheduler Front-End: the priority queue
// of pending (possibly split) subtasks that feeds the Cluster Accountant.
package scheduler

import (
	"container/heap"
	"sync"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/cluster"
	"github.com/greenqueue/carbonsim/job"
	"github.com/greenqueue/carbonsim/policy"
	"github.com/greenqueue/carbonsim/schedule"
)

// PlanFunc computes a RunPlan for a job against its carbon deadline window.
// policy.Placer (single-interval) and suspend/ilp planners (multi-interval)
// are both adapted to this shape; see FromPlacer.
type PlanFunc func(j job.Job, window carbon.Series) (schedule.RunPlan, error)

// FromPlacer adapts a single-interval placement policy into a PlanFunc
// producing a one-interval RunPlan.
func FromPlacer(p policy.Placer, hourTicks int) PlanFunc {
	return func(j job.Job, window carbon.Series) (schedule.RunPlan, error) {
		s, err := p.Place(j, window, hourTicks)
		if err != nil {
			return schedule.RunPlan{}, err
		}
		return schedule.RunPlan{Intervals: []schedule.Interval{{StartOffset: s.StartOffset, RunLength: j.Length}}}, nil
	}
}

// DispatchMode selects the Front-End's early-dispatch behavior for queued,
// not-yet-ready entries, per spec.md §4.5.
type DispatchMode int

const (
	// DispatchNormal only releases entries whose ready_time has arrived.
	DispatchNormal DispatchMode = iota
	// DispatchCostAware additionally releases any queued entry the
	// cluster has free reserved capacity for, regardless of ready_time.
	DispatchCostAware
	// DispatchSpotAware applies the cost-aware early-dispatch rule only to
	// entries whose length class is not the shortest bucket ("0-2").
	DispatchSpotAware
)

const shortestLengthClass = "0-2"

type entry struct {
	readyTime   int
	arrivalTime int
	subtask     job.Job
	index       int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].readyTime != h[j].readyTime {
		return h[i].readyTime < h[j].readyTime
	}
	return h[i].arrivalTime < h[j].arrivalTime
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Frontend holds the pending-subtask priority queue and dispatches ready
// entries to a cluster.Accountant on each tick.
type Frontend struct {
	mu    sync.Mutex
	queue entryHeap
	mode  DispatchMode
}

// New builds an empty Front-End with the given early-dispatch mode.
func New(mode DispatchMode) *Frontend {
	f := &Frontend{mode: mode}
	heap.Init(&f.queue)
	return f
}

// Submit computes j's RunPlan against window via plan and enqueues one
// entry per interval, with ready_time = now + interval.start_offset.
// work_done_before for each subtask accumulates only the interval's actual
// work progress (its run length minus the profile's startup duration,
// which is replayed, not banked, on every resume); this is a no-op
// subtraction for constant-power profiles, which have no startup phase.
func (f *Frontend) Submit(now int, j job.Job, window carbon.Series, plan PlanFunc) error {
	runPlan, err := plan(j, window)
	if err != nil {
		return err
	}
	ds := j.Profile.StartupDuration()

	f.mu.Lock()
	defer f.mu.Unlock()

	workDone := j.WorkDoneBefore
	for _, iv := range runPlan.Intervals {
		sub := j.Subtask(iv.RunLength, workDone)
		heap.Push(&f.queue, &entry{
			readyTime:   now + iv.StartOffset,
			arrivalTime: j.ArrivalTime,
			subtask:     sub,
		})
		delta := iv.RunLength - ds
		if delta < 0 {
			delta = 0
		}
		workDone += delta
	}
	return nil
}

// Tick drains ready entries (ready_time <= now, plus any early-dispatch
// candidates the configured mode allows) to accountant, dispatching each
// against window, and returns the resulting detail records.
func (f *Frontend) Tick(now int, window carbon.Series, accountant *cluster.Accountant) []cluster.DetailRecord {
	f.mu.Lock()
	var ready []*entry
	var remaining entryHeap
	for f.queue.Len() > 0 {
		e := heap.Pop(&f.queue).(*entry)
		if f.eligible(e, now, accountant) {
			ready = append(ready, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	f.queue = remaining
	heap.Init(&f.queue)
	f.mu.Unlock()

	records := make([]cluster.DetailRecord, 0, len(ready))
	for _, e := range ready {
		records = append(records, accountant.Dispatch(e.subtask, window, now))
	}
	return records
}

func (f *Frontend) eligible(e *entry, now int, accountant *cluster.Accountant) bool {
	if e.readyTime <= now {
		return true
	}
	switch f.mode {
	case DispatchCostAware:
		return accountant.AvailableReserved(now) >= e.subtask.CPUs
	case DispatchSpotAware:
		if e.subtask.LengthClass() == shortestLengthClass {
			return false
		}
		return accountant.AvailableReserved(now) >= e.subtask.CPUs
	default:
		return false
	}
}

// Len reports the number of entries still queued.
func (f *Frontend) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}
