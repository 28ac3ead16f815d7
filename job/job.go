// Package job describes immutable compute requests and the scheduling
// context (waiting-time budgets, average-length surrogates) they are built
// against.
package job

import (
	"fmt"

	"github.com/greenqueue/carbonsim/power"
)

// Queue names the waiting-time bucket a job falls into. The reference
// implementation (task.py's TwoQueues) splits jobs at the two-hour mark.
type Queue string

const (
	QueueSame  Queue = "Same"
	QueueShort Queue = "Short"
	QueueLong  Queue = "Long"
)

const twoHoursSeconds = 2 * 3600

// SchedulingContext carries the per-simulation parameters that the
// reference implementation stored as mutable globals (waiting_times,
// average_length). spec.md's design notes call for an explicit, immutable
// context instead of implicit process-wide state.
type SchedulingContext struct {
	// WaitingTimesSeconds has length 1 (single queue, all jobs share the
	// budget) or 2 (short jobs <= 2h use index 0, long jobs use index 1).
	WaitingTimesSeconds []int
	// AverageLengthSeconds seeds the average-length placement policies. It
	// is read only when WaitingTimesSeconds has two entries, in which case
	// it has two as well, populated by the job-trace loader from the
	// trace-wide mean length of short/long jobs; a single-queue context
	// leaves it nil.
	AverageLengthSeconds []int
}

// ExpectedTime returns (surrogate length, waiting time, queue name) for a
// job of the given length, per task.py's get_expected_time.
func (c SchedulingContext) ExpectedTime(lengthSeconds int) (expected int, waiting int, queue Queue, err error) {
	switch len(c.WaitingTimesSeconds) {
	case 1:
		return 2, c.WaitingTimesSeconds[0], QueueSame, nil
	case 2:
		if lengthSeconds <= twoHoursSeconds {
			return c.AverageLengthSeconds[0], c.WaitingTimesSeconds[0], QueueShort, nil
		}
		return c.AverageLengthSeconds[1], c.WaitingTimesSeconds[1], QueueLong, nil
	default:
		return 0, 0, "", errInvalidWaitingArity(len(c.WaitingTimesSeconds))
	}
}

type errInvalidWaitingArity int

func (e errInvalidWaitingArity) Error() string {
	return fmt.Sprintf("job: waiting_times must have arity 1 or 2, got %d", int(e))
}

// Job is an immutable description of one compute request.
type Job struct {
	ID int

	ArrivalTime int // seconds, absolute simulation time
	Length      int // ticks of executable work after expansion, clamped >= 1
	CPUs        int
	WaitingTime int // deadline = ArrivalTime + Length + WaitingTime
	Profile     power.Profile

	// WorkDoneBefore is 0 for a fresh job and nonzero for a resumed
	// subtask produced by a suspend/resume planner's RunPlan.
	WorkDoneBefore int

	lengthClass   string
	resourceClass string
	queue         Queue
	expectedTime  int
}

// New constructs a fresh (WorkDoneBefore == 0) job, classifying it and
// resolving its waiting-time/queue assignment against ctx.
func New(id, arrivalTime, lengthSeconds, cpus int, profile power.Profile, ctx SchedulingContext) (Job, error) {
	length := lengthSeconds
	if length < 1 {
		length = 1
	}
	expected, waiting, queue, err := ctx.ExpectedTime(lengthSeconds)
	if err != nil {
		return Job{}, err
	}
	return Job{
		ID:             id,
		ArrivalTime:    arrivalTime,
		Length:         length,
		CPUs:           cpus,
		WaitingTime:    waiting,
		Profile:        profile,
		WorkDoneBefore: 0,
		lengthClass:    ClassifyLength(length),
		resourceClass:  ClassifyResources(cpus),
		queue:          queue,
		expectedTime:   expected,
	}, nil
}

// Subtask builds an independent job sharing the parent's ID, representing
// one contiguous run interval of a split job. It keeps the parent's
// classification (matching the reference implementation's subtask, which
// copies task_length_class rather than reclassifying the shorter run).
func (j Job) Subtask(lengthSeconds, workDoneBefore int) Job {
	length := lengthSeconds
	if length < 1 {
		length = 1
	}
	sub := j
	sub.Length = length
	sub.WorkDoneBefore = workDoneBefore
	return sub
}

// Deadline returns the last tick by which the job must have finished.
func (j Job) Deadline() int {
	return j.ArrivalTime + j.Length + j.WaitingTime
}

// LengthClass returns the bucketed length class used for pricing/routing
// decisions.
func (j Job) LengthClass() string { return j.lengthClass }

// ResourceClass returns the bucketed CPU-count class.
func (j Job) ResourceClass() string { return j.resourceClass }

// Queue returns which waiting-time queue this job was assigned to.
func (j Job) Queue() Queue { return j.queue }

// ExpectedTime returns the surrogate length used by the average-length
// placement policies.
func (j Job) ExpectedTime() int { return j.expectedTime }

// ClassifyLength maps a job length in seconds to the bucket used for
// pricing/routing and for the spot-aware dispatch rule (task.py's
// classify_time).
func ClassifyLength(lengthSeconds int) string {
	hours := float64(lengthSeconds) / 3600.0
	switch {
	case hours <= 2:
		return "0-2"
	case hours <= 6:
		return "2-6"
	case hours <= 12:
		return "6-12"
	case hours <= 24:
		return "12-24"
	case hours <= 48:
		return "24-48"
	default:
		return "48+"
	}
}

// ClassifyResources maps a CPU count to a bucket (task.py's
// classify_resources).
func ClassifyResources(cpus int) string {
	switch {
	case cpus == 1:
		return "1"
	case cpus == 2:
		return "2"
	case cpus <= 4:
		return "3-4"
	case cpus <= 8:
		return "5-8"
	case cpus <= 16:
		return "9-16"
	case cpus <= 32:
		return "17-32"
	case cpus <= 64:
		return "33-64"
	default:
		return "64+"
	}
}
