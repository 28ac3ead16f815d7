// Package power models the piecewise-constant power draw of a job over its
// lifetime, including startup phases that must be replayed on every resume.
package power

import "fmt"

// Phase is one contiguous, constant-power segment of a job's execution.
type Phase struct {
	Name       string
	Duration   int // seconds
	Watts      float64
	Checkpoint bool // work phases only; ignored for startup phases
}

// Profile is an ordered list of startup phases followed by an ordered list
// of work phases. Immutable after construction.
type Profile struct {
	Name    string
	Startup []Phase
	Work    []Phase
}

// Constant builds the default GAIA job profile: no startup, a single work
// phase of the given duration at 1W, with no checkpoints.
func Constant(durationSeconds int) Profile {
	return Profile{
		Name: "constant",
		Work: []Phase{{Name: "work", Duration: durationSeconds, Watts: 1, Checkpoint: false}},
	}
}

// StartupDuration returns D_s, the total duration of all startup phases.
func (p Profile) StartupDuration() int {
	var total int
	for _, ph := range p.Startup {
		total += ph.Duration
	}
	return total
}

// WorkDuration returns D_w, the total duration of all work phases.
func (p Profile) WorkDuration() int {
	var total int
	for _, ph := range p.Work {
		total += ph.Duration
	}
	return total
}

// Validate checks the structural invariants: positive phase durations,
// non-negative power draws.
func (p Profile) Validate() error {
	for _, ph := range p.Startup {
		if ph.Duration <= 0 {
			return fmt.Errorf("power: startup phase %q has non-positive duration %d", ph.Name, ph.Duration)
		}
		if ph.Watts < 0 {
			return fmt.Errorf("power: startup phase %q has negative power draw %v", ph.Name, ph.Watts)
		}
	}
	for _, ph := range p.Work {
		if ph.Duration <= 0 {
			return fmt.Errorf("power: work phase %q has non-positive duration %d", ph.Name, ph.Duration)
		}
		if ph.Watts < 0 {
			return fmt.Errorf("power: work phase %q has negative power draw %v", ph.Name, ph.Watts)
		}
	}
	return nil
}

// At evaluates the profile's power draw in watts given the number of
// seconds since the job (or subtask) most recently resumed, and the amount
// of work already completed before this resume.
//
// If timeSinceResume falls within the startup span, the covering startup
// phase's power is returned (left-inclusive, right-exclusive bins). Past
// startup, workDoneSoFar is advanced through the work phase list to find the
// phase immediately after the last checkpoint at or before workDoneSoFar;
// the resumed work subsequence is then evaluated at
// timeSinceResume-StartupDuration(). Past the end of the job, 0 is returned.
func (p Profile) At(timeSinceResume, workDoneSoFar int) float64 {
	ds := p.StartupDuration()
	if timeSinceResume < ds {
		return phaseCovering(p.Startup, timeSinceResume)
	}

	resumeWork := p.workPhasesFrom(workDoneSoFar)
	return phaseCovering(resumeWork, timeSinceResume-ds)
}

// workPhasesFrom returns the work phase subsequence starting immediately
// after the last checkpoint at or before workDoneSoFar. Non-checkpoint work
// preceding that checkpoint is considered lost and must be redone, so the
// returned subsequence's internal clock restarts at 0 from the checkpoint
// boundary.
func (p Profile) workPhasesFrom(workDoneSoFar int) []Phase {
	var cursor int
	lastCheckpointEnd := 0
	resumeIndex := 0
	for i, ph := range p.Work {
		start := cursor
		end := cursor + ph.Duration
		if start <= workDoneSoFar {
			if ph.Checkpoint && end <= workDoneSoFar {
				lastCheckpointEnd = end
				resumeIndex = i + 1
			}
		}
		cursor = end
	}
	_ = lastCheckpointEnd
	return p.Work[resumeIndex:]
}

// BankedProgress returns the total work progress that survives a pause:
// workDoneBefore plus the work time up to the end of the last checkpointed
// phase completed within the work-phase subsequence resumed from
// workDoneBefore, for the first ticksSinceStartup ticks of work time (time
// since the startup phases finished). Progress inside an incomplete or non-checkpointed
// phase is lost if the run is paused before reaching the next checkpoint.
func (p Profile) BankedProgress(workDoneBefore, ticksSinceStartup int) int {
	if ticksSinceStartup <= 0 {
		return workDoneBefore
	}
	resume := p.workPhasesFrom(workDoneBefore)
	banked := workDoneBefore
	var cursor int
	for _, ph := range resume {
		end := cursor + ph.Duration
		if end <= ticksSinceStartup && ph.Checkpoint {
			banked = workDoneBefore + end
		}
		cursor = end
	}
	return banked
}

// phaseCovering returns the power of the phase covering t within the given
// phase subsequence (left-inclusive, right-exclusive bins), or 0 past the
// end.
func phaseCovering(phases []Phase, t int) float64 {
	if t < 0 {
		return 0
	}
	var cursor int
	for _, ph := range phases {
		if t >= cursor && t < cursor+ph.Duration {
			return ph.Watts
		}
		cursor += ph.Duration
	}
	return 0
}
