package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/ilp"
	"github.com/greenqueue/carbonsim/job"
	"github.com/greenqueue/carbonsim/policy"
	"github.com/greenqueue/carbonsim/schedule"
	"github.com/greenqueue/carbonsim/scheduler"
	"github.com/greenqueue/carbonsim/suspend"
)

// config holds the full configuration surface named in spec.md §6. Every
// field is set from CLI flags; Validate enforces the ConfigurationInvalid
// rules from spec.md §7 before any simulation work begins.
type config struct {
	carbonTracePath string
	jobTracePath    string
	outDir          string

	schedulingPolicy string
	carbonPolicy     string
	reservedInstances int
	onDemandHourly    float64
	reservedDiscount  float64
	waitingHours      []int
	carbonStartIndex  int
	dynamicPower      bool
	maxResumes        int
	ticksPerHour      int
	logLevel          string
}

var schedulingPolicies = map[string]bool{
	"carbon":                    true,
	"carbon-spot":               true,
	"carbon-cost":               true,
	"cost":                      true,
	"cost-spot":                 true,
	"suspend-resume":            true,
	"suspend-resume-spot":       true,
	"suspend-resume-threshold":  true,
}

var carbonPolicies = map[string]bool{
	"waiting": true, "lowest": true, "oracle": true, "cst_oracle": true, "cst_average": true,
}

// parseWaitingHours splits an "x"-separated list of hour budgets, e.g. "24x48".
func parseWaitingHours(s string) ([]int, error) {
	parts := strings.Split(s, "x")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("configuration invalid: waiting_times %q: %w", s, err)
		}
		out = append(out, v)
	}
	if len(out) != 1 && len(out) != 2 {
		return nil, fmt.Errorf("configuration invalid: waiting_times must have arity 1 or 2, got %d", len(out))
	}
	return out, nil
}

// Validate enforces spec.md §7's ConfigurationInvalid rules.
func (c config) Validate() error {
	if !schedulingPolicies[c.schedulingPolicy] {
		return fmt.Errorf("configuration invalid: unknown scheduling_policy %q", c.schedulingPolicy)
	}
	if !strings.HasPrefix(c.schedulingPolicy, "suspend-resume") && !carbonPolicies[c.carbonPolicy] {
		return fmt.Errorf("configuration invalid: unknown carbon_policy %q", c.carbonPolicy)
	}
	if c.reservedInstances < 0 {
		return fmt.Errorf("configuration invalid: reserved_instances must be >= 0, got %d", c.reservedInstances)
	}
	if len(c.waitingHours) != 1 && len(c.waitingHours) != 2 {
		return fmt.Errorf("configuration invalid: waiting_times must have arity 1 or 2")
	}
	if c.carbonStartIndex < 0 {
		return fmt.Errorf("configuration invalid: carbon_start_index must be >= 0, got %d", c.carbonStartIndex)
	}
	if c.dynamicPower {
		base := strings.TrimSuffix(c.schedulingPolicy, "-spot")
		if c.carbonPolicy != "oracle" || (base != "carbon" && base != "suspend-resume") {
			return fmt.Errorf("configuration invalid: dynamic_power requires carbon_policy=oracle and scheduling_policy in {carbon, suspend-resume}, got carbon_policy=%q scheduling_policy=%q", c.carbonPolicy, c.schedulingPolicy)
		}
	}
	if c.ticksPerHour < 1 {
		return fmt.Errorf("configuration invalid: ticks_per_hour must be >= 1, got %d", c.ticksPerHour)
	}
	return nil
}

// waitingSeconds converts the hour budgets parsed from waiting_times into
// the second-granularity SchedulingContext expects.
func (c config) waitingSeconds() []int {
	out := make([]int, len(c.waitingHours))
	for i, h := range c.waitingHours {
		out[i] = h * 3600
	}
	return out
}

// buildPlan resolves the scheduling_policy/carbon_policy pair into a
// dispatch mode and a scheduler.PlanFunc, per spec.md §6's configuration
// surface and §9's "dynamic dispatch across policies" design note: a small
// closed set of variants behind one uniform plan contract. The returned
// bool reports whether the PlanFunc needs the carbon series from the job's
// arrival tick to the series end (suspend-resume-threshold, which must
// compute its percentile over a 24h lookahead independent of the job's own
// deadline) rather than the usual deadline-clamped sub-window.
func (c config) buildPlan() (scheduler.DispatchMode, scheduler.PlanFunc, bool, error) {
	base := strings.TrimSuffix(c.schedulingPolicy, "-spot")
	spot := strings.HasSuffix(c.schedulingPolicy, "-spot")

	switch base {
	case "carbon", "carbon-cost", "cost":
		mode := scheduler.DispatchNormal
		switch {
		case spot:
			mode = scheduler.DispatchSpotAware
		case base == "carbon-cost" || base == "cost":
			mode = scheduler.DispatchCostAware
		}
		if base == "cost" {
			// "cost" dispatches purely on cluster economics: the job runs
			// as soon as it is submitted, with carbon never consulted for
			// placement (cost-aware early dispatch still applies).
			return mode, asapPlan, false, nil
		}
		placer, err := policy.ByName(c.carbonPolicy)
		if err != nil {
			return 0, nil, false, err
		}
		return mode, scheduler.FromPlacer(placer, c.ticksPerHour), false, nil

	case "suspend-resume":
		mode := scheduler.DispatchNormal
		if spot {
			mode = scheduler.DispatchSpotAware
		}
		if c.dynamicPower {
			maxResumes := c.maxResumes
			if maxResumes <= 0 {
				maxResumes = ilp.DefaultMaxResumes
			}
			planner := ilp.PhaseAware{MaxResumes: maxResumes}
			return mode, planner.Plan, false, nil
		}
		return mode, suspend.OptimalConstantPower{}.Plan, false, nil

	case "suspend-resume-threshold":
		horizon := 24 * c.ticksPerHour
		planner := suspend.Threshold{Quantile: 0.3, Horizon: horizon}
		return scheduler.DispatchNormal, planner.Plan, true, nil

	default:
		return 0, nil, false, fmt.Errorf("configuration invalid: unhandled scheduling_policy %q", c.schedulingPolicy)
	}
}

// asapPlan is the trivial, carbon-blind plan used by the "cost" scheduling
// policy: run the job the instant it is submitted.
func asapPlan(j job.Job, _ carbon.Series) (schedule.RunPlan, error) {
	return schedule.RunPlan{Intervals: []schedule.Interval{{StartOffset: 0, RunLength: j.Length}}}, nil
}
