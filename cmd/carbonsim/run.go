package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/cluster"
	"github.com/greenqueue/carbonsim/ilp"
	"github.com/greenqueue/carbonsim/job"
	"github.com/greenqueue/carbonsim/report"
	"github.com/greenqueue/carbonsim/scheduler"
	"github.com/greenqueue/carbonsim/simlog"
	"github.com/greenqueue/carbonsim/trace"
)

const (
	onDemandHourlyDefault   = 0.0624
	reservedDiscountDefault = 0.4
)

// runOnce executes one complete simulation under cfg, tagged with a fresh
// UUID run identity (the reference implementation hashed its config with
// MD5 for the same purpose), and writes the Details and Runtime tables to
// cfg.outDir.
func runOnce(cfg config, logger *zap.SugaredLogger) error {
	runID := uuid.New().String()
	logger = simlog.WithRun(logger, runID)
	ilp.SetLogger(logger)

	if err := cfg.Validate(); err != nil {
		logger.Errorw("rejecting configuration", "error", err)
		return err
	}

	carbonFile, err := os.Open(cfg.carbonTracePath)
	if err != nil {
		return fmt.Errorf("carbonsim: open carbon trace: %w", err)
	}
	defer carbonFile.Close()
	hourly, err := trace.LoadCarbonCSV(carbonFile, cfg.carbonStartIndex)
	if err != nil {
		logger = simlog.WithKind(logger, simlog.KindTraceExhausted)
		logger.Errorw("failed to load carbon trace", "error", err)
		return err
	}
	window := hourly.RepeatByFactor(cfg.ticksPerHour)
	tickSeconds := 3600 / cfg.ticksPerHour
	if tickSeconds < 1 {
		tickSeconds = 1
	}

	jobFile, err := os.Open(cfg.jobTracePath)
	if err != nil {
		return fmt.Errorf("carbonsim: open job trace: %w", err)
	}
	defer jobFile.Close()
	records, err := trace.LoadJobCSV(jobFile)
	if err != nil {
		return fmt.Errorf("carbonsim: load job trace: %w", err)
	}

	schedCtx := trace.BuildSchedulingContext(records, cfg.waitingSeconds())

	mode, plan, needsFullSeries, err := cfg.buildPlan()
	if err != nil {
		logger = simlog.WithKind(logger, simlog.KindConfigurationInvalid)
		logger.Errorw("failed to build plan function", "error", err)
		return err
	}

	acct := cluster.New(window.Len(), cfg.reservedInstances, cfg.onDemandHourly, cfg.reservedDiscount, tickSeconds)
	front := scheduler.New(mode)

	logger.Infow("starting run",
		"scheduling_policy", cfg.schedulingPolicy,
		"carbon_policy", cfg.carbonPolicy,
		"jobs", len(records),
		"window_ticks", window.Len(),
	)

	for i, rec := range records {
		profile, err := trace.ResolveProfile(rec.ProfileName, rec.LengthSeconds)
		if err != nil {
			logger.Warnw("skipping job with unresolvable profile", "job_index", i, "error", err)
			continue
		}
		j, err := job.New(i, rec.ArrivalTime, rec.LengthSeconds, rec.CPUs, profile, schedCtx)
		if err != nil {
			logger.Warnw("skipping job with invalid scheduling context", "job_index", i, "error", err)
			continue
		}
		var jobWindow carbon.Series
		if needsFullSeries {
			// suspend-resume-threshold computes its percentile over a 24h
			// lookahead independent of this job's own deadline, so it needs
			// the series from current_time onward, not a deadline-clamped
			// slice (spec.md §4.2).
			jobWindow = window.Window(j.ArrivalTime, window.Len())
		} else {
			jobWindow = window.Window(j.ArrivalTime, j.ArrivalTime+j.Length+j.WaitingTime)
		}
		if err := front.Submit(j.ArrivalTime, j, jobWindow, plan); err != nil {
			logger.Warnw("job failed planning, dropping", "job_id", j.ID, "error", err)
			continue
		}
	}

	var allRecords []cluster.DetailRecord
	for t := 0; t < window.Len(); t++ {
		allRecords = append(allRecords, front.Tick(t, window, acct)...)
	}
	settlement := acct.Settle()
	allRecords = append(allRecords, settlement)

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		return fmt.Errorf("carbonsim: create output dir: %w", err)
	}

	detailsPath := filepath.Join(cfg.outDir, fmt.Sprintf("details-%s.csv", runID))
	if err := writeFile(detailsPath, func(f *os.File) error { return report.WriteDetails(f, allRecords) }); err != nil {
		return err
	}

	ticksPerMinute := 60 / tickSeconds
	runtimePath := filepath.Join(cfg.outDir, fmt.Sprintf("runtime-%s.csv", runID))
	if err := writeFile(runtimePath, func(f *os.File) error {
		return report.WriteRuntime(f, acct.CPUUtilization(), ticksPerMinute)
	}); err != nil {
		return err
	}

	logger.Infow("run complete",
		"total_carbon", acct.TotalCarbon(),
		"total_dollars", acct.TotalDollars(),
		"details_path", detailsPath,
		"runtime_path", runtimePath,
	)
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("carbonsim: create %s: %w", path, err)
	}
	defer f.Close()
	return write(f)
}
