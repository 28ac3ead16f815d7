// Package trace loads the carbon-intensity and job traces a simulation run
// against, and resolves power profiles by name.
package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/greenqueue/carbonsim/carbon"
	"github.com/greenqueue/carbonsim/job"
	"github.com/greenqueue/carbonsim/power"
)

// CarbonWindowRows is the number of hourly rows (720h x 2) loaded from a
// carbon trace starting at the caller-supplied offset.
const CarbonWindowRows = 720 * 2

const twoHoursSeconds = 2 * 3600

// LoadCarbonCSV reads a tabular carbon trace with at least a
// carbon_intensity_avg column (grams CO2eq/kWh), converts it to
// kgCO2eq/kWh, and returns the CarbonWindowRows-row window starting at
// startIndex. Optional datetime/timestamp columns pass through unused.
func LoadCarbonCSV(r io.Reader, startIndex int) (carbon.Series, error) {
	records, header, err := readCSV(r)
	if err != nil {
		return carbon.Series{}, fmt.Errorf("trace: load carbon csv: %w", err)
	}
	col, ok := header["carbon_intensity_avg"]
	if !ok {
		return carbon.Series{}, fmt.Errorf("trace: carbon csv missing carbon_intensity_avg column")
	}
	if startIndex < 0 {
		return carbon.Series{}, fmt.Errorf("trace: negative carbon_start_index %d", startIndex)
	}

	values := make([]float64, 0, CarbonWindowRows)
	end := startIndex + CarbonWindowRows
	for i := startIndex; i < end && i < len(records); i++ {
		raw := records[i][col]
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return carbon.Series{}, fmt.Errorf("trace: carbon csv row %d: %w", i, err)
		}
		values = append(values, v/1000.0)
	}
	return carbon.New(values), nil
}

// JobRecord is one row of a job trace: arrival time, length, CPU count, and
// an optional named power profile.
type JobRecord struct {
	ArrivalTime   int
	LengthSeconds int
	CPUs          int
	ProfileName   string
}

// LoadJobCSV reads a tabular job trace with columns arrival_time (seconds),
// length (seconds), cpus (integer), and optional name (power profile,
// default "constant").
func LoadJobCSV(r io.Reader) ([]JobRecord, error) {
	records, header, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("trace: load job csv: %w", err)
	}
	arrivalCol, ok := header["arrival_time"]
	if !ok {
		return nil, fmt.Errorf("trace: job csv missing arrival_time column")
	}
	lengthCol, ok := header["length"]
	if !ok {
		return nil, fmt.Errorf("trace: job csv missing length column")
	}
	cpusCol, ok := header["cpus"]
	if !ok {
		return nil, fmt.Errorf("trace: job csv missing cpus column")
	}
	nameCol, hasName := header["name"]

	out := make([]JobRecord, 0, len(records))
	for i, row := range records {
		arrival, err := strconv.Atoi(strings.TrimSpace(row[arrivalCol]))
		if err != nil {
			return nil, fmt.Errorf("trace: job csv row %d arrival_time: %w", i, err)
		}
		length, err := strconv.Atoi(strings.TrimSpace(row[lengthCol]))
		if err != nil {
			return nil, fmt.Errorf("trace: job csv row %d length: %w", i, err)
		}
		cpus, err := strconv.Atoi(strings.TrimSpace(row[cpusCol]))
		if err != nil {
			return nil, fmt.Errorf("trace: job csv row %d cpus: %w", i, err)
		}
		name := "constant"
		if hasName && strings.TrimSpace(row[nameCol]) != "" {
			name = strings.TrimSpace(row[nameCol])
		}
		out = append(out, JobRecord{ArrivalTime: arrival, LengthSeconds: length, CPUs: cpus, ProfileName: name})
	}
	return out, nil
}

// BuildSchedulingContext computes the mean length of jobs <= 2h and jobs
// > 2h in records, seeding the average-length placement policies, and
// pairs them with the configured waiting-time budgets.
func BuildSchedulingContext(records []JobRecord, waitingTimes []int) job.SchedulingContext {
	if len(waitingTimes) != 2 {
		return job.SchedulingContext{WaitingTimesSeconds: waitingTimes}
	}
	var shortSum, shortCount, longSum, longCount int
	for _, r := range records {
		if r.LengthSeconds <= twoHoursSeconds {
			shortSum += r.LengthSeconds
			shortCount++
		} else {
			longSum += r.LengthSeconds
			longCount++
		}
	}
	avgShort, avgLong := 1, 1
	if shortCount > 0 {
		avgShort = shortSum / shortCount
	}
	if longCount > 0 {
		avgLong = longSum / longCount
	}
	return job.SchedulingContext{
		WaitingTimesSeconds:  waitingTimes,
		AverageLengthSeconds: []int{avgShort, avgLong},
	}
}

// ResolveProfile looks up a named power profile for a job of the given
// length. "constant" is the default, single-phase profile; "staged" adds a
// fixed boot phase followed by checkpointed work chunks, modeling jobs that
// can safely resume mid-execution.
func ResolveProfile(name string, lengthSeconds int) (power.Profile, error) {
	switch name {
	case "", "constant":
		return power.Constant(lengthSeconds), nil
	case "staged":
		return stagedProfile(lengthSeconds), nil
	default:
		return power.Profile{}, fmt.Errorf("trace: unknown power profile %q", name)
	}
}

// stagedProfile builds a boot phase plus evenly sized checkpointed work
// chunks, capped at 10 minutes each, so that a suspend/resume planner never
// has to redo more than one chunk's worth of work.
func stagedProfile(lengthSeconds int) power.Profile {
	const bootSeconds = 60
	const chunkSeconds = 600

	if lengthSeconds < 1 {
		lengthSeconds = 1
	}
	var work []power.Phase
	remaining := lengthSeconds
	i := 0
	for remaining > 0 {
		d := chunkSeconds
		if d > remaining {
			d = remaining
		}
		work = append(work, power.Phase{Name: fmt.Sprintf("chunk-%d", i), Duration: d, Watts: 1, Checkpoint: true})
		remaining -= d
		i++
	}
	return power.Profile{
		Name:    "staged",
		Startup: []power.Phase{{Name: "boot", Duration: bootSeconds, Watts: 2}},
		Work:    work,
	}
}

// readCSV reads a CSV with a header row and returns the data rows plus a
// column-name -> index map.
func readCSV(r io.Reader) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("empty csv")
	}
	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		header[strings.TrimSpace(name)] = i
	}
	return rows[1:], header, nil
}
