// Package report writes the two tabular output files named in spec.md §6:
// per-subtask Details and per-minute CPU-utilization Runtime.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/greenqueue/carbonsim/cluster"
)

var detailsHeader = []string{
	"ID", "arrival_time", "length", "cpus", "length_class", "resource_class",
	"carbon_cost", "dollar_cost", "start_time", "waiting_time", "exit_time", "reason",
}

// WriteDetails writes one row per dispatched subtask, plus the final
// sentinel settlement row (ID = -1), to w.
func WriteDetails(w io.Writer, records []cluster.DetailRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(detailsHeader); err != nil {
		return fmt.Errorf("report: write details header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.ID),
			strconv.Itoa(r.ArrivalTime),
			strconv.Itoa(r.Length),
			strconv.Itoa(r.CPUs),
			r.LengthClass,
			r.ResourceClass,
			strconv.FormatFloat(r.CarbonCost, 'f', -1, 64),
			strconv.FormatFloat(r.DollarCost, 'f', -1, 64),
			strconv.Itoa(r.StartTime),
			strconv.Itoa(r.WaitingTime),
			strconv.Itoa(r.ExitTime),
			r.Reason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("report: write details row for job %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var runtimeHeader = []string{"minute", "mean_cpu_utilization"}

// WriteRuntime writes the per-minute mean CPU utilization over the full
// simulation window to w, given the per-tick utilization vector and the
// number of ticks per minute (60 / tick-seconds for sub-minute ticks, or
// however many ticks make up one minute at the simulation's resolution).
func WriteRuntime(w io.Writer, cpuUtilization []int, ticksPerMinute int) error {
	if ticksPerMinute < 1 {
		ticksPerMinute = 1
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(runtimeHeader); err != nil {
		return fmt.Errorf("report: write runtime header: %w", err)
	}
	for start, minute := 0, 0; start < len(cpuUtilization); start, minute = start+ticksPerMinute, minute+1 {
		end := start + ticksPerMinute
		if end > len(cpuUtilization) {
			end = len(cpuUtilization)
		}
		var sum float64
		for _, v := range cpuUtilization[start:end] {
			sum += float64(v)
		}
		mean := sum / float64(end-start)
		row := []string{strconv.Itoa(minute), strconv.FormatFloat(mean, 'f', -1, 64)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("report: write runtime row for minute %d: %w", minute, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
