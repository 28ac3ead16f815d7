// Command carbonsim runs the carbon-aware batch scheduling simulator: either
// a single configured run, or a parameter sweep over carbon trace start
// indices, per spec.md §6.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/greenqueue/carbonsim/simlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "carbonsim",
		Short: "Carbon-aware batch scheduling simulator",
	}
	root.AddCommand(newRunCmd(), newSweepCmd())
	return root
}

// bindConfigFlags centralizes the configuration surface shared by run and sweep, per
// spec.md §6.
func bindConfigFlags(cmd *cobra.Command, cfg *config) {
	cmd.Flags().StringVar(&cfg.carbonTracePath, "carbon-trace", "", "path to the carbon-intensity trace CSV (required)")
	cmd.Flags().StringVar(&cfg.jobTracePath, "job-trace", "", "path to the job trace CSV (required)")
	cmd.Flags().StringVar(&cfg.outDir, "out", "./carbonsim-out", "output directory for Details/Runtime tables")
	cmd.Flags().StringVar(&cfg.schedulingPolicy, "scheduling-policy", "carbon", "scheduling_policy: carbon|carbon-spot|carbon-cost|cost|cost-spot|suspend-resume|suspend-resume-spot|suspend-resume-threshold")
	cmd.Flags().StringVar(&cfg.carbonPolicy, "carbon-policy", "oracle", "carbon_policy: waiting|lowest|oracle|cst_oracle|cst_average")
	cmd.Flags().IntVar(&cfg.reservedInstances, "reserved-instances", 0, "reserved_instances (integer >= 0)")
	cmd.Flags().Float64Var(&cfg.onDemandHourly, "on-demand-hourly", onDemandHourlyDefault, "on-demand price per CPU-hour")
	cmd.Flags().Float64Var(&cfg.reservedDiscount, "reserved-discount", reservedDiscountDefault, "reserved-instance discount applied at settlement")
	cmd.Flags().StringVar(&waitingTimesFlag, "waiting-times", "24", "waiting_times: 'x'-separated hour budgets, arity 1 or 2")
	cmd.Flags().IntVar(&cfg.carbonStartIndex, "carbon-start-index", 0, "carbon_start_index: offset into the carbon trace")
	cmd.Flags().BoolVar(&cfg.dynamicPower, "dynamic-power", false, "dynamic_power: use the phase-aware ILP planner")
	cmd.Flags().IntVar(&cfg.maxResumes, "max-resumes", 0, "cap on suspend/resume restarts (0 = planner default)")
	cmd.Flags().IntVar(&cfg.ticksPerHour, "ticks-per-hour", 3600, "carbon trace upsample factor; also the hour-alignment stride")
	cmd.Flags().StringVar(&cfg.logLevel, "log-level", "info", "zap log level: debug|info|warn|error")
}

// waitingTimesFlag is bound as a raw string so it can be parsed (and
// validated) after cobra has populated the flag set.
var waitingTimesFlag string

func resolveConfig(cfg config) (config, error) {
	hours, err := parseWaitingHours(waitingTimesFlag)
	if err != nil {
		return cfg, err
	}
	cfg.waitingHours = hours
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	var cfg config
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cfg)
			if err != nil {
				return err
			}
			logger, err := simlog.New(cfg.logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return runOnce(cfg, logger)
		},
	}
	bindConfigFlags(cmd, &cfg)
	return cmd
}

func newSweepCmd() *cobra.Command {
	var cfg config
	const sweepStride = 500
	const sweepEnd = 8500
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the same configuration across a range of carbon_start_index values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cfg)
			if err != nil {
				return err
			}
			logger, err := simlog.New(cfg.logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			for start := 0; start < sweepEnd; start += sweepStride {
				runCfg := cfg
				runCfg.carbonStartIndex = start
				if err := runOnce(runCfg, logger); err != nil {
					logger.Errorw("sweep iteration failed, continuing", "carbon_start_index", start, "error", err)
				}
			}
			return nil
		},
	}
	bindConfigFlags(cmd, &cfg)
	cmd.Flags().Lookup("carbon-start-index").Hidden = true
	return cmd
}
