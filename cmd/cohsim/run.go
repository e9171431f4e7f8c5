package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sarchlab/cohsim/config"
	"github.com/sarchlab/cohsim/mem/accesstrace"
	"github.com/sarchlab/cohsim/simulation"
	"github.com/spf13/cobra"
)

type runOptions struct {
	configPath  string
	tracePath   string
	random      int
	maxAddress  uint64
	seed        int64
	record      string
	traceTasks  bool
	traceSteps  bool
	debugLog    string
	accessLog   string
	eventLog    string
	monitor     bool
	monitorPort int
	openBrowser bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a hierarchy with an access trace or random accesses.",
	Long: "`run --config topo.yaml --trace accesses.txt` replays the trace. " +
		"Each trace line is `<cycle> <module> <load|store> <address> " +
		"[value]`. With `--random N`, N random loads and stores are issued " +
		"and every load is checked against the last stored value.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSimulation(cmd, runOpts)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.configPath, "config", "", "topology YAML file")
	f.StringVar(&runOpts.tracePath, "trace", "", "access trace file")
	f.IntVar(&runOpts.random, "random", 0,
		"issue this many random accesses instead of a trace")
	f.Uint64Var(&runOpts.maxAddress, "max-address", 1<<20,
		"address range of the random accesses")
	f.Int64Var(&runOpts.seed, "seed", 0,
		"override the seed of the topology ("+envSeed+")")
	f.StringVar(&runOpts.record, "record", "",
		"record statistics into <record>.sqlite3 ("+envRecord+")")
	f.BoolVar(&runOpts.traceTasks, "trace-tasks", false,
		"record every access as a task (requires --record)")
	f.BoolVar(&runOpts.traceSteps, "trace-steps", false,
		"with --trace-tasks, also record every protocol step")
	f.StringVar(&runOpts.debugLog, "debug-log", "",
		"write one line per protocol step into this file")
	f.StringVar(&runOpts.accessLog, "access-log", "",
		"write every finished access into this file as a trace line")
	f.StringVar(&runOpts.eventLog, "event-log", "",
		"write one line per engine event into this file")
	f.BoolVar(&runOpts.monitor, "monitor", false,
		"serve the monitoring API while running")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"port of the monitoring API, random if 0")
	f.BoolVar(&runOpts.openBrowser, "open-browser", false,
		"open the monitoring API in a browser (implies --monitor)")

	_ = runCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)
}

func (o *runOptions) applyEnv(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("seed") {
		seed, err := envInt64(envSeed, 0)
		if err != nil {
			return err
		}

		o.seed = seed
	}

	if !cmd.Flags().Changed("record") {
		o.record = os.Getenv(envRecord)
	}

	if o.openBrowser {
		o.monitor = true
	}

	if o.tracePath == "" && o.random <= 0 {
		return errors.New("either --trace or --random must be given")
	}

	if o.tracePath != "" && o.random > 0 {
		return errors.New("--trace and --random cannot be used together")
	}

	if (o.traceTasks || o.traceSteps) && o.record == "" {
		return errors.New("--trace-tasks needs --record")
	}

	return nil
}

func (o runOptions) builder(
	cfg config.Config,
	debugLog, accessLog, eventLog io.Writer,
) simulation.Builder {
	b := simulation.MakeBuilder().WithConfig(cfg)

	if o.record != "" {
		b = b.WithRecording(o.record)
	}

	if o.traceTasks || o.traceSteps {
		b = b.WithTaskTracing(o.traceSteps)
	}

	if o.monitor {
		b = b.WithMonitoring(o.monitorPort)
	}

	if debugLog != nil {
		b = b.WithDebugLog(debugLog)
	}

	if accessLog != nil {
		b = b.WithAccessLog(accessLog)
	}

	if eventLog != nil {
		b = b.WithEventLog(eventLog)
	}

	return b
}

func runSimulation(cmd *cobra.Command, o runOptions) error {
	if err := o.applyEnv(cmd); err != nil {
		return err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	if o.seed != 0 {
		cfg.Seed = o.seed
	}

	var accesses []accesstrace.Access
	if o.tracePath != "" {
		accesses, err = accesstrace.ParseFile(o.tracePath)
		if err != nil {
			return err
		}
	}

	debugLog, err := createLog(o.debugLog)
	if err != nil {
		return err
	}
	defer closeLog(debugLog)

	accessLog, err := createLog(o.accessLog)
	if err != nil {
		return err
	}
	defer closeLog(accessLog)

	eventLog, err := createLog(o.eventLog)
	if err != nil {
		return err
	}
	defer closeLog(eventLog)

	sim := o.builder(cfg,
		writerOf(debugLog), writerOf(accessLog), writerOf(eventLog)).Build()
	defer sim.Terminate()

	if o.openBrowser {
		if err := sim.Monitor().OpenInBrowser(sim.MonitorURL()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "cannot open browser:", err)
		}
	}

	if o.tracePath != "" {
		_, err = sim.RunTrace(accesses)
	} else {
		_, err = sim.RunRandom(o.random, cfg.Seed, o.maxAddress)
	}

	if err != nil {
		return err
	}

	return sim.Report(cmd.OutOrStdout())
}

func createLog(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}

	return f, nil
}

func closeLog(f *os.File) {
	if f != nil {
		f.Close()
	}
}

// writerOf keeps a nil file from becoming a non-nil io.Writer.
func writerOf(f *os.File) io.Writer {
	if f == nil {
		return nil
	}

	return f
}
