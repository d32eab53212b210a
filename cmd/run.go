package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"perftest/internal/cli"
	"perftest/internal/config"
	"perftest/internal/engine"
	"perftest/internal/orchestrator"
	"perftest/internal/scenario"
	"perftest/internal/tui"
)

var (
	runDuration  int
	runUsers     int
	runSpawnRate float64
	runHost      string
	runIntensity string
	runPlain     bool
	runOut       string
)

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Trigger load tests from the terminal",
	Long: `Run every scenario, or just the one named. Flag overrides apply on top
of intensity presets, scenario environment, and built-in defaults, the same
way the HTTP API resolves them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoadTests,
}

func init() {
	runCmd.Flags().IntVar(&runDuration, "duration", 0, "Test duration in seconds")
	runCmd.Flags().IntVar(&runUsers, "users", 0, "Concurrent simulated users")
	runCmd.Flags().Float64Var(&runSpawnRate, "spawn-rate", 0, "Users started per second")
	runCmd.Flags().StringVar(&runHost, "host", "", "Target host, e.g. http://localhost:4000")
	runCmd.Flags().StringVar(&runIntensity, "intensity", "", "Intensity preset (light, normal, medium, intense, OOM)")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "Plain progress output instead of the live view")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Write the aggregate report JSON to this file")
}

func runLoadTests(cmd *cobra.Command, args []string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	override := overrideFromFlags(cmd)
	if runIntensity != "" {
		preset, ok := config.IntensityLevel(runIntensity)
		if !ok {
			return errors.Errorf("unsupported intensity level %q, supported levels: %s",
				runIntensity, config.IntensityLevelNames())
		}
		override = config.MergeOverrides(override, preset)
	}

	req := orchestrator.AllScenarios()
	if len(args) == 1 {
		name, err := scenario.Parse(args[0])
		if err != nil {
			return err
		}
		req = orchestrator.Request{name: nil}
	}
	for name := range req {
		req[name] = override
	}

	// Resolve up front for the views; a scenario that fails resolution
	// surfaces again as an outcome in the aggregate.
	plans := make([]config.Resolved, 0, len(req))
	for _, name := range req.Scenarios() {
		if cfg, err := env.Resolve(name, req[name]); err == nil {
			plans = append(plans, cfg)
		}
	}

	updates := make(engine.UpdateChan, 100)
	coord := orchestrator.New(env, &orchestrator.EngineRunner{APIKey: env.APIKey, Updates: updates})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	type result struct {
		agg orchestrator.Aggregate
		err error
	}
	started := time.Now()
	resCh := make(chan result, 1)
	go func() {
		agg, err := coord.RunAll(ctx, req)
		close(updates)
		resCh <- result{agg, err}
	}()

	if runPlain || !isatty.IsTerminal(os.Stdout.Fd()) {
		cli.PrintHeader(plans)
		cli.Watch(updates, plans)
	} else {
		p := tea.NewProgram(tui.NewModel(updates, plans))
		if _, err := p.Run(); err != nil {
			return errors.Wrap(err, "failed to start live view")
		}
		// Quitting the view early aborts the run.
		cancel()
	}

	res := <-resCh
	if res.err != nil {
		return res.err
	}
	cli.PrintAggregate(res.agg, time.Since(started))

	report, err := json.MarshalIndent(reportPayload(res.agg), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}
	fmt.Println(string(report))

	if runOut != "" {
		if err := os.WriteFile(runOut, report, 0644); err != nil {
			return errors.Wrap(err, "failed to write report")
		}
		fmt.Printf("\n💾 Report saved to %s\n", runOut)
	}

	for _, outcome := range res.agg {
		if outcome.Err != nil {
			return errors.New("run finished with failed scenarios")
		}
	}
	return nil
}

// overrideFromFlags maps changed flags onto an override, nil when no
// sizing flag was given.
func overrideFromFlags(cmd *cobra.Command) *config.Override {
	o := &config.Override{}
	set := false
	if cmd.Flags().Changed("duration") {
		o.DurationSeconds = &runDuration
		set = true
	}
	if cmd.Flags().Changed("users") {
		o.UserCount = &runUsers
		set = true
	}
	if cmd.Flags().Changed("spawn-rate") {
		o.SpawnRate = &runSpawnRate
		set = true
	}
	if cmd.Flags().Changed("host") {
		o.Host = &runHost
		set = true
	}
	if !set {
		return nil
	}
	return o
}

// reportPayload shapes the aggregate the way the HTTP API would, so piped
// output and --out files stay interchangeable with server responses.
func reportPayload(agg orchestrator.Aggregate) map[string]any {
	results := make(map[string]any, len(agg))
	for name, outcome := range agg {
		if outcome.Err != nil {
			results[string(name)] = map[string]string{"error": outcome.Err.Error()}
			continue
		}
		results[string(name)] = outcome.Report
	}
	return map[string]any{"results": results}
}
