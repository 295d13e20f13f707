// ============================================================================
// Hive CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra-based demo harness for exercising a Hive from the shell.
//
// Command Structure:
//   hive                      # Root command
//   ├── run                   # Submit a batch of demo tasks and print outcomes
//   │   └── --config, -c      # Specify config file
//   │   └── --count, -n       # Number of demo tasks to submit
//   │   └── --fail-every      # Make every Nth task fail (0 disables)
//   ├── bench                 # Measure submit+collect throughput
//   │   └── --count, -n
//   └── --version
//
// Configuration Management:
//   Uses YAML format config file (default: configs/default.yaml).
//   Configuration items include threads, retry policy, and metrics.
// ============================================================================

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/hive/internal/metrics"
	"github.com/ChuLiYu/hive/pkg/hive"
	"github.com/ChuLiYu/hive/pkg/task"
)

// Config is the complete hive demo configuration, loaded from YAML.
type Config struct {
	Hive struct {
		NumThreads      int     `yaml:"num_threads"`
		MaxRetries      uint32  `yaml:"max_retries"`
		RetryBaseDelay  string  `yaml:"retry_base_delay"`
		RetryMultiplier float64 `yaml:"retry_multiplier"`
		RetryMaxDelay   string  `yaml:"retry_max_delay"`
	} `yaml:"hive"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

var configFile string

// BuildCLI constructs the root cobra command tree for the hive demo binary.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hive",
		Short: "Hive: a generic worker-pool library with retry and panic isolation",
		Long: `Hive is a fixed-size worker pool that applies a user-supplied Worker to a
stream of submitted tasks, with per-task retry and backoff, panic isolation,
and an outcome stream that can be restored to submission order.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildBenchCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	var count int
	var failEvery int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a batch of demo tasks and print their outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(count, failEvery)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 20, "number of demo tasks to submit")
	cmd.Flags().IntVar(&failEvery, "fail-every", 7, "make every Nth task fail with a retryable error (0 disables)")

	return cmd
}

func buildBenchCommand() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure submit and collect throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(count)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10000, "number of tasks to submit")

	return cmd
}

// demoWorker squares its input, failing retryably every failEvery-th call
// (by submission index, via ctx.Index) to exercise the retry path.
type demoWorker struct {
	failEvery int
}

func (w demoWorker) Apply(input int, ctx task.Context) (int, *task.ApplyError[int, string]) {
	if w.failEvery > 0 && int(ctx.Index)%w.failEvery == 0 && ctx.Attempt == 0 {
		return 0, &task.ApplyError[int, string]{
			Kind:  task.KindRetryable,
			Input: &input,
			Err:   fmt.Sprintf("transient failure on task %d", ctx.Index),
		}
	}
	return input * input, nil
}

func (w demoWorker) Clone() task.Worker[int, int, string] { return w }

func runDemo(count int, failEvery int) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Log.Level)
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector("hive_demo")
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	b := hive.NewBuilder[int, int, string]()
	b.NumThreads = cfg.Hive.NumThreads
	b.MaxRetries = cfg.Hive.MaxRetries
	b.RetryBaseDelay = parseDuration(cfg.Hive.RetryBaseDelay, 50*time.Millisecond)
	b.RetryMultiplier = cfg.Hive.RetryMultiplier
	b.RetryMaxDelay = parseDuration(cfg.Hive.RetryMaxDelay, 2*time.Second)
	b.Logger = logger
	b.Metrics = collector
	b.ThreadNamePrefix = "demo"

	h, err := b.Build(demoWorker{failEvery: failEvery})
	if err != nil {
		return fmt.Errorf("failed to build hive: %w", err)
	}

	inputs := make([]int, count)
	for i := range inputs {
		inputs[i] = i
	}

	seq, err := h.Map(inputs)
	if err != nil {
		return fmt.Errorf("failed to submit demo tasks: %w", err)
	}

	batch := hive.Collect[int, int, string](hive.IntoOrdered(seq))
	h.Join()

	fmt.Printf("submitted %d tasks: %d succeeded, %d failed\n", count, batch.NumSuccesses(), batch.NumFailures())
	for o := range batch.IterFailures() {
		fmt.Printf("  task %d: %s: %s\n", o.Index, o.Kind, o.Err)
	}

	return nil
}

func runBench(count int) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	b := hive.NewBuilder[int, int, string]()
	b.NumThreads = cfg.Hive.NumThreads
	b.Logger = zerolog.Nop()
	b.ThreadNamePrefix = "bench"

	h, err := b.Build(demoWorker{})
	if err != nil {
		return fmt.Errorf("failed to build hive: %w", err)
	}

	inputs := make([]int, count)
	for i := range inputs {
		inputs[i] = i
	}

	start := time.Now()
	seq, err := h.Map(inputs)
	if err != nil {
		return fmt.Errorf("failed to submit bench tasks: %w", err)
	}
	n := 0
	for range seq {
		n++
	}
	elapsed := time.Since(start)
	h.Join()

	fmt.Printf("processed %d tasks in %s (%.0f tasks/sec) with %d threads\n",
		n, elapsed, float64(n)/elapsed.Seconds(), cfg.Hive.NumThreads)
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if cfg.Hive.NumThreads <= 0 {
		cfg.Hive.NumThreads = 4
	}
	return cfg, nil
}
