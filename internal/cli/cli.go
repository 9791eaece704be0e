// ============================================================================
// Walrus CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Provides user-friendly command line interface based on Cobra framework
//
// Command Structure:
//   walrus                         # Root command
//   ├── run                        # Start the runtime
//   │   ├── --preset, -p          # Named specification preset
//   │   └── --duration, -d        # Auto-close after this long (0 = run until signal)
//   ├── presets                    # List available presets
//   ├── status                     # Show effective configuration
//   ├── --config, -c              # Specify config file
//   ├── --version                  # Display version information
//   └── --help                     # Display help information
//
// Configuration Management:
//   Uses YAML format config file (default: configs/default.yaml)
//   Configuration items include:
//   - app: name, preset, tick rate and pub/sub settings
//   - scheduler: worker count and idle behavior
//   - metrics: Prometheus monitoring configuration
//
//   Precedence: preset values first, then non-zero config file fields, then
//   command line flags.
//
// run Command:
//   Starts the complete runtime, including:
//   1. Load config file
//   2. Build the application specification
//   3. Start Metrics HTTP server (if enabled)
//   4. Listen for system signals (SIGINT, SIGTERM)
//   5. Gracefully shut down the runtime
//
//   Examples:
//     ./walrus run
//     ./walrus run -p power-efficient
//     ./walrus run -c custom-config.yaml -d 30s
//
// Signal Handling:
//   run captures SIGINT (Ctrl+C) and SIGTERM. On either signal the update
//   loop exits, layers detach, the event loop and broker stop, and the
//   worker pool drains before the process returns.
//
// Metrics Service:
//   If enabled in config, starts HTTP service in separate goroutine:
//   - Default port: 9090
//   - Path: /metrics
//   - Format: Prometheus format
//
// ============================================================================

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/darthgelum/Walrus/internal/app"
	"github.com/darthgelum/Walrus/internal/metrics"
	"github.com/darthgelum/Walrus/internal/scheduler"
)

var log = slog.Default()

// Config represents the complete runtime configuration structure.
// Maps config file fields through YAML tags.
type Config struct {
	App struct {
		Name           string  `yaml:"name"`
		Preset         string  `yaml:"preset"`
		TargetTickRate float64 `yaml:"target_tick_rate"`
		LimitTickRate  *bool   `yaml:"limit_tick_rate"`
		EnablePubSub   bool    `yaml:"enable_pubsub"`
	} `yaml:"app"`

	Scheduler struct {
		WorkerCount  int    `yaml:"worker_count"`
		IdleBehavior string `yaml:"idle_behavior"`
	} `yaml:"scheduler"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

var configFile string

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "walrus",
		Short: "Walrus: a console-process runtime with timers, pub/sub and layer trees",
		Long: `Walrus drives console applications with:
- A shared fixed-size worker pool
- JavaScript-style timers (SetTimeout / SetInterval / SetImmediate)
- A type-routed publish/subscribe broker
- A hierarchical layer tree updated in parallel every tick`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildPresetsCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	var preset string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the Walrus runtime",
		Long:  "Start the runtime with the configured specification and run until a signal or --duration elapses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(preset, duration)
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", "", "specification preset (overrides the config file)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "auto-close after this long (0 = run until signal)")

	return cmd
}

func runApplication(presetFlag string, duration time.Duration) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	spec, err := buildSpecification(cfg, presetFlag)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		go func() {
			log.Info("starting metrics server", "port", cfg.Metrics.Port)
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	a := app.New(spec, collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if duration > 0 {
		timer := time.AfterFunc(duration, a.Close)
		defer timer.Stop()
	}

	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("runtime failed: %w", err)
	}
	return nil
}

// buildSpecification resolves preset, config file and flags into one spec.
func buildSpecification(cfg *Config, presetFlag string) (app.Specification, error) {
	name := cfg.App.Preset
	if presetFlag != "" {
		name = presetFlag
	}

	spec := app.DefaultSpecification()
	if name != "" {
		build, ok := app.Presets[name]
		if !ok {
			return app.Specification{}, fmt.Errorf("unknown preset %q (run 'walrus presets' to list them)", name)
		}
		spec = build()
	}

	if cfg.App.Name != "" {
		spec.Name = cfg.App.Name
	}
	if cfg.App.TargetTickRate > 0 {
		spec.TargetTickRate = cfg.App.TargetTickRate
	}
	if cfg.App.LimitTickRate != nil {
		spec.LimitTickRate = *cfg.App.LimitTickRate
	}
	spec.EnablePubSub = spec.EnablePubSub || cfg.App.EnablePubSub
	if cfg.Scheduler.WorkerCount > 0 {
		spec.WorkerCount = cfg.Scheduler.WorkerCount
	}
	if cfg.Scheduler.IdleBehavior != "" {
		idle, err := scheduler.ParseIdleBehavior(cfg.Scheduler.IdleBehavior)
		if err != nil {
			return app.Specification{}, fmt.Errorf("invalid config: %w", err)
		}
		spec.Idle = idle
	}
	return spec, nil
}

func buildPresetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List available specification presets",
		Long:  "Display every preset name with its tick rate, worker count and idle behavior",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showPresets()
		},
	}
	return cmd
}

func showPresets() error {
	names := make([]string, 0, len(app.Presets))
	for name := range app.Presets {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available presets:")
	for _, name := range names {
		spec := app.Presets[name]()
		workers := fmt.Sprintf("%d", spec.WorkerCount)
		if spec.WorkerCount == 0 {
			workers = "all hardware threads"
		}
		rate := fmt.Sprintf("%.0f Hz", spec.TargetTickRate)
		if !spec.LimitTickRate {
			rate = "unlimited"
		}
		fmt.Printf("  %-24s %-12s workers: %-20s idle: %s\n", name, rate, workers, spec.Idle)
	}
	return nil
}

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show effective configuration",
		Long:  "Display the specification the run command would start with",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
	return cmd
}

func showStatus() error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	spec, err := buildSpecification(cfg, "")
	if err != nil {
		return err
	}

	fmt.Println("Walrus configuration:")
	fmt.Printf("  Config File:      %s\n", configFile)
	fmt.Printf("  Name:             %s\n", spec.Name)
	if spec.LimitTickRate {
		fmt.Printf("  Target Tick Rate: %.0f Hz (limited)\n", spec.TargetTickRate)
	} else {
		fmt.Printf("  Target Tick Rate: unlimited\n")
	}
	if spec.WorkerCount == 0 {
		fmt.Printf("  Workers:          all hardware threads\n")
	} else {
		fmt.Printf("  Workers:          %d\n", spec.WorkerCount)
	}
	fmt.Printf("  Idle Behavior:    %s\n", spec.Idle)
	fmt.Printf("  PubSub:           %t\n", spec.EnablePubSub)
	if cfg.Metrics.Enabled {
		fmt.Printf("  Metrics:          enabled on http://localhost:%d/metrics\n", cfg.Metrics.Port)
	} else {
		fmt.Printf("  Metrics:          disabled\n")
	}
	return nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &cfg, nil
}
