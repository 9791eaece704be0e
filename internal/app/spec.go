package app

// ============================================================================
// Application specifications and presets
// ============================================================================

import (
	"github.com/darthgelum/Walrus/internal/scheduler"
)

// Specification configures an Application before construction.
type Specification struct {
	Name string

	// TargetTickRate is the desired number of update passes per second.
	// It only applies while LimitTickRate is true.
	TargetTickRate float64
	LimitTickRate  bool

	// WorkerCount sizes the shared worker pool; zero means one worker per
	// hardware thread.
	WorkerCount int
	Idle        scheduler.IdleBehavior

	// EnablePubSub makes the application construct and manage a message
	// broker on the shared pool. When false, Broker() returns nil and
	// publish/subscribe support is absent.
	EnablePubSub bool
}

// DefaultSpecification returns the baseline configuration.
func DefaultSpecification() Specification {
	return Specification{
		Name:           "Walrus App",
		TargetTickRate: 60,
		LimitTickRate:  true,
		WorkerCount:    0,
		Idle:           scheduler.IdleSleep,
	}
}

// HighPerformance targets a fast tick rate with all hardware threads and
// yielding idle workers.
func HighPerformance() Specification {
	return Specification{
		Name:           "High Performance App",
		TargetTickRate: 144,
		LimitTickRate:  true,
		WorkerCount:    0,
		Idle:           scheduler.IdleYield,
	}
}

// PowerEfficient trades latency for low CPU use: a slow tick rate, two
// workers, and sleeping idle behavior.
func PowerEfficient() Specification {
	return Specification{
		Name:           "Power Efficient App",
		TargetTickRate: 30,
		LimitTickRate:  true,
		WorkerCount:    2,
		Idle:           scheduler.IdleSleep,
	}
}

// BackgroundService suits long-running daemons: a standard tick rate with a
// fixed mid-size pool that sleeps when idle.
func BackgroundService() Specification {
	return Specification{
		Name:           "Background Service",
		TargetTickRate: 60,
		LimitTickRate:  true,
		WorkerCount:    8,
		Idle:           scheduler.IdleSleep,
	}
}

// MaxThroughput removes the tick rate limit entirely and keeps every
// hardware thread busy.
func MaxThroughput() Specification {
	return Specification{
		Name:           "Max Throughput App",
		TargetTickRate: 60,
		LimitTickRate:  false,
		WorkerCount:    0,
		Idle:           scheduler.IdleYield,
	}
}

// UltraLowPower ticks once per second on a minimal pool.
func UltraLowPower() Specification {
	return Specification{
		Name:           "Ultra Low Power App",
		TargetTickRate: 1,
		LimitTickRate:  true,
		WorkerCount:    2,
		Idle:           scheduler.IdleSleep,
	}
}

// UltraHighPerformance spins idle workers for the lowest possible latency
// at the cost of full CPU load.
func UltraHighPerformance() Specification {
	return Specification{
		Name:           "Ultra High Performance App",
		TargetTickRate: 240,
		LimitTickRate:  true,
		WorkerCount:    0,
		Idle:           scheduler.IdleSpin,
	}
}

// Presets maps preset names to their constructors, for CLI lookup.
var Presets = map[string]func() Specification{
	"default":                DefaultSpecification,
	"high-performance":       HighPerformance,
	"power-efficient":        PowerEfficient,
	"background-service":     BackgroundService,
	"max-throughput":         MaxThroughput,
	"ultra-low-power":        UltraLowPower,
	"ultra-high-performance": UltraHighPerformance,
}
