package config

import (
	"time"

	pmerrors "github.com/driftwatch/predmaint/pkg/predmaint/errors"
)

// BusSettings are the decoded bus options from the "bus" section of a
// deployment config.
type BusSettings struct {
	Retry          pmerrors.RetryConfig
	HandlerTimeout time.Duration
	GracePeriod    time.Duration
	DeadLetters    bool
	DLQPath        string // empty means in-memory
	DLQMaxSize     int
}

// DecodeBus reads bus settings from cfg. Retry count and delay strategy are
// deployment-specific, so everything carries a default:
//
//	bus:
//	  max_retries: 3
//	  retry_delay: 1s
//	  retry_strategy: fixed          # or "exponential"
//	  backoff_factor: 2.0
//	  max_backoff: 30s
//	  handler_timeout: 10s
//	  grace_period: 5s
//	  dead_letters: true
//	  dlq_path: ./deadletters.db
func DecodeBus(cfg Config) BusSettings {
	bus := cfg.Section("bus")

	delay := bus.Duration("retry_delay", 1*time.Second)
	retry := pmerrors.RetryConfig{
		MaxAttempts: bus.Int("max_retries", 3),
		Strategy:    pmerrors.FixedDelay(delay),
	}
	if bus.String("retry_strategy", "fixed") == "exponential" {
		retry.Strategy = pmerrors.ExponentialBackoff{
			Initial: delay,
			Factor:  bus.Float("backoff_factor", 2.0),
			Max:     bus.Duration("max_backoff", 30*time.Second),
			Jitter:  bus.Float("backoff_jitter", 0),
		}
	}

	return BusSettings{
		Retry:          retry,
		HandlerTimeout: bus.Duration("handler_timeout", 0),
		GracePeriod:    bus.Duration("grace_period", 5*time.Second),
		DeadLetters:    bus.Bool("dead_letters", true),
		DLQPath:        bus.String("dlq_path", ""),
		DLQMaxSize:     bus.Int("dlq_max_size", 0),
	}
}

// CoordinatorSettings are the decoded coordinator options from the
// "coordinator" section.
type CoordinatorSettings struct {
	MilestoneCapacity int
	StartTimeout      time.Duration
	StopTimeout       time.Duration
}

// DecodeCoordinator reads coordinator settings from cfg:
//
//	coordinator:
//	  milestone_capacity: 256
//	  start_timeout: 30s
//	  stop_timeout: 10s
func DecodeCoordinator(cfg Config) CoordinatorSettings {
	co := cfg.Section("coordinator")

	return CoordinatorSettings{
		MilestoneCapacity: co.Int("milestone_capacity", 256),
		StartTimeout:      co.Duration("start_timeout", 30*time.Second),
		StopTimeout:       co.Duration("stop_timeout", 10*time.Second),
	}
}
