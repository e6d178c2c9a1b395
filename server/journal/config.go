package journal

import (
	"chronolog/server/storage"
	"flag"
	"fmt"
	"time"
)

var (
	FlagDemandPollIntervalMs = flag.Int("journal_demand_poll_interval_ms", 100,
		"Interval at which tailers re-check for demand when the consumer has not requested any values")
	FlagDataPollIntervalMs = flag.Int("journal_data_poll_interval_ms", 10,
		"Interval at which live tailers poll the log for new records")
	FlagDeleteRetryAttempts = flag.Int("journal_delete_retry_attempts", 5,
		"Number of attempts made to delete a segment after it has been read")
)

// Config holds the configuration of a store. Zero values fall back to the flag defaults.
type Config[T any] struct {
	// Path to the directory holding the log. This is a compulsory parameter.
	Path string
	// Encoder converts values to bytes. This is a compulsory parameter.
	Encoder func(T) ([]byte, error)
	// Decoder converts bytes to values. This is a compulsory parameter.
	Decoder func([]byte) (T, error)
	// RollCycle of the log. Defaults to daily.
	RollCycle storage.RollCycle
	// Clock used for journal timestamps and roll cycles. Defaults to time.Now.
	Clock func() time.Time
	// DemandPollInterval is the longest a tailer waits for demand before re-checking.
	DemandPollInterval time.Duration
	// DataPollInterval is the time a live tailer waits before polling the log again when no record is available.
	DataPollInterval time.Duration
	// DeleteRetryAttempts is the number of attempts made to delete a segment after it has been read.
	DeleteRetryAttempts int
	// RollCheckInterval is the interval at which the log checks whether it must roll over.
	RollCheckInterval time.Duration
}

// validate checks the config and fills in the defaults.
func (cfg *Config[T]) validate() error {
	if cfg.Path == "" {
		return ErrConfigMissingPath
	}
	if cfg.Encoder == nil {
		return ErrConfigMissingEncoder
	}
	if cfg.Decoder == nil {
		return ErrConfigMissingDecoder
	}
	if cfg.RollCycle == (storage.RollCycle{}) {
		cfg.RollCycle = storage.DailyRollCycle
	}
	if !cfg.RollCycle.IsValid() {
		return fmt.Errorf("%w: invalid roll cycle: %v", storage.ErrRollLogInvalidArg, cfg.RollCycle)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.DemandPollInterval == 0 {
		cfg.DemandPollInterval = time.Duration(*FlagDemandPollIntervalMs) * time.Millisecond
	}
	if cfg.DataPollInterval == 0 {
		cfg.DataPollInterval = time.Duration(*FlagDataPollIntervalMs) * time.Millisecond
	}
	if cfg.DemandPollInterval <= 0 || cfg.DataPollInterval <= 0 {
		return fmt.Errorf("%w: demand poll interval: %v, data poll interval: %v", ErrConfigInvalidInterval,
			cfg.DemandPollInterval, cfg.DataPollInterval)
	}
	if cfg.DeleteRetryAttempts <= 0 {
		cfg.DeleteRetryAttempts = *FlagDeleteRetryAttempts
	}
	return nil
}
