package config

import (
	"strconv"
	"time"

	ferrors "github.com/jrsteele09/go-fermax-cloud/internal/errors"
)

const (
	UpdateIntervalVar     = "UPDATE_INTERVAL"
	MaxParallelFetchesVar = "MAX_PARALLEL_FETCHES"
	RetryEnabledVar       = "RETRY_ENABLED"

	DefaultUpdateInterval     = 60 * time.Second
	MinUpdateInterval         = 30 * time.Second
	MaxUpdateInterval         = 600 * time.Second
	DefaultMaxParallelFetches = 8
)

type PollingConfig interface {
	GetUpdateInterval() (time.Duration, error)
	GetMaxParallelFetches() int
	GetRetryEnabled() bool
}

type Polling struct {
	src *source
}

var _ PollingConfig = Polling{}

// GetUpdateInterval reads the interval in whole seconds. Values outside
// [30, 600] fail with ErrInvalidConfig.
func (p Polling) GetUpdateInterval() (time.Duration, error) {
	raw := p.src.get(UpdateIntervalVar, "")
	if raw == "" {
		return DefaultUpdateInterval, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ferrors.Wrapf(ferrors.ErrInvalidConfig, "[config GetUpdateInterval] %s=%q is not a number of seconds", UpdateIntervalVar, raw)
	}
	interval := time.Duration(seconds) * time.Second
	if interval < MinUpdateInterval || interval > MaxUpdateInterval {
		return 0, ferrors.Wrapf(ferrors.ErrInvalidConfig, "[config GetUpdateInterval] %s=%d must be between %d and %d seconds",
			UpdateIntervalVar, seconds, int(MinUpdateInterval.Seconds()), int(MaxUpdateInterval.Seconds()))
	}
	return interval, nil
}

func (p Polling) GetMaxParallelFetches() int {
	n, err := strconv.Atoi(p.src.get(MaxParallelFetchesVar, ""))
	if err != nil || n <= 0 {
		return DefaultMaxParallelFetches
	}
	return n
}

func (p Polling) GetRetryEnabled() bool {
	enabled, err := strconv.ParseBool(p.src.get(RetryEnabledVar, "true"))
	if err != nil {
		return true
	}
	return enabled
}
