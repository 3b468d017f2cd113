package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/quantumauth-io/quantum-chain-config/log"
)

func SleepWithContext(ctx context.Context, duration time.Duration) {
	t := time.NewTimer(duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func Min[V int | int64](a V, b V) V {
	if a <= b {
		return a
	}
	return b
}

type Config struct {
	MaxNumRetries                int32
	InitialDelayBeforeRetrying   time.Duration
	MaxDelayBeforeRetrying       time.Duration
	ShouldLogFirstFailure        bool
	LogEveryNthFailure           int32
	LogLevelWhenFailure          log.Level
	ShouldLogNumRetriesOnSuccess bool
	LogLevelWhenSuccess          log.Level
}

const (
	/* (S)tructured (L)ogging */
	SLnumRetries    = "numRetries"
	InfiniteRetries = -1
)

func DefaultConfig() *Config {
	return &Config{
		MaxNumRetries:                InfiniteRetries,
		InitialDelayBeforeRetrying:   time.Duration(100) * time.Millisecond,
		MaxDelayBeforeRetrying:       time.Duration(10) * time.Second,
		ShouldLogFirstFailure:        true,
		LogEveryNthFailure:           10,
		LogLevelWhenFailure:          log.WarnLevel,
		ShouldLogNumRetriesOnSuccess: false,
		LogLevelWhenSuccess:          log.DebugLevel,
	}
}

// BoundedConfig is DefaultConfig capped at maxRetries attempts after the first.
func BoundedConfig(maxRetries int32, maxDelay time.Duration) *Config {
	cfg := DefaultConfig()
	cfg.MaxNumRetries = maxRetries
	if maxDelay > 0 {
		cfg.MaxDelayBeforeRetrying = maxDelay
		if cfg.InitialDelayBeforeRetrying > maxDelay {
			cfg.InitialDelayBeforeRetrying = maxDelay
		}
	}
	return cfg
}

/*
Pass nil for shouldRetryFn in order to always retry.
*/
func Retry(ctx context.Context, cfg *Config, retryableOperationFn func(ctx context.Context) ([]interface{}, error),
	shouldRetryFn func(error) bool, descriptionOfOperation string) ([]interface{}, error) {
	return Do(ctx, cfg, retryableOperationFn, shouldRetryFn, descriptionOfOperation)
}

// Do is Retry with a typed result.
func Do[T any](ctx context.Context, cfg *Config, op func(ctx context.Context) (T, error),
	shouldRetryFn func(error) bool, descriptionOfOperation string) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var zero T
	delayBeforeRetryMS := cfg.InitialDelayBeforeRetrying.Milliseconds()
	var numRetries int32

	for {
		result, err := op(ctx)
		if err == nil {
			if numRetries > 0 && cfg.ShouldLogNumRetriesOnSuccess {
				log.Log(cfg.LogLevelWhenSuccess, fmt.Sprintf("Ultimately succeeded: %s", descriptionOfOperation),
					SLnumRetries, numRetries)
			}
			return result, nil
		}

		if cfg.MaxNumRetries != InfiniteRetries && numRetries >= cfg.MaxNumRetries {
			return zero, errors.Wrapf(err, "Failed after max %d retries: %s", numRetries, descriptionOfOperation)
		}
		if shouldRetryFn != nil && !shouldRetryFn(err) {
			return zero, errors.Wrapf(err, "Failed, unretryable, after %d retries: %s", numRetries,
				descriptionOfOperation)
		}

		numRetries++
		if numRetries > 1 {
			delayBeforeRetryMS = Min(delayBeforeRetryMS*2, cfg.MaxDelayBeforeRetrying.Milliseconds())
		}

		if (cfg.ShouldLogFirstFailure && numRetries == 1) ||
			(cfg.LogEveryNthFailure > 0 && ((numRetries % cfg.LogEveryNthFailure) == 0)) {
			log.Log(cfg.LogLevelWhenFailure, fmt.Sprintf("Retrying failure: %s", descriptionOfOperation),
				"error", err, SLnumRetries, numRetries,
				"delayBeforeRetry", time.Duration(delayBeforeRetryMS)*time.Millisecond)
		}

		SleepWithContext(ctx, time.Duration(delayBeforeRetryMS)*time.Millisecond)
		if err2 := ctx.Err(); err2 != nil {
			return zero, errors.Wrapf(err, "Experienced context error during retry: %s - %s", descriptionOfOperation,
				err2.Error())
		}
	}
}
