package download

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/vibe/vibe-go/internal/errors"
	"github.com/vibe/vibe-go/internal/monitoring"
	"github.com/vibe/vibe-go/internal/network"
)

// DefaultMaxAttempts is the attempt budget for one job
const DefaultMaxAttempts = 3

// Fetcher downloads a URL into a temporary file, reporting progress on a channel
type Fetcher interface {
	Download(ctx context.Context, url string, progress chan<- network.Progress) (string, error)
}

// FetcherFactory builds a fresh Fetcher for each attempt
type FetcherFactory func() Fetcher

// Orchestrator runs one logical download under a job id with bounded retries
type Orchestrator struct {
	newFetcher  FetcherFactory
	registry    *Registry
	backoffBase time.Duration
	logger      *zap.Logger
}

// NewOrchestrator creates an orchestrator that reports progress to registry
func NewOrchestrator(newFetcher FetcherFactory, registry *Registry, backoffBase time.Duration, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &Orchestrator{
		newFetcher:  newFetcher,
		registry:    registry,
		backoffBase: backoffBase,
		logger:      logger,
	}
}

// RunWithRetry downloads url, retrying retryable transfer failures.
// After failed attempt n it waits backoffBase * 2^n. When every attempt fails
// the last error is returned as an exhausted retries error. Cancelling ctx
// aborts the running attempt and any pending wait.
func (o *Orchestrator) RunWithRetry(ctx context.Context, jobID, url string, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	log := o.logger.With(zap.String("job_id", jobID))

	config := apperrors.RetryConfig{
		MaxAttempts: maxAttempts,
		BackoffBase: o.backoffBase,
		Multiplier:  2.0,
		RetryableErrors: func(err error) bool {
			return apperrors.IsRetryable(err)
		},
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Warn("transfer attempt failed, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(err))
		},
	}

	var tempPath string
	err := apperrors.RetryWithBackoff(ctx, config, func(attempt int) error {
		path, err := o.runAttempt(ctx, jobID, url, attempt)
		if err != nil {
			monitoring.RecordAttempt("failed")
			return err
		}
		monitoring.RecordAttempt("succeeded")
		tempPath = path
		return nil
	})
	if err != nil {
		return "", err
	}

	return tempPath, nil
}

// runAttempt performs one transfer with a fresh fetcher. Every progress report of
// the attempt reaches the registry before runAttempt returns.
func (o *Orchestrator) runAttempt(ctx context.Context, jobID, url string, attempt int) (string, error) {
	o.registry.OnProgress(jobID, attempt, network.Progress{})

	progress := make(chan network.Progress, 16)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for p := range progress {
			o.registry.OnProgress(jobID, attempt, p)
		}
	}()

	path, err := o.newFetcher().Download(ctx, url, progress)
	close(progress)
	<-forwarded

	return path, err
}
