package download

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/vibe/vibe-go/internal/errors"
	"github.com/vibe/vibe-go/internal/monitoring"
	"github.com/vibe/vibe-go/internal/resolver"
)

// Resolver turns a watch-page link into a directly fetchable media URL
type Resolver interface {
	Resolve(ctx context.Context, link string) (string, error)
}

// Acquisition is the outcome of a successful Acquire
type Acquisition struct {
	ItemID string
	JobID  string
	Path   string
	Bytes  int64
}

// PipelineConfig holds acquisition settings
type PipelineConfig struct {
	DocumentsDir string
	MaxAttempts  int
}

// Pipeline resolves, downloads and persists audio for source links.
// Acquire may be called concurrently.
type Pipeline struct {
	resolver     Resolver
	orchestrator *Orchestrator
	registry     *Registry
	config       PipelineConfig
	logger       *zap.Logger

	// jobID -> context.CancelFunc
	active sync.Map
}

// NewPipeline creates a new acquisition pipeline
func NewPipeline(r Resolver, orchestrator *Orchestrator, registry *Registry, config PipelineConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	return &Pipeline{
		resolver:     r,
		orchestrator: orchestrator,
		registry:     registry,
		config:       config,
		logger:       logger,
	}
}

// Registry returns the job registry the pipeline reports to
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Acquire turns sourceLink into a persisted audio file at {documentsDir}/{itemID}.m4a.
// Invalid links and resolution failures fail fast; transfer failures are retried.
// The job is removed from the registry on every exit path.
func (p *Pipeline) Acquire(ctx context.Context, sourceLink, displayName string) (*Acquisition, error) {
	start := time.Now()

	result, err := p.acquire(ctx, sourceLink, displayName)
	if err != nil {
		monitoring.RecordAcquisitionFailed(string(apperrors.GetErrorType(err)))
		p.logger.Warn("acquisition failed",
			zap.String("link", sourceLink),
			zap.String("name", displayName),
			zap.Error(err))
		return nil, err
	}

	monitoring.RecordAcquisitionComplete(time.Since(start), result.Bytes)
	p.logger.Info("acquisition completed",
		zap.String("job_id", result.JobID),
		zap.String("item_id", result.ItemID),
		zap.String("path", result.Path),
		zap.Int64("bytes", result.Bytes),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

func (p *Pipeline) acquire(ctx context.Context, sourceLink, displayName string) (*Acquisition, error) {
	if err := resolver.ValidateLink(sourceLink); err != nil {
		return nil, err
	}

	rawURL, err := p.resolver.Resolve(ctx, sourceLink)
	if err != nil {
		if apperrors.IsResolution(err) {
			return nil, err
		}
		return nil, apperrors.NewResolutionError("failed to resolve media URL", err)
	}

	jobID, err := newJobID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	p.active.Store(jobID, cancel)
	p.registry.Register(jobID, displayName)
	defer func() {
		cancel()
		p.active.Delete(jobID)
		p.registry.OnTerminal(jobID)
	}()

	p.logger.Debug("acquisition started",
		zap.String("job_id", jobID),
		zap.String("name", displayName))

	tempPath, err := p.orchestrator.RunWithRetry(jobCtx, jobID, rawURL, p.config.MaxAttempts)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tempPath)

	itemID := uuid.NewString()
	path, written, err := Persist(p.config.DocumentsDir, itemID, tempPath)
	if err != nil {
		return nil, err
	}

	return &Acquisition{
		ItemID: itemID,
		JobID:  jobID,
		Path:   path,
		Bytes:  written,
	}, nil
}

// Cancel aborts the in-flight job with the given id
func (p *Pipeline) Cancel(jobID string) error {
	value, ok := p.active.Load(jobID)
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("job not found: %s", jobID))
	}

	cancel, ok := value.(context.CancelFunc)
	if !ok {
		return fmt.Errorf("invalid cancel handle for job: %s", jobID)
	}

	cancel()
	return nil
}

// CancelAll aborts every in-flight job
func (p *Pipeline) CancelAll() {
	p.active.Range(func(key, value interface{}) bool {
		if cancel, ok := value.(context.CancelFunc); ok {
			cancel()
		}
		return true
	})
}

// ActiveJobs returns the number of in-flight jobs
func (p *Pipeline) ActiveJobs() int {
	count := 0
	p.active.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}

func newJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
