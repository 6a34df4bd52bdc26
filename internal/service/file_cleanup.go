package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gvn-booking-api/pkg/jobs"
	"github.com/noah-isme/gvn-booking-api/pkg/storage"
)

const fileCleanupJobType = "file.delete"

// FileCleanupConfig sizes the cleanup worker pool.
type FileCleanupConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// FileCleanupService deletes stored files in the background once the rows
// that referenced them are gone. Failures are retried, then logged.
type FileCleanupService struct {
	store   storage.FileStore
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewFileCleanupService builds the service and its queue. Call Start before
// scheduling work.
func NewFileCleanupService(store storage.FileStore, cfg FileCleanupConfig, metrics *MetricsService, logger *zap.Logger) *FileCleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &FileCleanupService{store: store, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("file-cleanup", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnExhausted: func(job jobs.Job, err error) {
			metrics.RecordFileCleanup(false)
			logger.Error("giving up on stored file", zap.Any("path", job.Payload), zap.Error(err))
		},
	})
	return svc
}

// Start launches the workers. They keep ctx's values but not its
// cancellation; only Stop ends them, so deletions scheduled while the
// server drains still run.
func (s *FileCleanupService) Start(ctx context.Context) {
	s.queue.Start(context.WithoutCancel(ctx))
}

// Stop waits for in-flight deletions to finish.
func (s *FileCleanupService) Stop() {
	s.queue.Stop()
}

// Schedule queues every non-empty path for deletion without blocking. Paths
// that cannot be queued are logged and left behind.
func (s *FileCleanupService) Schedule(paths ...string) {
	if s == nil {
		return
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.queue.TryEnqueue(jobs.Job{Type: fileCleanupJobType, Payload: p}); err != nil {
			s.logger.Warn("failed to schedule file cleanup", zap.String("path", p), zap.Error(err))
		}
	}
}

func (s *FileCleanupService) handle(ctx context.Context, job jobs.Job) error {
	p, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if !s.store.Delete(ctx, p) {
		return errors.New("file store refused delete")
	}
	s.metrics.RecordFileCleanup(true)
	s.logger.Debug("stored file removed", zap.String("path", p))
	return nil
}
