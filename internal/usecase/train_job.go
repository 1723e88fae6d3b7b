package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RiskCast/internal/domain/models"
	"RiskCast/pkg/cache"
	applogger "RiskCast/pkg/logger"
	"RiskCast/pkg/queue"
)

var trainLockKey = cache.GenerateKey("lock", "train")

// ErrTrainingInProgress is returned while another worker holds the training lock.
var ErrTrainingInProgress = errors.New("training already in progress")

var _ queue.Job = (*TrainJob)(nil)

// TrainJob runs the training pipeline from a queued request.
type TrainJob struct {
	svc     *TrainingService
	locker  cache.Service
	lockTTL time.Duration
	l       *applogger.Logger
}

func NewTrainJob(svc *TrainingService, locker cache.Service, lockTTL time.Duration, l *applogger.Logger) *TrainJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &TrainJob{svc: svc, locker: locker, lockTTL: lockTTL, l: l}
}

func (j *TrainJob) Name() string { return "TrainModels" }
func (j *TrainJob) Type() string { return models.JobTrainModels }

func (j *TrainJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[models.TrainJobPayload](payload)
	if err != nil {
		return err
	}

	if j.locker != nil {
		ok, err := j.locker.TryLock(ctx, trainLockKey, j.lockTTL)
		if err != nil {
			return fmt.Errorf("acquire training lock: %w", err)
		}
		if !ok {
			return ErrTrainingInProgress
		}
		defer func() {
			if err := j.locker.Unlock(context.WithoutCancel(ctx), trainLockKey); err != nil {
				j.l.Warn("release training lock failed", applogger.Error(err))
			}
		}()
	}

	if !p.RequestedAt.IsZero() {
		j.l.Info("training job started",
			applogger.Strings("tickers", p.Tickers),
			applogger.Duration("queued_ms", time.Since(p.RequestedAt)))
	}
	res, err := j.svc.Run(ctx, TrainRequest{Tickers: p.Tickers, UseCache: p.UseCache})
	if errors.Is(err, models.ErrInvalidInput) {
		return queue.Permanent(err)
	}
	if err != nil {
		return err
	}
	j.l.Info("training job finished", applogger.String("version", res.Version))
	return nil
}
