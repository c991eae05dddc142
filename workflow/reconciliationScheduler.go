package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/models"
	"github.com/karibu/produce_backend/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReconciliationScheduler runs the stock drift check on a cron schedule.
type ReconciliationScheduler struct {
	cron   *cron.Cron
	logger *logrus.Logger

	mu      sync.Mutex
	running bool
	// LastRun holds the correlation id of the most recent completed run.
	LastRun string
}

// NewReconciliationScheduler returns nil when spec is empty (scheduling disabled).
func NewReconciliationScheduler(spec string, logger *logrus.Logger) (*ReconciliationScheduler, error) {
	if spec == "" {
		return nil, nil
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	s := &ReconciliationScheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ReconciliationScheduler) Start() {
	s.cron.Start()
	s.logger.WithField("entries", len(s.cron.Entries())).Info("reconciliation scheduler started")
}

// Stop waits for a running check to finish or ctx to expire.
func (s *ReconciliationScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// RunOnce performs one drift check. Overlapping runs are skipped.
func (s *ReconciliationScheduler) RunOnce(ctx context.Context) (int, bool) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("reconciliation already running, skipping")
		return 0, false
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx = utils.SetCorrelationIdInContext(ctx, "cron-"+uuid.NewString())
	var cid string
	var findings []models.ReconciliationReport
	err := withJobLock(config.GetDB(), "stock-reconcile", func() error {
		var runErr error
		cid, findings, runErr = models.RunStockReconciliationChecks(ctx)
		return runErr
	})
	if errors.Is(err, errJobLockBusy) {
		s.logger.Info("reconciliation running on another instance, skipping")
		return 0, false
	}
	if err != nil {
		config.LogError(s.logger, "ReconciliationScheduler", "RunOnce", "run checks", cid, err)
		return 0, false
	}
	if len(findings) > 0 {
		s.logger.WithFields(logrus.Fields{
			"correlation_id": cid,
			"findings":       len(findings),
		}).Warn("stock drift detected")
	}
	s.mu.Lock()
	s.LastRun = cid
	s.mu.Unlock()
	return len(findings), true
}
