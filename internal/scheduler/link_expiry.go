package scheduler

import (
	"context"
	"time"

	"workshop_portal_backend/internal/healthchecks/service"
	"workshop_portal_backend/platform/logger"
)

const (
	defaultLinkExpiryInterval = 15 * time.Minute
	linkExpiryBatchSize       = 100
)

// LinkExpirySweeper periodically moves published checks with lapsed report
// links to expired. Runs through the orchestrator so every expiry gets an
// audit row and a status-changed event.
type LinkExpirySweeper struct {
	svc      *service.Service
	log      *logger.Logger
	interval time.Duration
}

func NewLinkExpirySweeper(svc *service.Service, log *logger.Logger, interval time.Duration) *LinkExpirySweeper {
	if interval <= 0 {
		interval = defaultLinkExpiryInterval
	}
	return &LinkExpirySweeper{
		svc:      svc,
		log:      log,
		interval: interval,
	}
}

func (s *LinkExpirySweeper) Run(ctx context.Context) {
	if s == nil || s.svc == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *LinkExpirySweeper) sweep(ctx context.Context) {
	expired, err := s.svc.ExpireOverdueLinks(ctx, linkExpiryBatchSize)
	if err != nil {
		s.log.Warn("link expiry sweep failed", "error", err)
		return
	}

	if expired > 0 {
		s.log.Info("link expiry sweep moved checks to expired", "expired", expired)
	}
}
