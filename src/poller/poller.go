// backend/src/poller/poller.go
package poller

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/username/ssnreport/backend/src/database"
	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/services"
	"github.com/username/ssnreport/backend/src/ssn"
)

// RectificationPoller reconciles presentations stuck in
// RECTIFICATION_REQUESTED against the regulator's authoritative state. It
// only runs during business hours and paces its status calls so a long
// backlog never hammers the remote API.
type RectificationPoller struct {
	svc    services.PresentationService
	client *ssn.Client

	interval  time.Duration
	startHour int
	endHour   int
	limiter   *rate.Limiter

	approved map[string]bool
	rejected map[string]bool

	now func() time.Time
}

type Config struct {
	Interval  time.Duration
	StartHour int
	EndHour   int
	ItemDelay time.Duration
	Approved  []string
	Rejected  []string
}

func NewRectificationPoller(svc services.PresentationService, client *ssn.Client, cfg Config) *RectificationPoller {
	itemDelay := cfg.ItemDelay
	if itemDelay <= 0 {
		itemDelay = time.Second
	}
	return &RectificationPoller{
		svc:       svc,
		client:    client,
		interval:  cfg.Interval,
		startHour: cfg.StartHour,
		endHour:   cfg.EndHour,
		limiter:   rate.NewLimiter(rate.Every(itemDelay), 1),
		approved:  statusSet(cfg.Approved),
		rejected:  statusSet(cfg.Rejected),
		now:       time.Now,
	}
}

func statusSet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

// Run polls on the configured interval until the context is cancelled.
func (p *RectificationPoller) Run(ctx context.Context) {
	logger.L.Info("Rectification poller started", "interval", p.interval,
		"businessHours", []int{p.startHour, p.endHour})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.L.Info("Rectification poller stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				logger.L.Error("Poller cycle failed", "error", err)
			}
		}
	}
}

// withinBusinessHours gates cycles to Monday-Friday [startHour, endHour).
func (p *RectificationPoller) withinBusinessHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return t.Hour() >= p.startHour && t.Hour() < p.endHour
}

// RunOnce executes a single reconciliation cycle. Per-item failures are
// counted and logged but never abort the batch; an authentication failure
// does, because every remaining call would fail the same way.
func (p *RectificationPoller) RunOnce(ctx context.Context) error {
	if !p.withinBusinessHours(p.now()) {
		logger.L.Debug("Skipping poller cycle outside business hours")
		return nil
	}

	pending, err := models.ListPresentationsByState(database.DB, models.StateRectificationRequested)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.L.Debug("No pending rectifications to poll")
		return nil
	}

	run := &models.PollerRun{}
	if err := run.Start(database.DB); err != nil {
		return err
	}
	logger.L.Info("Poller cycle started", "runID", run.ID, "pending", len(pending))

	for _, presentation := range pending {
		if err := p.limiter.Wait(ctx); err != nil {
			break
		}
		run.Scanned++

		resp, err := p.client.GetStatus(ctx, presentation.DeliveryKind, presentation.Cronograma)
		if err != nil {
			var authErr *ssn.AuthError
			if errors.As(err, &authErr) {
				logger.L.Error("Poller aborting cycle on authentication failure", "runID", run.ID, "error", err)
				run.Errored++
				break
			}
			logger.L.Warn("Poller status check failed", "runID", run.ID,
				"presentationID", presentation.ID, "error", err)
			run.Errored++
			continue
		}

		switch {
		case p.approved[resp.Estado]:
			if _, err := p.svc.ApplyRectificationOutcome(presentation.ID, true, string(resp.Raw)); err != nil {
				logger.L.Error("Failed to apply granted rectification", "runID", run.ID,
					"presentationID", presentation.ID, "error", err)
				run.Errored++
				continue
			}
			run.Updated++
		case p.rejected[resp.Estado]:
			if _, err := p.svc.ApplyRectificationOutcome(presentation.ID, false, string(resp.Raw)); err != nil {
				logger.L.Error("Failed to apply rejected rectification", "runID", run.ID,
					"presentationID", presentation.ID, "error", err)
				run.Errored++
				continue
			}
			run.Updated++
		default:
			// Still pending on the regulator's side; leave it for the next cycle.
			logger.L.Debug("Rectification still pending", "presentationID", presentation.ID, "estado", resp.Estado)
		}
	}

	if err := run.Finish(database.DB); err != nil {
		return err
	}
	logger.L.Info("Poller cycle finished", "runID", run.ID,
		"scanned", run.Scanned, "updated", run.Updated, "errored", run.Errored)
	return nil
}
