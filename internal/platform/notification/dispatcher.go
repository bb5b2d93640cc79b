package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DispatcherConfig controls the delivery loop.
type DispatcherConfig struct {
	Schedule    string // cron spec, e.g. "@every 1m"
	BatchSize   int
	MaxAttempts int
	// Lease is how long a claimed reminder stays with one dispatcher before
	// another may claim it again.
	Lease time.Duration
}

// Dispatcher periodically delivers due reminders by email.
type Dispatcher struct {
	store     Store
	sender    EmailSender
	templates *TemplateEngine
	cfg       DispatcherConfig
	logger    zerolog.Logger
	now       func() time.Time

	cron *cron.Cron
}

func NewDispatcher(store Store, sender EmailSender, templates *TemplateEngine, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 10 * time.Minute
	}
	return &Dispatcher{
		store:     store,
		sender:    sender,
		templates: templates,
		cfg:       cfg,
		logger:    logger.With().Str("component", "notification-dispatcher").Logger(),
		now:       time.Now,
	}
}

// Start registers the delivery job and starts the cron scheduler.
func (d *Dispatcher) Start() error {
	c := cron.New()
	_, err := c.AddFunc(d.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := d.RunOnce(ctx)
		if err != nil {
			d.logger.Error().Err(err).Msg("notification dispatch failed")
		}
		if n > 0 {
			d.logger.Info().Int("processed", n).Msg("notifications dispatched")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule dispatcher %q: %w", d.cfg.Schedule, err)
	}
	d.cron = c
	c.Start()
	d.logger.Info().Str("schedule", d.cfg.Schedule).Msg("notification dispatcher started")
	return nil
}

// Stop halts the scheduler and waits for a running job, bounded by ctx.
func (d *Dispatcher) Stop(ctx context.Context) {
	if d.cron == nil {
		return
	}
	select {
	case <-d.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce claims one batch of due reminders and attempts delivery. It returns
// how many reminders were processed, delivered or not. Each outcome is stored
// as soon as it is known, so a failure to record one reminder leaves the
// others untouched; that reminder is claimed again once its lease expires.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	due, err := d.store.ClaimDue(ctx, d.now().UTC(), d.cfg.Lease, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	var errs []error
	for _, n := range due {
		if err := d.deliver(ctx, n); err != nil {
			d.logger.Warn().Err(err).
				Str("notification_id", n.ID.String()).
				Str("patient_id", n.PatientID.String()).
				Int("attempt", n.Attempts+1).
				Msg("reminder delivery failed")
			if err := d.store.MarkAttemptFailed(ctx, n.ID, err.Error(), d.cfg.MaxAttempts); err != nil {
				errs = append(errs, fmt.Errorf("mark notification %s failed: %w", n.ID, err))
				continue
			}
		} else if err := d.store.MarkSent(ctx, n.ID, d.now().UTC()); err != nil {
			errs = append(errs, fmt.Errorf("mark notification %s sent: %w", n.ID, err))
			continue
		}
		processed++
	}
	return processed, errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, n *Due) error {
	if n.Email == "" {
		return fmt.Errorf("patient %s has no email", n.PatientID)
	}
	subject, body, err := d.templates.Render(TemplatePatientReminder, map[string]string{
		"patient_name": n.PatientName,
		"title":        n.Title,
		"body":         n.Body,
	})
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, Message{
		To:       n.Email,
		ToName:   n.PatientName,
		Subject:  subject,
		HTMLBody: body,
	})
}
