package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Notification statuses stored in scheduled_notification.status.
const (
	StatusPending = "pending"
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notifier schedules a reminder for a patient at a future (or past) instant.
type Notifier interface {
	ScheduleNotification(ctx context.Context, patientID uuid.UUID, title, body string, firesAt time.Time) error
}

// Scheduled is a persisted reminder.
type Scheduled struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"patient_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	FiresAt   time.Time  `json:"fires_at"`
	Status    string     `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError *string    `json:"last_error,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Due is a claimed reminder joined with the recipient's contact details.
type Due struct {
	Scheduled
	Email       string
	PatientName string
}

// Store persists scheduled reminders.
type Store interface {
	// Insert stores n. A reminder with the same patient, title and fire time
	// already present is left untouched.
	Insert(ctx context.Context, n *Scheduled) error
	// ClaimDue moves up to limit reminders due at or before now to sending
	// and returns them. A row left in sending for longer than lease is
	// claimed again. The claim commits on its own; no transaction is held
	// while the caller delivers.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*Due, error)
	// MarkSent completes a claimed reminder.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkAttemptFailed records the error on a claimed reminder and returns it
	// to pending, or to failed once attempts reach maxAttempts.
	MarkAttemptFailed(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Scheduled, error)
	// DeletePending removes the patient's pending reminders with the given
	// title, except one firing at keep. Claimed or finished rows stay.
	DeletePending(ctx context.Context, patientID uuid.UUID, title string, keep time.Time) (int64, error)
}

// Scheduler is the Postgres-backed Notifier.
type Scheduler struct {
	store Store
}

func NewScheduler(store Store) *Scheduler {
	return &Scheduler{store: store}
}

func (s *Scheduler) ScheduleNotification(ctx context.Context, patientID uuid.UUID, title, body string, firesAt time.Time) error {
	if patientID == uuid.Nil {
		return errors.New("patient id is required")
	}
	if strings.TrimSpace(title) == "" {
		return errors.New("title is required")
	}
	if firesAt.IsZero() {
		return errors.New("fire time is required")
	}
	return s.store.Insert(ctx, &Scheduled{
		PatientID: patientID,
		Title:     title,
		Body:      body,
		FiresAt:   firesAt.UTC(),
		Status:    StatusPending,
	})
}

// ListForPatient returns the reminders scheduled for a patient, soonest first.
func (s *Scheduler) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Scheduled, error) {
	return s.store.ListByPatient(ctx, patientID)
}

// CancelPending drops the patient's not yet delivered reminders titled title,
// other than the one firing at keep. It returns how many were dropped.
func (s *Scheduler) CancelPending(ctx context.Context, patientID uuid.UUID, title string, keep time.Time) (int64, error) {
	return s.store.DeletePending(ctx, patientID, title, keep.UTC())
}
