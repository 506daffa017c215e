package reminder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthvault/vault/internal/platform/lock"
	"github.com/healthvault/vault/internal/platform/notification"
)

// Clock abstracts time for the dispatcher.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// bodyTimeLayout renders the scheduled time the way the reminder was
// presented in the app.
const bodyTimeLayout = "1/2/2006, 3:04:05 PM"

// Outcome of one reminder within a tick.
const (
	OutcomeSent        = "sent"
	OutcomeNotSMS      = "not_sms"
	OutcomeNoPhone     = "no_phone"
	OutcomeUnavailable = "gateway_unavailable"
	OutcomeFailed      = "failed"
)

// TickResult summarizes one dispatch pass.
type TickResult struct {
	From     time.Time         `json:"from"`
	To       time.Time         `json:"to"`
	Skipped  bool              `json:"skipped"`
	Due      int               `json:"due"`
	Outcomes map[string]string `json:"outcomes"`
}

// Count returns how many reminders ended with outcome.
func (r *TickResult) Count(outcome string) int {
	n := 0
	for _, o := range r.Outcomes {
		if o == outcome {
			n++
		}
	}
	return n
}

// Dispatcher polls for due reminders and delivers them by SMS.
type Dispatcher struct {
	repo   Repository
	sms    notification.SMSGateway
	logger zerolog.Logger

	// Clock supplies the current time for each tick.
	Clock Clock
	// Locker guards a tick across replicas. The default grants every lock.
	Locker lock.Locker
	// Interval is the polling period.
	Interval time.Duration
	// Grace is how far before now a reminder may be scheduled and still be
	// picked up.
	Grace time.Duration
	// Location formats the scheduled time in the SMS body.
	Location *time.Location
}

func NewDispatcher(repo Repository, sms notification.SMSGateway, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		sms:      sms,
		logger:   logger.With().Str("component", "reminder-dispatcher").Logger(),
		Clock:    systemClock{},
		Locker:   lock.Noop{},
		Interval: time.Minute,
		Grace:    60 * time.Second,
		Location: time.Local,
	}
}

// Start runs a tick every Interval until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.Interval).Dur("grace", d.Grace).Msg("reminder dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("reminder dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.Tick(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error().Err(err).Msg("reminder tick failed")
			}
		}
	}
}

// Tick dispatches every Pending reminder scheduled in [now-Grace, now].
// Per-reminder failures are logged and do not stop the batch; only a failed
// query is returned as an error.
func (d *Dispatcher) Tick(ctx context.Context) (*TickResult, error) {
	now := d.Clock.Now()
	res := &TickResult{From: now.Add(-d.Grace), To: now, Outcomes: map[string]string{}}

	key := "reminders:tick:" + strconv.FormatInt(now.Truncate(d.lockWindow()).Unix(), 10)
	ok, err := d.Locker.Acquire(ctx, key, d.lockWindow())
	if err != nil {
		d.logger.Warn().Err(err).Msg("tick lock unavailable, dispatching without it")
	} else if !ok {
		d.logger.Debug().Str("key", key).Msg("tick owned by another instance")
		res.Skipped = true
		return res, nil
	}

	due, err := d.repo.ListDue(ctx, res.From, res.To)
	if err != nil {
		return res, fmt.Errorf("list due reminders: %w", err)
	}
	res.Due = len(due)
	d.logger.Debug().Time("from", res.From).Time("to", res.To).Int("due", len(due)).Msg("checking due reminders")

	for _, item := range due {
		res.Outcomes[item.Reminder.ID.String()] = d.dispatch(ctx, item, now)
	}
	return res, nil
}

func (d *Dispatcher) lockWindow() time.Duration {
	if d.Interval < time.Second {
		return time.Second
	}
	return d.Interval
}

func (d *Dispatcher) dispatch(ctx context.Context, item *Due, now time.Time) string {
	rem := item.Reminder
	log := d.logger.With().Str("reminder", rem.ID.String()).Str("user", item.Owner.UserID.String()).Logger()

	if !rem.WantsSMS() {
		return OutcomeNotSMS
	}
	if item.Owner.Phone == nil || *item.Owner.Phone == "" {
		log.Warn().Msg("owner has no phone number, skipping sms")
		return OutcomeNoPhone
	}
	if !d.sms.Available() {
		log.Warn().Msg("sms gateway is not configured, skipping sms")
		return OutcomeUnavailable
	}

	to := *item.Owner.Phone
	body := d.Body(rem)
	receipt, err := d.sms.SendSMS(ctx, to, body)
	if errors.Is(err, notification.ErrGatewayUnavailable) {
		log.Warn().Msg("sms gateway is not configured, skipping sms")
		return OutcomeUnavailable
	}
	if err != nil {
		log.Error().Err(err).Msg("send reminder sms")
		return OutcomeFailed
	}

	sent := LastSent{
		Channel: ChannelSMS,
		SID:     receipt.SID,
		Status:  receipt.Status,
		To:      receipt.To,
		Body:    body,
		SentAt:  now.UTC(),
	}
	if sent.To == "" {
		sent.To = to
	}
	if err := d.repo.MarkSent(ctx, rem.ID, sent, rem.Recurrence == RecurrenceOnce); err != nil {
		log.Error().Err(err).Str("sid", receipt.SID).Msg("record reminder delivery")
		return OutcomeFailed
	}
	log.Info().Str("sid", receipt.SID).Str("status", receipt.Status).Msg("reminder sms sent")
	return OutcomeSent
}

// Body is the SMS text for rem.
func (d *Dispatcher) Body(rem *Reminder) string {
	desc := ""
	if rem.Description != nil && *rem.Description != "" {
		desc = " " + *rem.Description + "."
	}
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	return fmt.Sprintf("Smart Health Vault Reminder: %s.%s Scheduled for %s.",
		rem.Title, desc, rem.ScheduledFor.In(loc).Format(bodyTimeLayout))
}
