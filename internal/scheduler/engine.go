// Package scheduler runs the reminder engine: a single ticker that collects
// every notification due at the current instant, sends it, and records that
// it was sent.
//
// Two kinds of work share the loop. Group meetings fire once when their start
// time falls inside the window around one of the group's lead times; freeform
// reminders send a one-day and a thirty-minute notice. For every item the
// order is dispatch, then flag, then persist, so a failed send is retried on
// the next tick and a successful one is never repeated.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-meeting-bot/internal/domain"
	"github.com/tbourn/go-meeting-bot/internal/notify"
	"github.com/tbourn/go-meeting-bot/internal/repo"
)

const (
	// DefaultInterval is the tick period used when Engine.Interval is unset.
	DefaultInterval = 60 * time.Second
	// DefaultWindow is the tolerance around a lead time.
	DefaultWindow = 60 * time.Second
)

// Store is the persistence contract of the engine.
type Store interface {
	ListActiveGroups(ctx context.Context, db *gorm.DB) ([]domain.Group, error)
	FindMeetings(ctx context.Context, db *gorm.DB, f repo.MeetingFilter) ([]domain.Meeting, error)
	GetMeeting(ctx context.Context, db *gorm.DB, id string) (*domain.Meeting, error)
	UpdateMeeting(ctx context.Context, db *gorm.DB, m *domain.Meeting) error
	FindDueReminders(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Reminder, error)
	UpdateReminder(ctx context.Context, db *gorm.DB, r *domain.Reminder) error
	PurgeProcessedMessages(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

// Notifier delivers reminder messages.
type Notifier interface {
	SendMeetingReminder(ctx context.Context, g *domain.Group, m *domain.Meeting) error
	SendReminder(ctx context.Context, r *domain.Reminder, w notify.Window) error
}

// DueNotification is one unit of work found by a tick: either a
// GroupMeetingLead or a FixedSchedule.
type DueNotification interface {
	Kind() string
	due()
}

// GroupMeetingLead is a group meeting whose start matched one of the group's
// lead times.
type GroupMeetingLead struct {
	Group       *domain.Group
	Meeting     domain.Meeting
	LeadMinutes int
}

// Kind implements DueNotification.
func (GroupMeetingLead) Kind() string { return "group_meeting" }
func (GroupMeetingLead) due()         {}

// FixedSchedule is a freeform reminder with at least one notice due.
type FixedSchedule struct {
	Reminder domain.Reminder
}

// Kind implements DueNotification.
func (FixedSchedule) Kind() string { return "fixed_schedule" }
func (FixedSchedule) due()         {}

// Stats summarizes one tick.
type Stats struct {
	Due    int
	Sent   int
	Failed int
	Purged int64
}

// Engine is the reminder scheduler. Build it once and either call Run or
// drive Tick yourself.
type Engine struct {
	DB       *gorm.DB
	Store    Store
	Notifier Notifier
	Log      zerolog.Logger

	Interval time.Duration
	Window   time.Duration
	Now      func() time.Time

	mu sync.Mutex // serializes ticks and immediate fires
}

// Run ticks once immediately, then every Interval until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	e.Log.Info().Dur("interval", interval).Msg("scheduler started")

	e.safeTick(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			e.Log.Info().Msg("scheduler stopped")
			return nil
		case <-t.C:
			e.safeTick(ctx)
		}
	}
}

func (e *Engine) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.Log.Error().Interface("panic", r).Msg("scheduler tick panicked")
		}
	}()
	e.Tick(ctx, e.now())
}

// Tick collects everything due at now and processes each item on its own.
// Per-item failures are logged and counted; they never abort the tick.
func (e *Engine) Tick(ctx context.Context, now time.Time) Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := otel.Tracer("scheduler").Start(ctx, "Tick",
		trace.WithAttributes(attribute.String("now", now.UTC().Format(time.RFC3339))))
	defer span.End()

	var st Stats
	items := e.Collect(ctx, now)
	st.Due = len(items)
	dueItems.Set(float64(st.Due))

	for _, n := range items {
		if err := e.process(ctx, n, now); err != nil {
			st.Failed++
			continue
		}
		st.Sent++
	}

	purged, err := e.Store.PurgeProcessedMessages(ctx, e.DB, now)
	if err != nil {
		e.Log.Warn().Err(err).Msg("purge processed messages")
	}
	st.Purged = purged

	span.SetAttributes(
		attribute.Int("due", st.Due),
		attribute.Int("sent", st.Sent),
		attribute.Int("failed", st.Failed),
	)
	if st.Failed > 0 {
		span.SetStatus(codes.Error, "some notifications failed")
	}
	if st.Due > 0 {
		e.Log.Info().Int("due", st.Due).Int("sent", st.Sent).Int("failed", st.Failed).Msg("scheduler tick")
	}
	return st
}

// Collect returns the notifications due at now: group meetings first, in
// group order, then freeform reminders by meeting time. A meeting matched by
// several lead times is returned once, for the smallest lead.
func (e *Engine) Collect(ctx context.Context, now time.Time) []DueNotification {
	var out []DueNotification

	groups, err := e.Store.ListActiveGroups(ctx, e.DB)
	if err != nil {
		e.Log.Error().Err(err).Msg("list active groups")
	}
	window := e.window()
	notSent := false
	for i := range groups {
		g := &groups[i]
		seen := make(map[string]struct{})
		for _, lead := range g.LeadTimes() {
			at := now.Add(time.Duration(lead) * time.Minute)
			from, to := at.Add(-window), at.Add(window)
			meetings, err := e.Store.FindMeetings(ctx, e.DB, repo.MeetingFilter{
				GroupID:      g.ChatID,
				StartFrom:    &from,
				StartTo:      &to,
				ReminderSent: &notSent,
			})
			if err != nil {
				e.Log.Error().Err(err).Str("group", g.ChatID).Int("lead_minutes", lead).Msg("find meetings")
				break
			}
			for _, m := range meetings {
				if _, dup := seen[m.ID]; dup {
					continue
				}
				seen[m.ID] = struct{}{}
				out = append(out, GroupMeetingLead{Group: g, Meeting: m, LeadMinutes: lead})
			}
		}
	}

	reminders, err := e.Store.FindDueReminders(ctx, e.DB, now)
	if err != nil {
		e.Log.Error().Err(err).Msg("find due reminders")
	}
	for _, r := range reminders {
		out = append(out, FixedSchedule{Reminder: r})
	}
	return out
}

// FireIfImminent sends the group reminder right away when m starts within
// the window after now. The meeting is reloaded under the engine lock, so a
// reminder a tick already recorded is not sent again. It reports whether
// the reminder was sent; m is updated from the stored row.
func (e *Engine) FireIfImminent(ctx context.Context, g *domain.Group, m *domain.Meeting, now time.Time) (bool, error) {
	diff := m.StartTime.Sub(now)
	if diff <= 0 || diff > e.window() || m.ReminderSent {
		return false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, err := e.Store.GetMeeting(ctx, e.DB, m.ID)
	if err != nil {
		return false, fmt.Errorf("reload meeting %s: %w", m.ID, err)
	}
	*m = *cur
	if m.ReminderSent {
		return false, nil
	}
	if err := e.fireMeeting(ctx, g, m); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) process(ctx context.Context, n DueNotification, now time.Time) error {
	switch v := n.(type) {
	case GroupMeetingLead:
		m := v.Meeting
		err := e.fireMeeting(ctx, v.Group, &m)
		if err != nil {
			e.Log.Error().Err(err).Str("meeting", m.ID).Str("group", v.Group.ChatID).
				Int("lead_minutes", v.LeadMinutes).Msg("meeting reminder failed")
		}
		return err
	case FixedSchedule:
		r := v.Reminder
		err := e.fireReminder(ctx, &r, now)
		if err != nil {
			e.Log.Error().Err(err).Str("reminder", r.ID).Str("chat", r.ChatID).Msg("reminder notice failed")
		}
		return err
	}
	return fmt.Errorf("unknown notification %T", n)
}

func (e *Engine) fireMeeting(ctx context.Context, g *domain.Group, m *domain.Meeting) error {
	kind := GroupMeetingLead{}.Kind()
	if err := e.Notifier.SendMeetingReminder(ctx, g, m); err != nil {
		notifications.WithLabelValues(kind, outcomeSendFailed).Inc()
		return err
	}
	m.ReminderSent = true
	if err := e.Store.UpdateMeeting(ctx, e.DB, m); err != nil {
		notifications.WithLabelValues(kind, outcomePersistFailed).Inc()
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("meeting %s deleted before its reminder was recorded: %w", m.ID, err)
		}
		return fmt.Errorf("persist meeting %s: %w", m.ID, err)
	}
	notifications.WithLabelValues(kind, outcomeSent).Inc()
	return nil
}

// fireReminder sends whichever notices of r are due and persists the raised
// flags once, even when the other notice failed.
func (e *Engine) fireReminder(ctx context.Context, r *domain.Reminder, now time.Time) error {
	kind := FixedSchedule{}.Kind()
	until := r.MeetingTime.Sub(now)
	if r.Terminal() || until <= 0 {
		return nil
	}

	var errs []error
	changed := false
	send := func(w notify.Window) bool {
		if err := e.Notifier.SendReminder(ctx, r, w); err != nil {
			notifications.WithLabelValues(kind, outcomeSendFailed).Inc()
			errs = append(errs, fmt.Errorf("%s notice: %w", w, err))
			return false
		}
		changed = true
		return true
	}
	if !r.SentOneDay && until <= repo.OneDayAhead {
		r.SentOneDay = send(notify.WindowOneDay)
	}
	if !r.SentThirtyMinutes && until <= repo.ThirtyMinutesAhead {
		r.SentThirtyMinutes = send(notify.WindowThirtyMinutes)
	}
	if !changed {
		return errors.Join(errs...)
	}

	r.Settle()
	if err := e.Store.UpdateReminder(ctx, e.DB, r); err != nil {
		notifications.WithLabelValues(kind, outcomePersistFailed).Inc()
		errs = append(errs, fmt.Errorf("persist reminder %s: %w", r.ID, err))
		return errors.Join(errs...)
	}
	notifications.WithLabelValues(kind, outcomeSent).Inc()
	return errors.Join(errs...)
}

func (e *Engine) window() time.Duration {
	if e.Window > 0 {
		return e.Window
	}
	return DefaultWindow
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
