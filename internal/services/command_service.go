// Package services – CommandService
//
// CommandService is the orchestrator behind every chat command. It resolves
// the group, reads dates, persists meetings and reminders, mirrors meetings
// into the calendar, and sends the group-facing messages.
//
// Handle never returns a Go error: every failure becomes a Result with
// Success=false and a localized Message the caller can reply with. Err keeps
// the underlying cause for logs and tests.
//
// Observability: Handle is OpenTelemetry-instrumented and counted in
// bot_commands_total{intent,outcome}.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-meeting-bot/internal/calendar"
	"github.com/tbourn/go-meeting-bot/internal/command"
	"github.com/tbourn/go-meeting-bot/internal/domain"
	"github.com/tbourn/go-meeting-bot/internal/notify"
	"github.com/tbourn/go-meeting-bot/internal/repo"
)

const (
	// DefaultMeetingDuration is the length given to scheduled meetings.
	DefaultMeetingDuration = 60 * time.Minute

	listLimit   = 5
	cancelLimit = 10
)

var commandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bot_commands_total",
		Help: "Chat commands handled, by intent and outcome.",
	},
	[]string{"intent", "outcome"},
)

func init() {
	prometheus.MustRegister(commandsTotal)
}

// CommandStore is the persistence contract of CommandService.
type CommandStore interface {
	GetGroupByChatID(ctx context.Context, db *gorm.DB, chatID string) (*domain.Group, error)
	CreateGroup(ctx context.Context, db *gorm.DB, g *domain.Group) error
	AddGroupMember(ctx context.Context, db *gorm.DB, groupID string, m *domain.GroupMember) error

	CreateMeeting(ctx context.Context, db *gorm.DB, m *domain.Meeting) error
	FindMeetings(ctx context.Context, db *gorm.DB, f repo.MeetingFilter) ([]domain.Meeting, error)
	DeleteMeeting(ctx context.Context, db *gorm.DB, id string) error

	CreateReminder(ctx context.Context, db *gorm.DB, r *domain.Reminder) error
}

// Messenger sends the messages produced by commands.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendHelp(ctx context.Context, to string) error
	SendConfirmation(ctx context.Context, g *domain.Group, m *domain.Meeting) error
	SendList(ctx context.Context, g *domain.Group, meetings []domain.Meeting) error
	SendCancellation(ctx context.Context, g *domain.Group, m *domain.Meeting, by string) error
	SendReminderConfirmation(ctx context.Context, r *domain.Reminder) error
}

// ImminentFirer sends a meeting's reminder right away when it starts before
// the next scheduler tick could catch it.
type ImminentFirer interface {
	FireIfImminent(ctx context.Context, g *domain.Group, m *domain.Meeting, now time.Time) (bool, error)
}

// Actor is the chat user who issued a command.
type Actor struct {
	ID   string
	Name string
}

// Display is how the actor is named in group messages.
func (a Actor) Display() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// Result is the outcome of one command.
type Result struct {
	Success  bool
	Message  string
	Meeting  *domain.Meeting
	Meetings []domain.Meeting
	Reminder *domain.Reminder
	Err      error
}

// CommandService handles parsed chat commands.
type CommandService struct {
	DB       *gorm.DB
	Store    CommandStore
	Calendar calendar.Reflector
	Messages Messenger
	Imminent ImminentFirer // optional

	// DateParser resolves dates; nil uses command.DefaultDateParser.
	DateParser command.DateParser
	// Location is the zone for new groups and direct-chat reminders.
	Location *time.Location
	// ReminderMinutes are the lead times given to new groups.
	ReminderMinutes []int
	// MeetingDuration defaults to DefaultMeetingDuration.
	MeetingDuration time.Duration

	Log zerolog.Logger
	Now func() time.Time
}

// Handle executes intent on behalf of who in groupID ("" for a direct chat).
func (s *CommandService) Handle(ctx context.Context, intent command.Intent, who Actor, groupID string) Result {
	name := intentName(intent)
	ctx, span := otel.Tracer("services/CommandService").Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("intent", name),
			attribute.String("group.id", groupID),
		),
	)
	defer span.End()

	var res Result
	switch in := intent.(type) {
	case command.ScheduleMeeting:
		res = s.schedule(ctx, in, who, groupID)
	case command.ListMeetings:
		res = s.list(ctx, groupID)
	case command.CancelMeeting:
		res = s.cancel(ctx, in, who, groupID)
	case command.FreeformReminder:
		res = s.remind(ctx, in, who, groupID)
	case command.Help:
		res = s.help(ctx, who, groupID)
	default:
		return Result{Success: true}
	}

	outcome := "ok"
	if !res.Success {
		outcome = "rejected"
		span.SetAttributes(attribute.String("error", fmt.Sprint(res.Err)))
	}
	commandsTotal.WithLabelValues(name, outcome).Inc()
	return res
}

func (s *CommandService) schedule(ctx context.Context, in command.ScheduleMeeting, who Actor, groupID string) Result {
	if groupID == "" {
		return fail(notify.MsgGroupOnly, ErrGroupOnly)
	}
	g, err := s.ensureGroup(ctx, groupID, who)
	if err != nil {
		s.Log.Error().Err(err).Str("group", groupID).Msg("resolve group")
		return fail(notify.MsgScheduleFailed, err)
	}

	start, title, err := command.ExtractSchedule(in.Text, s.now(), g.Location(s.location()), s.DateParser)
	if err != nil {
		return fail(notify.MsgInvalidDate, fmt.Errorf("%w: %v", ErrInvalidSchedule, err))
	}

	m := &domain.Meeting{
		Title:     title,
		StartTime: start,
		EndTime:   start.Add(s.duration()),
		CreatedBy: who.ID,
		GroupID:   g.ChatID,
	}

	cr := calendar.Reflect(ctx, s.Calendar, m, g.CalendarID)
	s.logCalendar(cr, "create", m)
	if cr.OK() {
		m.CalendarEventID = cr.EventID
	}

	if err := s.Store.CreateMeeting(ctx, s.DB, m); err != nil {
		s.Log.Error().Err(err).Str("group", groupID).Msg("create meeting")
		return fail(notify.MsgScheduleFailed, err)
	}

	if s.Imminent != nil {
		if _, err := s.Imminent.FireIfImminent(ctx, g, m, s.now()); err != nil {
			s.Log.Warn().Err(err).Str("meeting", m.ID).Msg("immediate reminder failed")
		}
	}

	if err := s.Messages.SendConfirmation(ctx, g, m); err != nil {
		s.Log.Error().Err(err).Str("meeting", m.ID).Msg("send confirmation")
	}
	return Result{Success: true, Message: notify.MsgScheduled, Meeting: m}
}

func (s *CommandService) list(ctx context.Context, groupID string) Result {
	if groupID == "" {
		return fail(notify.MsgGroupOnly, ErrGroupOnly)
	}
	g := s.lookupGroup(ctx, groupID)
	now := s.now()
	meetings, err := s.Store.FindMeetings(ctx, s.DB, repo.MeetingFilter{
		GroupID:   groupID,
		StartFrom: &now,
		Limit:     listLimit,
	})
	if err != nil {
		s.Log.Error().Err(err).Str("group", groupID).Msg("list meetings")
		return fail(notify.MsgListFailed, err)
	}
	if err := s.Messages.SendList(ctx, g, meetings); err != nil {
		s.Log.Error().Err(err).Str("group", groupID).Msg("send meeting list")
		return fail(notify.MsgListFailed, err)
	}
	msg := notify.MsgListSent
	if len(meetings) == 0 {
		msg = notify.MsgNoUpcoming
	}
	return Result{Success: true, Message: msg, Meetings: meetings}
}

func (s *CommandService) cancel(ctx context.Context, in command.CancelMeeting, who Actor, groupID string) Result {
	if groupID == "" {
		return fail(notify.MsgGroupOnly, ErrGroupOnly)
	}
	sel := in.Selector
	if sel.Empty() {
		return fail(notify.MsgCancelMissing, ErrSelectorMissing)
	}

	now := s.now()
	var target *domain.Meeting
	if sel.Numeric {
		upcoming, err := s.Store.FindMeetings(ctx, s.DB, repo.MeetingFilter{
			GroupID:   groupID,
			StartFrom: &now,
			Limit:     cancelLimit,
		})
		if err != nil {
			s.Log.Error().Err(err).Str("group", groupID).Msg("find meetings to cancel")
			return fail(notify.MsgCancelFailed, err)
		}
		if sel.Index < 1 || sel.Index > len(upcoming) {
			return fail(fmt.Sprintf(notify.MsgCancelInvalidIdx, len(upcoming)), ErrInvalidSelector)
		}
		target = &upcoming[sel.Index-1]
	} else {
		found, err := s.Store.FindMeetings(ctx, s.DB, repo.MeetingFilter{
			GroupID:       groupID,
			StartFrom:     &now,
			TitleContains: sel.Title,
			Limit:         1,
		})
		if err != nil {
			s.Log.Error().Err(err).Str("group", groupID).Msg("find meeting by title")
			return fail(notify.MsgCancelFailed, err)
		}
		if len(found) == 0 {
			return fail(fmt.Sprintf(notify.MsgCancelNotFound, sel.Title), ErrMeetingNotFound)
		}
		target = &found[0]
	}

	g := s.lookupGroup(ctx, groupID)
	if target.CreatedBy != who.ID && !g.IsAdmin(who.ID) {
		return fail(notify.MsgCancelForbidden, ErrForbidden)
	}

	cr := calendar.Unreflect(ctx, s.Calendar, target.CalendarEventID, g.CalendarID)
	s.logCalendar(cr, "delete", target)

	if err := s.Store.DeleteMeeting(ctx, s.DB, target.ID); err != nil {
		s.Log.Error().Err(err).Str("meeting", target.ID).Msg("delete meeting")
		return fail(notify.MsgCancelFailed, err)
	}
	if err := s.Messages.SendCancellation(ctx, g, target, who.Display()); err != nil {
		s.Log.Error().Err(err).Str("meeting", target.ID).Msg("send cancellation")
	}
	return Result{Success: true, Message: notify.MsgCancelled, Meeting: target}
}

func (s *CommandService) remind(ctx context.Context, in command.FreeformReminder, who Actor, groupID string) Result {
	loc := s.location()
	if groupID != "" {
		loc = s.lookupGroup(ctx, groupID).Location(loc)
	}
	now := s.now()
	at, _, err := command.ExtractSchedule(in.RawText, now, loc, s.DateParser)
	if err != nil {
		return fail(notify.MsgReminderBadTime, fmt.Errorf("%w: %v", ErrInvalidSchedule, err))
	}
	if !at.After(now) {
		return fail(notify.MsgReminderPast, ErrReminderInPast)
	}

	title := in.TitleHint
	if title == "" {
		title = command.DefaultReminderTitle
	}
	recipient := groupID
	if recipient == "" {
		recipient = who.ID
	}
	r := &domain.Reminder{
		ChatID:       recipient,
		MeetingTitle: title,
		MeetingTime:  at,
		CreatedBy:    who.ID,
		Timezone:     loc.String(),
	}
	if err := s.Store.CreateReminder(ctx, s.DB, r); err != nil {
		s.Log.Error().Err(err).Str("chat", recipient).Msg("create reminder")
		return fail(notify.MsgReminderFailed, err)
	}
	if err := s.Messages.SendReminderConfirmation(ctx, r); err != nil {
		s.Log.Error().Err(err).Str("reminder", r.ID).Msg("send reminder confirmation")
	}
	return Result{Success: true, Message: notify.MsgReminderScheduled, Reminder: r}
}

func (s *CommandService) help(ctx context.Context, who Actor, groupID string) Result {
	to := groupID
	if to == "" {
		to = who.ID
	}
	if err := s.Messages.SendHelp(ctx, to); err != nil {
		s.Log.Error().Err(err).Str("to", to).Msg("send help")
		return Result{Err: err}
	}
	return Result{Success: true}
}

// ensureGroup loads the group for chatID, creating it with who as admin when
// it does not exist yet. A sender who is not a member yet is added as one.
// Losing a creation race to another command reuses the winner's group.
func (s *CommandService) ensureGroup(ctx context.Context, chatID string, who Actor) (*domain.Group, error) {
	g, err := s.Store.GetGroupByChatID(ctx, s.DB, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		g = &domain.Group{
			ChatID:          chatID,
			Name:            provisionalName(chatID),
			Active:          true,
			CalendarID:      domain.DefaultCalendarID,
			Timezone:        s.location().String(),
			ReminderMinutes: datatypes.JSONSlice[int](append([]int(nil), s.ReminderMinutes...)),
			Members:         []domain.GroupMember{{MemberID: who.ID, Name: who.Name, IsAdmin: true}},
		}
		err = s.Store.CreateGroup(ctx, s.DB, g)
		switch {
		case err == nil:
			s.Log.Info().Str("group", chatID).Str("admin", who.ID).Msg("group created")
			return g, nil
		case errors.Is(err, repo.ErrDuplicate):
			g, err = s.Store.GetGroupByChatID(ctx, s.DB, chatID)
		default:
			return nil, fmt.Errorf("create group: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	if _, ok := g.Member(who.ID); !ok {
		mem := domain.GroupMember{MemberID: who.ID, Name: who.Name}
		err := s.Store.AddGroupMember(ctx, s.DB, g.ID, &mem)
		switch {
		case err == nil:
			g.Members = append(g.Members, mem)
		case errors.Is(err, repo.ErrDuplicate):
		default:
			return nil, fmt.Errorf("add member: %w", err)
		}
	}
	return g, nil
}

// lookupGroup returns the stored group, or an unsaved stand-in carrying only
// the chat id so read paths work for groups that never scheduled anything.
func (s *CommandService) lookupGroup(ctx context.Context, chatID string) *domain.Group {
	g, err := s.Store.GetGroupByChatID(ctx, s.DB, chatID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.Log.Warn().Err(err).Str("group", chatID).Msg("load group")
		}
		return &domain.Group{ChatID: chatID, CalendarID: domain.DefaultCalendarID}
	}
	return g
}

func (s *CommandService) logCalendar(r calendar.Result, op string, m *domain.Meeting) {
	switch {
	case r.OK():
		if r.EventID != "" {
			s.Log.Info().Str("op", op).Str("event", r.EventID).Str("meeting", m.ID).Msg("calendar synced")
		}
	case r.Disabled():
		s.Log.Debug().Str("op", op).Msg("calendar disabled")
	default:
		s.Log.Warn().Err(r.Err).Str("op", op).Bool("transient", r.Transient).
			Str("meeting", m.ID).Str("title", m.Title).Msg("calendar sync failed")
	}
}

func (s *CommandService) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s *CommandService) duration() time.Duration {
	if s.MeetingDuration > 0 {
		return s.MeetingDuration
	}
	return DefaultMeetingDuration
}

func (s *CommandService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func fail(msg string, err error) Result {
	return Result{Message: msg, Err: err}
}

// provisionalName is the display name of an auto-created group.
func provisionalName(chatID string) string {
	r := []rune(chatID)
	if len(r) <= 6 {
		return "Group " + chatID
	}
	return "Group " + string(r[:6]) + "..."
}

func intentName(in command.Intent) string {
	switch in.(type) {
	case command.ScheduleMeeting:
		return "schedule_meeting"
	case command.ListMeetings:
		return "list_meetings"
	case command.CancelMeeting:
		return "cancel_meeting"
	case command.FreeformReminder:
		return "freeform_reminder"
	case command.Help:
		return "help"
	}
	return "none"
}
