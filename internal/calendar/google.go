package calendar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tbourn/go-meeting-bot/internal/domain"
)

// Event reminder overrides sent to Google, independent of the bot's own
// reminders.
const (
	EmailReminderMinutes = 30
	PopupReminderMinutes = 10
)

// TokenSourceFunc resolves the OAuth token source for a call. It returns
// ErrDisabled when no credentials are available yet.
type TokenSourceFunc func(ctx context.Context) (oauth2.TokenSource, error)

// Google reflects meetings into Google Calendar.
type Google struct {
	Timezone string // IANA zone used for event start/end
	Tokens   TokenSourceFunc
	Timeout  time.Duration

	// extra client options, appended last (tests point these at httptest)
	opts []option.ClientOption
}

// NewGoogle builds a Google reflector. opts are applied after the OAuth
// client, so option.WithHTTPClient/WithEndpoint override it.
func NewGoogle(timezone string, tokens TokenSourceFunc, opts ...option.ClientOption) *Google {
	return &Google{Timezone: timezone, Tokens: tokens, Timeout: 15 * time.Second, opts: opts}
}

func (g *Google) service(ctx context.Context) (*gcal.Service, error) {
	if g.Tokens == nil {
		return nil, ErrDisabled
	}
	ts, err := g.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	base := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   g.Timeout,
	}
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, g.opts...)
	return gcal.NewService(ctx, opts...)
}

// Upsert implements Reflector.
func (g *Google) Upsert(ctx context.Context, m *domain.Meeting, calendarID string) (eventID string, err error) {
	calendarID = calendarOrPrimary(calendarID)
	ctx, span := otel.Tracer("calendar/google").Start(ctx, "Upsert",
		trace.WithAttributes(
			attribute.String("meeting.id", m.ID),
			attribute.String("calendar.id", calendarID),
			attribute.Bool("update", m.CalendarEventID != ""),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	svc, err := g.service(ctx)
	if err != nil {
		return "", err
	}
	ev := g.event(m)

	if m.CalendarEventID != "" {
		out, err := svc.Events.Update(calendarID, m.CalendarEventID, ev).SendUpdates("all").Context(ctx).Do()
		if err == nil {
			return out.Id, nil
		}
		if !isGone(err) {
			return "", fmt.Errorf("update event: %w", err)
		}
		// Deleted on the calendar side; recreate it.
	}
	out, err := svc.Events.Insert(calendarID, ev).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return out.Id, nil
}

// Remove implements Reflector.
func (g *Google) Remove(ctx context.Context, eventID, calendarID string) (err error) {
	calendarID = calendarOrPrimary(calendarID)
	ctx, span := otel.Tracer("calendar/google").Start(ctx, "Remove",
		trace.WithAttributes(attribute.String("calendar.id", calendarID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	svc, err := g.service(ctx)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(calendarID, eventID).SendUpdates("all").Context(ctx).Do(); err != nil && !isGone(err) {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (g *Google) event(m *domain.Meeting) *gcal.Event {
	loc := time.UTC
	if g.Timezone != "" {
		if l, err := time.LoadLocation(g.Timezone); err == nil {
			loc = l
		}
	}
	desc := m.Description
	if desc == "" {
		desc = fmt.Sprintf("Pertemuan yang dibuat oleh %s di grup WhatsApp", m.CreatedBy)
	}
	ev := &gcal.Event{
		Summary:     m.Title,
		Description: desc,
		Start:       &gcal.EventDateTime{DateTime: m.StartTime.In(loc).Format(time.RFC3339), TimeZone: loc.String()},
		End:         &gcal.EventDateTime{DateTime: m.EndTime.In(loc).Format(time.RFC3339), TimeZone: loc.String()},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: EmailReminderMinutes},
				{Method: "popup", Minutes: PopupReminderMinutes},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	for _, a := range m.Attendees {
		if a = strings.TrimSpace(a); strings.Contains(a, "@") {
			ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: a})
		}
	}
	return ev
}

// IsTransient reports whether err is a rate limit, a server error or a
// timeout.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrDisabled) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}

func calendarOrPrimary(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return domain.DefaultCalendarID
	}
	return id
}
