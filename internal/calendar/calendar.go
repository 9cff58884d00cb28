// Package calendar mirrors meetings into an external calendar on a
// best-effort basis.
//
// The reflector is never allowed to block local scheduling: callers use
// Reflect and Unreflect, which turn every outcome into a Result that is
// logged by the orchestrator rather than returned as a hard failure.
package calendar

import (
	"context"
	"errors"

	"github.com/tbourn/go-meeting-bot/internal/domain"
)

// ErrDisabled is returned by reflectors that have no credentials.
var ErrDisabled = errors.New("calendar disabled")

// Reflector upserts and removes calendar events for meetings.
type Reflector interface {
	// Upsert creates the event when m has no CalendarEventID and updates it
	// otherwise. It returns the event id.
	Upsert(ctx context.Context, m *domain.Meeting, calendarID string) (string, error)
	// Remove deletes an event. Missing events are not an error.
	Remove(ctx context.Context, eventID, calendarID string) error
}

// Result is the outcome of one reflection attempt.
type Result struct {
	EventID   string
	Err       error
	Transient bool // Err is worth retrying (rate limit, 5xx, timeout)
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Disabled reports whether the call was skipped for lack of credentials.
func (r Result) Disabled() bool { return errors.Is(r.Err, ErrDisabled) }

// Reflect upserts m and reports the outcome.
func Reflect(ctx context.Context, r Reflector, m *domain.Meeting, calendarID string) Result {
	if r == nil {
		return Result{Err: ErrDisabled}
	}
	id, err := r.Upsert(ctx, m, calendarID)
	if err != nil {
		return Result{Err: err, Transient: IsTransient(err)}
	}
	return Result{EventID: id}
}

// Unreflect removes eventID when set. An empty id is a successful no-op.
func Unreflect(ctx context.Context, r Reflector, eventID, calendarID string) Result {
	if eventID == "" {
		return Result{}
	}
	if r == nil {
		return Result{EventID: eventID, Err: ErrDisabled}
	}
	if err := r.Remove(ctx, eventID, calendarID); err != nil {
		return Result{EventID: eventID, Err: err, Transient: IsTransient(err)}
	}
	return Result{EventID: eventID}
}

// Nop is the reflector used when no Google credentials are configured.
type Nop struct{}

// Upsert implements Reflector.
func (Nop) Upsert(context.Context, *domain.Meeting, string) (string, error) { return "", ErrDisabled }

// Remove implements Reflector.
func (Nop) Remove(context.Context, string, string) error { return ErrDisabled }
