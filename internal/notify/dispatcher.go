// Package notify formats the bot's chat messages and sends them through a
// chat.Sender.
//
// Send errors are always returned to the caller. The scheduler relies on
// this: a reminder flag is only raised after its message went out.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-meeting-bot/internal/chat"
	"github.com/tbourn/go-meeting-bot/internal/domain"
)

// Window names the two fixed notices of a freeform reminder.
type Window int

const (
	WindowOneDay Window = iota + 1
	WindowThirtyMinutes
)

func (w Window) String() string {
	switch w {
	case WindowOneDay:
		return "one_day"
	case WindowThirtyMinutes:
		return "thirty_minutes"
	}
	return "unknown"
}

// Dispatcher renders and sends messages.
type Dispatcher struct {
	Sender   chat.Sender
	Location *time.Location // used when a group has no valid timezone
	Log      zerolog.Logger
}

// New returns a Dispatcher for sender.
func New(sender chat.Sender, loc *time.Location, log zerolog.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{Sender: sender, Location: loc, Log: log}
}

// SendText sends body as is.
func (d *Dispatcher) SendText(ctx context.Context, to, body string) error {
	id, err := d.Sender.SendText(ctx, to, body)
	if err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	d.Log.Debug().Str("to", to).Str("delivery_id", id).Msg("message sent")
	return nil
}

// SendConfirmation announces a newly scheduled meeting to its group.
func (d *Dispatcher) SendConfirmation(ctx context.Context, g *domain.Group, m *domain.Meeting) error {
	loc := g.Location(d.Location)
	var b strings.Builder
	b.WriteString("✅ *PERTEMUAN TELAH DIJADWALKAN* ✅\n\n")
	fmt.Fprintf(&b, "*%s*\n", m.Title)
	fmt.Fprintf(&b, "📅 %s\n", FormatDate(m.StartTime, loc))
	fmt.Fprintf(&b, "⏰ %s - %s\n\n", FormatClock(m.StartTime, loc), FormatClock(m.EndTime, loc))
	if m.Description != "" {
		fmt.Fprintf(&b, "📝 %s\n\n", m.Description)
	}
	if m.CalendarEventID != "" {
		b.WriteString("Pertemuan ini telah ditambahkan ke Google Calendar. ")
	}
	fmt.Fprintf(&b, "Anda akan menerima pengingat %s sebelum pertemuan dimulai.", joinLeads(g.LeadTimes()))
	return d.SendText(ctx, g.ChatID, b.String())
}

// SendMeetingReminder sends the lead-time reminder for a group meeting.
func (d *Dispatcher) SendMeetingReminder(ctx context.Context, g *domain.Group, m *domain.Meeting) error {
	loc := g.Location(d.Location)
	var b strings.Builder
	b.WriteString("🔔 *PENGINGAT PERTEMUAN* 🔔\n\n")
	fmt.Fprintf(&b, "*%s*\n", m.Title)
	fmt.Fprintf(&b, "📅 %s\n", FormatDate(m.StartTime, loc))
	fmt.Fprintf(&b, "⏰ %s\n\n", FormatClock(m.StartTime, loc))
	if m.Description != "" {
		fmt.Fprintf(&b, "📝 %s\n\n", m.Description)
	}
	b.WriteString("Jangan lupa untuk hadir tepat waktu!")
	return d.SendText(ctx, g.ChatID, b.String())
}

// SendReminder sends one notice of a freeform reminder to its chat.
func (d *Dispatcher) SendReminder(ctx context.Context, r *domain.Reminder, w Window) error {
	var b strings.Builder
	b.WriteString("🔔 *PENGINGAT MEETING*\n\n")
	fmt.Fprintf(&b, "Judul: %s\n", r.MeetingTitle)
	fmt.Fprintf(&b, "Waktu: %s\n\n", FormatDateTime(r.MeetingTime, r.Location(d.Location)))
	switch w {
	case WindowOneDay:
		b.WriteString("Meeting dimulai dalam 1 hari. ")
	case WindowThirtyMinutes:
		b.WriteString("Meeting dimulai dalam 30 menit. ")
	}
	b.WriteString("Jangan telat ya!")
	return d.SendText(ctx, r.ChatID, b.String())
}

// SendList sends the numbered upcoming-meeting list, or the "no meetings"
// notice when meetings is empty.
func (d *Dispatcher) SendList(ctx context.Context, g *domain.Group, meetings []domain.Meeting) error {
	if len(meetings) == 0 {
		return d.SendText(ctx, g.ChatID, MsgNoUpcoming)
	}
	loc := g.Location(d.Location)
	var b strings.Builder
	b.WriteString("*DAFTAR PERTEMUAN MENDATANG*\n\n")
	for i, m := range meetings {
		fmt.Fprintf(&b, "%d. *%s*\n", i+1, m.Title)
		fmt.Fprintf(&b, "   📅 %s\n", FormatDate(m.StartTime, loc))
		fmt.Fprintf(&b, "   ⏰ %s\n\n", FormatClock(m.StartTime, loc))
	}
	return d.SendText(ctx, g.ChatID, strings.TrimRight(b.String(), "\n"))
}

// SendCancellation tells the group that by cancelled m.
func (d *Dispatcher) SendCancellation(ctx context.Context, g *domain.Group, m *domain.Meeting, by string) error {
	loc := g.Location(d.Location)
	body := fmt.Sprintf("❌ *PERTEMUAN DIBATALKAN* ❌\n\n*%s* yang dijadwalkan pada %s telah dibatalkan oleh %s.",
		m.Title, FormatDateTime(m.StartTime, loc), by)
	return d.SendText(ctx, g.ChatID, body)
}

// SendReminderConfirmation acknowledges a freeform reminder.
func (d *Dispatcher) SendReminderConfirmation(ctx context.Context, r *domain.Reminder) error {
	body := fmt.Sprintf("✅ Saya akan mengingatkan untuk %s pada %s. Saya akan mengirim pengingat 1 hari dan 30 menit sebelum jadwal.",
		r.MeetingTitle, FormatDateTime(r.MeetingTime, r.Location(d.Location)))
	return d.SendText(ctx, r.ChatID, body)
}

// SendHelp sends the command overview.
func (d *Dispatcher) SendHelp(ctx context.Context, to string) error {
	return d.SendText(ctx, to, helpText)
}

// joinLeads renders lead times as "30 menit", "1 hari dan 30 menit", ...
func joinLeads(leads []int) string {
	parts := make([]string, 0, len(leads))
	for i := len(leads) - 1; i >= 0; i-- {
		parts = append(parts, formatLead(leads[i]))
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " dan " + parts[len(parts)-1]
}

func formatLead(min int) string {
	switch {
	case min%(24*60) == 0:
		return fmt.Sprintf("%d hari", min/(24*60))
	case min%60 == 0:
		return fmt.Sprintf("%d jam", min/60)
	}
	return fmt.Sprintf("%d menit", min)
}
