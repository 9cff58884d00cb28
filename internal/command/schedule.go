package command

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned when no date/time can be resolved from text.
var ErrInvalidDate = errors.New("invalid date")

// DefaultTitle is used when a schedule command carries no title.
const DefaultTitle = "Pertemuan"

// DefaultReminderTitle is used when a freeform reminder names no title.
const DefaultReminderTitle = "Meeting"

// ExtractSchedule resolves the first date/time phrase in text relative to ref
// (interpreted in loc) and returns it together with the title: the rest of
// the text with the matched span removed and whitespace collapsed.
func ExtractSchedule(text string, ref time.Time, loc *time.Location, dp DateParser) (time.Time, string, error) {
	if loc == nil {
		loc = time.UTC
	}
	if dp == nil {
		dp = DefaultDateParser()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, "", ErrInvalidDate
	}
	m, ok := dp.Parse(text, ref.In(loc))
	if !ok || m.Invalid {
		return time.Time{}, "", ErrInvalidDate
	}

	title := text
	if m.Index >= 0 && m.Index+len(m.Text) <= len(text) && text[m.Index:m.Index+len(m.Text)] == m.Text {
		title = text[:m.Index] + " " + text[m.Index+len(m.Text):]
	} else {
		title = strings.Replace(text, m.Text, " ", 1)
	}
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		title = DefaultTitle
	}
	return m.Time, title, nil
}

// Selector identifies the meeting a cancel command targets: a 1-based Index
// into the upcoming list, or a case-insensitive Title substring. The zero
// value means nothing was given.
type Selector struct {
	Index int
	Title string
	// Numeric is true when the first token parsed as an integer, even a
	// non-positive one; Index then carries its value.
	Numeric bool
}

// Empty reports whether no selector was supplied.
func (s Selector) Empty() bool {
	return !s.Numeric && s.Title == ""
}

// ParseSelector reads the cancel target from the text after the command.
func ParseSelector(rest string) Selector {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return Selector{}
	}
	first := strings.Fields(rest)[0]
	if n, err := strconv.Atoi(first); err == nil {
		return Selector{Index: n, Numeric: true}
	}
	return Selector{Title: rest}
}
