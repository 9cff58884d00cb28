// Package services implements the bot's business logic: the command
// orchestrator that turns parsed chat commands into stored meetings and
// reminders, the inbound pipeline in front of it, and the admin operations
// behind the read API.
//
// This file centralizes the service-level error values. Chat-facing flows
// translate them into localized replies; HTTP handlers map them to status
// codes.
package services

import "errors"

// Command errors.
var (
	// ErrGroupOnly is returned when a meeting command arrives outside a group.
	ErrGroupOnly = errors.New("command requires a group chat")

	// ErrInvalidSchedule is returned when no date/time could be read from a
	// schedule or reminder command.
	ErrInvalidSchedule = errors.New("invalid date or time")

	// ErrSelectorMissing is returned by cancel when no index or title was given.
	ErrSelectorMissing = errors.New("meeting selector missing")

	// ErrInvalidSelector is returned when a cancel index is out of range.
	ErrInvalidSelector = errors.New("meeting index out of range")

	// ErrMeetingNotFound is returned when no upcoming meeting matches a title.
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrForbidden is returned when the sender may not cancel the meeting.
	ErrForbidden = errors.New("only the creator or a group admin can cancel")

	// ErrReminderInPast is returned when a freeform reminder targets a time
	// that is not in the future.
	ErrReminderInPast = errors.New("reminder time is in the past")
)

// Admin errors.
var (
	// ErrGroupNotFound indicates that no group exists for a chat id.
	ErrGroupNotFound = errors.New("group not found")

	// ErrReminderNotFound indicates that the reminder does not exist or is no
	// longer pending.
	ErrReminderNotFound = errors.New("reminder not found")

	// ErrInvalidGroupUpdate is returned when a group patch carries an unknown
	// timezone or a non-positive lead time.
	ErrInvalidGroupUpdate = errors.New("invalid group update")
)
