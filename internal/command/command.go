// Package command turns raw chat text into scheduling intents.
//
// Recognition is prefix-based: a fixed set of command tokens
// (set-meeting, list-meetings, cancel-meeting, help) accepted with either a
// slash ("/") or an at-mention ("@") marker. Messages that address the bot by
// mention, or carry "/reminder", are additionally tested against a looser
// conversational phrase ("ingetin untuk <judul> jam ...") that yields a
// freeform reminder.
//
// The parser never fails: anything it does not understand becomes None.
// Date resolution is delegated to a DateParser (see dateparse.go) and only
// happens later, in ExtractSchedule, so that the orchestrator owns the
// user-facing error for an unparseable date.
package command

import (
	"regexp"
	"strings"
)

// Intent is the sealed set of actions a chat message can request.
type Intent interface {
	isIntent()
}

// ScheduleMeeting asks for a new meeting. Text is everything after the token
// and still contains both the date/time phrase and the title.
type ScheduleMeeting struct {
	Text string
}

// ListMeetings asks for the group's upcoming meetings.
type ListMeetings struct{}

// CancelMeeting asks to cancel one upcoming meeting.
type CancelMeeting struct {
	Selector Selector
}

// FreeformReminder is the conversational "remind me" request. RawText is the
// whole message (date resolution runs over it); TitleHint is the phrase found
// between the "untuk"/"for" preposition and the time marker.
type FreeformReminder struct {
	RawText   string
	TitleHint string
}

// Help asks for the command overview.
type Help struct{}

// None is any message that is not addressed to the bot.
type None struct{}

func (ScheduleMeeting) isIntent()  {}
func (ListMeetings) isIntent()     {}
func (CancelMeeting) isIntent()    {}
func (FreeformReminder) isIntent() {}
func (Help) isIntent()             {}
func (None) isIntent()             {}

// Command tokens, without their marker.
const (
	TokenSetMeeting    = "set-meeting"
	TokenListMeetings  = "list-meetings"
	TokenCancelMeeting = "cancel-meeting"
	TokenHelp          = "help"
)

// DefaultMention is used when no bot mentions are configured.
const DefaultMention = "@bot"

var (
	markers = []string{"/", "@"}
	tokens  = []string{TokenSetMeeting, TokenListMeetings, TokenCancelMeeting, TokenHelp}

	// "untuk <title> jam ..." / "for <title> at ...": the title is the lazy
	// span between the preposition and the first time/date marker.
	reminderPhrase = regexp.MustCompile(`(?i)\b(?:untuk|for)\s+(.+?)\s+(?:jam|tanggal|tgl|pukul|at|on)\b`)
)

// Parser classifies messages. The zero value recognizes DefaultMention.
type Parser struct {
	Mentions []string
}

// NewParser returns a Parser for the given bot mentions (e.g. "@bot",
// "@6281234567890"). Blank entries are ignored.
func NewParser(mentions []string) *Parser {
	p := &Parser{}
	for _, m := range mentions {
		if m = strings.TrimSpace(m); m != "" {
			p.Mentions = append(p.Mentions, m)
		}
	}
	return p
}

// Parse classifies text into an Intent.
func (p *Parser) Parse(text string) Intent {
	t := strings.TrimSpace(text)
	if t == "" {
		return None{}
	}

	if tok, rest, ok := splitCommand(t); ok {
		switch tok {
		case TokenSetMeeting:
			return ScheduleMeeting{Text: rest}
		case TokenListMeetings:
			return ListMeetings{}
		case TokenCancelMeeting:
			return CancelMeeting{Selector: ParseSelector(rest)}
		case TokenHelp:
			return Help{}
		}
	}

	if !p.addressed(t) {
		return None{}
	}
	lower := strings.ToLower(t)
	if strings.Contains(lower, "/help") {
		return Help{}
	}
	if m := reminderPhrase.FindStringSubmatch(t); m != nil {
		return FreeformReminder{RawText: t, TitleHint: strings.TrimSpace(m[1])}
	}
	return None{}
}

// addressed reports whether t starts with one of the bot mentions or carries
// the "/reminder" keyword anywhere.
func (p *Parser) addressed(t string) bool {
	lower := strings.ToLower(t)
	if strings.Contains(lower, "/reminder") {
		return true
	}
	mentions := p.Mentions
	if len(mentions) == 0 {
		mentions = []string{DefaultMention}
	}
	for _, m := range mentions {
		if hasTokenPrefix(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// splitCommand recognizes "<marker><token>" at the start of t and returns the
// token and the trimmed remainder.
func splitCommand(t string) (token, rest string, ok bool) {
	lower := strings.ToLower(t)
	for _, mk := range markers {
		if !strings.HasPrefix(lower, mk) {
			continue
		}
		for _, tok := range tokens {
			full := mk + tok
			if hasTokenPrefix(lower, full) {
				return tok, strings.TrimSpace(t[len(full):]), true
			}
		}
	}
	return "", "", false
}

// hasTokenPrefix is strings.HasPrefix with the extra requirement that the
// prefix ends at whitespace or at end of text ("/helpme" is not "/help").
func hasTokenPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	if len(s) == len(prefix) {
		return true
	}
	switch s[len(prefix)] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
