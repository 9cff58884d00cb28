package command

import (
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Match is one resolved date/time phrase. Index and Text locate the phrase
// in the parsed input (byte offset); Time is the resolved instant.
type Match struct {
	Index int
	Text  string
	Time  time.Time
	// Invalid marks text naming a day that does not exist, such as
	// "31 februari". Time is zero and the match still ends a Chain.
	Invalid bool
}

// DateParser resolves the first natural-language date/time in text,
// relative to ref. Results are expressed in ref's location.
type DateParser interface {
	Parse(text string, ref time.Time) (Match, bool)
}

// DateParserFunc adapts a function to DateParser.
type DateParserFunc func(text string, ref time.Time) (Match, bool)

// Parse calls f.
func (f DateParserFunc) Parse(text string, ref time.Time) (Match, bool) { return f(text, ref) }

// Chain tries each parser in order; the first match wins.
type Chain []DateParser

// Parse implements DateParser.
func (c Chain) Parse(text string, ref time.Time) (Match, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if m, ok := p.Parse(text, ref); ok {
			return m, true
		}
	}
	return Match{}, false
}

// When wraps github.com/olebedev/when with the English and common rule sets.
// It backs up the Indonesian rules for phrases like "next friday at 3pm".
type When struct {
	w *when.Parser
}

// NewWhen builds the English fallback parser.
func NewWhen() *When {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &When{w: w}
}

// Parse implements DateParser.
func (p *When) Parse(text string, ref time.Time) (Match, bool) {
	r, err := p.w.Parse(text, ref)
	if err != nil || r == nil {
		return Match{}, false
	}
	return Match{Index: r.Index, Text: r.Text, Time: r.Time.In(ref.Location())}, true
}

// DefaultDateParser is the Indonesian rule set followed by the English
// fallback.
func DefaultDateParser() DateParser {
	return Chain{NewIndonesian(), NewWhen()}
}
