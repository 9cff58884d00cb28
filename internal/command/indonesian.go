package command

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Indonesian resolves the date/time phrases people actually type in the
// groups: "5 januari 19:00", "besok jam 7 malam", "14/11/2025 pukul 14.30",
// "senin depan jam 9", "tanggal 14 november 2025". English month and weekday
// names are accepted too.
//
// A phrase with a date but no time resolves to 12:00. A time with no date
// resolves to its next occurrence after ref. A day and month without a year
// that already passed this year roll over to next year. When both a date
// and a time are present and separated only by connector words, they form a
// single match; otherwise the earlier phrase wins on its own.
type Indonesian struct{}

// NewIndonesian returns the Indonesian rule set.
func NewIndonesian() *Indonesian { return &Indonesian{} }

const monthAlt = `januari|februari|maret|april|mei|juni|juli|agustus|september|oktober|november|desember|` +
	`january|february|march|may|june|july|august|october|december|` +
	`jan|feb|mar|apr|jun|jul|agu|agt|aug|sept|sep|okt|oct|nov|des|dec`

const periodAlt = `am|pm|pagi|siang|sore|malam`

var (
	reDateNamed   = regexp.MustCompile(`(?i)\b(?:(?:tanggal|tgl)\s+)?(\d{1,2})\s+(` + monthAlt + `)(?:\s+(\d{4}))?\b`)
	reDateNumeric = regexp.MustCompile(`(?i)\b(?:(?:tanggal|tgl)\s+)?(\d{1,2})[/-](\d{1,2})(?:[/-](\d{4}|\d{2}))?\b`)
	reDateRel     = regexp.MustCompile(`(?i)\b(hari\s+ini|besok|lusa|today|tomorrow)\b`)
	reWeekday     = regexp.MustCompile(`(?i)\b(?:(?:hari|on)\s+)?(senin|selasa|rabu|kamis|jumat|jum'at|sabtu|minggu|monday|tuesday|wednesday|thursday|friday|saturday|sunday)(?:\s+(depan))?\b`)

	reClock    = regexp.MustCompile(`(?i)\b(?:(?:jam|pukul|pkl|at)\s+)?(\d{1,2})[:.](\d{2})(?:\s*(` + periodAlt + `))?\b`)
	reHour     = regexp.MustCompile(`(?i)\b(?:jam|pukul|pkl|at)\s+(\d{1,2})(?:\s*(` + periodAlt + `))?\b`)
	reMeridiem = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`)

	connectorWords = map[string]bool{
		"jam": true, "pukul": true, "pkl": true, "at": true, "on": true,
		"pada": true, "tanggal": true, "tgl": true, "hari": true, ",": true, "-": true,
	}
)

var monthNames = map[string]time.Month{
	"januari": time.January, "january": time.January, "jan": time.January,
	"februari": time.February, "february": time.February, "feb": time.February,
	"maret": time.March, "march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"mei": time.May, "may": time.May,
	"juni": time.June, "june": time.June, "jun": time.June,
	"juli": time.July, "july": time.July, "jul": time.July,
	"agustus": time.August, "august": time.August, "agu": time.August, "agt": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"oktober": time.October, "october": time.October, "okt": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"desember": time.December, "december": time.December, "des": time.December, "dec": time.December,
}

var weekdayNames = map[string]time.Weekday{
	"minggu": time.Sunday, "sunday": time.Sunday,
	"senin": time.Monday, "monday": time.Monday,
	"selasa": time.Tuesday, "tuesday": time.Tuesday,
	"rabu": time.Wednesday, "wednesday": time.Wednesday,
	"kamis": time.Thursday, "thursday": time.Thursday,
	"jumat": time.Friday, "jum'at": time.Friday, "friday": time.Friday,
	"sabtu": time.Saturday, "saturday": time.Saturday,
}

var relativeDays = map[string]int{
	"hari ini": 0, "today": 0,
	"besok": 1, "tomorrow": 1,
	"lusa": 2,
}

type span struct{ start, end int }

func (s span) overlaps(o span) bool { return s.start < o.end && o.start < s.end }

type dateHit struct {
	span
	day time.Time // midnight in ref's location
}

type clockHit struct {
	span
	hour, min int
}

// Parse implements DateParser.
func (p *Indonesian) Parse(text string, ref time.Time) (Match, bool) {
	loc := ref.Location()
	d, hasDate, bad := findDate(text, ref)
	if bad != nil {
		return Match{Index: bad.start, Text: text[bad.start:bad.end], Invalid: true}, true
	}
	var avoid []span
	if hasDate {
		avoid = append(avoid, d.span)
	}
	c, hasClock := findClock(text, avoid)

	switch {
	case hasDate && hasClock:
		if joined(text, d.span, c.span) {
			s := span{start: min(d.start, c.start), end: max(d.end, c.end)}
			t := time.Date(d.day.Year(), d.day.Month(), d.day.Day(), c.hour, c.min, 0, 0, loc)
			return Match{Index: s.start, Text: text[s.start:s.end], Time: t}, true
		}
		if c.start < d.start {
			return clockOnly(text, c, ref), true
		}
		return dateOnly(text, d), true
	case hasDate:
		return dateOnly(text, d), true
	case hasClock:
		return clockOnly(text, c, ref), true
	}
	return Match{}, false
}

func dateOnly(text string, d dateHit) Match {
	t := time.Date(d.day.Year(), d.day.Month(), d.day.Day(), 12, 0, 0, 0, d.day.Location())
	return Match{Index: d.start, Text: text[d.start:d.end], Time: t}
}

func clockOnly(text string, c clockHit, ref time.Time) Match {
	t := time.Date(ref.Year(), ref.Month(), ref.Day(), c.hour, c.min, 0, 0, ref.Location())
	if !t.After(ref) {
		t = t.AddDate(0, 0, 1)
	}
	return Match{Index: c.start, Text: text[c.start:c.end], Time: t}
}

// joined reports whether only connector words separate a and b.
func joined(text string, a, b span) bool {
	if b.start < a.start {
		a, b = b, a
	}
	if b.start < a.end {
		return true
	}
	gap := strings.NewReplacer(",", " , ").Replace(text[a.end:b.start])
	for _, w := range strings.Fields(gap) {
		if !connectorWords[fold(w)] {
			return false
		}
	}
	return true
}

// findDate returns the earliest date phrase in text. bad is the first
// day/month phrase naming a day the calendar does not have.
func findDate(text string, ref time.Time) (best dateHit, found bool, bad *span) {
	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	reject := func(s span) {
		if bad == nil || s.start < bad.start {
			bad = &s
		}
	}
	consider := func(h dateHit) {
		if !found || h.start < best.start || (h.start == best.start && h.end > best.end) {
			best, found = h, true
		}
	}

	for _, m := range reDateNamed.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		month := monthNames[fold(text[m[4]:m[5]])]
		year, hasYear := 0, m[6] >= 0
		if hasYear {
			year, _ = strconv.Atoi(text[m[6]:m[7]])
		}
		if t, ok := calendarDay(today, year, month, day, hasYear); ok {
			consider(dateHit{span: span{m[0], m[1]}, day: t})
		} else {
			reject(span{m[0], m[1]})
		}
	}
	for _, m := range reDateNumeric.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		mon, _ := strconv.Atoi(text[m[4]:m[5]])
		if mon < 1 || mon > 12 {
			continue
		}
		year, hasYear := 0, m[6] >= 0
		if hasYear {
			year, _ = strconv.Atoi(text[m[6]:m[7]])
			if year < 100 {
				year += 2000
			}
		}
		if t, ok := calendarDay(today, year, time.Month(mon), day, hasYear); ok {
			consider(dateHit{span: span{m[0], m[1]}, day: t})
		} else {
			reject(span{m[0], m[1]})
		}
	}
	for _, m := range reDateRel.FindAllStringSubmatchIndex(text, -1) {
		key := strings.Join(strings.Fields(fold(text[m[2]:m[3]])), " ")
		n, ok := relativeDays[key]
		if !ok {
			continue
		}
		consider(dateHit{span: span{m[0], m[1]}, day: today.AddDate(0, 0, n)})
	}
	for _, m := range reWeekday.FindAllStringSubmatchIndex(text, -1) {
		wd, ok := weekdayNames[fold(text[m[2]:m[3]])]
		if !ok {
			continue
		}
		consider(dateHit{span: span{m[0], m[1]}, day: nextWeekday(today, wd, m[4] >= 0)})
	}
	return best, found, bad
}

// calendarDay validates a day/month and picks the year: the explicit one, or
// the current year unless that day already passed.
func calendarDay(today time.Time, year int, month time.Month, day int, hasYear bool) (time.Time, bool) {
	if month == 0 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if !hasYear {
		year = today.Year()
		if time.Date(year, month, day, 0, 0, 0, 0, today.Location()).Before(today) {
			year++
		}
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, today.Location())
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// nextWeekday returns the next occurrence of target on or after today. With
// "depan" (next) today itself is skipped.
func nextWeekday(today time.Time, target time.Weekday, next bool) time.Time {
	ahead := (int(target) - int(today.Weekday()) + 7) % 7
	if ahead == 0 && next {
		ahead = 7
	}
	return today.AddDate(0, 0, ahead)
}

func findClock(text string, avoid []span) (clockHit, bool) {
	var best clockHit
	found := false
	consider := func(h clockHit) {
		for _, a := range avoid {
			if h.overlaps(a) {
				return
			}
		}
		if !found || h.start < best.start || (h.start == best.start && h.end > best.end) {
			best, found = h, true
		}
	}

	for _, m := range reClock.FindAllStringSubmatchIndex(text, -1) {
		h, _ := strconv.Atoi(text[m[2]:m[3]])
		mi, _ := strconv.Atoi(text[m[4]:m[5]])
		if h, ok := applyPeriod(h, group(text, m, 3)); ok && mi < 60 {
			consider(clockHit{span: span{m[0], m[1]}, hour: h, min: mi})
		}
	}
	for _, m := range reHour.FindAllStringSubmatchIndex(text, -1) {
		h, _ := strconv.Atoi(text[m[2]:m[3]])
		if h, ok := applyPeriod(h, group(text, m, 2)); ok {
			consider(clockHit{span: span{m[0], m[1]}, hour: h})
		}
	}
	for _, m := range reMeridiem.FindAllStringSubmatchIndex(text, -1) {
		h, _ := strconv.Atoi(text[m[2]:m[3]])
		if h, ok := applyPeriod(h, group(text, m, 2)); ok {
			consider(clockHit{span: span{m[0], m[1]}, hour: h})
		}
	}
	return best, found
}

// applyPeriod converts an hour with an optional day period (am/pm or
// pagi/siang/sore/malam) to 24h.
func applyPeriod(h int, period string) (int, bool) {
	switch fold(period) {
	case "am":
		if h < 1 || h > 12 {
			return 0, false
		}
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 1 || h > 12 {
			return 0, false
		}
		if h != 12 {
			h += 12
		}
	case "pagi":
		if h == 12 {
			h = 0
		}
	case "siang":
		if h >= 1 && h <= 6 {
			h += 12
		}
	case "sore":
		if h >= 1 && h < 12 {
			h += 12
		}
	case "malam":
		switch {
		case h >= 6 && h < 12:
			h += 12
		case h == 12:
			h = 0
		}
	}
	if h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// group returns capture group n of a submatch index slice, or "".
func group(text string, m []int, n int) string {
	if 2*n+1 >= len(m) || m[2*n] < 0 {
		return ""
	}
	return text[m[2*n]:m[2*n+1]]
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
