package command

import (
	"errors"
	"testing"
	"time"
)

var wib = time.FixedZone("WIB", 7*3600)

// 2026-01-01 is a Thursday.
var refThursday = time.Date(2026, 1, 1, 10, 0, 0, 0, wib)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, wib)
}

func TestIndonesian_Parse(t *testing.T) {
	p := NewIndonesian()
	cases := []struct {
		in       string
		ref      time.Time
		want     time.Time
		wantText string
	}{
		{"5 januari 19:00 Diskusi Project", refThursday, at(2026, 1, 5, 19, 0), "5 januari 19:00"},
		{"Diskusi Project 5 Januari", refThursday, at(2026, 1, 5, 12, 0), "5 Januari"},
		{"rapat besok jam 7 malam", refThursday, at(2026, 1, 2, 19, 0), "besok jam 7 malam"},
		{"rapat 19.00", refThursday, at(2026, 1, 1, 19, 0), "19.00"},
		{"rapat 09:00", refThursday, at(2026, 1, 2, 9, 0), "09:00"},
		{"review 14/11/2025 pukul 14.30", refThursday, at(2025, 11, 14, 14, 30), "14/11/2025 pukul 14.30"},
		{"jam 2 tanggal 14 november 2025", refThursday, at(2025, 11, 14, 2, 0), "jam 2 tanggal 14 november 2025"},
		{"senin depan jam 9 standup", refThursday, at(2026, 1, 5, 9, 0), "senin depan jam 9"},
		{"kamis jam 15:00", refThursday, at(2026, 1, 1, 15, 0), "kamis jam 15:00"},
		{"kamis depan", refThursday, at(2026, 1, 8, 12, 0), "kamis depan"},
		{"sync 7pm", refThursday, at(2026, 1, 1, 19, 0), "7pm"},
		{"jam 3 sore", refThursday, at(2026, 1, 1, 15, 0), "jam 3 sore"},
		{"lusa", refThursday, at(2026, 1, 3, 12, 0), "lusa"},
		{"Hari  Ini pukul 11", refThursday, at(2026, 1, 1, 11, 0), "Hari  Ini pukul 11"},
		{"5 januari", time.Date(2026, 3, 10, 8, 0, 0, 0, wib), at(2027, 1, 5, 12, 0), "5 januari"},
		{"5 januari di ruang rapat 19:00", refThursday, at(2026, 1, 5, 12, 0), "5 januari"},
	}
	for _, tc := range cases {
		m, ok := p.Parse(tc.in, tc.ref)
		if !ok {
			t.Errorf("Parse(%q) found nothing", tc.in)
			continue
		}
		if !m.Time.Equal(tc.want) {
			t.Errorf("Parse(%q) time = %v; want %v", tc.in, m.Time, tc.want)
		}
		if m.Text != tc.wantText {
			t.Errorf("Parse(%q) text = %q; want %q", tc.in, m.Text, tc.wantText)
		}
		if tc.in[m.Index:m.Index+len(m.Text)] != m.Text {
			t.Errorf("Parse(%q) index %d does not locate %q", tc.in, m.Index, m.Text)
		}
	}
}

func TestIndonesian_NoMatch(t *testing.T) {
	p := NewIndonesian()
	for _, in := range []string{"gibberish", "30 februari", "jam 25", "13pm", "rapat penting"} {
		if m, ok := p.Parse(in, refThursday); ok {
			t.Errorf("Parse(%q) = %+v; want no match", in, m)
		}
	}
}

func TestApplyPeriod(t *testing.T) {
	cases := []struct {
		h      int
		period string
		want   int
		ok     bool
	}{
		{12, "am", 0, true},
		{12, "pm", 12, true},
		{1, "PM", 13, true},
		{0, "am", 0, false},
		{7, "pagi", 7, true},
		{1, "siang", 13, true},
		{11, "siang", 11, true},
		{4, "sore", 16, true},
		{8, "malam", 20, true},
		{12, "malam", 0, true},
		{2, "malam", 2, true},
		{24, "", 0, false},
	}
	for _, tc := range cases {
		got, ok := applyPeriod(tc.h, tc.period)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("applyPeriod(%d,%q) = %d,%v; want %d,%v", tc.h, tc.period, got, ok, tc.want, tc.ok)
		}
	}
}

func TestExtractSchedule(t *testing.T) {
	start, title, err := ExtractSchedule("5 januari 19:00 Diskusi Project", refThursday, wib, nil)
	if err != nil {
		t.Fatalf("ExtractSchedule: %v", err)
	}
	if !start.Equal(at(2026, 1, 5, 19, 0)) || title != "Diskusi Project" {
		t.Fatalf("got %v %q", start, title)
	}

	_, title, err = ExtractSchedule("besok jam 9", refThursday, wib, nil)
	if err != nil || title != DefaultTitle {
		t.Fatalf("expected default title, got %q err=%v", title, err)
	}

	_, title, _ = ExtractSchedule("Rapat   5 januari 19:00   Tim  Inti", refThursday, wib, nil)
	if title != "Rapat Tim Inti" {
		t.Fatalf("title whitespace not collapsed: %q", title)
	}

	for _, in := range []string{"gibberish", "", "   "} {
		if _, _, err := ExtractSchedule(in, refThursday, wib, nil); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("ExtractSchedule(%q) err = %v; want ErrInvalidDate", in, err)
		}
	}
}

func TestExtractSchedule_NonexistentDay(t *testing.T) {
	for _, in := range []string{"31 februari 10:00 x", "29 februari 2026 jam 9 rapat", "tanggal 30/02 19:00 sync", "31 april"} {
		start, title, err := ExtractSchedule(in, refThursday, wib, nil)
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("ExtractSchedule(%q) = %v %q %v; want ErrInvalidDate", in, start, title, err)
		}
	}

	m, ok := NewIndonesian().Parse("rapat 31 februari 10:00", refThursday)
	if !ok || !m.Invalid || m.Text != "31 februari" || m.Index != 6 || !m.Time.IsZero() {
		t.Fatalf("match = %+v ok=%v", m, ok)
	}

	if _, _, err := ExtractSchedule("29 februari 2028 10:00 leap", refThursday, wib, nil); err != nil {
		t.Fatalf("leap day rejected: %v", err)
	}
}

func TestExtractSchedule_UsesLocation(t *testing.T) {
	ref := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC) // 10:00 WIB
	start, _, err := ExtractSchedule("rapat 19:00", ref, wib, nil)
	if err != nil {
		t.Fatalf("ExtractSchedule: %v", err)
	}
	if !start.Equal(at(2026, 1, 1, 19, 0)) {
		t.Fatalf("start = %v; want 19:00 WIB", start)
	}
}

func TestChain_FirstMatchWins(t *testing.T) {
	var calls []string
	mk := func(name string, ok bool) DateParser {
		return DateParserFunc(func(text string, ref time.Time) (Match, bool) {
			calls = append(calls, name)
			return Match{Text: name, Time: ref}, ok
		})
	}
	c := Chain{mk("a", false), nil, mk("b", true), mk("c", true)}
	m, ok := c.Parse("x", refThursday)
	if !ok || m.Text != "b" {
		t.Fatalf("got %+v %v", m, ok)
	}
	if len(calls) != 2 {
		t.Fatalf("later parsers must not run: %v", calls)
	}
	if _, ok := (Chain{}).Parse("x", refThursday); ok {
		t.Fatalf("empty chain must not match")
	}
}

func TestWhen_EnglishFallback(t *testing.T) {
	w := NewWhen()
	m, ok := w.Parse("sync next friday at 3pm", refThursday)
	if !ok {
		t.Fatalf("expected a match")
	}
	if m.Time.Weekday() != time.Friday || m.Time.Hour() != 15 {
		t.Fatalf("unexpected resolution: %v", m.Time)
	}
	if _, ok := w.Parse("nothing here", refThursday); ok {
		t.Fatalf("unexpected match")
	}
}
