package notify

import (
	"fmt"
	"time"
)

var hariNames = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}

var bulanNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatDate renders t as "Senin, 5 Januari 2026" in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	t = in(t, loc)
	return fmt.Sprintf("%s, %d %s %d", hariNames[t.Weekday()], t.Day(), bulanNames[t.Month()-1], t.Year())
}

// FormatClock renders t as "19.00" in loc.
func FormatClock(t time.Time, loc *time.Location) string {
	t = in(t, loc)
	return fmt.Sprintf("%02d.%02d", t.Hour(), t.Minute())
}

// FormatDateTime renders t as "5/1/2026, 19.00.00", the short id-ID style.
func FormatDateTime(t time.Time, loc *time.Location) string {
	t = in(t, loc)
	return fmt.Sprintf("%d/%d/%d, %02d.%02d.%02d", t.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute(), t.Second())
}

func in(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}
