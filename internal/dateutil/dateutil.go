package dateutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidClock = errors.New("invalid clock string")

// LocalDateKey devuelve la clave YYYY-MM-DD en la zona horaria del propio t.
// Nunca pasar por UTC: cerca de medianoche cambiaría el día.
func LocalDateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatClock devuelve la hora del día como "HH:MM".
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// ParseClock valida y descompone un string "HH:MM".
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return 0, 0, ErrInvalidClock
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, ErrInvalidClock
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidClock
	}
	return hour, minute, nil
}

// At combina la fecha de d con un "HH:MM", en la zona horaria de d.
func At(d time.Time, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("at %q: %w", clock, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location()), nil
}

// StartOfDay trunca t a las 00:00 locales.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseDateKey interpreta una clave YYYY-MM-DD como medianoche local.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(key), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date key %q: %w", key, err)
	}
	return t, nil
}

// DayLabel etiqueta una clave de fecha relativa a now: "Today", "Tomorrow"
// o el nombre del día. Compara claves locales, nunca fechas UTC.
func DayLabel(key string, now time.Time) string {
	today := LocalDateKey(now)
	tomorrow := LocalDateKey(now.AddDate(0, 0, 1))

	switch key {
	case today:
		return "Today"
	case tomorrow:
		return "Tomorrow"
	}

	d, err := ParseDateKey(key, now.Location())
	if err != nil {
		return key
	}
	return d.Weekday().String()
}
