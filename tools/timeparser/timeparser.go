package timeparser

import (
	"fmt"
	"strings"
	"time"
)

// RecordingTakenLayout is the naive ISO-like layout the plant API uses for recording_taken.
const RecordingTakenLayout = "2006-01-02 15:04:05"

// StorageLayout renders a normalized timestamp the way it is stored and exported.
const StorageLayout = "2006-01-02 15:04:05"

// ParseRecordingTaken parses a naive recording timestamp. The result carries no zone
// information and is returned in UTC.
func ParseRecordingTaken(value string) (time.Time, error) {
	formats := []string{
		RecordingTakenLayout,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999",
	}

	value = strings.TrimSpace(value)
	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse recording timestamp '%s': %w", value, lastErr)
}

// rfc822Zones are the named zones RFC 822 allows besides UT and GMT. time.Parse
// gives an unknown abbreviation a zero offset, so these are resolved here.
var rfc822Zones = map[string]int{
	"EST": -5 * 3600,
	"EDT": -4 * 3600,
	"CST": -6 * 3600,
	"CDT": -5 * 3600,
	"MST": -7 * 3600,
	"MDT": -6 * 3600,
	"PST": -8 * 3600,
	"PDT": -7 * 3600,
}

// ParseLastWatered parses an RFC 1123 style timestamp with a zone designator,
// converts it to UTC and drops the zone.
func ParseLastWatered(value string) (time.Time, error) {
	formats := []string{
		time.RFC1123,  // Mon, 02 Jan 2006 15:04:05 MST
		time.RFC1123Z, // Mon, 02 Jan 2006 15:04:05 -0700
	}

	value = strings.TrimSpace(value)
	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, value)
		if err != nil {
			lastErr = err
			continue
		}
		t, err = resolveZone(t)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse watering timestamp '%s': %w", value, err)
		}
		return StripZone(t), nil
	}

	return time.Time{}, fmt.Errorf("failed to parse watering timestamp '%s': %w", value, lastErr)
}

// StripZone converts t to UTC and returns the same wall clock with no zone attached.
func StripZone(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC)
}

// resolveZone applies the real offset of an RFC 822 zone name and rejects named
// zones whose offset is unknown.
func resolveZone(t time.Time) (time.Time, error) {
	name, offset := t.Zone()
	if rfcOffset, ok := rfc822Zones[name]; ok {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
			time.FixedZone(name, rfcOffset)), nil
	}
	switch name {
	case "", "GMT", "UT", "UTC", "Z":
		return t, nil
	}
	if offset == 0 {
		return time.Time{}, fmt.Errorf("unknown time zone %q", name)
	}
	return t, nil
}
