package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// LocalTimes is a slot placed on a location's wall clock.
type LocalTimes struct {
	Date  string
	Start string
	End   string
}

// Date validates a YYYY-MM-DD calendar date.
func Date(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return d, nil
}

// Clock normalizes "H:MM", "HH:MM" or "HH:MM:SS" to "HH:MM".
func Clock(raw string) (string, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", fmt.Errorf("invalid time of day %q", raw)
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	if h > 23 || mi > 59 {
		return "", fmt.Errorf("time of day out of range %q", raw)
	}
	return fmt.Sprintf("%02d:%02d", h, mi), nil
}

// LocalSlot converts a provider slot given as a UTC date and start time into
// the location's local date, start and end. The local date can differ from
// the UTC one around midnight.
func LocalSlot(date, startUTC string, durationMinutes int, tz *time.Location) (LocalTimes, error) {
	if durationMinutes <= 0 {
		return LocalTimes{}, fmt.Errorf("invalid duration %d", durationMinutes)
	}
	clock, err := Clock(startUTC)
	if err != nil {
		return LocalTimes{}, err
	}
	start, err := time.ParseInLocation(DateLayout+" "+ClockLayout, strings.TrimSpace(date)+" "+clock, time.UTC)
	if err != nil {
		return LocalTimes{}, fmt.Errorf("invalid slot start %q %q: %w", date, startUTC, err)
	}

	local := start.In(tz)
	end := local.Add(time.Duration(durationMinutes) * time.Minute)
	return LocalTimes{
		Date:  local.Format(DateLayout),
		Start: local.Format(ClockLayout),
		End:   end.Format(ClockLayout),
	}, nil
}

// ToUTC converts a local date and start time back to UTC.
func ToUTC(date, start string, tz *time.Location) (time.Time, error) {
	clock, err := Clock(start)
	if err != nil {
		return time.Time{}, err
	}
	local, err := time.ParseInLocation(DateLayout+" "+ClockLayout, strings.TrimSpace(date)+" "+clock, tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid local time %q %q: %w", date, start, err)
	}
	return local.UTC(), nil
}

// Features reads the indoor and doubles flags from a provider feature list.
// A flag stays nil when the list says nothing about it.
func Features(features []string) (indoor, doubles *bool) {
	for _, f := range features {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "indoor":
			indoor = boolPtr(true)
		case "outdoor":
			indoor = boolPtr(false)
		case "double", "doubles":
			doubles = boolPtr(true)
		case "single", "singles":
			doubles = boolPtr(false)
		}
	}
	return indoor, doubles
}

func boolPtr(b bool) *bool { return &b }
