package restaurant

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidOpeningHours is returned when a stored or submitted value
// matches neither the JSON nor the legacy text encoding.
var ErrInvalidOpeningHours = errors.New("invalid opening hours")

// legacyPattern matches "HH:MM-HH:MM" optionally followed by "|Day".
var legacyPattern = regexp.MustCompile(`^\s*(\d{1,2}[:hH]\d{2})\s*-\s*(\d{1,2}[:hH]\d{2})\s*(?:\|\s*(.*?))?\s*$`)

var frenchDays = map[string]time.Weekday{
	"dimanche": time.Sunday,
	"lundi":    time.Monday,
	"mardi":    time.Tuesday,
	"mercredi": time.Wednesday,
	"jeudi":    time.Thursday,
	"vendredi": time.Friday,
	"samedi":   time.Saturday,
}

// OpeningHours is the daily opening window of a restaurant plus an
// optional weekly closing day. The zero value means "always open".
type OpeningHours struct {
	Open      string `json:"open"`
	Close     string `json:"close"`
	ClosedDay string `json:"closedDay"`
}

// NewOpeningHours validates and canonicalizes the parts
func NewOpeningHours(open, close, closedDay string) (OpeningHours, error) {
	o, err := normalizeClock(open)
	if err != nil {
		return OpeningHours{}, err
	}
	c, err := normalizeClock(close)
	if err != nil {
		return OpeningHours{}, err
	}
	day := ""
	if strings.TrimSpace(closedDay) != "" {
		wd, ok := ParseWeekday(closedDay)
		if !ok {
			return OpeningHours{}, fmt.Errorf("%w: unknown day %q", ErrInvalidOpeningHours, closedDay)
		}
		day = wd.String()
	}
	return OpeningHours{Open: o, Close: c, ClosedDay: day}, nil
}

// ParseOpeningHours reads either encoding. An empty value yields the
// zero OpeningHours.
func ParseOpeningHours(raw string) (OpeningHours, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return OpeningHours{}, nil
	}
	if strings.HasPrefix(s, "{") {
		var oh OpeningHours
		if err := json.Unmarshal([]byte(s), &oh); err != nil {
			return OpeningHours{}, fmt.Errorf("%w: %v", ErrInvalidOpeningHours, err)
		}
		if oh.Open == "" && oh.Close == "" && oh.ClosedDay == "" {
			return OpeningHours{}, nil
		}
		return NewOpeningHours(oh.Open, oh.Close, oh.ClosedDay)
	}
	m := legacyPattern.FindStringSubmatch(s)
	if m == nil {
		return OpeningHours{}, fmt.Errorf("%w: %q", ErrInvalidOpeningHours, raw)
	}
	return NewOpeningHours(m[1], m[2], m[3])
}

// IsLegacyOpeningHours reports whether raw uses the old text encoding
func IsLegacyOpeningHours(raw string) bool {
	return legacyPattern.MatchString(raw)
}

// IsZero reports whether no window is configured
func (h OpeningHours) IsZero() bool {
	return h.Open == "" && h.Close == "" && h.ClosedDay == ""
}

// String returns the canonical JSON encoding
func (h OpeningHours) String() string {
	if h.IsZero() {
		return ""
	}
	b, _ := json.Marshal(h)
	return string(b)
}

// LegacyString renders the old "HH:MM-HH:MM|Day" form
func (h OpeningHours) LegacyString() string {
	if h.IsZero() {
		return ""
	}
	s := h.Open + "-" + h.Close
	if h.ClosedDay != "" {
		s += "|" + h.ClosedDay
	}
	return s
}

// IsOpenAt reports whether t falls inside the window. Windows whose close
// time is earlier than the open time run past midnight; the closed day
// applies to the day the window starts on.
func (h OpeningHours) IsOpenAt(t time.Time) bool {
	if h.IsZero() {
		return true
	}
	open := minutesOf(h.Open)
	close := minutesOf(h.Close)
	now := t.Hour()*60 + t.Minute()

	closedOn := func(wd time.Weekday) bool {
		if h.ClosedDay == "" {
			return false
		}
		d, _ := ParseWeekday(h.ClosedDay)
		return d == wd
	}

	if open == close {
		return !closedOn(t.Weekday())
	}
	if open < close {
		return now >= open && now < close && !closedOn(t.Weekday())
	}
	// overnight window
	if now >= open {
		return !closedOn(t.Weekday())
	}
	if now < close {
		return !closedOn(t.AddDate(0, 0, -1).Weekday())
	}
	return false
}

// ParseWeekday accepts English or French day names in any case
func ParseWeekday(s string) (time.Weekday, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, true
		}
	}
	wd, ok := frenchDays[name]
	return wd, ok
}

func normalizeClock(s string) (string, error) {
	s = strings.NewReplacer("h", ":", "H", ":").Replace(strings.TrimSpace(s))
	if s == "24:00" {
		return "00:00", nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", fmt.Errorf("%w: bad time %q", ErrInvalidOpeningHours, s)
	}
	return t.Format("15:04"), nil
}

func minutesOf(hhmm string) int {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}
