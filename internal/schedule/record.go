package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// TimeOfDayLayout is the persisted form of time-of-day anchors.
	TimeOfDayLayout = "15:04:05"
	// DateTimeLayout is the persisted form of once anchors (scheduler local time).
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Record is the flat persisted form of a Schedule.
//
// StartTime depends on TimeType: integer seconds for countdown, "HH:MM:SS"
// for the time-of-day kinds and "YYYY-MM-DD HH:MM:SS" for once.
type Record struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Action    string          `json:"action"`
	TimeType  string          `json:"time_type"`
	StartTime json.RawMessage `json:"start_time"`
	Days      []int           `json:"days,omitempty"`
	Duration  *int            `json:"duration,omitempty"`
	Enabled   *bool           `json:"enabled,omitempty"`
}

// ToRecord converts s into its persisted form.
func ToRecord(s Schedule) Record {
	enabled := s.Enabled
	r := Record{
		ID:       s.ID,
		Name:     s.Name,
		Action:   string(s.Action),
		TimeType: string(s.Kind),
		Enabled:  &enabled,
	}
	if sec, ok := s.Anchor.(Seconds); ok {
		r.StartTime = json.RawMessage(strconv.Itoa(int(sec)))
	} else {
		b, _ := json.Marshal(FormatAnchor(s.Anchor))
		r.StartTime = b
	}
	if s.Kind == KindWeekly {
		for _, d := range s.Days {
			r.Days = append(r.Days, int(d))
		}
	}
	if s.Duration > 0 {
		secs := int(s.Duration / time.Second)
		r.Duration = &secs
	}
	return r
}

// FromRecord reconstructs and validates a Schedule. Once anchors are parsed in loc.
func FromRecord(r Record, loc *time.Location) (Schedule, error) {
	kind, err := ParseKind(r.TimeType)
	if err != nil {
		return Schedule{}, err
	}
	action, err := ParseAction(r.Action)
	if err != nil {
		return Schedule{}, err
	}
	raw, err := startTimeText(r.StartTime)
	if err != nil {
		return Schedule{}, err
	}
	anchor, err := ParseAnchor(kind, raw, loc)
	if err != nil {
		return Schedule{}, err
	}

	s := Schedule{
		ID:      r.ID,
		Name:    r.Name,
		Action:  action,
		Kind:    kind,
		Anchor:  anchor,
		Enabled: true,
	}
	if r.Enabled != nil {
		s.Enabled = *r.Enabled
	}
	if kind == KindWeekly {
		for _, d := range r.Days {
			s.Days = append(s.Days, Day(d))
		}
	}
	if r.Duration != nil {
		if *r.Duration <= 0 {
			return Schedule{}, invalid("duration must be > 0, got %d", *r.Duration)
		}
		if int64(*r.Duration) > MaxSeconds {
			return Schedule{}, invalid("duration %d seconds exceeds %d", *r.Duration, MaxSeconds)
		}
		s.Duration = time.Duration(*r.Duration) * time.Second
	}
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// startTimeText accepts a JSON string or a JSON number.
func startTimeText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", invalid("start_time required")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", invalid("start_time: %v", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", invalid("start_time must be a string or number")
	}
	return n.String(), nil
}

// FormatAnchor renders an anchor in its persisted textual form.
func FormatAnchor(a Anchor) string {
	switch v := a.(type) {
	case Seconds:
		return strconv.Itoa(int(v))
	case TimeOfDay:
		return v.String()
	case Absolute:
		return v.At.Format(DateTimeLayout)
	}
	return ""
}

// ParseAnchor parses the textual anchor for kind. Once date-times are read in loc.
func ParseAnchor(kind Kind, text string, loc *time.Location) (Anchor, error) {
	if loc == nil {
		loc = time.Local
	}
	text = strings.TrimSpace(text)
	switch {
	case kind == KindCountdown:
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, invalid("countdown start_time %q is not an integer", text)
		}
		return Seconds(n), nil
	case kind == KindOnce:
		t, err := time.ParseInLocation(DateTimeLayout, text, loc)
		if err != nil {
			return nil, invalid("once start_time %q: expected YYYY-MM-DD HH:MM:SS", text)
		}
		return Absolute{At: t}, nil
	case kind.TimeOfDay():
		t, err := time.Parse(TimeOfDayLayout, text)
		if err != nil {
			return nil, invalid("%s start_time %q: expected HH:MM:SS", kind, text)
		}
		return Clock(t), nil
	}
	return nil, invalid("unknown kind %q", kind)
}

// MarshalTable encodes schedules as a JSON object keyed by id.
func MarshalTable(ss []Schedule) ([]byte, error) {
	table := make(map[string]Record, len(ss))
	for _, s := range ss {
		table[s.ID] = ToRecord(s)
	}
	b, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	return append(b, '\n'), nil
}

// UnmarshalTable decodes a JSON object keyed by id.
//
// Malformed entries are skipped and reported in skipped; err is only set when
// the document as a whole cannot be decoded. Results are sorted by id.
func UnmarshalTable(data []byte, loc *time.Location) (out []Schedule, skipped []error, err error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}
	var table map[string]json.RawMessage
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, nil, fmt.Errorf("%w: decode: %v", ErrPersistence, err)
	}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var r Record
		if err := json.Unmarshal(table[key], &r); err != nil {
			skipped = append(skipped, fmt.Errorf("record %q: %w: %v", key, ErrInvalidSchedule, err))
			continue
		}
		if r.ID == "" {
			r.ID = key
		}
		if r.ID != key {
			skipped = append(skipped, fmt.Errorf("record %q: %w: id %q does not match key", key, ErrInvalidSchedule, r.ID))
			continue
		}
		s, err := FromRecord(r, loc)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("record %q: %w", key, err))
			continue
		}
		out = append(out, s)
	}
	return out, skipped, nil
}
