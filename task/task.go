// Package task defines the persistent task model, trigger argument
// validation and the run-date iterators that drive scheduling.
package task

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/teranos/tempo/errors"
)

// Trigger types understood by the scheduler
const (
	TriggerCron     = "cron"     // 5-field cron expression
	TriggerInterval = "interval" // fixed delay between runs
	TriggerDate     = "date"     // one run at an absolute instant
)

// Task is a persistent record of what to run and when to run it.
// TriggerArgs holds the canonical text form for its TriggerType (see
// CanonicalTriggerArgs), which makes trigger comparison a plain string
// equality.
type Task struct {
	ID           int        `json:"task_id"`
	Title        string     `json:"title"`
	Descr        string     `json:"descr"`
	Command      string     `json:"command"`
	TriggerType  string     `json:"trigger_type"`
	TriggerArgs  string     `json:"trigger_args"`
	StartingDate *time.Time `json:"starting_date,omitempty"`
	LastRun      *time.Time `json:"last_run,omitempty"`
}

// EquivalentTo reports whether other schedules the same work: same command,
// same trigger type, same canonical trigger args. Title and description are
// cosmetic and do not participate, so the manager leaves executors untouched
// when only those change.
func (t *Task) EquivalentTo(other *Task) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Command == other.Command &&
		t.TriggerType == other.TriggerType &&
		t.TriggerArgs == other.TriggerArgs
}

// MarshalJSON renders trigger_args in its native JSON shape: interval args
// are an object, cron and date args are strings.
func (t *Task) MarshalJSON() ([]byte, error) {
	type alias Task
	aux := struct {
		*alias
		TriggerArgs json.RawMessage `json:"trigger_args"`
	}{alias: (*alias)(t)}

	if t.TriggerType == TriggerInterval && json.Valid([]byte(t.TriggerArgs)) {
		aux.TriggerArgs = json.RawMessage(t.TriggerArgs)
	} else {
		quoted, err := json.Marshal(t.TriggerArgs)
		if err != nil {
			return nil, err
		}
		aux.TriggerArgs = quoted
	}

	return json.Marshal(aux)
}

// UnmarshalJSON accepts trigger_args as either a JSON string or an object,
// restoring the canonical string form MarshalJSON started from.
func (t *Task) UnmarshalJSON(data []byte) error {
	type alias Task
	aux := struct {
		*alias
		TriggerArgs json.RawMessage `json:"trigger_args"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.TriggerArgs) == 0 {
		t.TriggerArgs = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.TriggerArgs, &s); err == nil {
		t.TriggerArgs = s
		return nil
	}
	t.TriggerArgs = string(aux.TriggerArgs)
	return nil
}

// Draft is the client-supplied payload for creating or replacing a task.
// TriggerArgs stays raw until the trigger type is known.
type Draft struct {
	Title       string          `json:"title"`
	Descr       string          `json:"descr"`
	Command     string          `json:"command"`
	TriggerType string          `json:"trigger_type"`
	TriggerArgs json.RawMessage `json:"trigger_args"`
}

// Validate checks the draft and returns the canonical trigger args text.
// Title and command must be present; description is optional free text.
func (d *Draft) Validate() (string, error) {
	if strings.TrimSpace(d.Title) == "" {
		return "", errors.NewInvalidRequestError("missing field %q", "title")
	}
	if strings.TrimSpace(d.Command) == "" {
		return "", errors.NewInvalidRequestError("missing field %q", "command")
	}
	return CanonicalTriggerArgs(d.TriggerType, d.TriggerArgs)
}

// CanonicalTriggerArgs validates raw trigger arguments against the trigger
// type and returns the canonical text form stored in the database:
//
//	cron:     the trimmed expression, e.g. "*/5 * * * *"
//	interval: JSON object with zero components dropped, e.g. {"minutes":1,"seconds":5}
//	date:     the instant as RFC3339Nano UTC
func CanonicalTriggerArgs(triggerType string, raw json.RawMessage) (string, error) {
	switch triggerType {
	case TriggerCron:
		var expr string
		if err := json.Unmarshal(raw, &expr); err != nil {
			return "", errors.WrapInvalidRequest(err, "cron trigger args must be a JSON string")
		}
		expr = strings.TrimSpace(expr)
		if !gronx.New().IsValid(expr) {
			return "", errors.NewInvalidRequestError("invalid cron expression %q", expr)
		}
		return expr, nil

	case TriggerInterval:
		interval, err := ParseInterval(raw)
		if err != nil {
			return "", err
		}
		canonical, err := json.Marshal(interval)
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal interval trigger args")
		}
		return string(canonical), nil

	case TriggerDate:
		var date string
		if err := json.Unmarshal(raw, &date); err != nil {
			return "", errors.WrapInvalidRequest(err, "date trigger args must be a JSON string")
		}
		at, err := ParseDate(date)
		if err != nil {
			return "", err
		}
		return at.Format(time.RFC3339Nano), nil

	default:
		return "", errors.NewInvalidRequestError("no such trigger type %q", triggerType)
	}
}

// Interval is the payload of an interval trigger. The components sum to the
// delay between consecutive runs; fractional values are allowed. Fields are
// declared in key order so json.Marshal emits the canonical form directly.
type Interval struct {
	Days    float64 `json:"days,omitempty"`
	Hours   float64 `json:"hours,omitempty"`
	Minutes float64 `json:"minutes,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
	Weeks   float64 `json:"weeks,omitempty"`
}

// Duration converts the interval to a time.Duration.
func (iv Interval) Duration() time.Duration {
	seconds := iv.Weeks*7*24*60*60 +
		iv.Days*24*60*60 +
		iv.Hours*60*60 +
		iv.Minutes*60 +
		iv.Seconds
	return time.Duration(seconds * float64(time.Second))
}

// ParseInterval decodes and validates interval trigger args. Unknown keys
// and a total delay of zero or less are rejected.
func ParseInterval(raw []byte) (Interval, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var interval Interval
	if err := dec.Decode(&interval); err != nil {
		return Interval{}, errors.WrapInvalidRequest(err, "malformed interval trigger args")
	}
	if interval.Duration() <= 0 {
		return Interval{}, errors.NewInvalidRequestError("interval should be greater than 0")
	}
	return interval, nil
}

// dateLayouts are the accepted date trigger forms. RFC3339Nano also parses
// plain RFC3339; the zoneless layouts are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a date trigger instant and normalizes it to UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if at, err := time.Parse(layout, s); err == nil {
			return at.UTC(), nil
		}
	}
	return time.Time{}, errors.NewInvalidRequestError("invalid date %q", s)
}
