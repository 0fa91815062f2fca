package task

import (
	"time"

	"github.com/adhocore/gronx"

	"github.com/teranos/tempo/errors"
)

// Iterator produces the run instants of one task activation, in order.
// Next returns ok=false when the sequence is exhausted; the executor treats
// that as a signal to go idle. Iterators are single-use: the executor builds
// a fresh one on every idle-to-active transition.
type Iterator interface {
	Next() (time.Time, bool)
}

// NewIterator builds the run-date iterator for the task's trigger, based at
// the current wall clock.
func NewIterator(t *Task) (Iterator, error) {
	return newIteratorAt(t, time.Now().UTC())
}

// newIteratorAt is the testable seam for NewIterator.
func newIteratorAt(t *Task, now time.Time) (Iterator, error) {
	switch t.TriggerType {
	case TriggerInterval:
		interval, err := ParseInterval([]byte(t.TriggerArgs))
		if err != nil {
			return nil, err
		}
		return &intervalIterator{next: now, step: interval.Duration()}, nil

	case TriggerCron:
		return &cronIterator{expr: t.TriggerArgs, after: now}, nil

	case TriggerDate:
		at, err := ParseDate(t.TriggerArgs)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed date trigger args for task %d", t.ID)
		}
		return &dateIterator{at: at}, nil

	default:
		return nil, errors.NewInvalidRequestError("no such trigger type %q", t.TriggerType)
	}
}

// intervalIterator yields base+Δ, base+2Δ, … where base is the activation
// instant. The first run is always strictly after activation.
type intervalIterator struct {
	next time.Time
	step time.Duration
}

func (it *intervalIterator) Next() (time.Time, bool) {
	it.next = it.next.Add(it.step)
	return it.next, true
}

// cronIterator yields the strictly-next fire times of a cron expression.
// The expression was validated at insert, so evaluation errors only occur on
// hand-edited rows; those end the sequence.
type cronIterator struct {
	expr  string
	after time.Time
}

func (it *cronIterator) Next() (time.Time, bool) {
	next, err := gronx.NextTickAfter(it.expr, it.after, false)
	if err != nil {
		return time.Time{}, false
	}
	it.after = next
	return next, true
}

// dateIterator yields its single instant, then reports done.
type dateIterator struct {
	at   time.Time
	done bool
}

func (it *dateIterator) Next() (time.Time, bool) {
	if it.done {
		return time.Time{}, false
	}
	it.done = true
	return it.at, true
}
