package task

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tempo/errors"
)

func TestCanonicalTriggerArgsInterval(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"sorts keys", `{"seconds": 5, "minutes": 1}`, `{"minutes":1,"seconds":5}`},
		{"drops zero components", `{"seconds": 1, "days": 0, "hours": 0}`, `{"seconds":1}`},
		{"keeps fractions", `{"seconds": 0.25}`, `{"seconds":0.25}`},
		{"mixed fractions", `{"days": 0.125, "minutes": 60}`, `{"days":0.125,"minutes":60}`},
		{"all components", `{"weeks":1,"days":2,"hours":3,"minutes":4,"seconds":5}`, `{"days":2,"hours":3,"minutes":4,"seconds":5,"weeks":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalTriggerArgs(TriggerInterval, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalTriggerArgsIntervalRejected(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty object", `{}`},
		{"zero seconds", `{"seconds": 0}`},
		{"zero total", `{"seconds": 0, "minutes": 0}`},
		{"unknown key", `{"months": 1}`},
		{"not an object", `"5 seconds"`},
		{"missing args", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CanonicalTriggerArgs(TriggerInterval, json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.IsInvalidRequestError(err))
		})
	}

	_, err := CanonicalTriggerArgs(TriggerInterval, json.RawMessage(`{"seconds": 0}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval should be greater than 0")
}

func TestCanonicalTriggerArgsCron(t *testing.T) {
	got, err := CanonicalTriggerArgs(TriggerCron, json.RawMessage(`"  */5 * * * *  "`))
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", got)

	got, err = CanonicalTriggerArgs(TriggerCron, json.RawMessage(`"1 0 * * *"`))
	require.NoError(t, err)
	assert.Equal(t, "1 0 * * *", got)

	_, err = CanonicalTriggerArgs(TriggerCron, json.RawMessage(`"every five minutes"`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Contains(t, err.Error(), "invalid cron expression")

	// Interval-style payload under the wrong trigger type
	_, err = CanonicalTriggerArgs(TriggerCron, json.RawMessage(`{"seconds": 1}`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestCanonicalTriggerArgsDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"utc instant", `"2024-05-01T10:30:00Z"`, "2024-05-01T10:30:00Z"},
		{"offset normalized", `"2024-05-01T12:30:00+02:00"`, "2024-05-01T10:30:00Z"},
		{"zoneless read as utc", `"2024-05-01 10:30:00"`, "2024-05-01T10:30:00Z"},
		{"sub-second precision kept", `"2024-05-01T10:30:00.25Z"`, "2024-05-01T10:30:00.25Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalTriggerArgs(TriggerDate, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := CanonicalTriggerArgs(TriggerDate, json.RawMessage(`"next tuesday"`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestCanonicalTriggerArgsUnknownType(t *testing.T) {
	_, err := CanonicalTriggerArgs("weekly", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Contains(t, err.Error(), `no such trigger type "weekly"`)
}

func TestDraftValidate(t *testing.T) {
	draft := &Draft{
		Title:       "echo",
		Command:     "echo hi",
		TriggerType: TriggerInterval,
		TriggerArgs: json.RawMessage(`{"seconds": 1}`),
	}
	args, err := draft.Validate()
	require.NoError(t, err)
	assert.Equal(t, `{"seconds":1}`, args)

	// Description is optional, title is not
	draft.Title = ""
	_, err = draft.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Contains(t, err.Error(), `missing field "title"`)

	draft.Title = "echo"
	draft.Command = "   "
	_, err = draft.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Contains(t, err.Error(), `missing field "command"`)
}

func TestIntervalDuration(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
		want     time.Duration
	}{
		{"one second", Interval{Seconds: 1}, time.Second},
		{"quarter second", Interval{Seconds: 0.25}, 250 * time.Millisecond},
		{"minutes and hours", Interval{Minutes: 5, Hours: 2}, 2*time.Hour + 5*time.Minute},
		{"fractional days plus minutes", Interval{Days: 0.125, Minutes: 60}, 4 * time.Hour},
		{"weeks", Interval{Weeks: 1}, 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.interval.Duration())
		})
	}
}

func TestTaskEquivalentTo(t *testing.T) {
	base := &Task{
		ID:          1,
		Title:       "original title",
		Command:     "echo hi",
		TriggerType: TriggerInterval,
		TriggerArgs: `{"seconds":1}`,
	}

	// Cosmetic fields do not participate
	renamed := *base
	renamed.ID = 2
	renamed.Title = "renamed"
	renamed.Descr = "now with a description"
	assert.True(t, base.EquivalentTo(&renamed))

	changedCommand := *base
	changedCommand.Command = "echo bye"
	assert.False(t, base.EquivalentTo(&changedCommand))

	changedArgs := *base
	changedArgs.TriggerArgs = `{"seconds":2}`
	assert.False(t, base.EquivalentTo(&changedArgs))

	changedType := *base
	changedType.TriggerType = TriggerCron
	changedType.TriggerArgs = "* * * * *"
	assert.False(t, base.EquivalentTo(&changedType))

	var nilTask *Task
	assert.False(t, base.EquivalentTo(nilTask))
	assert.True(t, nilTask.EquivalentTo(nil))
}

func TestTaskMarshalJSON(t *testing.T) {
	intervalTask := &Task{
		ID:          1,
		Command:     "echo hi",
		TriggerType: TriggerInterval,
		TriggerArgs: `{"minutes":1,"seconds":5}`,
	}
	data, err := json.Marshal(intervalTask)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Interval args come back as an object, not a quoted string
	args, ok := decoded["trigger_args"].(map[string]interface{})
	require.True(t, ok, "interval trigger_args should be a JSON object")
	assert.Equal(t, float64(1), args["minutes"])
	assert.Equal(t, float64(5), args["seconds"])

	cronTask := &Task{
		ID:          2,
		Command:     "echo cron",
		TriggerType: TriggerCron,
		TriggerArgs: "*/5 * * * *",
	}
	data, err = json.Marshal(cronTask)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "*/5 * * * *", decoded["trigger_args"])
	assert.Equal(t, float64(2), decoded["task_id"])
}

func TestTaskJSONRoundTrip(t *testing.T) {
	for _, original := range []*Task{
		{
			ID:          1,
			Title:       "interval",
			Command:     "echo hi",
			TriggerType: TriggerInterval,
			TriggerArgs: `{"minutes":1,"seconds":5}`,
		},
		{
			ID:          2,
			Command:     "echo cron",
			TriggerType: TriggerCron,
			TriggerArgs: "*/5 * * * *",
		},
	} {
		data, err := json.Marshal(original)
		require.NoError(t, err)

		var restored Task
		require.NoError(t, json.Unmarshal(data, &restored))
		assert.Equal(t, original.ID, restored.ID)
		assert.Equal(t, original.Command, restored.Command)
		assert.Equal(t, original.TriggerType, restored.TriggerType)
		assert.Equal(t, original.TriggerArgs, restored.TriggerArgs)
	}
}
