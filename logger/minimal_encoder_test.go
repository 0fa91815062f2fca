package logger

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stripANSI removes ANSI color codes from a string for testing
func stripANSI(str string) string {
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return ansiRegex.ReplaceAllString(str, "")
}

// TestMinimalEncoderNeverDiscardsFields ensures the minimal encoder NEVER
// silently discards log fields, whatever their key or type.
func TestMinimalEncoderNeverDiscardsFields(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "test",
		Message:    "Testing field preservation",
	}

	testFields := []struct {
		field    zapcore.Field
		mustFind string // What we must find in the output
	}{
		{zap.String("trigger_type", "cron"), "trigger_type=cron"},
		{zap.String("command", "echo hello"), "command=echo hello"},
		{zap.Bool("is_error", true), "is_error=true"},
		{zap.Float64("interval_seconds", 0.25), "interval_seconds=0.25"},
		{zap.Strings("statuses", []string{"started", "finished"}), "statuses"},

		// Arbitrary field names must never be dropped
		{zap.String("random_field_xyz", "important_data"), "random_field_xyz=important_data"},
		{zap.Int("critical_count", 999), "critical_count=999"},
		{zap.String("error_details", "exit status 2"), "error_details=exit status 2"},

		// Numeric types
		{zap.Int32("int32_field", 42), "int32_field=42"},
		{zap.Int64("int64_field", 9999999), "int64_field=9999999"},

		// Error fields
		{zap.Error(nil), ""}, // nil error shouldn't crash
		{zap.String("error", "something went wrong"), "error=something went wrong"},

		// Special-cased identity fields render as bare values
		{zap.Int("task_id", 7), "7"},
		{zap.Int("process_log_id", 12), "12"},
	}

	var allFields []zapcore.Field
	for _, tf := range testFields {
		allFields = append(allFields, tf.field)
	}

	buf, err := encoder.EncodeEntry(entry, allFields)
	if err != nil {
		t.Fatalf("Failed to encode entry: %v", err)
	}

	cleanOutput := stripANSI(buf.String())

	for _, tf := range testFields {
		if tf.mustFind != "" && !strings.Contains(cleanOutput, tf.mustFind) {
			t.Errorf("Field was silently discarded from log output: %s\nOutput: %s", tf.mustFind, cleanOutput)
		}
	}
}

// TestMinimalEncoderFieldCount ensures that every field passed in appears
// in the rendered output exactly once
func TestMinimalEncoderFieldCount(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "test",
		Message:    "Field count test",
	}

	fields := []zapcore.Field{
		zap.String("field1", "value1"),
		zap.String("field2", "value2"),
		zap.String("field3", "value3"),
		zap.Int("field4", 4),
		zap.Bool("field5", true),
		zap.Float64("field6", 6.6),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	output := stripANSI(buf.String())

	for _, key := range []string{"field1=", "field2=", "field3=", "field4=", "field5=", "field6="} {
		if got := strings.Count(output, key); got != 1 {
			t.Errorf("Expected %q exactly once in output, found %d. Output: %s", key, got, output)
		}
	}
}

// TestMinimalEncoderLevels checks WARN/ERROR markers and the quiet INFO format
func TestMinimalEncoderLevels(t *testing.T) {
	encoder := newMinimalEncoder()

	tests := []struct {
		level      zapcore.Level
		wantMarker string
	}{
		{zapcore.InfoLevel, ""},
		{zapcore.WarnLevel, "WARN"},
		{zapcore.ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		entry := zapcore.Entry{
			Level:      tt.level,
			Time:       time.Date(2025, 6, 1, 13, 4, 35, 0, time.UTC),
			LoggerName: "scheduler",
			Message:    "level marker test",
		}

		buf, err := encoder.EncodeEntry(entry, nil)
		if err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
		output := stripANSI(buf.String())

		if !strings.Contains(output, "13:04:35") {
			t.Errorf("missing timestamp in output: %s", output)
		}
		if tt.wantMarker == "" {
			if strings.Contains(output, "INFO") {
				t.Errorf("INFO entries should not carry a level marker: %s", output)
			}
		} else if !strings.Contains(output, tt.wantMarker) {
			t.Errorf("missing %s marker in output: %s", tt.wantMarker, output)
		}
	}
}

func TestAbbreviateName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"server", "server"},
		{"scheduler.executor", "s.executor"},
		{"execution.buffer", "e.buffer"},
	}

	for _, tt := range tests {
		if got := abbreviateName(tt.in); got != tt.want {
			t.Errorf("abbreviateName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestUnknownFieldTypes tests that the encoder handles all possible field types
// without crashing or silently dropping them
func TestUnknownFieldTypes(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "test",
		Message:    "Testing unknown field types",
	}

	fields := []zapcore.Field{
		zap.Complex128("complex", complex(1.0, 2.0)),
		zap.Duration("duration", 5*time.Second),
		zap.Time("timestamp", time.Now()),
		zap.Uint("uint", 100),
		zap.Uint64("uint64", 5000000000),
		zap.ByteString("bytes", []byte("hello world")),
		zap.Binary("binary", []byte{0x01, 0x02, 0x03}),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("Failed to encode complex types: %v", err)
	}

	cleanOutput := stripANSI(buf.String())

	// Verify that SOME representation of each field appears
	expectedSubstrings := []string{
		"complex",
		"duration",
		"timestamp",
		"uint",
		"bytes",
		"binary",
	}

	for _, expected := range expectedSubstrings {
		if !strings.Contains(cleanOutput, expected) {
			t.Errorf("Field with key %q was completely dropped from output: %s", expected, cleanOutput)
		}
	}
}
