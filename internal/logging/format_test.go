package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestFormatField(t *testing.T) {
	cases := []struct {
		key   string
		value slog.Value
		want  string
	}{
		{"percent", slog.IntValue(42), "42%"},
		{"size_bytes", slog.Int64Value(512), "512 B"},
		{"size_bytes", slog.Int64Value(3 * 1024 * 1024), "3.0 MiB"},
		{"count", slog.IntValue(7), "7"},
		{"title", slog.StringValue("two words"), `"two words"`},
		{"title", slog.StringValue(""), `""`},
		{"error", slog.AnyValue(errors.New("exit status 1")), `"exit status 1"`},
		{"age", slog.DurationValue(1500 * time.Microsecond), "2ms"},
	}
	for _, tc := range cases {
		if got := formatField(tc.key, tc.value); got != tc.want {
			t.Errorf("formatField(%q, %v) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}
