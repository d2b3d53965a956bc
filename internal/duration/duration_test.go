package duration

import (
	"testing"
	"time"
)

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{name: "milliseconds", raw: "100ms", want: 100 * time.Millisecond},
		{name: "one millisecond", raw: "1ms", want: time.Millisecond},
		{name: "seconds", raw: "1s", want: time.Second},
		{name: "decimal seconds", raw: "2.5s", want: 2500 * time.Millisecond},
		{name: "minutes", raw: "1m", want: time.Minute},
		{name: "decimal minutes", raw: "1.5m", want: 90 * time.Second},
		{name: "hours", raw: "1h", want: time.Hour},
		{name: "hr alias", raw: "1hr", want: time.Hour},
		{name: "decimal hours", raw: "1.5hr", want: 90 * time.Minute},
		{name: "uppercase", raw: "10S", want: 10 * time.Second},
		{name: "padded", raw: "  5s  ", want: 5 * time.Second},
		{name: "largest representable", raw: "9223372036854ms", want: 9223372036854 * time.Millisecond},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "blank", raw: "   "},
		{name: "no unit", raw: "100"},
		{name: "no number", raw: "ms"},
		{name: "unknown unit", raw: "5d"},
		{name: "decimal milliseconds", raw: "1.5ms"},
		{name: "negative", raw: "-5s"},
		{name: "garbage", raw: "abc"},
		{name: "number after unit", raw: "5s5"},
		{name: "hours overflow int64 nanoseconds", raw: "9999999999h"},
		{name: "milliseconds overflow int64 nanoseconds", raw: "9223372036855ms"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.raw); err == nil {
				t.Fatalf("Parse(%q) expected error", tt.raw)
			}
		})
	}
}

func TestFormatMS(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ms   int64
		want string
	}{
		{ms: 0, want: "0ms"},
		{ms: 750, want: "750ms"},
		{ms: 1000, want: "1s"},
		{ms: 2500, want: "2.5s"},
		{ms: 90_000, want: "1m30s"},
		{ms: 5_400_000, want: "1h30m0s"},
		{ms: -10, want: "0ms"},
	}
	for _, tt := range tests {
		if got := FormatMS(tt.ms); got != tt.want {
			t.Fatalf("FormatMS(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
