package timeres

import (
	"testing"
	"time"
)

// fixedClock returns a clock function pinned to the given instant.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// TestResolver_Resolve_RelativeExpressions verifies that relative-day phrases
// in English, Chinese and Japanese resolve to midnight offsets in the
// requested timezone.
func TestResolver_Resolve_RelativeExpressions(t *testing.T) {
	// 2025-03-10 15:04 UTC is 2025-03-10 23:04 in Taipei.
	now := time.Date(2025, 3, 10, 15, 4, 0, 0, time.UTC)
	r := NewWithClock(fixedClock(now))

	taipei, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	tests := []struct {
		name     string
		text     string
		timezone string
		wantDesc string
		wantDay  time.Time
	}{
		{
			name:     "english tomorrow",
			text:     "weather tomorrow in Tokyo",
			timezone: "Asia/Taipei",
			wantDesc: "tomorrow",
			wantDay:  time.Date(2025, 3, 11, 0, 0, 0, 0, taipei),
		},
		{
			name:     "english day after tomorrow beats tomorrow",
			text:     "forecast for the day after tomorrow",
			timezone: "Asia/Taipei",
			wantDesc: "day_after_tomorrow",
			wantDay:  time.Date(2025, 3, 12, 0, 0, 0, 0, taipei),
		},
		{
			name:     "traditional chinese today",
			text:     "台北今天天氣",
			timezone: "Asia/Taipei",
			wantDesc: "today",
			wantDay:  time.Date(2025, 3, 10, 0, 0, 0, 0, taipei),
		},
		{
			name:     "simplified chinese day after tomorrow",
			text:     "北京后天天气",
			timezone: "Asia/Taipei",
			wantDesc: "day_after_tomorrow",
			wantDay:  time.Date(2025, 3, 12, 0, 0, 0, 0, taipei),
		},
		{
			name:     "japanese tomorrow",
			text:     "東京の明日の天気",
			timezone: "Asia/Taipei",
			wantDesc: "tomorrow",
			wantDay:  time.Date(2025, 3, 11, 0, 0, 0, 0, taipei),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Resolve(tc.text, tc.timezone)
			if !got.RelativeExpressionFound {
				t.Fatal("RelativeExpressionFound = false, want true")
			}
			if got.RelativeDescription != tc.wantDesc {
				t.Errorf("RelativeDescription = %q, want %q", got.RelativeDescription, tc.wantDesc)
			}
			if got.ResolvedTime == nil {
				t.Fatal("ResolvedTime = nil")
			}
			if !got.ResolvedTime.Equal(tc.wantDay) {
				t.Errorf("ResolvedTime = %v, want %v", got.ResolvedTime, tc.wantDay)
			}
		})
	}
}

// TestResolver_Resolve_LocalMidnightNotUTC verifies that anchoring uses local
// midnight in the requested timezone: late UTC evening is already the next
// calendar day in Taipei.
func TestResolver_Resolve_LocalMidnightNotUTC(t *testing.T) {
	// 2025-03-10 22:00 UTC = 2025-03-11 06:00 Taipei.
	now := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	r := NewWithClock(fixedClock(now))

	got := r.Resolve("today weather", "Asia/Taipei")
	if got.ResolvedTime == nil {
		t.Fatal("ResolvedTime = nil")
	}
	if got.ResolvedTime.Day() != 11 {
		t.Errorf("resolved day = %d, want 11 (Taipei calendar day)", got.ResolvedTime.Day())
	}
	if got.ResolvedTime.Hour() != 0 {
		t.Errorf("resolved hour = %d, want 0 (local midnight)", got.ResolvedTime.Hour())
	}
}

// TestResolver_Resolve_NoExpression verifies that text without a relative
// expression yields an unanchored context rather than an error.
func TestResolver_Resolve_NoExpression(t *testing.T) {
	r := NewWithClock(fixedClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)))

	got := r.Resolve("weather in Paris", "UTC")
	if got.RelativeExpressionFound {
		t.Error("RelativeExpressionFound = true, want false")
	}
	if got.ResolvedTime != nil {
		t.Errorf("ResolvedTime = %v, want nil", got.ResolvedTime)
	}
}

// TestResolver_Resolve_BadTimezone verifies the UTC fallback for unknown
// timezone names.
func TestResolver_Resolve_BadTimezone(t *testing.T) {
	r := NewWithClock(fixedClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)))

	got := r.Resolve("tomorrow", "Not/AZone")
	if got.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", got.Timezone)
	}
	if !got.RelativeExpressionFound {
		t.Error("RelativeExpressionFound = false, want true")
	}
}

// TestOffset verifies the description-to-offset lookup used when building
// upstream request parameters.
func TestOffset(t *testing.T) {
	tests := []struct {
		desc   string
		want   int
		wantOK bool
	}{
		{"today", 0, true},
		{"tomorrow", 1, true},
		{"yesterday", -1, true},
		{"day_after_tomorrow", 2, true},
		{"next_week", 0, false},
	}
	for _, tc := range tests {
		got, ok := Offset(tc.desc)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("Offset(%q) = (%d, %v), want (%d, %v)", tc.desc, got, ok, tc.want, tc.wantOK)
		}
	}
}
