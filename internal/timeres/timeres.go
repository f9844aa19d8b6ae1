package timeres

import (
	"strings"
	"time"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// relativeExpression maps one recognized phrase to a whole-day offset from
// today. Entries are matched in order, so longer phrases must come before
// their substrings ("day after tomorrow" before "tomorrow").
type relativeExpression struct {
	phrase     string
	dayOffset  int
	normalized string
}

// expressions covers English, Chinese (Traditional and Simplified) and
// Japanese relative-day phrases. This is a best-effort locale heuristic, not
// a calendar engine; unrecognized expressions are simply not anchored.
var expressions = []relativeExpression{
	{"the day after tomorrow", 2, "day_after_tomorrow"},
	{"day after tomorrow", 2, "day_after_tomorrow"},
	{"the day before yesterday", -2, "day_before_yesterday"},
	{"day before yesterday", -2, "day_before_yesterday"},
	{"tomorrow", 1, "tomorrow"},
	{"yesterday", -1, "yesterday"},
	{"tonight", 0, "today"},
	{"today", 0, "today"},

	{"後天", 2, "day_after_tomorrow"},
	{"后天", 2, "day_after_tomorrow"},
	{"前天", -2, "day_before_yesterday"},
	{"明天", 1, "tomorrow"},
	{"昨天", -1, "yesterday"},
	{"今天", 0, "today"},
	{"今晚", 0, "today"},

	// 明日/昨日/今日 read the same way in Chinese and Japanese.
	{"明後日", 2, "day_after_tomorrow"},
	{"一昨日", -2, "day_before_yesterday"},
	{"明日", 1, "tomorrow"},
	{"昨日", -1, "yesterday"},
	{"今日", 0, "today"},
	{"本日", 0, "today"},
}

// Resolver resolves relative time expressions to absolute timestamps.
// The clock is injectable for tests.
type Resolver struct {
	now func() time.Time
}

// New returns a Resolver using the system clock.
func New() *Resolver {
	return &Resolver{now: time.Now}
}

// NewWithClock returns a Resolver with an injected clock. For tests.
func NewWithClock(now func() time.Time) *Resolver {
	return &Resolver{now: now}
}

// Resolve scans text for a relative time expression and maps it to an
// absolute timestamp anchored at local midnight in the given timezone.
// An unknown or empty timezone falls back to UTC. When no expression is
// recognized the returned context has RelativeExpressionFound=false and the
// request proceeds without explicit date anchoring.
func (r *Resolver) Resolve(text, timezone string) models.TimeContext {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	now := r.now().In(loc)

	tc := models.TimeContext{
		CurrentTime: now,
		Timezone:    loc.String(),
	}

	lowered := strings.ToLower(text)
	for _, expr := range expressions {
		if !strings.Contains(lowered, expr.phrase) {
			continue
		}
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		resolved := midnight.AddDate(0, 0, expr.dayOffset)
		tc.RelativeExpressionFound = true
		tc.ResolvedTime = &resolved
		tc.RelativeDescription = expr.normalized
		return tc
	}
	return tc
}

// Offset returns the whole-day offset a recognized description represents,
// and false for descriptions Resolve never produces.
func Offset(description string) (int, bool) {
	for _, expr := range expressions {
		if expr.normalized == description {
			return expr.dayOffset, true
		}
	}
	return 0, false
}
