package errclass

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/client"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/selector"
)

// TestClassify_Codes verifies the sentinel-to-code mapping including wrapped
// errors and the string heuristics for untyped failures.
func TestClassify_Codes(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      string
		wantRetryable bool
	}{
		{"parsing failed", ErrParsingFailed, CodeParsingFailed, false},
		{"no location", ErrLocationNotSpecified, CodeLocationNotSpecified, false},
		{"no suitable api", selector.ErrNoSuitableAPI, CodeNoSuitableAPI, false},
		{"wrapped no suitable api", fmt.Errorf("route: %w", selector.ErrNoSuitableAPI), CodeNoSuitableAPI, false},
		{"location not found", client.ErrLocationNotFound, CodeLocationNotSupported, false},
		{"rate limited", client.ErrRateLimited, CodeRateLimited, true},
		{"invalid api key", client.ErrInvalidAPIKey, CodeServiceUnavailable, true},
		{"upstream failure", client.ErrUpstreamFailure, CodeServiceUnavailable, true},
		{"deadline", context.DeadlineExceeded, CodeNetworkError, true},
		{"connection refused", errors.New("dial tcp: connection refused"), CodeNetworkError, true},
		{"unmarshal", errors.New("unmarshal response: unexpected end of JSON input"), CodeParsingFailed, false},
		{"unknown", errors.New("boom"), CodeServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Classify(tt.err, "en")
			if rec.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", rec.Code, tt.wantCode)
			}
			if rec.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", rec.Retryable, tt.wantRetryable)
			}
			if rec.UserMessage == "" {
				t.Error("UserMessage empty")
			}
			if len(rec.Suggestions) == 0 {
				t.Error("Suggestions empty")
			}
		})
	}
}

// TestClassify_Severity verifies that input problems stay low severity while
// routing exhaustion is critical.
func TestClassify_Severity(t *testing.T) {
	if got := Classify(ErrLocationNotSpecified, "en").Severity; got != models.SeverityLow {
		t.Errorf("Severity = %q, want low", got)
	}
	if got := Classify(selector.ErrNoSuitableAPI, "en").Severity; got != models.SeverityCritical {
		t.Errorf("Severity = %q, want critical", got)
	}
}

// TestClassify_Localization verifies that messages follow the detected query
// language and unknown tags fall back to English.
func TestClassify_Localization(t *testing.T) {
	zh := Classify(ErrLocationNotSpecified, "zh-TW")
	if zh.UserMessage != "請告訴我要查詢哪個地點的天氣。" {
		t.Errorf("zh-TW UserMessage = %q", zh.UserMessage)
	}

	cn := Classify(ErrLocationNotSpecified, "zh-CN")
	if cn.UserMessage != "请告诉我要查询哪个地点的天气。" {
		t.Errorf("zh-CN UserMessage = %q", cn.UserMessage)
	}

	ja := Classify(client.ErrRateLimited, "ja")
	if ja.UserMessage == "" || ja.UserMessage == Classify(client.ErrRateLimited, "en").UserMessage {
		t.Errorf("ja UserMessage = %q, want Japanese text", ja.UserMessage)
	}

	ko := Classify(ErrParsingFailed, "ko")
	en := Classify(ErrParsingFailed, "en")
	if ko.UserMessage != en.UserMessage {
		t.Errorf("fallback UserMessage = %q, want English %q", ko.UserMessage, en.UserMessage)
	}
}

// TestClassify_NilError verifies the zero record for a nil error.
func TestClassify_NilError(t *testing.T) {
	if rec := Classify(nil, "en"); rec.Code != "" {
		t.Errorf("Classify(nil) = %+v, want zero record", rec)
	}
}
