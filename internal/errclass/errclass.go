// Package errclass turns routing failures into structured, user-facing
// error records: a stable code for metrics, a severity, whether a retry can
// help, and localized suggestions in the language the query arrived in.
package errclass

import (
	"context"
	"errors"
	"strings"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/client"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/selector"
)

// Stable error codes surfaced in RoutingResult.Error.Code.
const (
	CodeParsingFailed        = "PARSING_FAILED"
	CodeNoSuitableAPI        = "NO_SUITABLE_API"
	CodeLocationNotSpecified = "LOCATION_NOT_SPECIFIED"
	CodeLocationNotSupported = "LOCATION_NOT_SUPPORTED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	CodeNetworkError         = "NETWORK_ERROR"
)

// Sentinels raised by the routing pipeline itself rather than a backend.
var (
	// ErrParsingFailed marks a query neither rules nor AI could interpret.
	ErrParsingFailed = errors.New("query could not be parsed")
	// ErrLocationNotSpecified marks a query with no usable location after
	// parsing, context enrichment and AI fallback.
	ErrLocationNotSpecified = errors.New("no location specified")
)

// Classify maps err to an ErrorRecord with a localized user message and
// suggestions. language is the BCP 47 tag detected for the query; unknown
// tags fall back to English.
func Classify(err error, language string) models.ErrorRecord {
	if err == nil {
		return models.ErrorRecord{}
	}

	code := codeFor(err)
	return models.ErrorRecord{
		Code:        code,
		Severity:    severityFor(code),
		Retryable:   retryableFor(code),
		UserMessage: localized(userMessages, code, language),
		Suggestions: localizedList(suggestions, code, language),
	}
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrLocationNotSpecified):
		return CodeLocationNotSpecified
	case errors.Is(err, ErrParsingFailed):
		return CodeParsingFailed
	case errors.Is(err, selector.ErrNoSuitableAPI):
		return CodeNoSuitableAPI
	case errors.Is(err, client.ErrLocationNotFound):
		return CodeLocationNotSupported
	case errors.Is(err, client.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, client.ErrInvalidAPIKey), errors.Is(err, client.ErrUpstreamFailure):
		return CodeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeNetworkError
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") ||
		strings.Contains(msg, "timeout") || strings.Contains(msg, "no such host"):
		return CodeNetworkError
	case strings.Contains(msg, "parse") || strings.Contains(msg, "unmarshal"):
		return CodeParsingFailed
	default:
		return CodeServiceUnavailable
	}
}

func severityFor(code string) models.Severity {
	switch code {
	case CodeLocationNotSpecified, CodeLocationNotSupported, CodeParsingFailed:
		return models.SeverityLow
	case CodeRateLimited:
		return models.SeverityMedium
	case CodeNoSuitableAPI:
		return models.SeverityCritical
	default:
		return models.SeverityHigh
	}
}

func retryableFor(code string) bool {
	switch code {
	case CodeRateLimited, CodeServiceUnavailable, CodeNetworkError:
		return true
	default:
		// User input problems do not resolve by retrying the same query,
		// and an exhausted candidate set needs operator action first.
		return false
	}
}

// normalizeLanguage collapses detected tags onto the four message locales.
func normalizeLanguage(language string) string {
	lower := strings.ToLower(language)
	switch {
	case strings.HasPrefix(lower, "zh-cn") || strings.HasPrefix(lower, "zh-hans"):
		return "zh-CN"
	case strings.HasPrefix(lower, "zh"):
		return "zh-TW"
	case strings.HasPrefix(lower, "ja"):
		return "ja"
	default:
		return "en"
	}
}

func localized(table map[string]map[string]string, code, language string) string {
	byLang, ok := table[code]
	if !ok {
		return ""
	}
	if msg, ok := byLang[normalizeLanguage(language)]; ok {
		return msg
	}
	return byLang["en"]
}

func localizedList(table map[string]map[string][]string, code, language string) []string {
	byLang, ok := table[code]
	if !ok {
		return nil
	}
	if list, ok := byLang[normalizeLanguage(language)]; ok {
		return list
	}
	return byLang["en"]
}

var userMessages = map[string]map[string]string{
	CodeParsingFailed: {
		"en":    "Sorry, I couldn't understand that weather question.",
		"zh-TW": "抱歉，無法理解這個天氣問題。",
		"zh-CN": "抱歉，无法理解这个天气问题。",
		"ja":    "申し訳ありません、この天気の質問を理解できませんでした。",
	},
	CodeLocationNotSpecified: {
		"en":    "Please tell me which location you want the weather for.",
		"zh-TW": "請告訴我要查詢哪個地點的天氣。",
		"zh-CN": "请告诉我要查询哪个地点的天气。",
		"ja":    "どの場所の天気を知りたいか教えてください。",
	},
	CodeLocationNotSupported: {
		"en":    "I couldn't find that location.",
		"zh-TW": "找不到這個地點。",
		"zh-CN": "找不到这个地点。",
		"ja":    "その場所が見つかりませんでした。",
	},
	CodeNoSuitableAPI: {
		"en":    "No weather service can answer this request right now.",
		"zh-TW": "目前沒有天氣服務可以回答這個請求。",
		"zh-CN": "目前没有天气服务可以回答这个请求。",
		"ja":    "現在、このリクエストに応答できる気象サービスがありません。",
	},
	CodeRateLimited: {
		"en":    "Too many requests, please slow down.",
		"zh-TW": "請求過於頻繁，請稍後再試。",
		"zh-CN": "请求过于频繁，请稍后再试。",
		"ja":    "リクエストが多すぎます。しばらくしてからお試しください。",
	},
	CodeServiceUnavailable: {
		"en":    "The weather service is temporarily unavailable.",
		"zh-TW": "天氣服務暫時無法使用。",
		"zh-CN": "天气服务暂时无法使用。",
		"ja":    "気象サービスは一時的に利用できません。",
	},
	CodeNetworkError: {
		"en":    "A network problem interrupted the request.",
		"zh-TW": "網路問題中斷了請求。",
		"zh-CN": "网络问题中断了请求。",
		"ja":    "ネットワークの問題でリクエストが中断されました。",
	},
}

var suggestions = map[string]map[string][]string{
	CodeParsingFailed: {
		"en":    {"Try asking like: \"weather in Taipei tomorrow\"", "Include a place name and a time"},
		"zh-TW": {"可以試試：「台北明天天氣」", "請包含地點和時間"},
		"zh-CN": {"可以试试：「台北明天天气」", "请包含地点和时间"},
		"ja":    {"「東京の明日の天気」のように聞いてみてください", "場所と時間を含めてください"},
	},
	CodeLocationNotSpecified: {
		"en":    {"Add a city name to your question", "Example: \"will it rain in Tokyo?\""},
		"zh-TW": {"請在問題中加入城市名稱", "例如：「東京會下雨嗎？」"},
		"zh-CN": {"请在问题中加入城市名称", "例如：「东京会下雨吗？」"},
		"ja":    {"質問に都市名を追加してください", "例：「東京は雨が降りますか？」"},
	},
	CodeLocationNotSupported: {
		"en":    {"Check the spelling of the place name", "Try a larger nearby city"},
		"zh-TW": {"請確認地名拼寫", "可以試試附近較大的城市"},
		"zh-CN": {"请确认地名拼写", "可以试试附近较大的城市"},
		"ja":    {"地名のつづりを確認してください", "近くの大きな都市で試してください"},
	},
	CodeNoSuitableAPI: {
		"en":    {"Try a different kind of weather question", "Contact the service operator if this keeps happening"},
		"zh-TW": {"可以試試其他類型的天氣查詢", "若持續發生請聯絡服務管理員"},
		"zh-CN": {"可以试试其他类型的天气查询", "若持续发生请联系服务管理员"},
		"ja":    {"別の種類の天気の質問をお試しください", "解決しない場合は運営者にお問い合わせください"},
	},
	CodeRateLimited: {
		"en":    {"Wait a moment before retrying"},
		"zh-TW": {"請稍候再重試"},
		"zh-CN": {"请稍候再重试"},
		"ja":    {"少し待ってから再試行してください"},
	},
	CodeServiceUnavailable: {
		"en":    {"Try again shortly"},
		"zh-TW": {"請稍後再試"},
		"zh-CN": {"请稍后再试"},
		"ja":    {"しばらくしてからもう一度お試しください"},
	},
	CodeNetworkError: {
		"en":    {"Check your connection and retry"},
		"zh-TW": {"請檢查網路連線後重試"},
		"zh-CN": {"请检查网络连接后重试"},
		"ja":    {"接続を確認して再試行してください"},
	},
}
