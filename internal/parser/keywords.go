package parser

import "github.com/lis186/smart-weather-mcp-server-sub001/internal/models"

// Keyword tables for the rule parser. All matching is substring-based over a
// lowercased copy of the query, so entries must be lowercase. CJK entries are
// shared across Traditional Chinese, Simplified Chinese and Japanese where
// the surface form coincides.

// weatherNouns anchor a query to the weather domain.
var weatherNouns = []string{
	"weather", "conditions",
	"天氣", "天气", "天候", "天気", "氣象", "气象",
}

// forecastCues indicate a forward-looking query.
var forecastCues = []string{
	"forecast", "will it", "next week", "coming days",
	"預報", "预报", "予報", "預測", "预测",
	"明天", "明日", "後天", "后天", "明後日", "下週", "下周", "来週",
}

// historicalCues indicate a backward-looking query.
var historicalCues = []string{
	"yesterday", "historical", "history", "last week",
	"昨天", "昨日", "一昨日", "前天", "歷史", "历史", "過去", "过去", "上週", "上周", "先週",
}

// currentCues indicate an explicit now-oriented query.
var currentCues = []string{
	"now", "current", "right now", "tonight",
	"今天", "今日", "今晚", "現在", "现在", "目前", "本日",
}

// adviceCues indicate the caller wants a judgement, not raw data.
var adviceCues = []string{
	"should i", "recommend", "advice", "suggest", "suitable", "good for",
	"建議", "建议", "適合", "适合", "好嗎", "好吗", "可以嗎", "帶傘", "带伞",
	"衝浪", "冲浪", "滑雪", "登山", "釣魚", "钓鱼", "野餐", "サーフィン", "おすすめ",
}

// metricKeywords maps detection keywords to the data dimension they request.
// Single-character entries like 雨 are deliberate; substring matching catches
// 下雨, 降雨 and 雨量 alike.
var metricKeywords = []struct {
	keyword string
	metric  models.Metric
}{
	{"temperature", models.MetricTemperature},
	{"how hot", models.MetricTemperature},
	{"how cold", models.MetricTemperature},
	{"氣溫", models.MetricTemperature},
	{"气温", models.MetricTemperature},
	{"溫度", models.MetricTemperature},
	{"温度", models.MetricTemperature},
	{"気温", models.MetricTemperature},

	{"humidity", models.MetricHumidity},
	{"濕度", models.MetricHumidity},
	{"湿度", models.MetricHumidity},

	{"wind", models.MetricWind},
	{"風速", models.MetricWind},
	{"风速", models.MetricWind},
	{"風力", models.MetricWind},
	{"风力", models.MetricWind},

	{"rain", models.MetricPrecipitation},
	{"snow", models.MetricPrecipitation},
	{"precipitation", models.MetricPrecipitation},
	{"雨", models.MetricPrecipitation},
	{"雪", models.MetricPrecipitation},
	{"降水", models.MetricPrecipitation},

	{"air quality", models.MetricAirQuality},
	{"aqi", models.MetricAirQuality},
	{"pm2.5", models.MetricAirQuality},
	{"空氣品質", models.MetricAirQuality},
	{"空气质量", models.MetricAirQuality},
	{"霾", models.MetricAirQuality},

	{"uv", models.MetricUV},
	{"紫外線", models.MetricUV},
	{"紫外线", models.MetricUV},
	{"日焼け", models.MetricUV},

	{"wave", models.MetricMarine},
	{"surf", models.MetricMarine},
	{"tide", models.MetricMarine},
	{"marine", models.MetricMarine},
	{"海浪", models.MetricMarine},
	{"波浪", models.MetricMarine},
	{"潮汐", models.MetricMarine},
	{"衝浪", models.MetricMarine},
	{"冲浪", models.MetricMarine},
	{"波の高さ", models.MetricMarine},
}

// cjkStripWords are domain words removed from the edges of a CJK token run
// before what remains is considered a place-name candidate. Ordered longest
// first so compound words are stripped before their parts.
var cjkStripWords = []string{
	"空氣品質", "空气质量", "明後日", "一昨日", "怎麼樣", "怎么样",
	"天氣", "天气", "天候", "天気", "氣象", "气象",
	"預報", "预报", "予報", "預測", "预测",
	"今天", "明天", "昨天", "後天", "后天", "前天",
	"今日", "明日", "昨日", "本日", "今晚",
	"現在", "现在", "目前", "下週", "下周", "来週", "上週", "上周", "先週",
	"氣溫", "气温", "溫度", "温度", "気温", "濕度", "湿度",
	"風速", "风速", "風力", "风力", "降水", "降雨", "雨量",
	"紫外線", "紫外线", "海浪", "波浪", "潮汐", "高度", "機率", "概率",
	"衝浪", "冲浪", "滑雪", "登山", "釣魚", "钓鱼", "野餐",
	"建議", "建议", "條件", "条件", "適合", "适合", "帶傘", "带伞",
	"如何", "歷史", "历史", "過去", "过去",
	"的", "在", "嗎", "吗", "呢", "雨", "雪", "熱", "热", "冷",
	"會", "会", "要", "想", "去", "下", "不", "了", "很",
}

// latinStopwords are English tokens that terminate or disqualify a Latin
// place-name candidate. Activity and metric nouns are here so "surf
// conditions" is never read as a place.
var latinStopwords = map[string]struct{}{
	"weather": {}, "forecast": {}, "temperature": {}, "humidity": {},
	"wind": {}, "rain": {}, "snow": {}, "conditions": {}, "condition": {},
	"today": {}, "tomorrow": {}, "yesterday": {}, "tonight": {}, "now": {},
	"current": {}, "next": {}, "week": {}, "surf": {}, "surfing": {},
	"wave": {}, "waves": {}, "tide": {}, "uv": {}, "aqi": {}, "air": {},
	"quality": {}, "the": {}, "a": {}, "an": {}, "and": {}, "for": {},
	"in": {}, "at": {}, "of": {}, "on": {}, "what": {}, "whats": {},
	"how": {}, "is": {}, "it": {}, "will": {}, "be": {}, "like": {},
	"please": {}, "me": {}, "tell": {}, "show": {}, "good": {},
	"hot": {}, "cold": {}, "this": {}, "morning": {}, "afternoon": {},
	"evening": {}, "night": {}, "day": {}, "hourly": {}, "daily": {},
}

// hourlyCues mark an explicit request for hour-level resolution.
var hourlyCues = []string{
	"hourly", "by hour", "每小時", "每小时", "逐時", "逐时", "時間ごと",
}

// simplifiedIndicators and traditionalIndicators are small character sets
// that disambiguate the two Chinese scripts. Ambiguity defaults to
// Traditional.
var simplifiedIndicators = "气预报后湿风温历过条适议伞钓铁广东云岛屿龙"

var traditionalIndicators = "氣預報後濕風溫歷過條適議傘釣鐵廣東雲島嶼龍"
