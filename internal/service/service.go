// Package service orchestrates the query routing pipeline: rule parsing, AI
// fallback, API selection, cache-aside weather retrieval and fallback-chain
// walking.
package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/ai"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/cache"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/client"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/errclass"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/health"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/observability"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/parser"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/selector"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/timeres"
)

const (
	// defaultAIThreshold is the rule confidence below which the AI adapter
	// is consulted.
	defaultAIThreshold = 0.50
	// defaultMinConfidence is the floor below which parsing is reported as
	// failed rather than routed.
	defaultMinConfidence = 0.30
	defaultCoalesceTime  = 10 * time.Second
)

// RouterService wires the full pipeline behind one RouteQuery entry point.
type RouterService struct {
	parser       *parser.RuleParser
	timeResolver *timeres.Resolver
	ai           ai.Adapter // nil when AI parsing is disabled
	selector     *selector.Selector
	health       *health.Registry
	cache        cache.Store
	client       client.WeatherClient
	coalescer    *fetchCoalescer

	aiThreshold   float64
	minConfidence float64
}

// Options configures RouterService construction. Parser, TimeResolver,
// Selector, Health, Cache and Client are required; AI may be nil.
type Options struct {
	Parser          *parser.RuleParser
	TimeResolver    *timeres.Resolver
	AI              ai.Adapter
	Selector        *selector.Selector
	Health          *health.Registry
	Cache           cache.Store
	Client          client.WeatherClient
	AIThreshold     float64
	MinConfidence   float64
	CoalesceTimeout time.Duration
}

func New(opts Options) *RouterService {
	if opts.AIThreshold <= 0 {
		opts.AIThreshold = defaultAIThreshold
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = defaultMinConfidence
	}
	if opts.CoalesceTimeout <= 0 {
		opts.CoalesceTimeout = defaultCoalesceTime
	}
	return &RouterService{
		parser:        opts.Parser,
		timeResolver:  opts.TimeResolver,
		ai:            opts.AI,
		selector:      opts.Selector,
		health:        opts.Health,
		cache:         opts.Cache,
		client:        opts.Client,
		coalescer:     newFetchCoalescer(opts.CoalesceTimeout),
		aiThreshold:   opts.AIThreshold,
		minConfidence: opts.MinConfidence,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// RouteQuery runs a natural-language weather query through the pipeline and
// returns the full envelope: parsed form, routing decision, weather data or a
// classified error. timezone is the caller's IANA timezone for relative-time
// resolution; empty falls back to UTC.
func (s *RouterService) RouteQuery(ctx context.Context, raw models.RawQuery, timezone string) models.RoutingResult {
	start := time.Now()
	logger := loggerFromContext(ctx)

	timeCtx := s.timeResolver.Resolve(raw.Text, timezone)
	parsed := s.parse(ctx, raw, timeCtx, logger)

	observability.ParseSourceTotal.WithLabelValues(string(parsed.Source)).Inc()
	observability.QueriesByLanguageTotal.WithLabelValues(parsed.Language).Inc()

	// Empty input carries no location by definition; report the missing
	// location rather than a generic parse failure.
	if strings.TrimSpace(raw.Text) == "" {
		return s.fail(errclass.ErrLocationNotSpecified, parsed, nil, start)
	}
	if parsed.Confidence < s.minConfidence {
		return s.fail(errclass.ErrParsingFailed, parsed, nil, start)
	}
	if parsed.Location.Name == "" {
		return s.fail(errclass.ErrLocationNotSpecified, parsed, nil, start)
	}

	rc := s.health.Snapshot(s.selector.APIIDs())
	decision, err := s.selector.Select(parsed, rc)
	if err != nil {
		return s.fail(err, parsed, nil, start)
	}

	geo, err := s.geocode(ctx, parsed)
	if err != nil {
		return s.fail(err, parsed, &decision, start)
	}

	typeTag := typeTagFor(parsed)
	key := cache.WeatherKey(typeTag, geo.Latitude, geo.Longitude,
		decision.APIParameters["units"], parsed.Granularity(), parsed.Timeframe.Period)

	if cached, ok, cacheErr := s.cache.Get(ctx, key); cacheErr == nil && ok {
		if payload, isPayload := cached.(models.WeatherPayload); isPayload {
			observability.CacheHitsTotal.WithLabelValues(typeTag).Inc()
			observability.QueriesTotal.WithLabelValues("success").Inc()
			if logger != nil {
				logger.Debug("cache hit", zap.String("key", key))
			}
			return s.succeed(parsed, decision, payload, true, 0, start)
		}
	}
	observability.CacheMissesTotal.WithLabelValues(typeTag).Inc()

	payload, fallbacks, err := s.fetchWithFallback(ctx, key, decision, rc, parsed, geo, logger)
	if err != nil {
		return s.fail(err, parsed, &decision, start)
	}

	if setErr := s.cache.Set(ctx, key, payload, typeTag); setErr != nil && logger != nil {
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
	}

	observability.QueriesTotal.WithLabelValues("success").Inc()
	if logger != nil {
		logger.Debug("query routed",
			zap.String("api", payload.SourceAPI),
			zap.String("source", string(parsed.Source)),
			zap.Int("fallbacks", fallbacks),
			zap.Duration("duration", time.Since(start)))
	}
	return s.succeed(parsed, decision, payload, false, fallbacks, start)
}

// parse runs the rule parser and consults the AI adapter when the rule
// confidence is below threshold. AI failures are absorbed: the rule result is
// kept and tagged rules_fallback.
func (s *RouterService) parse(ctx context.Context, raw models.RawQuery, timeCtx models.TimeContext, logger *zap.Logger) models.ParsedQuery {
	parsed := s.parser.Parse(raw)
	if parsed.Confidence >= s.aiThreshold {
		parsed.Source = models.SourceRulesOnly
		return parsed
	}

	if s.ai == nil {
		parsed.Source = models.SourceRulesFallback
		return parsed
	}

	aiStart := time.Now()
	aiParsed, err := s.ai.Parse(ctx, raw, enrichContext(raw, timeCtx))
	observability.AICallDuration.Observe(time.Since(aiStart).Seconds())
	if err != nil {
		observability.AICallsTotal.WithLabelValues("error").Inc()
		if logger != nil {
			logger.Warn("ai parsing failed, keeping rule result", zap.Error(err))
		}
		parsed.Source = models.SourceRulesFallback
		return parsed
	}
	observability.AICallsTotal.WithLabelValues("success").Inc()
	return ai.Merge(parsed, aiParsed)
}

// enrichContext assembles the context block handed to the AI adapter:
// caller-provided conversation context plus resolved time information.
func enrichContext(raw models.RawQuery, timeCtx models.TimeContext) string {
	var parts []string
	if raw.Context != "" {
		parts = append(parts, raw.Context)
	}
	parts = append(parts, "current time: "+timeCtx.CurrentTime.Format(time.RFC3339))
	if timeCtx.RelativeExpressionFound && timeCtx.ResolvedTime != nil {
		parts = append(parts, "query time expression resolves to: "+timeCtx.ResolvedTime.Format("2006-01-02"))
	}
	return strings.Join(parts, "\n")
}

// geocode resolves the parsed location, caching results for a week.
func (s *RouterService) geocode(ctx context.Context, parsed models.ParsedQuery) (models.GeoLocation, error) {
	key := cache.LocationKey(parsed.Location.Name, parsed.Language)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		if geo, isGeo := cached.(models.GeoLocation); isGeo {
			observability.CacheHitsTotal.WithLabelValues(cache.TypeLocation).Inc()
			return geo, nil
		}
	}
	observability.CacheMissesTotal.WithLabelValues(cache.TypeLocation).Inc()

	geo, err := s.client.Geocode(ctx, parsed.Location.Name, parsed.Language)
	if err != nil {
		return models.GeoLocation{}, err
	}
	_ = s.cache.Set(ctx, key, geo, cache.TypeLocation)
	return geo, nil
}

// fetchWithFallback walks the routing decision's fallback chain until a
// backend answers. Concurrent identical queries share one upstream fetch via
// the coalescer.
func (s *RouterService) fetchWithFallback(ctx context.Context, key string, decision models.RoutingDecision, rc models.RoutingContext, parsed models.ParsedQuery, geo models.GeoLocation, logger *zap.Logger) (models.WeatherPayload, int, error) {
	fallbacks := 0
	payload, err := s.coalescer.GetOrDo(ctx, key, func() (models.WeatherPayload, error) {
		d := decision
		for {
			req := buildFetchRequest(d, parsed, geo)
			callStart := time.Now()
			p, fetchErr := s.client.Fetch(ctx, d.SelectedAPI, req)
			if fetchErr == nil {
				s.health.RecordSuccess(d.SelectedAPI, time.Since(callStart))
				return p, nil
			}
			s.health.RecordError(d.SelectedAPI)
			if logger != nil {
				logger.Warn("upstream fetch failed",
					zap.String("api", d.SelectedAPI), zap.Error(fetchErr))
			}

			next, advErr := selector.Advance(d, s.health.Snapshot(s.selector.APIIDs()))
			if advErr != nil {
				if errors.Is(advErr, selector.ErrNoSuitableAPI) {
					return models.WeatherPayload{}, advErr
				}
				return models.WeatherPayload{}, fetchErr
			}
			observability.RoutingFallbacksTotal.Inc()
			fallbacks++
			d = next
		}
	})
	return payload, fallbacks, err
}

// HandleFallback advances a failed routing decision to its next viable
// candidate against the current health picture.
func (s *RouterService) HandleFallback(ctx context.Context, decision models.RoutingDecision) (models.RoutingDecision, error) {
	rc := s.health.Snapshot(s.selector.APIIDs())
	next, err := selector.Advance(decision, rc)
	if err != nil {
		return models.RoutingDecision{}, err
	}
	observability.RoutingFallbacksTotal.Inc()
	return next, nil
}

// GetCacheMetrics exposes the response cache counters for the metrics
// endpoint and operator inspection.
func (s *RouterService) GetCacheMetrics() models.CacheMetrics {
	return s.cache.Metrics()
}

func (s *RouterService) succeed(parsed models.ParsedQuery, decision models.RoutingDecision, payload models.WeatherPayload, cacheHit bool, fallbacks int, start time.Time) models.RoutingResult {
	return models.RoutingResult{
		Success:  true,
		Parsed:   &parsed,
		Decision: &decision,
		Data:     &payload,
		Metadata: models.ResultMetadata{
			ProcessingTimeMs:  time.Since(start).Milliseconds(),
			ParsingConfidence: parsed.Confidence,
			ParsingSource:     parsed.Source,
			CacheHit:          cacheHit,
			FallbacksUsed:     fallbacks,
		},
	}
}

func (s *RouterService) fail(err error, parsed models.ParsedQuery, decision *models.RoutingDecision, start time.Time) models.RoutingResult {
	observability.QueriesTotal.WithLabelValues("error").Inc()
	record := errclass.Classify(err, parsed.Language)
	return models.RoutingResult{
		Success:  false,
		Parsed:   &parsed,
		Decision: decision,
		Error:    &record,
		Metadata: models.ResultMetadata{
			ProcessingTimeMs:  time.Since(start).Milliseconds(),
			ParsingConfidence: parsed.Confidence,
			ParsingSource:     parsed.Source,
		},
	}
}

// typeTagFor maps the parsed intent onto a cache type tag. Advice queries
// cache like forecasts; their data is forecast-shaped.
func typeTagFor(parsed models.ParsedQuery) string {
	switch parsed.Intent.Primary {
	case models.IntentHistorical:
		return cache.TypeHistorical
	case models.IntentForecast, models.IntentWeatherAdvice:
		return cache.TypeForecast
	default:
		return cache.TypeCurrentWeather
	}
}

// buildFetchRequest translates a routing decision into client parameters.
func buildFetchRequest(d models.RoutingDecision, parsed models.ParsedQuery, geo models.GeoLocation) client.FetchRequest {
	dayOffset := 0
	if v, ok := d.APIParameters["dayOffset"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			dayOffset = n
		}
	}
	units := d.APIParameters["units"]
	if units == "" {
		units = "metric"
	}
	return client.FetchRequest{
		Location:    geo,
		Units:       units,
		Granularity: parsed.Granularity(),
		DayOffset:   dayOffset,
		Language:    parsed.Language,
	}
}
