package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	// AI fallback parsing. AIEnabled turns false when no ANTHROPIC_API_KEY
	// is available; the router then degrades to rules_fallback.
	AIEnabled      bool
	AnthropicKey   string
	AIModel        string
	AITimeout      time.Duration
	AIThreshold    float64
	MinConfidence  float64
	RequestTimeout time.Duration

	// Upstream weather backends. Keyless backends (open-meteo) always work;
	// missing keys drop the corresponding backend from the endpoint table.
	GeocodingURL        string
	OpenMeteoURL        string
	OpenMeteoArchiveURL string
	OpenWeatherURL      string
	OpenWeatherAPIKey   string
	WeatherAPIURL       string
	WeatherAPIKey       string
	UpstreamTimeout     time.Duration
	UpstreamRPM         int

	CacheBackend          string // "in_memory" or "memcached"
	CacheMaxSize          int
	CacheCleanupThreshold int
	CacheSweepInterval    time.Duration
	CacheTTLs             map[string]time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	HealthWindow              time.Duration
	HealthDegradedErrorPct    int
	HealthUnavailableErrorPct int
	HealthDegradedLatency     time.Duration
	HealthMinSamples          int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	AI struct {
		Enabled       *bool   `yaml:"enabled"`
		Model         string  `yaml:"model"`
		Timeout       string  `yaml:"timeout"`
		Threshold     float64 `yaml:"threshold"`
		MinConfidence float64 `yaml:"min_confidence"`
	} `yaml:"ai"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	WeatherAPIs struct {
		GeocodingURL        string `yaml:"geocoding_url"`
		OpenMeteoURL        string `yaml:"open_meteo_url"`
		OpenMeteoArchiveURL string `yaml:"open_meteo_archive_url"`
		OpenWeatherURL      string `yaml:"openweather_url"`
		WeatherAPIURL       string `yaml:"weatherapi_url"`
		Timeout             string `yaml:"timeout"`
		RequestsPerMinute   int    `yaml:"requests_per_minute"`
	} `yaml:"weather_apis"`

	Cache struct {
		Backend          string `yaml:"backend"`
		MaxSize          int    `yaml:"max_size"`
		CleanupThreshold int    `yaml:"cleanup_threshold"`
		SweepInterval    string `yaml:"sweep_interval"`
		TTLs             struct {
			CurrentWeather string `yaml:"current_weather"`
			Forecast       string `yaml:"forecast"`
			Historical     string `yaml:"historical"`
			Location       string `yaml:"location"`
		} `yaml:"ttls"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Health struct {
		Window              string `yaml:"window"`
		DegradedErrorPct    int    `yaml:"degraded_error_pct"`
		UnavailableErrorPct int    `yaml:"unavailable_error_pct"`
		DegradedLatency     string `yaml:"degraded_latency"`
		MinSamples          int    `yaml:"min_samples"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	AnthropicAPIKey   string `yaml:"anthropic_api_key"`
	OpenWeatherAPIKey string `yaml:"openweather_api_key"`
	WeatherAPIKey     string `yaml:"weatherapi_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. API keys come from ANTHROPIC_API_KEY,
// OPENWEATHER_API_KEY and WEATHERAPI_KEY env or the secrets file. Missing
// keys are not fatal: AI parsing and keyed backends degrade instead.
// Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var sec secretsFile
	secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
	if secretsData, err := os.ReadFile(secretsPath); err == nil {
		if err := yaml.Unmarshal(secretsData, &sec); err != nil {
			return nil, fmt.Errorf("parse secrets file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.AnthropicKey = firstNonEmpty(os.Getenv("ANTHROPIC_API_KEY"), sec.AnthropicAPIKey)
	cfg.AIEnabled = cfg.AnthropicKey != ""
	if fc.AI.Enabled != nil && !*fc.AI.Enabled {
		cfg.AIEnabled = false
	}
	cfg.AIModel = fc.AI.Model
	if cfg.AIModel == "" {
		cfg.AIModel = "claude-3-5-haiku-latest"
	}
	cfg.AITimeout = parseDuration(fc.AI.Timeout, 3*time.Second)
	cfg.AIThreshold = fc.AI.Threshold
	if cfg.AIThreshold <= 0 || cfg.AIThreshold > 1 {
		cfg.AIThreshold = 0.50
	}
	cfg.MinConfidence = fc.AI.MinConfidence
	if cfg.MinConfidence <= 0 || cfg.MinConfidence > 1 {
		cfg.MinConfidence = 0.30
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.GeocodingURL = fc.WeatherAPIs.GeocodingURL
	cfg.OpenMeteoURL = fc.WeatherAPIs.OpenMeteoURL
	cfg.OpenMeteoArchiveURL = fc.WeatherAPIs.OpenMeteoArchiveURL
	cfg.OpenWeatherURL = fc.WeatherAPIs.OpenWeatherURL
	cfg.WeatherAPIURL = fc.WeatherAPIs.WeatherAPIURL
	cfg.OpenWeatherAPIKey = firstNonEmpty(os.Getenv("OPENWEATHER_API_KEY"), sec.OpenWeatherAPIKey)
	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHERAPI_KEY"), sec.WeatherAPIKey)
	cfg.UpstreamTimeout = parseDuration(fc.WeatherAPIs.Timeout, 10*time.Second)
	cfg.UpstreamRPM = fc.WeatherAPIs.RequestsPerMinute
	if cfg.UpstreamRPM <= 0 {
		cfg.UpstreamRPM = 60
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheMaxSize = fc.Cache.MaxSize
	if cfg.CacheMaxSize <= 0 {
		cfg.CacheMaxSize = 1000
	}
	cfg.CacheCleanupThreshold = fc.Cache.CleanupThreshold
	cfg.CacheSweepInterval = parseDuration(fc.Cache.SweepInterval, time.Minute)
	cfg.CacheTTLs = map[string]time.Duration{
		"current_weather": parseDuration(fc.Cache.TTLs.CurrentWeather, 5*time.Minute),
		"forecast":        parseDuration(fc.Cache.TTLs.Forecast, 30*time.Minute),
		"historical":      parseDuration(fc.Cache.TTLs.Historical, 24*time.Hour),
		"location":        parseDuration(fc.Cache.TTLs.Location, 7*24*time.Hour),
	}

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.HealthWindow = parseDuration(fc.Health.Window, 60*time.Second)
	cfg.HealthDegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.HealthDegradedErrorPct <= 0 {
		cfg.HealthDegradedErrorPct = 20
	}
	cfg.HealthUnavailableErrorPct = fc.Health.UnavailableErrorPct
	if cfg.HealthUnavailableErrorPct <= 0 {
		cfg.HealthUnavailableErrorPct = 60
	}
	cfg.HealthDegradedLatency = parseDuration(fc.Health.DegradedLatency, 2*time.Second)
	cfg.HealthMinSamples = fc.Health.MinSamples
	if cfg.HealthMinSamples <= 0 {
		cfg.HealthMinSamples = 3
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is not positive.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// validate performs post-load validation of configuration values. Ensures
// the request timeout covers the upstream timeout and the cache backend and
// threshold ordering are sane.
func validate(cfg *Config) error {
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + time.Second
	}
	if cfg.MinConfidence >= cfg.AIThreshold {
		return fmt.Errorf("ai.min_confidence (%v) must be below ai.threshold (%v)", cfg.MinConfidence, cfg.AIThreshold)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.CacheCleanupThreshold >= cfg.CacheMaxSize {
		cfg.CacheCleanupThreshold = 0
	}
	return nil
}
