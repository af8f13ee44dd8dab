package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// NASA FIRMS feed configuration.
	MapKey       string
	Products     []string
	Days         int
	BaseURL      string
	FetchTimeout time.Duration

	// Storage and region configuration.
	DatabasePath string
	RegionPath   string // empty means the embedded boundary

	// Ingestion trigger and scheduling.
	CronSecret      string
	Retention       time.Duration // 0 disables the retention sweep
	RolloverHourUTC int
	RefreshInterval time.Duration // 0 disables the in-process ticker

	// Optional Kafka publishing of ingested detections.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	retention, err := parseDurationAllowZero("RETENTION", "72h")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDurationAllowZero("REFRESH_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}

	days, err := parseIntInRange("FIRMS_DAYS", 2, 1, 10)
	if err != nil {
		return nil, err
	}
	rollover, err := parseIntInRange("ROLLOVER_HOUR_UTC", 19, 0, 23)
	if err != nil {
		return nil, err
	}

	brokers := splitList(os.Getenv("KAFKA_BROKERS"))

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MapKey:       os.Getenv("FIRMS_MAP_KEY"),
		Products:     splitList(envOrDefault("FIRMS_PRODUCTS", "VIIRS_SNPP_NRT,VIIRS_NOAA20_NRT")),
		Days:         days,
		BaseURL:      envOrDefault("FIRMS_BASE_URL", "https://firms.modaps.eosdis.nasa.gov/api/area/csv"),
		FetchTimeout: fetchTimeout,

		DatabasePath: envOrDefault("DATABASE_PATH", "fires.db"),
		RegionPath:   os.Getenv("REGION_GEOJSON"),

		CronSecret:      os.Getenv("CRON_SECRET"),
		Retention:       retention,
		RolloverHourUTC: rollover,
		RefreshInterval: refreshInterval,

		KafkaBrokers: brokers,
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "fire-detections"),
		KafkaEnabled: len(brokers) > 0,
	}

	if cfg.MapKey == "" {
		return nil, errors.New("FIRMS_MAP_KEY is required")
	}
	if cfg.CronSecret == "" {
		return nil, errors.New("CRON_SECRET is required")
	}
	if len(cfg.Products) == 0 {
		return nil, errors.New("FIRMS_PRODUCTS must name at least one product")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseDurationAllowZero(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntInRange(key string, def, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, min, max)
	}
	return n, nil
}
