package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	APIBaseURL      string
	PriceWSURL      string
	ModelWSURL      string
	ModelDataWSURL  string
	ReconnectDelay  time.Duration
	MaxSeriesPoints int
	RESTTimeout     time.Duration
	MetricsPort     int
	DashboardPort   int
	DataPath        string
	TopModels       int
}

type ConfigFile struct {
	API struct {
		BaseURL string `yaml:"baseURL"`
	} `yaml:"api"`

	Streams struct {
		PriceURL       string `yaml:"priceURL"`
		ModelURL       string `yaml:"modelURL"`
		ModelDataURL   string `yaml:"modelDataURL"`
		ReconnectDelay string `yaml:"reconnectDelay"`
	} `yaml:"streams"`

	Chart struct {
		MaxSeriesPoints int `yaml:"maxSeriesPoints"`
		TopModels       int `yaml:"topModels"`
	} `yaml:"chart"`

	System struct {
		DataPath      string `yaml:"dataPath"`
		MetricsPort   int    `yaml:"metricsPort"`
		DashboardPort int    `yaml:"dashboardPort"`
		RESTTimeout   string `yaml:"restTimeout"`
	} `yaml:"system"`
}

const (
	defaultAPIBase      = "https://api.alphaarena.in/api/v1"
	defaultPriceWS      = "wss://api.alphaarena.in/api/v1/ws/price-stream"
	defaultModelWS      = "wss://api.alphaarena.in/api/v1/ws/model-updates"
	defaultModelDataWS  = "wss://api.alphaarena.in/api/v1/ws/modeldata-stream"
	defaultSeriesPoints = 1000
	defaultTopModels    = 6
)

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Parse durations
	reconnectDelay, err := time.ParseDuration(config.Streams.ReconnectDelay)
	if err != nil {
		reconnectDelay = 5 * time.Second
	}

	restTimeout, err := time.ParseDuration(config.System.RESTTimeout)
	if err != nil {
		restTimeout = 30 * time.Second
	}

	settings := Settings{
		APIBaseURL:      getEnvOrDefault("API_BASE_URL", firstNonEmpty(config.API.BaseURL, defaultAPIBase)),
		PriceWSURL:      getEnvOrDefault("PRICE_WS_URL", firstNonEmpty(config.Streams.PriceURL, defaultPriceWS)),
		ModelWSURL:      getEnvOrDefault("MODEL_WS_URL", firstNonEmpty(config.Streams.ModelURL, defaultModelWS)),
		ModelDataWSURL:  getEnvOrDefault("MODELDATA_WS_URL", firstNonEmpty(config.Streams.ModelDataURL, defaultModelDataWS)),
		ReconnectDelay:  reconnectDelay,
		MaxSeriesPoints: getIntFromEnvOrConfig("MAX_SERIES_POINTS", config.Chart.MaxSeriesPoints, defaultSeriesPoints),
		RESTTimeout:     restTimeout,
		MetricsPort:     getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort, 8080),
		DashboardPort:   getIntFromEnvOrConfig("DASHBOARD_PORT", config.System.DashboardPort, 8081),
		DataPath:        getEnvOrDefault("DATA_PATH", config.System.DataPath),
		TopModels:       getIntFromEnvOrConfig("TOP_MODELS", config.Chart.TopModels, defaultTopModels),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		APIBaseURL:      getEnvOrDefault("API_BASE_URL", defaultAPIBase),
		PriceWSURL:      getEnvOrDefault("PRICE_WS_URL", defaultPriceWS),
		ModelWSURL:      getEnvOrDefault("MODEL_WS_URL", defaultModelWS),
		ModelDataWSURL:  getEnvOrDefault("MODELDATA_WS_URL", defaultModelDataWS),
		ReconnectDelay:  getDurationOrDefault("RECONNECT_DELAY", 5*time.Second),
		MaxSeriesPoints: getIntOrDefault("MAX_SERIES_POINTS", defaultSeriesPoints),
		RESTTimeout:     getDurationOrDefault("REST_TIMEOUT", 30*time.Second),
		MetricsPort:     getIntOrDefault("METRICS_PORT", 8080),
		DashboardPort:   getIntOrDefault("DASHBOARD_PORT", 8081),
		DataPath:        os.Getenv("DATA_PATH"), // optional
		TopModels:       getIntOrDefault("TOP_MODELS", defaultTopModels),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	// Validate URLs
	if settings.APIBaseURL == "" {
		return fmt.Errorf("API base URL cannot be empty")
	}
	for name, u := range map[string]string{
		"price":     settings.PriceWSURL,
		"model":     settings.ModelWSURL,
		"modeldata": settings.ModelDataWSURL,
	} {
		if u == "" {
			return fmt.Errorf("%s stream URL cannot be empty", name)
		}
		if !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
			return fmt.Errorf("%s stream URL must use ws:// or wss://, got %s", name, u)
		}
	}

	// Validate time durations
	if settings.ReconnectDelay < time.Second || settings.ReconnectDelay > 5*time.Minute {
		return fmt.Errorf("reconnect delay must be between 1s and 5m, got %v", settings.ReconnectDelay)
	}
	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}

	// Validate integer values
	if settings.MaxSeriesPoints <= 0 || settings.MaxSeriesPoints > 100000 {
		return fmt.Errorf("max series points must be between 1 and 100000, got %d", settings.MaxSeriesPoints)
	}
	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.DashboardPort < 1024 || settings.DashboardPort > 65535 {
		return fmt.Errorf("dashboard port must be between 1024 and 65535, got %d", settings.DashboardPort)
	}
	if settings.DashboardPort == settings.MetricsPort {
		return fmt.Errorf("dashboard port and metrics port must differ, both are %d", settings.MetricsPort)
	}
	if settings.TopModels <= 0 || settings.TopModels > 100 {
		return fmt.Errorf("top models must be between 1 and 100, got %d", settings.TopModels)
	}

	return nil
}
