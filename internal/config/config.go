package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/weather-station/internal/domain"
)

// Config holds all station settings, populated from environment variables.
type Config struct {
	StationID       string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Wi-Fi configuration.
	WifiCredentials []domain.Credential
	WifiDriver      string // "nmcli" or "none"
	WifiInterface   string
	WifiMaxRetries  int
	WifiRetryDelay  time.Duration
	WifiMaxWait     time.Duration
	LEDPin          string

	// OpenWeatherMap configuration.
	OWMAPIKey      string
	OWMCity        string
	OWMCountryCode string
	OWMUnits       string
	OWMLang        string
	OWMBaseURL     string
	OWMTimeout     time.Duration
	OWMCacheTTL    time.Duration // 0 disables

	// Time sync configuration.
	NTPServer  string
	NTPTimeout time.Duration
	RTCPath    string

	// Where the text panel is drawn: "stderr", "stdout", "none" or a file path.
	DisplayOutput string

	// Task cadences.
	DisplayInterval   time.Duration
	WeatherInterval   time.Duration
	WifiCheckInterval time.Duration
	NTPSyncInterval   time.Duration
	LoopInterval      time.Duration

	// Sinks. Empty values disable the optional ones.
	CSVLogPath   string
	SQLitePath   string
	KafkaBrokers []string
	KafkaTopic   string
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	creds, err := ParseCredentials(os.Getenv("WIFI_CREDENTIALS"))
	if err != nil {
		return nil, err
	}

	maxRetries, err := parsePositiveInt("WIFI_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	mqttPort, err := parsePositiveInt("MQTT_PORT", 1883)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StationID:       sharedcfg.EnvOrDefault("STATION_ID", "station-1"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		WifiCredentials: creds,
		WifiDriver:      sharedcfg.EnvOrDefault("WIFI_DRIVER", "nmcli"),
		WifiInterface:   sharedcfg.EnvOrDefault("WIFI_INTERFACE", "wlan0"),
		WifiMaxRetries:  maxRetries,
		LEDPin:          os.Getenv("LED_PIN"),

		OWMAPIKey:      os.Getenv("OWM_API_KEY"),
		OWMCity:        sharedcfg.EnvOrDefault("OWM_CITY", "Berlin"),
		OWMCountryCode: sharedcfg.EnvOrDefault("OWM_COUNTRY_CODE", "DE"),
		OWMUnits:       sharedcfg.EnvOrDefault("OWM_UNITS", "metric"),
		OWMLang:        sharedcfg.EnvOrDefault("OWM_LANG", "de"),
		OWMBaseURL:     sharedcfg.EnvOrDefault("OWM_BASE_URL", "https://api.openweathermap.org"),

		NTPServer: sharedcfg.EnvOrDefault("NTP_SERVER", "pool.ntp.org"),
		RTCPath:   sharedcfg.EnvOrDefault("RTC_PATH", "data/rtc.json"),

		DisplayOutput: sharedcfg.EnvOrDefault("DISPLAY_OUTPUT", "stderr"),

		CSVLogPath:   sharedcfg.EnvOrDefault("CSV_LOG_PATH", "temp_history/weather_log.csv"),
		SQLitePath:   os.Getenv("SQLITE_PATH"),
		KafkaBrokers: sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "weather-observations"),
		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MQTTPort:     mqttPort,
	}
	cfg.MQTTClientID = sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", cfg.StationID)

	for _, d := range []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"WIFI_RETRY_DELAY", "5s", &cfg.WifiRetryDelay},
		{"WIFI_MAX_WAIT", "10s", &cfg.WifiMaxWait},
		{"OWM_TIMEOUT", "10s", &cfg.OWMTimeout},
		{"NTP_TIMEOUT", "5s", &cfg.NTPTimeout},
		{"DISPLAY_INTERVAL", "1s", &cfg.DisplayInterval},
		{"WEATHER_INTERVAL", "15m", &cfg.WeatherInterval},
		{"WIFI_CHECK_INTERVAL", "30s", &cfg.WifiCheckInterval},
		{"NTP_SYNC_INTERVAL", "6h", &cfg.NTPSyncInterval},
		{"LOOP_INTERVAL", "50ms", &cfg.LoopInterval},
	} {
		v, err := parseDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	cacheTTL := sharedcfg.EnvOrDefault("OWM_CACHE_TTL", "5m")
	cfg.OWMCacheTTL, err = time.ParseDuration(cacheTTL)
	if err != nil || cfg.OWMCacheTTL < 0 {
		return nil, fmt.Errorf("invalid OWM_CACHE_TTL %q", cacheTTL)
	}

	if cfg.OWMAPIKey == "" {
		return nil, errors.New("OWM_API_KEY is required")
	}
	if cfg.OWMCity == "" {
		return nil, errors.New("OWM_CITY is required")
	}
	switch cfg.WifiDriver {
	case "nmcli", "none":
	default:
		return nil, fmt.Errorf("invalid WIFI_DRIVER %q (allowed: nmcli, none)", cfg.WifiDriver)
	}
	if cfg.WifiDriver == "nmcli" && len(cfg.WifiCredentials) == 0 {
		return nil, errors.New("WIFI_CREDENTIALS is required when WIFI_DRIVER is nmcli")
	}

	return cfg, nil
}

// ParseCredentials parses "ssid:secret,ssid2:secret2". The secret is
// everything after the first colon; an open network may omit it.
func ParseCredentials(s string) ([]domain.Credential, error) {
	var out []domain.Credential
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ssid, secret, _ := strings.Cut(part, ":")
		ssid = strings.TrimSpace(ssid)
		if ssid == "" {
			return nil, fmt.Errorf("invalid WIFI_CREDENTIALS entry %q: empty SSID", part)
		}
		out = append(out, domain.Credential{SSID: ssid, Secret: secret})
	}
	return out, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}
