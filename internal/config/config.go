package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/applicability-scraper/internal/applicability"
)

type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Extractor ExtractorConfig
	Ozon      OzonConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Images    ImagesConfig
	Catalog   CatalogConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	AllowedOrigins  []string
}

type BrowserConfig struct {
	Engine         string
	Headless       bool
	Timeout        time.Duration
	IdleWindow     time.Duration
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type ExtractorConfig struct {
	NavigationTimeout time.Duration
	DialogTimeout     time.Duration
	CloseTimeout      time.Duration
	SettleDelay       time.Duration
	TabFailurePolicy  string
	SelectorsFile     string
}

type OzonConfig struct {
	BaseURL        string
	ClientID       string
	APIKey         string
	BatchSize      int
	RequestsPerSec float64
	RequestTimeout time.Duration
	ImageBaseURL   string

	Brand         string
	Price         string
	OldPrice      string
	Barcode       string
	CategoryID    int64
	CategoryValue string
	DictionaryID  int64
	Vat           string
	CurrencyCode  string
	Depth         int
	Height        int
	Width         int
	Weight        int
}

type StorageConfig struct {
	Driver   string
	FilePath string
	DSN      string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ImagesConfig struct {
	Enabled bool
	Dir     string
}

type CatalogConfig struct {
	SiteBaseURL    string
	RequestTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "3001"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getDurationOrDefault("SERVER_REQUEST_TIMEOUT", 5*time.Minute),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Browser: BrowserConfig{
			Engine:         getEnvOrDefault("BROWSER_ENGINE", "playwright"),
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			IdleWindow:     getDurationOrDefault("BROWSER_IDLE_WINDOW", 500*time.Millisecond),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Extractor: ExtractorConfig{
			NavigationTimeout: getDurationOrDefault("EXTRACTOR_NAVIGATION_TIMEOUT", 60*time.Second),
			DialogTimeout:     getDurationOrDefault("EXTRACTOR_DIALOG_TIMEOUT", 10*time.Second),
			CloseTimeout:      getDurationOrDefault("EXTRACTOR_CLOSE_TIMEOUT", 3*time.Second),
			SettleDelay:       getDurationOrDefault("EXTRACTOR_SETTLE_DELAY", time.Second),
			TabFailurePolicy:  getEnvOrDefault("EXTRACTOR_TAB_FAILURE_POLICY", string(applicability.TabFailureSkip)),
			SelectorsFile:     getEnvOrDefault("SELECTORS_FILE", ""),
		},
		Ozon: OzonConfig{
			BaseURL:        getEnvOrDefault("OZON_BASE_URL", "https://api-seller.ozon.ru"),
			ClientID:       getEnvOrDefault("OZON_CLIENT_ID", ""),
			APIKey:         getEnvOrDefault("OZON_API_KEY", ""),
			BatchSize:      getIntOrDefault("OZON_BATCH_SIZE", 100),
			RequestsPerSec: getFloatOrDefault("OZON_REQUESTS_PER_SEC", 1),
			RequestTimeout: getDurationOrDefault("OZON_REQUEST_TIMEOUT", 30*time.Second),
			ImageBaseURL:   getEnvOrDefault("OZON_IMAGE_BASE_URL", "https://lynxauto.info/image"),

			Brand:         getEnvOrDefault("LISTING_BRAND", "LYNXAuto"),
			Price:         getEnvOrDefault("LISTING_PRICE", "1000"),
			OldPrice:      getEnvOrDefault("LISTING_OLD_PRICE", "1100"),
			Barcode:       getEnvOrDefault("LISTING_BARCODE", "112772873170"),
			CategoryID:    getInt64OrDefault("LISTING_CATEGORY_ID", 17028756),
			CategoryValue: getEnvOrDefault("LISTING_TYPE_VALUE", "Лампа автомобильная"),
			DictionaryID:  getInt64OrDefault("LISTING_TYPE_DICTIONARY_ID", 1960),
			Vat:           getEnvOrDefault("LISTING_VAT", "0.1"),
			CurrencyCode:  getEnvOrDefault("LISTING_CURRENCY", "RUB"),
			Depth:         getIntOrDefault("LISTING_DEPTH_MM", 10),
			Height:        getIntOrDefault("LISTING_HEIGHT_MM", 250),
			Width:         getIntOrDefault("LISTING_WIDTH_MM", 150),
			Weight:        getIntOrDefault("LISTING_WEIGHT_G", 100),
		},
		Storage: StorageConfig{
			Driver:   getEnvOrDefault("STORAGE_DRIVER", "file"),
			FilePath: getEnvOrDefault("STORAGE_FILE", "products.json"),
			DSN:      getEnvOrDefault("STORAGE_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:listings"),
		},
		Images: ImagesConfig{
			Enabled: getBoolOrDefault("IMAGES_ENABLED", false),
			Dir:     getEnvOrDefault("IMAGES_DIR", "images"),
		},
		Catalog: CatalogConfig{
			SiteBaseURL:    getEnvOrDefault("CATALOG_BASE_URL", "https://lynxauto.info"),
			RequestTimeout: getDurationOrDefault("CATALOG_REQUEST_TIMEOUT", 20*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
			File:   getEnvOrDefault("LOG_FILE", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case "playwright", "rod":
	default:
		return fmt.Errorf("BROWSER_ENGINE must be playwright or rod, got %q", c.Browser.Engine)
	}

	if _, err := applicability.ParseTabFailurePolicy(c.Extractor.TabFailurePolicy); err != nil {
		return fmt.Errorf("EXTRACTOR_TAB_FAILURE_POLICY: %w", err)
	}

	if c.Extractor.NavigationTimeout <= 0 || c.Extractor.DialogTimeout <= 0 {
		return fmt.Errorf("extractor timeouts must be positive")
	}

	if c.Ozon.BatchSize < 1 {
		return fmt.Errorf("OZON_BATCH_SIZE must be at least 1")
	}

	if c.Ozon.RequestsPerSec <= 0 {
		return fmt.Errorf("OZON_REQUESTS_PER_SEC must be positive")
	}

	switch c.Storage.Driver {
	case "file":
		if c.Storage.FilePath == "" {
			return fmt.Errorf("STORAGE_FILE is required for the file driver")
		}
	case "postgres", "sqlite":
		if c.Storage.DSN == "" {
			return fmt.Errorf("STORAGE_DSN is required for the %s driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be file, postgres or sqlite, got %q", c.Storage.Driver)
	}

	return nil
}

// ExtractorOptions builds extractor options from the config, applying the
// selectors override file when one is configured.
func (c *Config) ExtractorOptions() (applicability.Options, error) {
	policy, err := applicability.ParseTabFailurePolicy(c.Extractor.TabFailurePolicy)
	if err != nil {
		return applicability.Options{}, err
	}

	selectors := applicability.DefaultSelectors()
	if c.Extractor.SelectorsFile != "" {
		loaded, err := LoadSelectors(c.Extractor.SelectorsFile)
		if err != nil {
			return applicability.Options{}, err
		}
		selectors = *loaded
	}

	return applicability.Options{
		Selectors:         selectors,
		NavigationTimeout: c.Extractor.NavigationTimeout,
		DialogTimeout:     c.Extractor.DialogTimeout,
		CloseTimeout:      c.Extractor.CloseTimeout,
		SettleDelay:       c.Extractor.SettleDelay,
		TabFailurePolicy:  policy,
	}, nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
