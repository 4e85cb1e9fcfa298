package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	TravelTime TravelTimeConfig `yaml:"traveltime" mapstructure:"traveltime"`
	Boundary   BoundaryConfig   `yaml:"boundary" mapstructure:"boundary"`
	Analyze    AnalyzeConfig    `yaml:"analyze" mapstructure:"analyze"`
	Map        MapConfig        `yaml:"map" mapstructure:"map"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures the geocoding cascade.
type GeocodeConfig struct {
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	BatchSize    int     `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
	CacheTTLDays int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
	DisableCache bool    `yaml:"disable_cache" mapstructure:"disable_cache"`
}

// TravelTimeConfig holds TravelTime API credentials and isochrone defaults.
type TravelTimeConfig struct {
	AppID          string `yaml:"app_id" mapstructure:"app_id"`
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	TravelType     string `yaml:"travel_type" mapstructure:"travel_type"`
	TravelMinutes  int    `yaml:"travel_minutes" mapstructure:"travel_minutes"`
	ArrivalWeekday string `yaml:"arrival_weekday" mapstructure:"arrival_weekday"`
	ArrivalTime    string `yaml:"arrival_time" mapstructure:"arrival_time"`
	Timezone       string `yaml:"timezone" mapstructure:"timezone"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// BoundaryConfig configures TIGER/Line boundary loading.
type BoundaryConfig struct {
	Year    int    `yaml:"year" mapstructure:"year"`
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// AnalyzeConfig configures the spatial join.
type AnalyzeConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// MapConfig configures Kepler.gl map export.
type MapConfig struct {
	Style string `yaml:"style" mapstructure:"style"`
	Zoom  int    `yaml:"zoom" mapstructure:"zoom"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BALLOTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "ballot_box.db")
	v.SetDefault("store.database_url", "")
	// Empty defaults register credential keys so AutomaticEnv picks them up
	// during Unmarshal.
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("traveltime.app_id", "")
	v.SetDefault("traveltime.api_key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("geocode.rate_limit", 50.0)
	v.SetDefault("geocode.batch_size", 500)
	v.SetDefault("geocode.concurrency", 10)
	v.SetDefault("geocode.cache_ttl_days", 90)
	v.SetDefault("traveltime.travel_type", "driving")
	v.SetDefault("traveltime.travel_minutes", 15)
	v.SetDefault("traveltime.arrival_weekday", "Tuesday")
	v.SetDefault("traveltime.arrival_time", "18:00")
	v.SetDefault("traveltime.timezone", "America/Los_Angeles")
	v.SetDefault("traveltime.max_retries", 4)
	v.SetDefault("boundary.year", 2024)
	v.SetDefault("boundary.temp_dir", "/tmp/ballotbox-tiger")
	v.SetDefault("analyze.concurrency", 8)
	v.SetDefault("map.style", "dark")
	v.SetDefault("map.zoom", 9)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
