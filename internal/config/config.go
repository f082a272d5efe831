// Package config assembles the service configuration from CLI flags,
// environment variables, an optional JSON config file and built-in
// defaults, in that order of precedence.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the service.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	ShortURLBase        string        `env:"BASE_URL" json:"base_url" validate:"url"`
	LogLevel            string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"-"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`

	// AccessTokenSecret and RefreshTokenSecret are independent base64url
	// encoded signing keys. They must differ between environments; the
	// built-in values are development defaults only.
	AccessTokenSecret  string `env:"ACCESS_TOKEN_SECRET" json:"access_token_secret" validate:"required,base64url"`
	RefreshTokenSecret string `env:"REFRESH_TOKEN_SECRET" json:"refresh_token_secret" validate:"required,base64url"`

	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL" json:"-"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL" json:"-"`
	AccessCookieName  string        `env:"ACCESS_COOKIE_NAME" json:"access_cookie_name" validate:"required"`
	RefreshCookieName string        `env:"REFRESH_COOKIE_NAME" json:"refresh_cookie_name" validate:"required"`

	DailyLinkLimit int `env:"DAILY_LINK_LIMIT" json:"daily_link_limit" validate:"min=1"`
	ShortKeyLength int `env:"SHORT_KEY_LENGTH" json:"short_key_length" validate:"min=7"`

	ClicksChannelCapacity int           `env:"CLICKS_CHANNEL_CAPACITY" json:"-"`
	ClicksFlushInterval   time.Duration `env:"CLICKS_FLUSH_INTERVAL" json:"-"`

	TrustedSubnet string `env:"TRUSTED_SUBNET" json:"trusted_subnet"`
}

var defaultConfig = Config{
	RunAddr:               ":8080",
	ShortURLBase:          "http://localhost:8080",
	LogLevel:              "info",
	DBFileName:            "",
	DatabaseDSN:           "",
	DBConnectionTimeout:   10 * time.Second,
	MigrationsDir:         "./migrations",
	AccessTokenSecret:     "ZGV2LWFjY2Vzcy1zZWNyZXQ=",
	RefreshTokenSecret:    "ZGV2LXJlZnJlc2gtc2VjcmV0",
	AccessTokenTTL:        15 * time.Minute,
	RefreshTokenTTL:       7 * 24 * time.Hour,
	AccessCookieName:      "token",
	RefreshCookieName:     "refreshToken",
	DailyLinkLimit:        100,
	ShortKeyLength:        8,
	ClicksChannelCapacity: 1024,
	ClicksFlushInterval:   time.Second,
	TrustedSubnet:         "",
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

func applyDefaults(values *Config, defaults Config) {
	if values.RunAddr == "" {
		values.RunAddr = defaults.RunAddr
	}
	if values.ShortURLBase == "" {
		values.ShortURLBase = defaults.ShortURLBase
	}
	if values.LogLevel == "" {
		values.LogLevel = defaults.LogLevel
	}
	if values.DBConnectionTimeout == 0 {
		values.DBConnectionTimeout = defaults.DBConnectionTimeout
	}
	if values.MigrationsDir == "" {
		values.MigrationsDir = defaults.MigrationsDir
	}
	if values.AccessTokenSecret == "" {
		values.AccessTokenSecret = defaults.AccessTokenSecret
	}
	if values.RefreshTokenSecret == "" {
		values.RefreshTokenSecret = defaults.RefreshTokenSecret
	}
	if values.AccessTokenTTL == 0 {
		values.AccessTokenTTL = defaults.AccessTokenTTL
	}
	if values.RefreshTokenTTL == 0 {
		values.RefreshTokenTTL = defaults.RefreshTokenTTL
	}
	if values.AccessCookieName == "" {
		values.AccessCookieName = defaults.AccessCookieName
	}
	if values.RefreshCookieName == "" {
		values.RefreshCookieName = defaults.RefreshCookieName
	}
	if values.DailyLinkLimit == 0 {
		values.DailyLinkLimit = defaults.DailyLinkLimit
	}
	if values.ShortKeyLength == 0 {
		values.ShortKeyLength = defaults.ShortKeyLength
	}
	if values.ClicksChannelCapacity == 0 {
		values.ClicksChannelCapacity = defaults.ClicksChannelCapacity
	}
	if values.ClicksFlushInterval == 0 {
		values.ClicksFlushInterval = defaults.ClicksFlushInterval
	}
}

func loadJSONConfig(values *Config) error {
	path := os.Getenv("CONFIG")
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, values)
}

// InitOption configures New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips CLI flag parsing. Meant for tests where
// os.Args carries the test binary's own flags.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds the Config. Precedence: CLI flags > environment variables >
// JSON config file (path in the CONFIG env var) > defaults.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := Config{}

	if err := loadJSONConfig(&values); err != nil {
		return nil, err
	}

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, err
	}
	applyNonZero(&values, valuesFromEnv)

	if !options.disableFlagsParsing {
		flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
		flags.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
		flags.StringVar(&values.ShortURLBase, "b", values.ShortURLBase, "base address of the resulting shortened URL")
		flags.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
		flags.StringVar(&values.DBFileName, "f", values.DBFileName, "JSON file name with database")
		flags.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "a string with the database connection details")
		flags.StringVar(&values.MigrationsDir, "m", values.MigrationsDir, "directory with goose migrations")
		flags.StringVar(&values.TrustedSubnet, "t", values.TrustedSubnet, "trusted subnet in CIDR notation for internal endpoints")
		if err := flags.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
	}

	applyDefaults(&values, defaultConfig)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return &values, nil
}

func applyNonZero(values *Config, overrides Config) {
	if overrides.RunAddr != "" {
		values.RunAddr = overrides.RunAddr
	}
	if overrides.ShortURLBase != "" {
		values.ShortURLBase = overrides.ShortURLBase
	}
	if overrides.LogLevel != "" {
		values.LogLevel = overrides.LogLevel
	}
	if overrides.DBFileName != "" {
		values.DBFileName = overrides.DBFileName
	}
	if overrides.DatabaseDSN != "" {
		values.DatabaseDSN = overrides.DatabaseDSN
	}
	if overrides.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = overrides.DBConnectionTimeout
	}
	if overrides.MigrationsDir != "" {
		values.MigrationsDir = overrides.MigrationsDir
	}
	if overrides.AccessTokenSecret != "" {
		values.AccessTokenSecret = overrides.AccessTokenSecret
	}
	if overrides.RefreshTokenSecret != "" {
		values.RefreshTokenSecret = overrides.RefreshTokenSecret
	}
	if overrides.AccessTokenTTL != 0 {
		values.AccessTokenTTL = overrides.AccessTokenTTL
	}
	if overrides.RefreshTokenTTL != 0 {
		values.RefreshTokenTTL = overrides.RefreshTokenTTL
	}
	if overrides.AccessCookieName != "" {
		values.AccessCookieName = overrides.AccessCookieName
	}
	if overrides.RefreshCookieName != "" {
		values.RefreshCookieName = overrides.RefreshCookieName
	}
	if overrides.DailyLinkLimit != 0 {
		values.DailyLinkLimit = overrides.DailyLinkLimit
	}
	if overrides.ShortKeyLength != 0 {
		values.ShortKeyLength = overrides.ShortKeyLength
	}
	if overrides.ClicksChannelCapacity != 0 {
		values.ClicksChannelCapacity = overrides.ClicksChannelCapacity
	}
	if overrides.ClicksFlushInterval != 0 {
		values.ClicksFlushInterval = overrides.ClicksFlushInterval
	}
	if overrides.TrustedSubnet != "" {
		values.TrustedSubnet = overrides.TrustedSubnet
	}
}
