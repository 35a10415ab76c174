package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/matrimonyai/backend/assistant"
	"github.com/matrimonyai/backend/matching"
)

const (
	app = "matrimony"
)

type Config struct {
	Env          string          `mapstructure:"env"`
	Addr         string          `mapstructure:"addr"`
	Port         string          `mapstructure:"port"`
	JWTSecret    string          `mapstructure:"jwt-secret"`
	PhotoDir     string          `mapstructure:"photo-dir"`
	StoreTimeout time.Duration   `mapstructure:"store-timeout"`
	CORSOrigins  []string        `mapstructure:"cors-origins"`
	Database     DatabaseConfig  `mapstructure:"database"`
	Redis        RedisConfig     `mapstructure:"redis"`
	AMQP         AMQPConfig      `mapstructure:"amqp"`
	Gemini       GeminiConfig    `mapstructure:"gemini"`
	Matching     MatchingConfig  `mapstructure:"matching"`
	Assistant    AssistantConfig `mapstructure:"assistant"`
	OTP          OTPConfig       `mapstructure:"otp"`
	Login        LoginConfig     `mapstructure:"login"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api-key"`
	Model  string `mapstructure:"model"`
}

type MatchingConfig struct {
	OverFetch    int `mapstructure:"over-fetch"`
	DefaultLimit int `mapstructure:"default-limit"`
	MaxLimit     int `mapstructure:"max-limit"`
}

type AssistantConfig struct {
	HistoryWindow int `mapstructure:"history-window"`
}

type OTPConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	MaxAttempts int           `mapstructure:"max-attempts"`
	SendLimit   int           `mapstructure:"send-limit"`
	Window      time.Duration `mapstructure:"window"`
}

type LoginConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// Development reports whether OTP codes may be echoed back to clients.
func (c Config) Development() bool {
	return c.Env == "development"
}

// ListenAddr prefers PORT over addr, as container platforms set PORT.
func (c Config) ListenAddr() string {
	if c.Port != "" {
		return ":" + strings.TrimPrefix(c.Port, ":")
	}
	return c.Addr
}

var defaults = map[string]any{
	"env":                      "production",
	"addr":                     ":8080",
	"photo-dir":                "./uploads/photos",
	"store-timeout":            matching.DefaultStoreTimeout,
	"cors-origins":             []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3001", "http://127.0.0.1:3001"},
	"redis.prefix":             "ratelimit:",
	"amqp.exchange":            "match_events",
	"gemini.model":             assistant.DefaultGeminiModel,
	"matching.over-fetch":      matching.DefaultOverFetch,
	"matching.default-limit":   10,
	"matching.max-limit":       50,
	"assistant.history-window": assistant.DefaultHistoryWindow,
	"otp.ttl":                  10 * time.Minute,
	"otp.max-attempts":         5,
	"otp.send-limit":           5,
	"otp.window":               time.Minute,
	"login.limit":              10,
	"login.window":             time.Minute,
}

var envBindings = map[string]string{
	"env":            "GO_ENV",
	"port":           "PORT",
	"jwt-secret":     "JWT_SECRET",
	"database.url":   "DATABASE_URL",
	"redis.url":      "REDIS_URL",
	"amqp.url":       "AMQP_URL",
	"gemini.api-key": "GEMINI_API_KEY",
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "matrimony is the matchmaking backend: profiles, AI matchmaker chat and compatibility ranking",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is matrimony.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// .env is optional, real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return config, nil
}

// setup builds the logger and the config shared by every command.
func setup() (*Config, error) {
	l, err := newLogger(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}
	logger = l

	config, err := getConfig()
	if err != nil {
		return nil, err
	}
	if config.JWTSecret != "" {
		jwtSecret = []byte(config.JWTSecret)
	} else if !config.Development() {
		return nil, errors.New("jwt secret is required outside development (set JWT_SECRET)")
	} else {
		logger.Warn("using the built-in development jwt secret")
	}

	logger.Debug("configuration loaded",
		zap.String("env", config.Env),
		zap.String("addr", config.ListenAddr()),
		zap.Bool("redis", config.Redis.URL != ""),
		zap.Bool("amqp", config.AMQP.URL != ""),
		zap.Bool("gemini", config.Gemini.APIKey != ""),
	)
	return config, nil
}
