package cmd

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-matcher/internal/matching"
	"github.com/spigell/job-matcher/internal/sessioncache"
)

const (
	app       = "job-matcher"
	envPrefix = "JOB_MATCHER"
)

type Config struct {
	Store        *StoreConfig        `mapstructure:"store"`
	AI           *AIConfig           `mapstructure:"ai"`
	Matching     matching.Config     `mapstructure:"matching"`
	Filters      *FiltersConfig      `mapstructure:"filters"`
	SessionCache *SessionCacheConfig `mapstructure:"session-cache"`
	Telemetry    *TelemetryConfig    `mapstructure:"telemetry"`
}

type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Postgres *struct {
		DSN      string `mapstructure:"dsn"`
		MaxConns int32  `mapstructure:"max-conns"`
	} `mapstructure:"postgres"`
	PostgREST *struct {
		URL        string `mapstructure:"url"`
		APIKey     string `mapstructure:"api-key"`
		APIKeyFile string `mapstructure:"api-key-file"`
	} `mapstructure:"postgrest"`
	Memory *struct {
		Fixture string `mapstructure:"fixture"`
	} `mapstructure:"memory"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	MaxRetries int    `mapstructure:"max-retries"`
	JSONMode   bool   `mapstructure:"json-mode"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type FiltersConfig struct {
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
	// Disable lists filter steps to skip by name.
	Disable []string `mapstructure:"disable"`
}

type SessionCacheConfig struct {
	Driver   string `mapstructure:"driver"`
	MaxBytes int    `mapstructure:"max-bytes"`
	Redis    *struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp-endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-matcher scores job seekers against job postings and recommends the best fits",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	defaults := matching.DefaultConfig()
	viper.SetDefault("matching.threshold", defaults.Threshold)
	viper.SetDefault("matching.improvement-floor", defaults.ImprovementFloor)
	viper.SetDefault("matching.concurrency", defaults.Concurrency)
	viper.SetDefault("matching.stamp-profile-version", defaults.StampProfileVersion)
	viper.SetDefault("matching.analyze-gaps", defaults.AnalyzeGaps)
	viper.SetDefault("matching.persist-failed-judgments", defaults.PersistFailedJudgments)

	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("ai.provider", "groq")
	viper.SetDefault("ai.max-log-length", 200)
	viper.SetDefault("ai.openai.json-mode", true)
	viper.SetDefault("session-cache.driver", "memory")
	viper.SetDefault("session-cache.max-bytes", sessioncache.DefaultMaxBytes)
	viper.SetDefault("telemetry.insecure", true)
}

func bindEnv() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		"store.postgres.dsn":       "DATABASE_URL",
		"store.postgrest.url":      "POSTGREST_URL",
		"session-cache.redis.addr": "REDIS_ADDR",
		"telemetry.otlp-endpoint":  "OTEL_EXPORTER_OTLP_ENDPOINT",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, envPrefix+"_"+strings.NewReplacer(".", "_", "-", "_").Replace(strings.ToUpper(key)), env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}
}

func initConfig() {
	// A missing .env is fine, a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	bindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config every setting may come from the environment.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Store == nil {
		config.Store = &StoreConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.Filters == nil {
		config.Filters = &FiltersConfig{}
	}
	if config.SessionCache == nil {
		config.SessionCache = &SessionCacheConfig{}
	}
	if config.Telemetry == nil {
		config.Telemetry = &TelemetryConfig{}
	}

	if err := config.Matching.Validate(); err != nil {
		return config, err
	}

	return config, nil
}
