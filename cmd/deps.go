package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/ai/gemini"
	"github.com/spigell/job-matcher/internal/ai/openai"
	"github.com/spigell/job-matcher/internal/filtering"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/marketplace"
	"github.com/spigell/job-matcher/internal/marketplace/memory"
	"github.com/spigell/job-matcher/internal/marketplace/postgres"
	"github.com/spigell/job-matcher/internal/marketplace/postgrest"
	"github.com/spigell/job-matcher/internal/matching"
	"github.com/spigell/job-matcher/internal/secrets"
	"github.com/spigell/job-matcher/internal/sessioncache"
	"github.com/spigell/job-matcher/internal/sessioncache/redis"
	"github.com/spigell/job-matcher/internal/telemetry"
)

const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StorePostgREST = "postgrest"

	ProviderNone = "none"

	SessionCacheMemory = "memory"
	SessionCacheRedis  = "redis"
)

// env is the runtime shared by the subcommands.
type env struct {
	config *Config
	logger *zap.Logger
	store  marketplace.Store
	judge  *ai.Judge
	cache  *matching.Cache

	closers []func()
}

func newLogger() *zap.Logger {
	l, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

// setup builds the store, the judge and the match cache. Any failure is fatal.
func setup(ctx context.Context) *env {
	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	e := &env{config: config, logger: logger}

	shutdown, err := telemetry.InitTracer(ctx, telemetry.Options{
		ServiceName:    app,
		ServiceVersion: version,
		Endpoint:       config.Telemetry.OTLPEndpoint,
		Insecure:       config.Telemetry.Insecure,
	}, logger)
	if err != nil {
		logger.Fatal("initializing tracing", zap.Error(err))
	}
	e.closers = append(e.closers, func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("flushing traces", zap.Error(err))
		}
	})

	store, closeStore, err := newStore(ctx, config.Store, logger)
	if err != nil {
		e.Close()
		logger.Fatal("opening the store", zap.Error(err), zap.String("driver", config.Store.Driver))
	}
	e.store = store
	e.closers = append(e.closers, closeStore)

	generator, provider, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		e.Close()
		logger.Fatal("creating the ai provider", zap.Error(err), zap.String("provider", config.AI.Provider))
	}

	e.judge = ai.NewJudge(generator, provider, logger, config.AI.MaxLogLength)
	e.cache = matching.NewCache(store, e.judge, config.Matching, logger)

	return e
}

// recommender wires the filter pipeline and the session cache on top of the
// match cache.
func (e *env) recommender(includeApplied bool) *matching.Recommender {
	filterCfg := &filtering.Config{
		ExcludeCompanies: e.config.Filters.ExcludeCompanies,
		IncludeApplied:   includeApplied,
	}

	steps := filtering.Default()
	for _, name := range e.config.Filters.Disable {
		filtering.DisableByName(steps, name, "disabled in config")
	}
	for _, status := range filtering.Describe(steps) {
		e.logger.Debug("filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	sessions, closeSessions := newSessionCache(e.config.SessionCache, e.logger)
	e.closers = append(e.closers, closeSessions)

	rec := matching.NewRecommender(e.store, e.cache, e.config.Matching, e.logger,
		matching.WithFilters(filterCfg, steps...),
		matching.WithSessionCache(sessions),
	)
	rec.OnProgress = func(done, total int) {
		e.logger.Debug("evaluated job", zap.Int("done", done), zap.Int("total", total))
	}

	return rec
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
	_ = e.logger.Sync()
}

func newStore(ctx context.Context, config *StoreConfig, logger *zap.Logger) (marketplace.Store, func(), error) {
	nop := func() {}

	switch strings.ToLower(strings.TrimSpace(config.Driver)) {
	case StoreMemory:
		if config.Memory == nil || strings.TrimSpace(config.Memory.Fixture) == "" {
			logger.Warn("memory store has no fixture, it starts empty")
			return memory.New(), nop, nil
		}
		store, err := memory.NewFromFile(config.Memory.Fixture)
		if err != nil {
			return nil, nop, err
		}
		return store, nop, nil

	case StorePostgres, "":
		dsn := viper.GetString("store.postgres.dsn")
		var maxConns int32
		if config.Postgres != nil {
			maxConns = config.Postgres.MaxConns
		}
		if strings.TrimSpace(dsn) == "" {
			return nil, nop, errors.New("store.postgres.dsn is not configured (or set DATABASE_URL)")
		}
		store, err := postgres.Connect(ctx, postgres.Options{DSN: dsn, MaxConns: maxConns})
		if err != nil {
			return nil, nop, err
		}
		return store, store.Close, nil

	case StorePostgREST:
		var key, keyFile string
		if config.PostgREST != nil {
			key = config.PostgREST.APIKey
			keyFile = config.PostgREST.APIKeyFile
		}
		baseURL := viper.GetString("store.postgrest.url")

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "postgrest api key",
			Value: key,
			File:  keyFile,
			Env:   "POSTGREST_API_KEY",
		})
		if err != nil {
			return nil, nop, err
		}

		client, err := postgrest.New(baseURL, apiKey, logger)
		if err != nil {
			return nil, nop, err
		}
		return client, nop, nil

	default:
		return nil, nop, fmt.Errorf("unknown store driver %q", config.Driver)
	}
}

// newGenerator returns a nil generator, not an error, when the provider
// credential is missing. The judge then reports every pair as unscored.
func newGenerator(ctx context.Context, config *AIConfig, logger *zap.Logger) (ai.Generator, string, error) {
	provider := strings.ToLower(strings.TrimSpace(config.Provider))

	switch provider {
	case ProviderNone:
		return nil, provider, nil

	case openai.ProviderName, "openai", "":
		opts := config.OpenAI
		if opts == nil {
			opts = &OpenAIConfig{JSONMode: true}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "groq api key",
			Value: opts.APIKey,
			File:  opts.APIKeyFile,
			Env:   "GROQ_API_KEY",
		})
		if err != nil {
			logger.Warn("ai provider is disabled", zap.Error(err), zap.String("hint", "set GROQ_API_KEY or ai.openai.api-key-file"))
			return nil, openai.ProviderName, nil
		}

		client, err := openai.New(openai.Options{
			APIKey:     apiKey,
			BaseURL:    opts.BaseURL,
			Model:      opts.Model,
			MaxRetries: opts.MaxRetries,
			JSONMode:   opts.JSONMode,
		}, logger)
		if err != nil {
			return nil, openai.ProviderName, err
		}
		return client, openai.ProviderName, nil

	case gemini.ProviderName:
		opts := config.Gemini
		if opts == nil {
			opts = &GeminiConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: opts.APIKey,
			File:  opts.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			logger.Warn("ai provider is disabled", zap.Error(err), zap.String("hint", "set GEMINI_API_KEY or ai.gemini.api-key-file"))
			return nil, gemini.ProviderName, nil
		}

		generator, err := gemini.NewGenerator(ctx, gemini.Options{
			APIKey:     apiKey,
			Model:      opts.Model,
			MaxRetries: opts.MaxRetries,
		}, logger)
		if err != nil {
			return nil, gemini.ProviderName, err
		}
		return generator, gemini.ProviderName, nil

	default:
		return nil, provider, fmt.Errorf("unknown ai provider %q", config.Provider)
	}
}

func newSessionCache(config *SessionCacheConfig, logger *zap.Logger) (matching.SessionCache, func()) {
	if strings.ToLower(strings.TrimSpace(config.Driver)) == SessionCacheRedis {
		addr := viper.GetString("session-cache.redis.addr")
		opts := redis.Options{Addr: addr}
		if config.Redis != nil {
			opts.Password = config.Redis.Password
			opts.DB = config.Redis.DB
			opts.TTL = config.Redis.TTL
		}
		if addr != "" {
			cache := redis.New(opts, logger)
			return cache, func() {
				if err := cache.Close(); err != nil {
					logger.Debug("closing redis", zap.Error(err))
				}
			}
		}
		logger.Warn("redis session cache has no address, falling back to memory")
	}

	return sessioncache.NewMemory(config.MaxBytes), func() {}
}

// redacted returns a copy of the config safe to log.
func redacted(config *Config) *Config {
	cp := *config
	if config.AI != nil {
		aiCfg := *config.AI
		if aiCfg.OpenAI != nil {
			o := *aiCfg.OpenAI
			o.APIKey = mask(o.APIKey)
			aiCfg.OpenAI = &o
		}
		if aiCfg.Gemini != nil {
			g := *aiCfg.Gemini
			g.APIKey = mask(g.APIKey)
			aiCfg.Gemini = &g
		}
		cp.AI = &aiCfg
	}
	if config.Store != nil {
		store := *config.Store
		if store.PostgREST != nil {
			p := *store.PostgREST
			p.APIKey = mask(p.APIKey)
			store.PostgREST = &p
		}
		if store.Postgres != nil {
			p := *store.Postgres
			p.DSN = mask(p.DSN)
			store.Postgres = &p
		}
		cp.Store = &store
	}
	if config.SessionCache != nil && config.SessionCache.Redis != nil {
		sc := *config.SessionCache
		r := *sc.Redis
		r.Password = mask(r.Password)
		sc.Redis = &r
		cp.SessionCache = &sc
	}
	return &cp
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
