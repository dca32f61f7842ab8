package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/ai/gemini"
	"github.com/spigell/job-matcher/internal/ai/openai"
	"github.com/spigell/job-matcher/internal/marketplace"
	"github.com/spigell/job-matcher/internal/marketplace/memory"
	"github.com/spigell/job-matcher/internal/matching"
	"github.com/spigell/job-matcher/internal/sessioncache"
)

func TestNewStoreMemoryFixture(t *testing.T) {
	config := &StoreConfig{Driver: StoreMemory}
	config.Memory = &struct {
		Fixture string `mapstructure:"fixture"`
	}{Fixture: "testdata/fixture.json"}

	store, closeStore, err := newStore(context.Background(), config, zap.NewNop())
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	defer closeStore()

	candidate, err := store.GetCandidate(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetCandidate: %v", err)
	}
	if candidate.Collar != marketplace.CollarBlue {
		t.Fatalf("unexpected collar %q", candidate.Collar)
	}

	jobs, err := store.ListJobs(context.Background(), marketplace.JobFilter{CollarType: marketplace.CollarBlue})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if jobs.Len() != 2 {
		t.Fatalf("expected 2 blue collar jobs, got %d", jobs.Len())
	}
}

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	_, _, err := newStore(context.Background(), &StoreConfig{Driver: "mongo"}, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "mongo") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestNewGeneratorWithoutCredential(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	tests := []struct {
		name         string
		provider     string
		wantProvider string
		wantWarning  bool
	}{
		{name: "none", provider: ProviderNone, wantProvider: ProviderNone},
		{name: "groq", provider: "groq", wantProvider: openai.ProviderName, wantWarning: true},
		{name: "default", provider: "", wantProvider: openai.ProviderName, wantWarning: true},
		{name: "gemini", provider: "Gemini", wantProvider: gemini.ProviderName, wantWarning: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)

			generator, provider, err := newGenerator(context.Background(), &AIConfig{Provider: tt.provider}, zap.New(core))
			if err != nil {
				t.Fatalf("newGenerator: %v", err)
			}
			if generator != nil {
				t.Fatalf("expected nil generator, got %T", generator)
			}
			if provider != tt.wantProvider {
				t.Fatalf("expected provider %q, got %q", tt.wantProvider, provider)
			}
			if got := logs.FilterMessage("ai provider is disabled").Len() == 1; got != tt.wantWarning {
				t.Fatalf("warning logged = %v, want %v", got, tt.wantWarning)
			}
		})
	}
}

func TestNewGeneratorGroqWithKey(t *testing.T) {
	generator, provider, err := newGenerator(context.Background(), &AIConfig{
		Provider: "groq",
		OpenAI:   &OpenAIConfig{APIKey: "secret", Model: "llama-test"},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("newGenerator: %v", err)
	}
	if provider != openai.ProviderName {
		t.Fatalf("unexpected provider %q", provider)
	}
	if generator == nil || generator.Model() != "llama-test" {
		t.Fatalf("unexpected generator %#v", generator)
	}
}

func TestNewGeneratorUnknownProvider(t *testing.T) {
	if _, _, err := newGenerator(context.Background(), &AIConfig{Provider: "bard"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewSessionCacheFallsBackToMemory(t *testing.T) {
	config := &SessionCacheConfig{Driver: SessionCacheRedis, MaxBytes: 16}

	cache, closeCache := newSessionCache(config, zap.NewNop())
	defer closeCache()

	if _, ok := cache.(*sessioncache.Memory); !ok {
		t.Fatalf("expected memory cache, got %T", cache)
	}
	if err := cache.Set(context.Background(), "k", strings.Repeat("x", 32)); err == nil {
		t.Fatal("expected quota error for oversized value")
	}
}

func TestRedactedMasksSecrets(t *testing.T) {
	config := &Config{
		AI: &AIConfig{OpenAI: &OpenAIConfig{APIKey: "groq-secret"}},
		Store: &StoreConfig{},
	}
	config.Store.Postgres = &struct {
		DSN      string `mapstructure:"dsn"`
		MaxConns int32  `mapstructure:"max-conns"`
	}{DSN: "postgres://user:pass@db/matcher"}

	safe := redacted(config)

	if safe.AI.OpenAI.APIKey != "***" || safe.Store.Postgres.DSN != "***" {
		t.Fatalf("secrets leaked: %+v %+v", safe.AI.OpenAI, safe.Store.Postgres)
	}
	if config.AI.OpenAI.APIKey != "groq-secret" {
		t.Fatal("redacted modified the original config")
	}
}

func TestScoreCommand(t *testing.T) {
	var out bytes.Buffer
	scoreCmd.SetOut(&out)
	scoreCmd.Flags().Set("candidate-skills", "Welding, forklift driving")
	scoreCmd.Flags().Set("job-skills", "welding, first aid, welding")

	if err := scoreCmd.RunE(scoreCmd, nil); err != nil {
		t.Fatalf("score: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "50.00" {
		t.Fatalf("expected 50.00, got %q", got)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if got := out.String(); !strings.HasPrefix(got, "job-matcher version: ") {
		t.Fatalf("unexpected version output %q", got)
	}
}

func TestRecommenderHonoursDisabledFilters(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	store, err := memory.NewFromFile("testdata/fixture.json")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	config := &Config{
		Matching:     matching.DefaultConfig(),
		Filters:      &FiltersConfig{ExcludeCompanies: []string{"acme"}, Disable: []string{"companies"}},
		SessionCache: &SessionCacheConfig{},
	}
	e := &env{
		config: config,
		logger: log,
		store:  store,
		cache:  matching.NewCache(store, ai.NewJudge(nil, ProviderNone, log, 0), config.Matching, log),
	}
	defer e.Close()

	candidate, err := store.GetCandidate(ctx, "c1")
	if err != nil {
		t.Fatalf("candidate: %v", err)
	}
	if _, err := e.recommender(false).RecommendJobs(ctx, candidate); err != nil {
		t.Fatalf("recommend: %v", err)
	}

	statuses := map[string]bool{}
	for _, entry := range logs.FilterMessage("filter configured").All() {
		fields := entry.ContextMap()
		statuses[fields["name"].(string)] = fields["enabled"].(bool)
	}
	want := map[string]bool{"category": true, "applied_history": true, "companies": false}
	for name, enabled := range want {
		if got, ok := statuses[name]; !ok || got != enabled {
			t.Fatalf("filter %s: expected enabled=%v, got %v (logged %v)", name, enabled, got, statuses)
		}
	}

	disabled := logs.FilterMessage("filter disabled").All()
	if len(disabled) != 1 || disabled[0].ContextMap()["name"] != "companies" {
		t.Fatalf("expected the companies step to be skipped, got %v", disabled)
	}
	for _, entry := range logs.FilterMessage("filter step").All() {
		if entry.ContextMap()["name"] == "companies" {
			t.Fatal("disabled companies step was applied")
		}
	}
}
