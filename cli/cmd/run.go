package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/instantcocoa/verdict/cli/internal/output"
	"github.com/instantcocoa/verdict/pkg/cache"
	"github.com/instantcocoa/verdict/pkg/config"
	"github.com/instantcocoa/verdict/pkg/database"
	"github.com/instantcocoa/verdict/pkg/httputil"
	"github.com/instantcocoa/verdict/pkg/telemetry"
	"github.com/instantcocoa/verdict/services/dataset"
	"github.com/instantcocoa/verdict/services/judge"
	"github.com/instantcocoa/verdict/services/pilot"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the comparison pilot",
	Long: `Loads the three evaluation artifacts from the test directory, scores
every backend answer against the GEval criteria and writes the raw
results, the comparison JSON and the markdown report to the output
directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		testDir, _ := cmd.Flags().GetString("test-dir")
		limit, _ := cmd.Flags().GetInt("limit")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		thresholdsFile, _ := cmd.Flags().GetString("thresholds-file")
		outputDir, _ := cmd.Flags().GetString("output-dir")
		providerName, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")

		if !cmd.Flags().Changed("output-dir") {
			outputDir = cfg.OutputDir
		}

		base, err := config.Load("verdict")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := cmd.Context()

		logLevel := base.LogLevel
		if cfg.Verbose {
			logLevel = "debug"
		}
		tel, err := telemetry.Setup(ctx, telemetry.Config{
			ServiceName:     "verdict",
			ServiceVersion:  base.Version,
			Environment:     base.Environment,
			OTLPEndpoint:    base.OTLPEndpoint,
			TracingEnabled:  base.TracingEnabled,
			TracingSampling: base.TracingSampling,
			LogLevel:        logLevel,
			LogFormat:       base.LogFormat,
		})
		if err != nil {
			return fmt.Errorf("failed to setup telemetry: %w", err)
		}
		defer tel.Shutdown(context.Background())
		logger := tel.Logger()

		provider, err := buildProvider(ctx, base, providerName, logger)
		if err != nil {
			return err
		}

		judgeCfg := judge.DefaultConfig()
		judgeCfg.Temperature = base.JudgeTemperature
		judgeCfg.MaxTokens = base.JudgeMaxTokens
		judgeCfg.RequestTimeout = base.JudgeTimeout
		judgeCfg.Retry.MaxRetries = base.JudgeMaxRetries
		judgeCfg.DefaultThreshold = threshold
		if base.JudgeModel != "" {
			judgeCfg.Model = base.JudgeModel
		}
		if model != "" {
			judgeCfg.Model = model
		}
		if thresholdsFile != "" {
			overrides, err := loadThresholds(thresholdsFile)
			if err != nil {
				return err
			}
			judgeCfg.Thresholds = overrides
		}

		var scorer judge.Scorer = judge.NewCriteriaScorer(provider, judgeCfg, logger)
		if base.CacheEnabled {
			client, err := cache.Connect(ctx, cacheConfig(base))
			if err != nil {
				return fmt.Errorf("failed to connect to score cache: %w", err)
			}
			defer client.Close()
			aside := cache.NewCacheAside[judge.ScoreResult](client.WithLogger(logger).WithKeyPrefix("verdict"), base.CacheTTL)
			scorer = judge.NewCachingScorer(scorer, aside, provider.Name()+"/"+judgeCfg.Model)
		}

		store, cleanup, err := buildStore(ctx, base, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		source, err := dataset.NewSource(testDir)
		if err != nil {
			return fmt.Errorf("failed to open test directory: %w", err)
		}
		loader := dataset.NewLoader(source, logger)

		svc := pilot.NewService(loader, scorer, store, logger)
		res, err := svc.Run(ctx, pilot.RunOptions{
			TestDir:    testDir,
			Limit:      limit,
			Threshold:  threshold,
			Thresholds: judgeCfg.Thresholds,
			OutputDir:  outputDir,
			Provider:   provider.Name(),
			Model:      judgeCfg.Model,
			Progress:   cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}

		output.Info("Run ID: %s", res.Run.ID)
		return nil
	},
}

// buildProvider registers all known providers and picks the requested
// one, falling back to the configured default.
func buildProvider(ctx context.Context, base *config.Base, name string, logger *slog.Logger) (judge.Provider, error) {
	registry := judge.NewRegistry()

	// Per-attempt deadlines come from the scorer, so the shared client
	// itself carries no timeout.
	httpClient := httputil.NewClient(0, logger)

	openai := judge.NewOpenAIProvider(base.OpenAIAPIKey).WithHTTPClient(httpClient)
	if base.OpenAIBaseURL != "" {
		openai = openai.WithBaseURL(base.OpenAIBaseURL)
	}
	registry.Register(openai)

	anthropic := judge.NewAnthropicProvider(base.AnthropicAPIKey).WithHTTPClient(httpClient)
	if base.AnthropicBaseURL != "" {
		anthropic = anthropic.WithBaseURL(base.AnthropicBaseURL)
	}
	registry.Register(anthropic)

	registry.Register(judge.NewOpenRouterProvider(base.OpenRouterAPIKey).WithHTTPClient(httpClient))
	registry.Register(judge.NewOllamaProvider(base.OllamaURL).WithHTTPClient(httpClient))

	if name == "" {
		name = base.JudgeProvider
	}
	p, ok := registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if !p.Available(ctx) {
		return nil, fmt.Errorf("provider %s is not configured (missing API key?)", name)
	}
	return p, nil
}

// buildStore returns the run history store for the configured backend
// and a cleanup function for its resources.
func buildStore(ctx context.Context, base *config.Base, logger *slog.Logger) (pilot.Store, func(), error) {
	if base.UseMemoryStorage() {
		return pilot.NewMemoryStore(), func() {}, nil
	}

	dbCfg := database.DefaultConfig()
	dbCfg.Host = base.DBHost
	dbCfg.Port = base.DBPort
	dbCfg.User = base.DBUser
	dbCfg.Password = base.DBPassword
	dbCfg.Database = base.DBName
	dbCfg.SSLMode = base.DBSSLMode

	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	migrator := database.NewMigrator(db, "pilot").WithLogger(logger)
	files, dir := pilot.Migrations()
	if err := migrator.LoadMigrations(files, dir); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store, err := pilot.NewStore(pilot.StoreOptions{Backend: config.StoragePostgres, DB: db.DB})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, func() { db.Close() }, nil
}

func cacheConfig(base *config.Base) *cache.Config {
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = strings.TrimPrefix(base.RedisURL, "redis://")
	return cacheCfg
}

// loadThresholds reads per-metric threshold overrides from a YAML file
// mapping metric names to values in [0, 1].
func loadThresholds(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thresholds file: %w", err)
	}
	var thresholds map[string]float64
	if err := yaml.Unmarshal(data, &thresholds); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds file: %w", err)
	}

	known := make(map[string]bool)
	for _, name := range dataset.IndicatorNames() {
		known[name] = true
	}
	for name, value := range thresholds {
		if !known[name] {
			return nil, fmt.Errorf("unknown metric in thresholds file: %s", name)
		}
		if value < 0 || value > 1 {
			return nil, fmt.Errorf("threshold for %s out of range [0, 1]: %g", name, value)
		}
	}
	return thresholds, nil
}

func init() {
	runCmd.Flags().String("test-dir", "", "Directory containing the evaluation artifacts (required)")
	runCmd.Flags().Int("limit", 0, "Max cases to evaluate (0 = all)")
	runCmd.Flags().Float64("threshold", 0.5, "Pass threshold applied to every criterion score")
	runCmd.Flags().String("thresholds-file", "", "YAML file with per-metric threshold overrides")
	runCmd.Flags().String("output-dir", "output", "Directory for run artifacts")
	runCmd.Flags().String("provider", "", "Judge provider (openai, anthropic, openrouter, ollama)")
	runCmd.Flags().String("model", "", "Judge model override")
	_ = runCmd.MarkFlagRequired("test-dir")
}
