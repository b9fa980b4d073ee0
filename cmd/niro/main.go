// Command niro runs the NIRO conversational astrology API server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nirolabs/niro/internal/api"
	"github.com/nirolabs/niro/internal/astro"
	"github.com/nirolabs/niro/internal/extract"
	"github.com/nirolabs/niro/internal/genai"
	"github.com/nirolabs/niro/internal/orchestrator"
	"github.com/nirolabs/niro/internal/scheduler"
	"github.com/nirolabs/niro/internal/store"
	"github.com/nirolabs/niro/internal/util"
)

// Default configuration constants.
const (
	// DefaultStateDir is the default directory for NIRO state data.
	DefaultStateDir = "/var/lib/niro"
	// DefaultDBFileName is the default SQLite database filename.
	DefaultDBFileName = "niro.db"
	// DefaultPrimaryModel drives the primary generator.
	DefaultPrimaryModel = "gpt-4o"
	// DefaultSecondaryModel backs the secondary generator in the fallback chain.
	DefaultSecondaryModel = "gpt-4o-mini"
)

// Config holds environment configuration.
type Config struct {
	StateDir    string
	DatabaseURL string
	OpenAIKey   string
	Model       string
	APIAddr     string
	SweepCron   string
	TransitTTL  time.Duration
	GenTimeout  time.Duration
}

// Flags holds command line flag values.
type Flags struct {
	stateDir  *string
	dbDSN     *string
	openaiKey *string
	model     *string
	apiAddr   *string
	sweepCron *string
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	orch := buildOrchestrator(st, flags, config)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.ScheduleTransitSweep(st, config.TransitTTL, *flags.sweepCron); err != nil {
		slog.Error("Failed to schedule transit cache sweep", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping NIRO", "addr", *flags.apiAddr, "dsn_set", *flags.dbDSN != "", "openai_key_set", *flags.openaiKey != "")
	server := api.NewServer(orch, api.WithAddr(*flags.apiAddr))
	if err := server.Run(ctx); err != nil {
		slog.Error("NIRO failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("NIRO exited successfully")
}

// initializeLogger sets up structured logging.
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:    os.Getenv("NIRO_STATE_DIR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		Model:       os.Getenv("OPENAI_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
		SweepCron:   os.Getenv("CACHE_SWEEP_CRON"),
		TransitTTL:  util.ParseDurationEnv("TRANSIT_CACHE_TTL", astro.DefaultTransitTTL),
		GenTimeout:  util.ParseDurationEnv("GENERATE_TIMEOUT", orchestrator.DefaultGenerateTimeout),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.Model == "" {
		config.Model = DefaultPrimaryModel
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}

	slog.Debug("environment variables loaded",
		"NIRO_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"CACHE_SWEEP_CRON", config.SweepCron)
	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for NIRO data (overrides $NIRO_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:     flag.String("openai-model", config.Model, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sweepCron: flag.String("sweep-cron", config.SweepCron, "cron expression for the cache sweep (overrides $CACHE_SWEEP_CRON)"),
	}
	flag.Parse()

	// Keep the SQLite default in step with an overridden state directory.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}
	return flags
}

// ensureDirectoriesExist creates the state directory for file-based storage.
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) != "sqlite" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	return os.MkdirAll(stateDir, 0755)
}

// buildStore opens the persistence backend matching the DSN.
func buildStore(flags Flags) (store.Store, error) {
	switch store.DetectDSNType(*flags.dbDSN) {
	case "postgres":
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	default:
		slog.Info("Using SQLite store", "path", *flags.dbDSN)
		return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	}
}

// buildOrchestrator wires the pipeline: extractor, chart cache, and the
// generator fallback chain (primary LLM, secondary LLM, deterministic stub).
func buildOrchestrator(st store.Store, flags Flags, config Config) *orchestrator.Orchestrator {
	var secondary extract.Secondary
	generators := make([]genai.Generator, 0, 3)

	if *flags.openaiKey != "" {
		if primary, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey), genai.WithModel(*flags.model)); err != nil {
			slog.Warn("Failed to create primary generator", "error", err)
		} else {
			generators = append(generators, primary)
		}
		if backup, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey), genai.WithModel(DefaultSecondaryModel)); err != nil {
			slog.Warn("Failed to create secondary generator", "error", err)
		} else {
			generators = append(generators, backup)
		}
		if ext, err := extract.NewLLMExtractor(*flags.openaiKey, *flags.model); err != nil {
			slog.Warn("Failed to create LLM extractor, using regex cascade only", "error", err)
		} else {
			secondary = ext
		}
	} else {
		slog.Warn("No OpenAI API key configured; serving deterministic replies only")
	}
	generators = append(generators, genai.NewStubGenerator())

	cache := astro.NewCache(st, astro.NewStubProvider(), astro.WithTransitTTL(config.TransitTTL))
	return orchestrator.New(
		st,
		extract.NewExtractor(secondary),
		cache,
		genai.NewFallbackChain(generators...),
		orchestrator.WithGenerateTimeout(config.GenTimeout),
	)
}
