package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/panel-extractor/internal/common"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
	"github.com/joseph-ayodele/panel-extractor/internal/repository"
	"github.com/joseph-ayodele/panel-extractor/internal/server"
)

const inMemoryDSN = "file:panels?mode=memory&cache=shared"

var (
	inmem       bool
	layoutsFile string
	logger      *slog.Logger
	cfg         *common.Config
)

var rootCmd = &cobra.Command{
	Use:   "panelctl",
	Short: "Operate the control-panel extraction pipeline",
	Long: `panelctl provisions the per-layout relations, runs photographs of extrusion-line
control panels through classification and extraction, and exports stored readings.

Configuration comes from the environment (DB_DRIVER, DB_URL, LLM_PROVIDER,
OPENAI_API_KEY or GEMINI_API_KEY, LAYOUTS_FILE, ...). LOG_LEVEL sets verbosity.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(os.Getenv("LOG_LEVEL"))
		slog.SetDefault(logger)

		cfg = common.LoadConfig()
		if inmem {
			cfg.Database.Driver = repository.DriverSQLite
			cfg.Database.DSN = inMemoryDSN
		}
		if layoutsFile != "" {
			cfg.Pipeline.LayoutsFile = layoutsFile
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&inmem, "inmem", false, "use an in-memory SQLite database")
	rootCmd.PersistentFlags().StringVar(&layoutsFile, "layouts", "", "YAML layout catalogue (defaults to the built-in layouts)")

	rootCmd.AddCommand(provisionCmd, verifyCmd, layoutsCmd)
	rootCmd.AddCommand(classifyCmd, runCmd, batchCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// env is what a subcommand needs from storage and the model provider.
type env struct {
	reg   *layout.Registry
	store *repository.Store
	inv   llm.Invoker
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// openEnv loads the layouts and connects to storage. With withModel it also builds the
// configured invoker. In-memory databases are provisioned on the spot.
func openEnv(ctx context.Context, withModel bool) (*env, error) {
	validate := cfg.ValidateStorage
	if withModel {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, err
	}

	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	store, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	e := &env{reg: reg, store: store}
	if inmem {
		if err := repository.NewProvisioner(store, logger).Provision(ctx, reg); err != nil {
			e.Close()
			return nil, err
		}
	}
	if withModel {
		inv, err := server.NewInvoker(ctx, cfg.LLM, logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.inv = inv
	}
	return e, nil
}

func loadRegistry() (*layout.Registry, error) {
	reg, err := layout.Load(cfg.Pipeline.LayoutsFile)
	if err != nil {
		return nil, fmt.Errorf("load layouts: %w", err)
	}
	return reg, nil
}
