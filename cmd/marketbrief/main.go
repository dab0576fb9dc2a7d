package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/MarketBrief/internal/config"
	"github.com/TobiSchelling/MarketBrief/internal/database"
	"github.com/TobiSchelling/MarketBrief/internal/document"
	"github.com/TobiSchelling/MarketBrief/internal/logging"
	"github.com/TobiSchelling/MarketBrief/internal/metrics"
	"github.com/TobiSchelling/MarketBrief/internal/pipeline"
	"github.com/TobiSchelling/MarketBrief/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	envFile    string

	cfg       *config.Config
	creds     config.Credentials
	log       *logrus.Logger
	logCloser io.Closer
)

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "marketbrief",
	Short:   "Daily financial market briefs",
	Long:    "MarketBrief gathers financial news, summarizes it, renders a PDF brief and posts it to Telegram.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadDotEnv(envFiles()...); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}

		path, err := config.ResolveConfigPath(configPath)
		switch {
		case err == nil:
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		case configPath == "":
			cfg = config.Default()
		default:
			return err
		}

		if verbose {
			cfg.Logging.Level = "debug"
		}
		log, logCloser, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		if path == "" {
			log.Debug("no config file found, using built-in defaults")
		} else {
			log.WithField("path", path).Debug("loaded config")
		}

		creds = config.LoadCredentials(cfg.Credentials)
		return nil
	},
}

func envFiles() []string {
	if envFile == "" {
		return nil
	}
	return []string{envFile}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default ./.env)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("marketbrief", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/marketbrief/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Put API keys in the environment or a .env file; see the credentials section.")
		return nil
	},
}

// --- run command ---

var (
	dryRun bool
	demo   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline: retrieve -> summarize -> format -> translate -> distribute",
	RunE: func(cmd *cobra.Command, args []string) error {
		var store pipeline.Store
		if !dryRun {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			store = db
		}

		pipe := pipeline.New(cfg, creds, pipeline.Options{
			Demo:    demo,
			Log:     log,
			Metrics: metrics.NewRecorder(),
			Store:   store,
		})

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(cmd.Context())
		}

		printSteps(result)

		if dryRun {
			return nil
		}
		fmt.Printf("\nRun %s finished: %s\n", result.RunID, result.Status)
		if result.Err != nil {
			return result.Err
		}
		fmt.Println("Run 'marketbrief serve' to browse past runs.")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().BoolVar(&demo, "demo", false, "Use synthetic news and skip every external service")
}

func printSteps(result *pipeline.Result) {
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s (%s)\n", i+1, len(result.Steps), step.Name, step.Status)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

// --- sample command ---

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Render a sample PDF brief without fetching any news",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		assembler := document.NewAssembler(cfg.Images.PlaceholderHosts, cfg.Images.FetchTimeout, log)
		doc := assembler.Assemble(cmd.Context(), document.SampleContent(now))

		path := filepath.Join(cfg.Output.Dir, document.FileName(now))
		if err := doc.WriteFile(path); err != nil {
			return fmt.Errorf("writing sample: %w", err)
		}
		fmt.Printf("Sample brief written to %s\n", path)
		return nil
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run history and credential status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Runs:")
		fmt.Printf("  Total: %d\n", stats.TotalRuns)
		fmt.Printf("  Completed: %d\n", stats.Completed)
		fmt.Printf("  Partial: %d\n", stats.Partial)
		fmt.Printf("  Failed: %d\n", stats.Failed)
		fmt.Printf("  Demo: %d\n", stats.DemoRuns)
		if stats.LastRun != nil {
			fmt.Printf("  Last run: %s\n", stats.LastRun.Local().Format("2006-01-02 15:04"))
		}
		fmt.Println("\nDelivery:")
		fmt.Printf("  PDFs written: %d\n", stats.PDFs)
		fmt.Printf("  Telegram messages: %d\n", stats.TelegramSent)

		fmt.Println("\nCredentials:")
		if missing := cfg.DemoReasons(creds); len(missing) > 0 {
			fmt.Printf("  Missing %v; runs will use demo mode\n", missing)
		} else {
			fmt.Println("  All required credentials present")
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		rec := metrics.NewRecorder()
		runner := func(ctx context.Context) *pipeline.Result {
			pipe := pipeline.New(cfg, creds, pipeline.Options{Log: log, Metrics: rec, Store: db})
			return pipe.Run(ctx)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, db, port, server.Options{Runner: runner, Metrics: rec, Log: log})
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, database.FileName), log)
}
