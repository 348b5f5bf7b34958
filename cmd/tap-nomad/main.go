package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-nomad/pkg/catalog"
	"github.com/ajitpratap0/tap-nomad/pkg/client"
	"github.com/ajitpratap0/tap-nomad/pkg/config"
	"github.com/ajitpratap0/tap-nomad/pkg/logger"
	"github.com/ajitpratap0/tap-nomad/pkg/singer"
	"github.com/ajitpratap0/tap-nomad/pkg/state"
	"github.com/ajitpratap0/tap-nomad/pkg/tapsync"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "tap-nomad",
		Short: "tap-nomad - Nomad cluster extraction connector",
		Long: `tap-nomad extracts workload and cluster metadata (jobs, allocations,
nodes, deployments) from a Nomad-style scheduler HTTP API and emits it as an
ordered stream of SCHEMA/RECORD/STATE messages for a downstream pipeline.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tap-nomad v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var discoverConfigFile string
	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Print the full stream catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(discoverConfigFile)
		},
	}
	discoverCmd.Flags().StringVarP(&discoverConfigFile, "config", "c", "", "Path to config YAML file (optional)")
	root.AddCommand(discoverCmd)

	var configFile, catalogFile, stateFile string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run extraction for the selected streams",
		Long: `Run extraction. Protocol messages go to stdout, logs to stderr.
Exits zero when every selected stream was attempted, even if some failed;
failed streams and their last safe bookmark are reported in the summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(configFile, catalogFile, stateFile)
		},
	}
	syncCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config YAML file (required)")
	syncCmd.Flags().StringVar(&catalogFile, "catalog", "", "Path to catalog JSON file selecting streams (optional, default: all streams)")
	syncCmd.Flags().StringVar(&stateFile, "state", "", "Path to persisted state JSON file (optional)")
	_ = syncCmd.MarkFlagRequired("config")
	root.AddCommand(syncCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.New()
	if path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDiscover(configFile string) error {
	if _, err := loadConfig(configFile); err != nil {
		return err
	}

	doc := catalog.Discover(catalog.Default())
	enc := gojson.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func runSync(configFile, catalogFile, stateFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Encoding: "json"}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("component", "tap-nomad"))

	var userCatalog *catalog.Catalog
	if catalogFile != "" {
		userCatalog, err = catalog.LoadFile(catalogFile)
		if err != nil {
			return err
		}
	}

	st := state.New()
	if stateFile != "" {
		st, err = state.LoadFile(stateFile)
		if err != nil {
			return err
		}
	}

	apiClient := client.New(cfg, log)
	writer := singer.NewWriter(os.Stdout)
	orchestrator := tapsync.New(catalog.Default(), apiClient, cfg, writer, log)

	// First signal requests a cooperative stop between streams; the
	// in-flight stream finishes so its bookmark commit stays intact
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Warn("stop signal received, finishing in-flight stream")
		orchestrator.Stop()
	}()

	log.Info("starting sync run",
		zap.String("api_url", cfg.APIURL),
		zap.Int("page_size", cfg.PageSize))

	summary, err := orchestrator.Run(context.Background(), userCatalog, st)
	// A fatal mid-run still returns the summary accumulated before it
	if summary != nil {
		reportSummary(log, summary)
	}
	if err != nil {
		return err
	}

	// Partial stream failures still exit zero; the warnings above carry
	// the failed streams and their last safe bookmarks
	return nil
}

func reportSummary(log *zap.Logger, summary *tapsync.Summary) {
	log.Info("sync run complete",
		zap.Int("streams", len(summary.Results)),
		zap.Int64("records", summary.Records()))

	for _, failed := range summary.Failed() {
		log.Warn("stream failed during run",
			zap.String("stream", failed.Stream),
			zap.Int64("records_before_failure", failed.Records),
			zap.Any("last_safe_bookmark", failed.Bookmark),
			zap.Error(failed.Err))
	}
}
