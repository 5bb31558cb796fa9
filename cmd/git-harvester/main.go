// Command git-harvester extracts the full history metadata of a git
// repository into a columnar parquet dataset: commits, changed files,
// per-revision file snapshots and per-author blame attribution.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeatlas/git-harvester/internal/config"
	"github.com/codeatlas/git-harvester/internal/logging"
	"github.com/codeatlas/git-harvester/internal/metrics"
	"github.com/codeatlas/git-harvester/internal/pipeline"
	"github.com/codeatlas/git-harvester/internal/publish"
	"github.com/codeatlas/git-harvester/internal/report"
	"github.com/codeatlas/git-harvester/internal/sink"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, publish.ErrPublish) {
			// The harvest itself succeeded; only the upload failed.
			os.Exit(3)
		}
		os.Exit(1)
	}
}

// flagValues carries the raw CLI flag values before they are overlaid onto
// the configuration.
type flagValues struct {
	configFile string

	branch           string
	numberOfWorkers  int
	fileSizeLimit    int64
	blameOnlyForHead bool
	ramDiskDir       string
	verbose          bool

	outputDir   string
	compression string
	metricsAddr string
	publishURL  string
	logFormat   string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	var fv flagValues

	cmd := &cobra.Command{
		Use:   "git-harvester <path-to-repo>",
		Short: "Extract git history metadata into a parquet dataset",
		Long: `git-harvester analyzes every commit reachable from a branch and writes
four tables (commits, changed_files, file_commit_mapping, blame) as parquet
files. History analysis runs on parallel workers, each with a private clone;
a single writer owns the dataset, since the sink permits only one writer.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, args[0], &fv)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&fv.configFile, "config", "", "optional YAML config file; flags take precedence")
	fl.StringVar(&fv.branch, "branch", "main", "branch to follow in the repository")
	fl.IntVar(&fv.numberOfWorkers, "number-of-workers", 0, "extraction worker count (0 = one third of the CPUs)")
	fl.Int64Var(&fv.fileSizeLimit, "file-size-limit", config.DefaultFileSizeLimit, "skip files bigger than this many bytes (0 disables)")
	fl.BoolVar(&fv.blameOnlyForHead, "blame-only-for-head", false, "blame only changed files for non-head commits")
	fl.StringVar(&fv.ramDiskDir, "ram-disk-dir", "", "backing dir for worker workspaces, e.g. /dev/shm")
	fl.BoolVar(&fv.verbose, "verbose", false, "per-file progress logging")
	fl.StringVar(&fv.outputDir, "output", "./git-metadata", "dataset output directory")
	fl.StringVar(&fv.compression, "compression", "snappy", "parquet compression: snappy, zstd or none")
	fl.StringVar(&fv.metricsAddr, "metrics-addr", "", "address for the Prometheus listener (empty disables)")
	fl.StringVar(&fv.publishURL, "publish-url", "", "bucket URL to upload the dataset to after the run")
	fl.StringVar(&fv.logFormat, "log-format", "text", "log format: text or json")
	fl.StringVar(&fv.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	return cmd
}

// buildConfig layers defaults, the optional config file and explicit flags,
// then validates the result. Validation failures abort before any worker or
// writer is spawned.
func buildConfig(cmd *cobra.Command, repoPath string, fv *flagValues) (config.Config, error) {
	cfg := config.Default()

	if fv.configFile != "" {
		if err := config.LoadFile(fv.configFile, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Repo.Path = repoPath
	set := cmd.Flags().Changed
	if set("branch") || cfg.Repo.Branch == "" {
		cfg.Repo.Branch = fv.branch
	}
	if set("number-of-workers") {
		cfg.Harvest.NumberOfWorkers = fv.numberOfWorkers
	}
	if set("file-size-limit") {
		cfg.Harvest.FileSizeLimit = fv.fileSizeLimit
	}
	if set("blame-only-for-head") {
		cfg.Harvest.BlameOnlyForHead = fv.blameOnlyForHead
	}
	if set("ram-disk-dir") {
		cfg.Harvest.RAMDiskDir = fv.ramDiskDir
	}
	if set("verbose") {
		cfg.Harvest.Verbose = fv.verbose
	}
	if set("output") {
		cfg.Output.Dir = fv.outputDir
	}
	if set("compression") {
		cfg.Output.Compression = fv.compression
	}
	if set("metrics-addr") {
		cfg.Metrics.Address = fv.metricsAddr
	}
	if set("publish-url") {
		cfg.Publish.URL = fv.publishURL
	}
	if set("log-format") {
		cfg.Log.Format = fv.logFormat
	}
	if set("log-level") {
		cfg.Log.Level = fv.logLevel
	}
	if cfg.Harvest.Verbose && cfg.Log.Level == "info" {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}

func run(parent context.Context, cfg config.Config) error {
	logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
	slog.Info("git-harvester starting", "version", pipeline.Version, "git_sha", pipeline.GitSHA)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-ch:
			slog.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Metrics.Address != "" {
		metrics.Init("git_harvester")
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	snk, err := sink.New(sink.Config{
		Dir:         cfg.Output.Dir,
		Compression: cfg.Output.Compression,
		Producer: sink.ProducerInfo{
			Name:    "git-harvester",
			Version: pipeline.Version,
			GitSHA:  pipeline.GitSHA,
		},
	})
	if err != nil {
		return err
	}

	h := pipeline.New(cfg, snk)
	summary, err := h.Run(ctx)
	if err != nil {
		slog.Error("harvest failed", "error", err)
		return err
	}

	if err := report.Write(cfg.Output.Dir, summary); err != nil {
		slog.Warn("failed to write run report", "error", err)
	}

	if cfg.Publish.URL != "" {
		if err := publish.Dataset(ctx, cfg.Output.Dir, cfg.Publish.URL); err != nil {
			slog.Error("publish failed, local dataset kept", "error", err)
			return err
		}
	}
	return nil
}
