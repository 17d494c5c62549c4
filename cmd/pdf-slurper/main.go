package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/pdf-slurper/internal/config"
	"github.com/a3tai/pdf-slurper/internal/intake"
	"github.com/a3tai/pdf-slurper/internal/logger"
	"github.com/a3tai/pdf-slurper/internal/mcp"
	"github.com/a3tai/pdf-slurper/internal/pdf"
	"github.com/a3tai/pdf-slurper/internal/storage/sqlite"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging builds the process logger. Logs go to stderr in every mode so
// stdout carries only the MCP protocol or the import summary.
func setupLogging(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
}

// newProcessor wires the import pipeline from cfg
func newProcessor(cfg *config.Config, store intake.Store, log *logger.Logger) *intake.Processor {
	return intake.NewProcessor(store, pdf.NewReader(cfg.MaxFileSize),
		intake.WithMinHeaderMatches(cfg.MinHeaderMatches),
		intake.WithMaxFileSize(cfg.MaxFileSize),
		intake.WithWorkers(cfg.Workers),
		intake.WithLogger(log),
	)
}

// runStdioMode serves MCP until stdin closes or a signal arrives
func runStdioMode(ctx context.Context, server *mcp.Server) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	return server.Run(ctx)
}

// runImport imports files and writes one summary line per file to out. It
// returns the number of files that failed.
func runImport(ctx context.Context, out io.Writer, processor *intake.Processor, files []string, reprocess bool) int {
	failed := 0
	for _, item := range processor.ProcessBatch(ctx, files, reprocess) {
		if item.Err != nil {
			failed++
			fmt.Fprintf(out, "%s\terror\t%v\n", item.Path, item.Err)
			continue
		}
		res := item.Result
		fmt.Fprintf(out, "%s\t%s\t%s\tsamples=%d\tdegraded=%d\n",
			item.Path, res.Status, res.Submission.ID, len(res.Samples), res.Degraded.Count)
	}
	return failed
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logr, err := setupLogging(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logr.Sync()

	if cfg.IsDebug() {
		logr.Debug("starting", "version", cfg.Version, "config", cfg.String())
	}

	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		logr.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	processor := newProcessor(cfg, store, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch {
	case cfg.IsImportMode():
		if failed := runImport(ctx, os.Stdout, processor, cfg.Files, cfg.Reprocess); failed > 0 {
			logr.Warn("some files failed to import", "failed", failed, "total", len(cfg.Files))
			logr.Sync()
			store.Close()
			os.Exit(1)
		}

	case cfg.IsStdioMode():
		server, err := mcp.NewServer(cfg, processor, store, logr)
		if err != nil {
			logr.Error("failed to create MCP server", "error", err)
			logr.Sync()
			store.Close()
			os.Exit(1)
		}

		if err := runStdioMode(ctx, server); err != nil {
			logr.Error("server error", "error", err)
			logr.Sync()
			store.Close()
			os.Exit(1)
		}
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("PDF Slurper\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
