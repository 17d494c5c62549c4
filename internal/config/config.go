package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeImport = "import"

	// Default values
	DefaultLogLevel         = "info"
	DefaultMaxFileSize      = 100 * 1024 * 1024 // 100MB
	DefaultMinHeaderMatches = 2
	DefaultWorkers          = 4
	DefaultDBName           = "slurper.db"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the slurper
type Config struct {
	// Run mode: serve MCP on stdio or import the files given as arguments
	Mode string

	// Storage
	DBPath string

	// Import behaviour
	MaxFileSize      int64 // Maximum PDF file size in bytes
	MinHeaderMatches int   // Canonical columns a sample table header needs
	Workers          int   // Concurrent imports in a batch
	Reprocess        bool  // Re-parse content that is already stored
	Files            []string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
	LogFile    string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:             ModeStdio,
		DBPath:           defaultDBPath(),
		MaxFileSize:      DefaultMaxFileSize,
		MinHeaderMatches: DefaultMinHeaderMatches,
		Workers:          DefaultWorkers,
		Version:          "1.0.0",
		ServerName:       "pdf-slurper",
		LogLevel:         DefaultLogLevel,
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDBName
	}
	return filepath.Join(home, ".pdf-slurper", DefaultDBName)
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)
	cfg.Files = pflag.Args()

	if cfg.DBPath != "" {
		if expandedPath, err := filepath.Abs(cfg.DBPath); err == nil {
			cfg.DBPath = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("PDF_SLURPER")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("db", cfg.DBPath)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("logfile", cfg.LogFile)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("minheaders", cfg.MinHeaderMatches)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("reprocess", cfg.Reprocess)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'stdio' serves MCP on standard I/O, 'import' imports the given files")
	pflag.String("db", cfg.DBPath, "SQLite database file")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("logfile", cfg.LogFile, "Also write JSON logs to this file, rotated")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Int("minheaders", cfg.MinHeaderMatches, "Canonical columns a table header needs to count as a sample table")
	pflag.Int("workers", cfg.Workers, "Concurrent imports in import mode")
	pflag.Bool("reprocess", cfg.Reprocess, "Re-parse files whose content is already stored")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{"mode", "db", "loglevel", "logfile", "maxfilesize", "minheaders", "workers", "reprocess"} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF Slurper - imports sequencing request PDFs into submissions and samples\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                        # MCP on stdio (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=import a.pdf b.pdf              # import two files\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=import --reprocess --db=x.db *.pdf # re-parse into x.db\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PDF_SLURPER_MODE        Run mode\n")
		fmt.Fprintf(os.Stderr, "  PDF_SLURPER_DB          Database file\n")
		fmt.Fprintf(os.Stderr, "  PDF_SLURPER_LOGLEVEL    Log level\n")
		fmt.Fprintf(os.Stderr, "  PDF_SLURPER_LOGFILE     Log file\n")
		fmt.Fprintf(os.Stderr, "  PDF_SLURPER_MAXFILESIZE Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  PDF_SLURPER_MINHEADERS  Header match threshold\n")
		fmt.Fprintf(os.Stderr, "  PDF_SLURPER_WORKERS     Import concurrency\n")
		fmt.Fprintf(os.Stderr, "  PDF_SLURPER_REPROCESS   Re-parse stored content\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.DBPath = viper.GetString("db")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.LogFile = viper.GetString("logfile")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.MinHeaderMatches = viper.GetInt("minheaders")
	cfg.Workers = viper.GetInt("workers")
	cfg.Reprocess = viper.GetBool("reprocess")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeImport {
		return errors.New("mode must be either 'stdio' or 'import'")
	}

	if c.Mode == ModeImport && len(c.Files) == 0 {
		return errors.New("import mode needs at least one PDF file")
	}

	if c.DBPath == "" {
		return errors.New("database path cannot be empty")
	}

	// Create the database directory if it doesn't exist
	dir := filepath.Dir(c.DBPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access database directory %s: %w", dir, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.MinHeaderMatches < 1 {
		return errors.New("minimum header matches must be at least 1")
	}

	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, DBPath: %s, LogLevel: %s, MaxFileSize: %d, MinHeaderMatches: %d, Workers: %d, Reprocess: %t, Files: %d}",
		c.Mode, c.DBPath, c.LogLevel, c.MaxFileSize, c.MinHeaderMatches, c.Workers, c.Reprocess, len(c.Files))
}

// IsImportMode returns true if the files given as arguments should be imported
func (c *Config) IsImportMode() bool {
	return c.Mode == ModeImport
}

// IsStdioMode returns true if the MCP server runs on standard I/O
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
