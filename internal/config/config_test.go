package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig()

	if cfg.Mode != "stdio" {
		t.Errorf("Expected default mode to be 'stdio', got '%s'", cfg.Mode)
	}

	if cfg.ServerName != "pdf-slurper" {
		t.Errorf("Expected default server name to be 'pdf-slurper', got '%s'", cfg.ServerName)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}

	if cfg.MinHeaderMatches != 2 {
		t.Errorf("Expected default header threshold to be 2, got %d", cfg.MinHeaderMatches)
	}

	if cfg.Workers != 4 {
		t.Errorf("Expected default workers to be 4, got %d", cfg.Workers)
	}

	if cfg.Reprocess {
		t.Error("Expected reprocess to be off by default")
	}

	want := filepath.Join(home, ".pdf-slurper", "slurper.db")
	if cfg.DBPath != want {
		t.Errorf("Expected default database to be '%s', got '%s'", want, cfg.DBPath)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Mode:             "stdio",
		DBPath:           filepath.Join(t.TempDir(), "slurper.db"),
		LogLevel:         "info",
		MaxFileSize:      1024,
		MinHeaderMatches: 2,
		Workers:          1,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config - stdio mode",
			mutate: func(*Config) {},
		},
		{
			name: "valid config - import mode with files",
			mutate: func(c *Config) {
				c.Mode = "import"
				c.Files = []string{"a.pdf"}
			},
		},
		{
			name:    "invalid mode",
			mutate:  func(c *Config) { c.Mode = "server" },
			wantErr: "mode must be either 'stdio' or 'import'",
		},
		{
			name:    "import mode without files",
			mutate:  func(c *Config) { c.Mode = "import" },
			wantErr: "import mode needs at least one PDF file",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.DBPath = "" },
			wantErr: "database path cannot be empty",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.LogLevel = "invalid" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid max file size",
			mutate:  func(c *Config) { c.MaxFileSize = 0 },
			wantErr: "maximum file size must be positive",
		},
		{
			name:    "invalid header threshold",
			mutate:  func(c *Config) { c.MinHeaderMatches = 0 },
			wantErr: "minimum header matches",
		},
		{
			name:    "invalid workers",
			mutate:  func(c *Config) { c.Workers = 0 },
			wantErr: "workers must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Config.Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Config.Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateCreatesDatabaseDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	cfg := validConfig(t)
	cfg.DBPath = filepath.Join(dir, "slurper.db")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() unexpected error = %v", err)
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Database directory should have been created: %s", dir)
	}
}

func TestConfigValidateLogLevels(t *testing.T) {
	validLevels := []string{"debug", "info", "warn", "error"}
	invalidLevels := []string{"DEBUG", "INFO", "trace", "fatal", ""}

	for _, level := range validLevels {
		t.Run("valid_"+level, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.LogLevel = level
			if err := cfg.Validate(); err != nil {
				t.Errorf("Config.Validate() should accept log level '%s', got error: %v", level, err)
			}
		})
	}

	for _, level := range invalidLevels {
		t.Run("invalid_"+level, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.LogLevel = level
			if err := cfg.Validate(); err == nil {
				t.Errorf("Config.Validate() should reject log level '%s'", level)
			}
		})
	}
}

func TestConfigIsDebug(t *testing.T) {
	tests := []struct {
		logLevel string
		want     bool
	}{
		{logLevel: "debug", want: true},
		{logLevel: "info", want: false},
		{logLevel: "warn", want: false},
		{logLevel: "error", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			if got := cfg.IsDebug(); got != tt.want {
				t.Errorf("Config.IsDebug() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Mode:             "import",
		DBPath:           "/var/lib/slurper.db",
		LogLevel:         "debug",
		MaxFileSize:      1024,
		MinHeaderMatches: 3,
		Workers:          2,
		Reprocess:        true,
		Files:            []string{"a.pdf", "b.pdf"},
	}

	result := cfg.String()

	expectedSubstrings := []string{
		"Mode: import",
		"DBPath: /var/lib/slurper.db",
		"LogLevel: debug",
		"MaxFileSize: 1024",
		"MinHeaderMatches: 3",
		"Workers: 2",
		"Reprocess: true",
		"Files: 2",
	}

	for _, substr := range expectedSubstrings {
		if !strings.Contains(result, substr) {
			t.Errorf("Config.String() result doesn't contain expected substring: %s\nGot: %s", substr, result)
		}
	}
}

func TestConfigModes(t *testing.T) {
	tests := []struct {
		mode       string
		wantStdio  bool
		wantImport bool
	}{
		{mode: "stdio", wantStdio: true},
		{mode: "import", wantImport: true},
		{mode: "server"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := &Config{Mode: tt.mode}
			if got := cfg.IsStdioMode(); got != tt.wantStdio {
				t.Errorf("Config.IsStdioMode() = %v, want %v", got, tt.wantStdio)
			}
			if got := cfg.IsImportMode(); got != tt.wantImport {
				t.Errorf("Config.IsImportMode() = %v, want %v", got, tt.wantImport)
			}
		})
	}
}
