// Package config loads and validates library configuration from YAML.
package config

import (
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ow97/archi/pkg/errors"
	"github.com/ow97/archi/pkg/logging"
	"github.com/ow97/archi/pkg/migration"
)

// Config is the root configuration document.
type Config struct {
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Migration   MigrationConfig   `yaml:"migration"`
	Logging     LoggingConfig     `yaml:"logging"`
	Storage     StorageConfig     `yaml:"storage"`
}

// ConcurrencyConfig bounds the library's internal parallelism.
type ConcurrencyConfig struct {
	// BatchGoroutines caps the goroutines a ThreadBfe uses per batch.
	// Zero means one goroutine per logical CPU.
	BatchGoroutines int `yaml:"batch_goroutines" validate:"gte=0"`
}

// MigrationConfig selects the migration policy pair.
type MigrationConfig struct {
	Select string `yaml:"select" validate:"omitempty,oneof=champion topk top_k"`
	K      int    `yaml:"k" validate:"gte=0"`
	Merge  string `yaml:"merge" validate:"omitempty,oneof=append replace_worst"`
}

// LoggingConfig sets the log severity.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// StorageConfig points at the optional evolution-trace database.
type StorageConfig struct {
	TracePath string `yaml:"trace_path"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Migration: MigrationConfig{Select: "champion", K: 1, Merge: "append"},
		Logging:   LoggingConfig{Level: "INFO"},
	}
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, errors.NotFound, "cannot open configuration file")
	}
	defer f.Close()
	return LoadReader(f)
}

// LoadReader decodes and validates configuration YAML. Unknown keys are
// rejected.
func LoadReader(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, errors.ContractViolation, "cannot decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the document against its constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, errors.ContractViolation, "invalid configuration")
	}
	return nil
}

// MigrationPolicy resolves the configured migration policy pair.
func (c Config) MigrationPolicy() (migration.Policy, error) {
	return migration.ByName(c.Migration.Select, c.Migration.K, c.Migration.Merge)
}

// Severity resolves the configured log level.
func (c Config) Severity() logging.Severity {
	return logging.ParseSeverity(c.Logging.Level)
}
