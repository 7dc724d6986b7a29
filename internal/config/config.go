// Package config provides Viper-based configuration loading for the
// simulation server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SimConfig holds engine timings and the opening run.
type SimConfig struct {
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	NotifyInterval  time.Duration `mapstructure:"notify_interval"`
	DisposeGrace    time.Duration `mapstructure:"dispose_grace"`
	FloorTransition time.Duration `mapstructure:"floor_transition"`
	// StartClass is the class id of the run opened at startup.
	StartClass string `mapstructure:"start_class"`
	PlayerName string `mapstructure:"player_name"`
	// Seed selects a reproducible dice source; 0 draws from crypto/rand.
	Seed uint64 `mapstructure:"seed"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// ResultsConfig controls run-result recording.
type ResultsConfig struct {
	// Enabled connects to the database and records every finished run.
	Enabled bool `mapstructure:"enabled"`
}

// HTTPConfig holds the spectator feed listener settings.
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// StateRate caps state_updated frames per second per connection.
	StateRate float64 `mapstructure:"state_rate"`
	// SendBuffer is the per-connection frame queue; a full queue drops the
	// client.
	SendBuffer int `mapstructure:"send_buffer"`
}

// Addr returns the "host:port" listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// ControlConfig holds the gRPC control service settings.
type ControlConfig struct {
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (c ControlConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GRPCHost, c.GRPCPort)
}

// ContentConfig locates data files. Empty directories fall back to the
// built-in content.
type ContentConfig struct {
	ClassesDir string `mapstructure:"classes_dir"`
	FloorsDir  string `mapstructure:"floors_dir"`
	ScriptsDir string `mapstructure:"scripts_dir"`
	// ScriptInstructionLimit bounds the Lua instructions of one hook call.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Sim      SimConfig      `mapstructure:"sim"`
	Database DatabaseConfig `mapstructure:"database"`
	Results  ResultsConfig  `mapstructure:"results"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Control  ControlConfig  `mapstructure:"control"`
	Content  ContentConfig  `mapstructure:"content"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateSim(c.Sim),
		validateLogging(c.Logging),
		validateHTTP(c.HTTP),
		validateControl(c.Control),
		validateContent(c.Content),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	// The database only matters when results are recorded.
	if c.Results.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSim(s SimConfig) error {
	var errs []string
	if s.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("sim.tick_interval must be positive, got %s", s.TickInterval))
	}
	if s.NotifyInterval <= 0 {
		errs = append(errs, fmt.Sprintf("sim.notify_interval must be positive, got %s", s.NotifyInterval))
	}
	if s.DisposeGrace < 0 {
		errs = append(errs, "sim.dispose_grace must not be negative")
	}
	if s.FloorTransition < 0 {
		errs = append(errs, "sim.floor_transition must not be negative")
	}
	if s.StartClass == "" {
		errs = append(errs, "sim.start_class must not be empty")
	}
	return joined(errs)
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joined(errs)
}

func validateHTTP(h HTTPConfig) error {
	var errs []string
	if h.Port < 1 || h.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be 1-65535, got %d", h.Port))
	}
	if h.StateRate <= 0 {
		errs = append(errs, fmt.Sprintf("http.state_rate must be positive, got %g", h.StateRate))
	}
	if h.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("http.send_buffer must be >= 1, got %d", h.SendBuffer))
	}
	return joined(errs)
}

func validateControl(c ControlConfig) error {
	var errs []string
	if c.GRPCHost == "" {
		errs = append(errs, "control.grpc_host must not be empty")
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("control.grpc_port must be 1-65535, got %d", c.GRPCPort))
	}
	return joined(errs)
}

func validateContent(c ContentConfig) error {
	if c.ScriptInstructionLimit < 1 {
		return fmt.Errorf("content.script_instruction_limit must be >= 1, got %d", c.ScriptInstructionLimit)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func joined(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with ROGUE_ prefix
	v.SetEnvPrefix("ROGUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance carrying only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sim.tick_interval", "16ms")
	v.SetDefault("sim.notify_interval", "100ms")
	v.SetDefault("sim.dispose_grace", "50ms")
	v.SetDefault("sim.floor_transition", "2s")
	v.SetDefault("sim.start_class", "warrior")
	v.SetDefault("sim.player_name", "Hero")
	v.SetDefault("sim.seed", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "rogue")
	v.SetDefault("database.password", "rogue")
	v.SetDefault("database.name", "rogue")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("results.enabled", false)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.state_rate", 10)
	v.SetDefault("http.send_buffer", 256)

	v.SetDefault("control.grpc_host", "127.0.0.1")
	v.SetDefault("control.grpc_port", 50051)

	v.SetDefault("content.classes_dir", "")
	v.SetDefault("content.floors_dir", "")
	v.SetDefault("content.scripts_dir", "content/patterns")
	v.SetDefault("content.script_instruction_limit", 100000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
