package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ConfigurationError reports an invalid option value found at load time.
// Callers are expected to treat it as fatal: a process with a broken
// inspector configuration should not start half-instrumented.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("query-inspect: invalid option %q: %s", e.Option, e.Reason)
}

// Config holds the process-wide inspector configuration. It is loaded once
// at startup and treated as immutable afterwards; concurrent requests read
// it without synchronization.
//
// AbsoluteLimit and StandardDeviationLimit use zero to mean "threshold
// disabled"; Validate rejects negative values so zero is the only off state.
type Config struct {
	Enabled                     bool
	AbsoluteLimit               float64 // ms
	HeaderStats                 bool
	LogAllQueries               bool
	LogDuplicates               bool
	LogStats                    bool
	LogTracebacks               bool
	LogTracebacksDuplicateLimit int
	StandardDeviationLimit      float64
	TracebackRoots              []string
	TracebackRootsExclude       []string

	DebugEndpoint    string
	ReportBufferSize int

	ProfilingEnabled            bool
	ProfilingSQLTimeThresholdMs float64
	ProfilingDurationS          int
	ProfilingCooldownS          int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("enabled", false)
	v.SetDefault("absolute_limit", 0)
	v.SetDefault("header_stats", true)
	v.SetDefault("log_all_queries", false)
	v.SetDefault("log_duplicates", false)
	v.SetDefault("log_stats", true)
	v.SetDefault("log_tracebacks", false)
	v.SetDefault("log_tracebacks_duplicate_limit", 1)
	v.SetDefault("standard_deviation_limit", 0)
	v.SetDefault("traceback_roots", []string{})
	v.SetDefault("traceback_roots_exclude", []string{})
	v.SetDefault("debug_endpoint", "/debug/queryinspect")
	v.SetDefault("report_buffer_size", 100)
	v.SetDefault("profiling_enabled", false)
	v.SetDefault("profiling_sql_time_threshold_ms", 500)
	v.SetDefault("profiling_duration_s", 10)
	v.SetDefault("profiling_cooldown_s", 60)
}

// fromViper assembles a Config with explicit typed getters, so values from
// environment variables (always strings) coerce the same way as file values.
func fromViper(v *viper.Viper) *Config {
	return &Config{
		Enabled:                     v.GetBool("enabled"),
		AbsoluteLimit:               v.GetFloat64("absolute_limit"),
		HeaderStats:                 v.GetBool("header_stats"),
		LogAllQueries:               v.GetBool("log_all_queries"),
		LogDuplicates:               v.GetBool("log_duplicates"),
		LogStats:                    v.GetBool("log_stats"),
		LogTracebacks:               v.GetBool("log_tracebacks"),
		LogTracebacksDuplicateLimit: v.GetInt("log_tracebacks_duplicate_limit"),
		StandardDeviationLimit:      v.GetFloat64("standard_deviation_limit"),
		TracebackRoots:              v.GetStringSlice("traceback_roots"),
		TracebackRootsExclude:       v.GetStringSlice("traceback_roots_exclude"),
		DebugEndpoint:               v.GetString("debug_endpoint"),
		ReportBufferSize:            v.GetInt("report_buffer_size"),
		ProfilingEnabled:            v.GetBool("profiling_enabled"),
		ProfilingSQLTimeThresholdMs: v.GetFloat64("profiling_sql_time_threshold_ms"),
		ProfilingDurationS:          v.GetInt("profiling_duration_s"),
		ProfilingCooldownS:          v.GetInt("profiling_cooldown_s"),
	}
}

// Load reads query_inspect.yaml from path (if present), applies
// QUERY_INSPECT_* environment variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("query_inspect")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("query_inspect")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("query-inspect: reading config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without touching the
// filesystem or environment. The inspector is disabled by default.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

// Validate checks option values and returns a *ConfigurationError for the
// first invalid one.
func (c *Config) Validate() error {
	if c.AbsoluteLimit < 0 {
		return &ConfigurationError{Option: "absolute_limit", Reason: "must not be negative"}
	}
	if c.StandardDeviationLimit < 0 {
		return &ConfigurationError{Option: "standard_deviation_limit", Reason: "must not be negative"}
	}
	if c.LogTracebacksDuplicateLimit < 1 {
		return &ConfigurationError{Option: "log_tracebacks_duplicate_limit", Reason: "must be at least 1"}
	}
	if c.ReportBufferSize < 1 {
		return &ConfigurationError{Option: "report_buffer_size", Reason: "must be at least 1"}
	}
	if c.ProfilingSQLTimeThresholdMs < 0 {
		return &ConfigurationError{Option: "profiling_sql_time_threshold_ms", Reason: "must not be negative"}
	}
	if c.ProfilingDurationS < 1 {
		return &ConfigurationError{Option: "profiling_duration_s", Reason: "must be at least 1"}
	}
	if c.ProfilingCooldownS < 0 {
		return &ConfigurationError{Option: "profiling_cooldown_s", Reason: "must not be negative"}
	}
	return nil
}
