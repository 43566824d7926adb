package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the harness's configuration surface. CLI parsing and layered
// file merging are owned by external collaborators; Load here reads a
// single YAML source and fills in built-in defaults.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Context  ContextConfig  `yaml:"context"`
	Shell    ShellConfig    `yaml:"shell"`
	SubAgent SubAgentConfig `yaml:"sub_agent"`
	Safety   SafetyConfig   `yaml:"safety"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Session  SessionConfig  `yaml:"session"`
}

// SessionConfig bounds one Session Driver run and locates the Outer Loop's
// diagnostic state on disk.
type SessionConfig struct {
	// MaxTurns caps turns per Session Driver run before it returns
	// MaxTurnsOrError. 0 means unbounded.
	MaxTurns int `yaml:"max_turns"`

	// StateDir holds the restart sentinel the Outer Loop writes when a
	// session ends, read back by the next launch.
	StateDir string `yaml:"state_dir"`
}

// ModelConfig configures the OpenAI-compatible inference backend.
type ModelConfig struct {
	// Name is the model_name sent with every completion request.
	Name string `yaml:"name"`

	// BaseURL is the local OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against BaseURL. Most local endpoints ignore it.
	APIKey string `yaml:"api_key"`

	// RequestTimeout bounds a single completion request (not the whole turn).
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxRetries bounds the provider's backoff retry loop on transport errors.
	MaxRetries int `yaml:"max_retries"`
}

// WorkspaceConfig configures the sandboxed working directory.
type WorkspaceConfig struct {
	// Path is the workspace root; all file reads/writes and shell commands
	// are confined under its canonicalized form.
	Path string `yaml:"path"`
}

// ContextConfig configures the graduated context-pressure state machine.
type ContextConfig struct {
	// Window is the model's total context window in tokens (W).
	Window int `yaml:"window"`

	// SoftThreshold (Tsoft) triggers masking of the oldest observations.
	SoftThreshold float64 `yaml:"soft_threshold"`

	// HardThreshold (Thard) triggers wind-down, then restart.
	HardThreshold float64 `yaml:"hard_threshold"`

	// MaskBatch (B) is how many additional tool-role messages get masked
	// per evaluation once the soft threshold is crossed.
	MaskBatch int `yaml:"mask_batch"`

	// CarryoverTurns (K) is how many trailing turns survive a restart.
	CarryoverTurns int `yaml:"carryover_turns"`

	// MaxRestarts bounds how many times the Outer Loop will restart a
	// session after ContextFull. Nil means unbounded.
	MaxRestarts *int `yaml:"max_restarts"`

	// AutoRestart controls whether the Outer Loop restarts automatically on
	// ContextFull, or surfaces the condition and waits.
	AutoRestart bool `yaml:"auto_restart"`
}

// ShellConfig configures shell_exec dispatch through the Safety Layer.
type ShellConfig struct {
	// TimeoutSecs bounds a single shell_exec invocation before its process
	// group is killed.
	TimeoutSecs int `yaml:"timeout_secs"`
}

// SubAgentConfig bounds the Sub-Agent Supervisor's registry.
type SubAgentConfig struct {
	// MaxDepth bounds how many levels deep the sub-agent tree can grow.
	MaxDepth int `yaml:"max_depth"`

	// MaxTotal bounds the total number of sub-agents (across the whole
	// tree) the Supervisor will register at once.
	MaxTotal int `yaml:"max_total"`
}

// BlockedPattern is one entry of the Safety Layer's command blocklist.
type BlockedPattern struct {
	Pattern string `yaml:"pattern"`
	Reason  string `yaml:"reason"`
}

// SafetyConfig configures the Safety Layer.
type SafetyConfig struct {
	// BlockedPatterns is an ordered list of regexes checked against every
	// shell_exec command. A workspace-local override list replaces this
	// list wholesale; it does not merge with it.
	BlockedPatterns []BlockedPattern `yaml:"blocked_patterns"`

	// SecurityLogPath overrides the default <workspace>/security.log path.
	SecurityLogPath string `yaml:"security_log_path"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DefaultBlockedPatterns is the built-in command blocklist applied when no
// workspace or global file overrides it.
func DefaultBlockedPatterns() []BlockedPattern {
	return []BlockedPattern{
		{Pattern: `rm\s+-rf\s+/(\s|$)`, Reason: "recursive delete of filesystem root"},
		{Pattern: `:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`, Reason: "fork bomb"},
		{Pattern: `mkfs\.\w+`, Reason: "filesystem format"},
		{Pattern: `dd\s+.*of=/dev/(sd|hd|nvme)`, Reason: "raw disk write"},
		{Pattern: `>\s*/dev/sd[a-z]`, Reason: "raw disk overwrite"},
		{Pattern: `chmod\s+-R\s+000\s+/`, Reason: "remove all permissions from filesystem root"},
	}
}

// Load reads and parses the configuration file, applying built-in defaults
// for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = "http://localhost:8000/v1"
	}
	if cfg.Model.RequestTimeout == 0 {
		cfg.Model.RequestTimeout = 2 * time.Minute
	}
	if cfg.Model.MaxRetries == 0 {
		cfg.Model.MaxRetries = 3
	}

	if cfg.Workspace.Path == "" {
		cfg.Workspace.Path = "."
	}

	if cfg.Context.Window == 0 {
		cfg.Context.Window = 128000
	}
	if cfg.Context.SoftThreshold == 0 {
		cfg.Context.SoftThreshold = 0.70
	}
	if cfg.Context.HardThreshold == 0 {
		cfg.Context.HardThreshold = 0.90
	}
	if cfg.Context.MaskBatch == 0 {
		cfg.Context.MaskBatch = 3
	}
	if cfg.Context.CarryoverTurns == 0 {
		cfg.Context.CarryoverTurns = 5
	}

	if cfg.Shell.TimeoutSecs == 0 {
		cfg.Shell.TimeoutSecs = 120
	}

	if cfg.SubAgent.MaxDepth == 0 {
		cfg.SubAgent.MaxDepth = 3
	}
	if cfg.SubAgent.MaxTotal == 0 {
		cfg.SubAgent.MaxTotal = 10
	}

	if len(cfg.Safety.BlockedPatterns) == 0 {
		cfg.Safety.BlockedPatterns = DefaultBlockedPatterns()
	}
	if cfg.Safety.SecurityLogPath == "" {
		cfg.Safety.SecurityLogPath = "security.log"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}

	if cfg.Session.StateDir == "" {
		cfg.Session.StateDir = ".ouroboros"
	}
}

// ConfigValidationError collects every validation issue found in one pass,
// so operators fix a config file in one edit instead of one error at a time.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Model.Name == "" {
		issues = append(issues, "model.name is required")
	}
	if cfg.Context.Window <= 0 {
		issues = append(issues, "context.window must be > 0")
	}
	if cfg.Context.SoftThreshold <= 0 || cfg.Context.SoftThreshold >= 1 {
		issues = append(issues, "context.soft_threshold must be between 0 and 1")
	}
	if cfg.Context.HardThreshold <= 0 || cfg.Context.HardThreshold >= 1 {
		issues = append(issues, "context.hard_threshold must be between 0 and 1")
	}
	if cfg.Context.HardThreshold <= cfg.Context.SoftThreshold {
		issues = append(issues, "context.hard_threshold must be greater than context.soft_threshold")
	}
	if cfg.Context.MaskBatch <= 0 {
		issues = append(issues, "context.mask_batch must be > 0")
	}
	if cfg.Context.CarryoverTurns <= 0 {
		issues = append(issues, "context.carryover_turns must be > 0")
	}
	if cfg.Shell.TimeoutSecs <= 0 {
		issues = append(issues, "shell.timeout_secs must be > 0")
	}
	if cfg.SubAgent.MaxDepth <= 0 {
		issues = append(issues, "sub_agent.max_depth must be > 0")
	}
	if cfg.SubAgent.MaxTotal <= 0 {
		issues = append(issues, "sub_agent.max_total must be > 0")
	}
	for i, p := range cfg.Safety.BlockedPatterns {
		if strings.TrimSpace(p.Pattern) == "" {
			issues = append(issues, fmt.Sprintf("safety.blocked_patterns[%d].pattern must be set", i))
		}
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}

	return nil
}
