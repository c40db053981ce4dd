package operations

import (
	"time"
)

// Config controls how the pipeline executes.
type Config struct {
	// Execution mode. Only sequential is supported; each step consumes the
	// previous step's output.
	ExecutionMode ExecutionMode `json:"execution_mode"`

	// Per-step timeouts.
	StepTimeouts map[string]time.Duration `json:"step_timeouts"`

	// Retry configuration applied to every step.
	RetryConfig RetryConfig `json:"retry_config"`

	// ContinueOnError lets later steps run after a failure. The rent roll
	// steps form a strict chain, so this mostly matters for custom
	// registries with independent steps.
	ContinueOnError bool `json:"continue_on_error"`
}

// NewConfig returns the default pipeline configuration.
func NewConfig() *Config {
	return &Config{
		ExecutionMode: ExecutionModeSequential,
		StepTimeouts: map[string]time.Duration{
			StepIDAnalyze:  DefaultAnalyzeTimeout,
			StepIDMapping:  DefaultMappingTimeout,
			StepIDGrouping: DefaultGroupingTimeout,
			StepIDExport:   DefaultExportTimeout,
		},
		RetryConfig:     NewRetryConfig(),
		ContinueOnError: false,
	}
}

// StepTimeout returns the timeout for a specific step.
func (c *Config) StepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok {
		return timeout
	}
	return DefaultStepTimeout
}

// SetStepTimeout sets the timeout for a specific step.
func (c *Config) SetStepTimeout(stepID string, timeout time.Duration) {
	if c.StepTimeouts == nil {
		c.StepTimeouts = make(map[string]time.Duration)
	}
	c.StepTimeouts[stepID] = timeout
}

// ConfigBuilder provides a fluent interface for building configurations.
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a builder seeded with defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: NewConfig()}
}

// WithStepTimeout sets the timeout for a step.
func (b *ConfigBuilder) WithStepTimeout(stepID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStepTimeout(stepID, timeout)
	return b
}

// WithRetryConfig sets the retry configuration.
func (b *ConfigBuilder) WithRetryConfig(config RetryConfig) *ConfigBuilder {
	b.config.RetryConfig = config
	return b
}

// WithContinueOnError sets whether to continue on step failures.
func (b *ConfigBuilder) WithContinueOnError(continueOnError bool) *ConfigBuilder {
	b.config.ContinueOnError = continueOnError
	return b
}

// Build returns the built configuration.
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
