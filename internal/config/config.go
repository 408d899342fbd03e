// Package config loads process configuration from the environment.
package config

import "time"

// DBConfig selects and parameterizes the vector/graph/search backends.
type DBConfig struct {
	DefaultDSN string
	Vector     VectorConfig
	Graph      GraphConfig
}

// VectorConfig configures the vector store backend.
type VectorConfig struct {
	Backend    string // memory|postgres|qdrant|auto
	DSN        string
	Collection string
	Dimensions int
	Metric     string // cosine|l2|ip
}

// GraphConfig configures the graph store backend.
type GraphConfig struct {
	Backend string // memory|postgres|auto
	DSN     string
}

// ObsConfig controls OpenTelemetry tracing/metrics exporters.
type ObsConfig struct {
	Enabled        bool
	OTLP           string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// LLMConfig names the completion models consulted by the orchestrator: a
// primary model and a single fallback, per PRIMARY_COMPLETION_MODEL /
// FALLBACK_COMPLETION_MODEL.
type LLMConfig struct {
	PrimaryModel  string
	FallbackModel string
	AnthropicKey  string
	OpenAIKey     string
	Anthropic     AnthropicConfig
	OpenAI        OpenAIConfig
}

// AnthropicPromptCacheConfig controls which request segments are marked
// cacheable on the Anthropic Messages API.
type AnthropicPromptCacheConfig struct {
	Enabled       bool
	CacheSystem   bool
	CacheTools    bool
	CacheMessages bool
}

// AnthropicConfig parameterizes the Anthropic completion client.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	PromptCache AnthropicPromptCacheConfig
	ExtraParams map[string]any
}

// OpenAIConfig parameterizes the OpenAI completion client. API selects
// "completions" (default) or "responses".
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	API         string
	LogPayloads bool
	ExtraParams map[string]any
}

// EmbedConfig bounds the rate and retry behavior of the embedding client.
type EmbedConfig struct {
	Model      string
	RPS        float64
	MaxRetries int
}

// CacheConfig bounds the result cache (C2).
type CacheConfig struct {
	Backend    string // memory|redis
	RedisAddr  string
	TTL        time.Duration
	MaxEntries int
}

// SessionConfig bounds the conversation window kept in context (C7).
type SessionConfig struct {
	WindowTurns int
}

// JobQueueConfig bounds ingestion job leasing and retry behavior (C9).
type JobQueueConfig struct {
	VisibilityTimeout   time.Duration
	MaxRetries          int
	BacklogAlertAfter   time.Duration
	ProgressFilePath    string
	KafkaBrokers        []string
	KafkaTopic          string
}

// TelemetryConfig controls the durable+JSONL telemetry sink (C8).
type TelemetryConfig struct {
	ReportsDir string
}

// CheckpointConfig locates the checkpoint metadata tree (C6).
type CheckpointConfig struct {
	RootDir string
}

// Config is the fully resolved process configuration.
type Config struct {
	Host     string
	Port     int
	DataPath string
	LogPath  string
	LogLevel string

	DB         DBConfig
	Obs        ObsConfig
	LLM        LLMConfig
	Embed      EmbedConfig
	Cache      CacheConfig
	Session    SessionConfig
	Jobs       JobQueueConfig
	Telemetry  TelemetryConfig
	Checkpoint CheckpointConfig
}
