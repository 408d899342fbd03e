package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables, optionally overlaid
// by a .env file in the working directory. Any RAGCORE_-prefixed variable is
// rejected as an unrecognized option, since no option uses that prefix.
func Load() (Config, error) {
	_ = godotenv.Overload()

	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "RAGCORE_") {
			return Config{}, fmt.Errorf("config: unrecognized option %s", key)
		}
	}

	cfg := Config{
		Host:     firstNonEmpty(getenv("HOST"), "0.0.0.0"),
		Port:     getenvInt("PORT", 8088),
		DataPath: firstNonEmpty(getenv("DATA_PATH"), "data"),
		LogPath:  getenv("LOG_PATH"),
		LogLevel: firstNonEmpty(getenv("LOG_LEVEL"), "info"),
	}

	cfg.DB = DBConfig{
		DefaultDSN: getenv("DATABASE_URL"),
		Vector: VectorConfig{
			Backend:    firstNonEmpty(getenv("VECTOR_BACKEND"), "memory"),
			DSN:        firstNonEmpty(getenv("VECTOR_DSN"), getenv("DATABASE_URL")),
			Collection: firstNonEmpty(getenv("VECTOR_COLLECTION"), "ragcore_chunks"),
			Dimensions: getenvInt("VECTOR_DIMENSIONS", 1536),
			Metric:     firstNonEmpty(getenv("VECTOR_METRIC"), "cosine"),
		},
		Graph: GraphConfig{
			Backend: firstNonEmpty(getenv("GRAPH_BACKEND"), "memory"),
			DSN:     firstNonEmpty(getenv("GRAPH_DSN"), getenv("DATABASE_URL")),
		},
	}

	cfg.Obs = ObsConfig{
		Enabled:        getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "",
		OTLP:           getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:    firstNonEmpty(getenv("OTEL_SERVICE_NAME"), "ragcore"),
		ServiceVersion: firstNonEmpty(getenv("SERVICE_VERSION"), "dev"),
		Environment:    firstNonEmpty(getenv("DEPLOY_ENV"), "development"),
	}

	cfg.LLM = LLMConfig{
		PrimaryModel:  firstNonEmpty(getenv("PRIMARY_COMPLETION_MODEL"), "claude-sonnet-4-5"),
		FallbackModel: firstNonEmpty(getenv("FALLBACK_COMPLETION_MODEL"), "gpt-4o-mini"),
		AnthropicKey:  getenv("ANTHROPIC_API_KEY"),
		OpenAIKey:     getenv("OPENAI_API_KEY"),
	}
	cfg.LLM.Anthropic = AnthropicConfig{
		APIKey:  cfg.LLM.AnthropicKey,
		BaseURL: getenv("ANTHROPIC_BASE_URL"),
		Model:   cfg.LLM.PrimaryModel,
	}
	cfg.LLM.OpenAI = OpenAIConfig{
		APIKey:  cfg.LLM.OpenAIKey,
		BaseURL: getenv("OPENAI_BASE_URL"),
		Model:   cfg.LLM.FallbackModel,
	}

	cfg.Embed = EmbedConfig{
		Model:      firstNonEmpty(getenv("EMBEDDING_MODEL"), "text-embedding-3-small"),
		RPS:        getenvFloat("EMBED_RPS", 4),
		MaxRetries: getenvInt("EMBED_MAX_RETRIES", 3),
	}

	cfg.Cache = CacheConfig{
		Backend:    firstNonEmpty(getenv("CACHE_BACKEND"), "memory"),
		RedisAddr:  getenv("REDIS_ADDR"),
		TTL:        time.Duration(getenvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		MaxEntries: getenvInt("CACHE_MAX_ENTRIES", 512),
	}

	cfg.Session = SessionConfig{
		WindowTurns: getenvInt("SESSION_WINDOW_TURNS", 5),
	}

	cfg.Jobs = JobQueueConfig{
		VisibilityTimeout: time.Duration(getenvInt("JOB_VISIBILITY_SECONDS", 600)) * time.Second,
		MaxRetries:        getenvInt("JOB_MAX_RETRIES", 3),
		BacklogAlertAfter: time.Duration(getenvInt("JOB_BACKLOG_ALERT_HOURS", 24)) * time.Hour,
		ProgressFilePath:  firstNonEmpty(getenv("INGESTION_PROGRESS_PATH"), "data/ingestion_progress.jsonl"),
		KafkaTopic:        firstNonEmpty(getenv("KAFKA_INGESTION_TOPIC"), "ragcore.ingestion"),
	}
	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Jobs.KafkaBrokers = splitAndTrim(brokers)
	}

	cfg.Telemetry = TelemetryConfig{
		ReportsDir: firstNonEmpty(getenv("TELEMETRY_REPORTS_DIR"), "reports/telemetry"),
	}

	cfg.Checkpoint = CheckpointConfig{
		RootDir: firstNonEmpty(getenv("CHECKPOINT_ROOT"), "checkpoints"),
	}

	return cfg, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
