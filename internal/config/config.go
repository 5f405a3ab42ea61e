// Package config loads and validates the platform's YAML configuration,
// recognizing every key enumerated in the system's Configuration contract:
// postgres_dsn, graph_uri/user/password, research_client_type/api_key,
// embedding_model/dim, vector_index_type, top_k_default, match_weights,
// the three timeout settings, and reconciliation_interval_seconds.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP API and metrics ports. No package in this
// repository starts an HTTP server, so the values are loaded but not used.
type ServerConfig struct {
	Port        string `yaml:"port"`
	MetricsPort string `yaml:"metrics_port"`
}

// PostgresConfig is the Hypergraph Store + World Model Service datastore.
type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxConns     int    `yaml:"max_conns"`
	MinConns     int    `yaml:"min_conns"`
}

// GraphConfig holds the property graph credentials. In this implementation
// the projection lives in the same Postgres database as the JSONB
// hyperedges and goes through the same pool (see pkg/hypergraph), so
// URI/User/Password are loaded and overridable from the environment but
// not read by any package.
type GraphConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ResearchClientConfig selects and authenticates the pluggable ResearchClient.
type ResearchClientConfig struct {
	Type   string `yaml:"type"`
	APIKey string `yaml:"api_key"`
}

// EmbeddingConfig selects the embedding model and dimension used across the
// Hypergraph Store and Matching Engine.
type EmbeddingConfig struct {
	Model string `yaml:"model"`
	Dim   int    `yaml:"dim"`
}

// MatchWeights are the configurable weights of the composite ranker.
type MatchWeights struct {
	VectorSimilarity float64 `yaml:"vector_similarity"`
	RuleFit          float64 `yaml:"rule_fit"`
	RepeatBusiness   float64 `yaml:"repeat_business"`
	WorldModel       float64 `yaml:"world_model"`
	LaneRisk         float64 `yaml:"lane_risk"`
}

// TimeoutsConfig holds the three timeout knobs named in the spec.
type TimeoutsConfig struct {
	JobSeconds       int `yaml:"job_timeout_seconds"`
	RetrievalSeconds int `yaml:"retrieval_timeout_seconds"`
	LLMSeconds       int `yaml:"llm_timeout_seconds"`
}

// RedisConfig backs pkg/research's retrieval rate limiting. The World Model
// read cache is in process memory, not Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig controls logrus/zap verbosity and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlackConfig is consulted by the ops notifier; empty WebhookURL disables it.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// PolicyConfig points at the Rego rule-gate bundle used by the Matching
// Engine's rule_gate_check reasoning block.
type PolicyConfig struct {
	RuleGatesPath string `yaml:"rule_gates_path"`
}

// Config is the fully-populated, validated configuration object.
type Config struct {
	Server            ServerConfig          `yaml:"server"`
	Postgres          PostgresConfig        `yaml:"postgres"`
	Graph             GraphConfig           `yaml:"graph"`
	ResearchClient    ResearchClientConfig  `yaml:"research_client"`
	Embedding         EmbeddingConfig       `yaml:"embedding"`
	VectorIndexType   string                `yaml:"vector_index_type"`
	TopKDefault       int                   `yaml:"top_k_default"`
	MatchWeights      MatchWeights          `yaml:"match_weights"`
	Timeouts          TimeoutsConfig        `yaml:"timeouts"`
	ReconciliationSec int                   `yaml:"reconciliation_interval_seconds"`
	Redis             RedisConfig           `yaml:"redis"`
	Logging           LoggingConfig         `yaml:"logging"`
	Slack             SlackConfig           `yaml:"slack"`
	Policy            PolicyConfig          `yaml:"policy"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", MetricsPort: "9090"},
		Postgres: PostgresConfig{
			DSN:      "postgres://l9:l9@localhost:5432/plastics?sslmode=disable",
			MaxConns: 20,
			MinConns: 2,
		},
		ResearchClient: ResearchClientConfig{Type: "stub"},
		Embedding:      EmbeddingConfig{Model: "text-embedding-3-small", Dim: 1536},
		VectorIndexType: "hnsw",
		TopKDefault:     20,
		MatchWeights: MatchWeights{
			VectorSimilarity: 0.35,
			RuleFit:          0.25,
			RepeatBusiness:   0.15,
			WorldModel:       0.15,
			LaneRisk:         0.10,
		},
		Timeouts: TimeoutsConfig{
			JobSeconds:       300,
			RetrievalSeconds: 30,
			LLMSeconds:       60,
		},
		ReconciliationSec: 60,
		Logging:           LoggingConfig{Level: "info", Format: "json"},
		Policy:            PolicyConfig{RuleGatesPath: "config/policies/rule_gates.rego"},
	}
}

// Load reads path, applies defaults for anything unset, overrides with
// environment variables, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("GRAPH_URI"); v != "" {
		cfg.Graph.URI = v
	}
	if v := os.Getenv("GRAPH_USER"); v != "" {
		cfg.Graph.User = v
	}
	if v := os.Getenv("GRAPH_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}
	if v := os.Getenv("RESEARCH_CLIENT_TYPE"); v != "" {
		cfg.ResearchClient.Type = v
	}
	if v := os.Getenv("RESEARCH_CLIENT_API_KEY"); v != "" {
		cfg.ResearchClient.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dim = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.Server.Port = v
	}
}

var validResearchClientTypes = map[string]bool{
	"perplexity": true,
	"gemini":     true,
	"openai":     true,
	"anthropic":  true,
	"bedrock":    true,
	"stub":       true,
}

var validVectorIndexTypes = map[string]bool{
	"hnsw":    true,
	"ivfflat": true,
}

func validate(cfg *Config) error {
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres_dsn is required")
	}
	if !validResearchClientTypes[cfg.ResearchClient.Type] {
		return fmt.Errorf("unsupported research_client_type: %s", cfg.ResearchClient.Type)
	}
	if cfg.ResearchClient.Type != "stub" && cfg.ResearchClient.APIKey == "" {
		return fmt.Errorf("research_client_api_key is required for provider %s", cfg.ResearchClient.Type)
	}
	if cfg.Embedding.Dim <= 0 {
		return fmt.Errorf("embedding dim must be greater than 0")
	}
	if !validVectorIndexTypes[cfg.VectorIndexType] {
		return fmt.Errorf("unsupported vector_index_type: %s", cfg.VectorIndexType)
	}
	if cfg.TopKDefault <= 0 {
		return fmt.Errorf("top_k_default must be greater than 0")
	}
	if cfg.Timeouts.JobSeconds <= 0 {
		return fmt.Errorf("job_timeout_seconds must be greater than 0")
	}
	if cfg.Timeouts.RetrievalSeconds <= 0 {
		return fmt.Errorf("retrieval_timeout_seconds must be greater than 0")
	}
	if cfg.Timeouts.LLMSeconds <= 0 {
		return fmt.Errorf("llm_timeout_seconds must be greater than 0")
	}
	if cfg.ReconciliationSec <= 0 {
		return fmt.Errorf("reconciliation_interval_seconds must be greater than 0")
	}
	sum := cfg.MatchWeights.VectorSimilarity + cfg.MatchWeights.RuleFit +
		cfg.MatchWeights.RepeatBusiness + cfg.MatchWeights.WorldModel + cfg.MatchWeights.LaneRisk
	if sum <= 0 {
		return fmt.Errorf("match_weights must sum to a positive value")
	}
	return nil
}

// JobTimeout, RetrievalTimeout and LLMTimeout convert the integer-seconds
// config fields into time.Duration for call sites.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Timeouts.JobSeconds) * time.Second
}

func (c *Config) RetrievalTimeout() time.Duration {
	return time.Duration(c.Timeouts.RetrievalSeconds) * time.Second
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.Timeouts.LLMSeconds) * time.Second
}

func (c *Config) ReconciliationInterval() time.Duration {
	return time.Duration(c.ReconciliationSec) * time.Second
}
