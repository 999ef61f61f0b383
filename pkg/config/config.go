package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Scoring   ScoringConfig
	Weights   WeightConfig
	Extractor ExtractorConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Milvus    MilvusConfig
	Neo4j     Neo4jConfig
	Agent     AgentConfig
	Logging   LoggingConfig
}

// ScoringConfig names every threshold the verifier and similarity layer use,
// so cutoffs are tuned in one place instead of hard-coded at call sites.
type ScoringConfig struct {
	Backend        string  // "lexical" or "semantic"
	MatchThreshold float64 // minimum best similarity for a matched event
	ConfidenceHigh float64 // score cutoff for the high tier
	ConfidenceMid  float64 // score cutoff for the mid tier
	DualTimeoutSec int     // per-branch budget for dual verification
	RankerParallel int     // max concurrent chart verifications
}

type WeightConfig struct {
	Min           float64
	Max           float64
	Increment     float64 // applied to near-miss events
	Decrement     float64 // applied to rarely-aligning events
	NearMissFloor float64 // bestSim above this (but under match threshold) counts as a near miss
	LowSimCeiling float64 // bestSim below this counts as rarely aligning
}

type ExtractorConfig struct {
	MaxFragments int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Enabled        bool
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type Neo4jConfig struct {
	Enabled  bool
	URI      string
	Username string
	Password string
	Database string
}

type AgentConfig struct {
	Provider       string
	Model          string
	APIKey         string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/truechart")

	viper.SetEnvPrefix("TRUECHART")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects threshold combinations the scoring pipeline cannot honor.
func (c *Config) Validate() error {
	if c.Weights.Min > c.Weights.Max {
		return fmt.Errorf("weights.min %.2f exceeds weights.max %.2f", c.Weights.Min, c.Weights.Max)
	}
	if c.Scoring.MatchThreshold <= 0 || c.Scoring.MatchThreshold >= 1 {
		return fmt.Errorf("scoring.matchThreshold must be in (0,1), got %.2f", c.Scoring.MatchThreshold)
	}
	if c.Scoring.ConfidenceMid > c.Scoring.ConfidenceHigh {
		return fmt.Errorf("scoring.confidenceMid %.2f exceeds scoring.confidenceHigh %.2f",
			c.Scoring.ConfidenceMid, c.Scoring.ConfidenceHigh)
	}
	if c.Weights.NearMissFloor >= c.Scoring.MatchThreshold {
		return fmt.Errorf("weights.nearMissFloor %.2f must stay below scoring.matchThreshold %.2f",
			c.Weights.NearMissFloor, c.Scoring.MatchThreshold)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("scoring.backend", "lexical")
	viper.SetDefault("scoring.matchThreshold", 0.62)
	viper.SetDefault("scoring.confidenceHigh", 0.85)
	viper.SetDefault("scoring.confidenceMid", 0.65)
	viper.SetDefault("scoring.dualTimeoutSec", 20)
	viper.SetDefault("scoring.rankerParallel", 4)

	viper.SetDefault("weights.min", 0.5)
	viper.SetDefault("weights.max", 3.0)
	viper.SetDefault("weights.increment", 0.1)
	viper.SetDefault("weights.decrement", 0.05)
	viper.SetDefault("weights.nearMissFloor", 0.6)
	viper.SetDefault("weights.lowSimCeiling", 0.3)

	viper.SetDefault("extractor.maxFragments", 50)

	viper.SetDefault("sqlite.path", "./data/truechart.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.enabled", false)
	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "chart_features")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("neo4j.enabled", false)
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("agent.provider", "openai")
	viper.SetDefault("agent.model", "gpt-4o")
	viper.SetDefault("agent.embeddingModel", "text-embedding-3-large")
	viper.SetDefault("agent.temperature", 0.2)
	viper.SetDefault("agent.maxTokens", 1024)
	viper.SetDefault("agent.timeoutSec", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
