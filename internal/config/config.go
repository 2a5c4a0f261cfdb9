package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Review   ReviewConfig   `yaml:"review"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// 允许跨域的前端地址；为空时允许所有来源
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	// mysql / sqlite
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Charset  string `yaml:"charset"`
	// sqlite 文件路径（":memory:" 用于测试）
	Path string `yaml:"path"`
}

type LLMConfig struct {
	// azure / genai
	Provider string `yaml:"provider"`

	// Azure OpenAI
	Endpoint            string `yaml:"endpoint"`
	APIKey              string `yaml:"api_key"`
	ChatDeployment      string `yaml:"chat_deployment"`
	ChatAPIVersion      string `yaml:"chat_api_version"`
	EmbeddingDeployment string `yaml:"embedding_deployment"`
	EmbeddingAPIVersion string `yaml:"embedding_api_version"`

	// Google GenAI（provider=genai 时使用，api_key 共用）
	GenAIModel          string `yaml:"genai_model"`
	GenAIEmbeddingModel string `yaml:"genai_embedding_model"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type ReviewConfig struct {
	// critic 最多请求的重试轮数
	MaxRetries int `yaml:"max_retries"`
	// 重试时是否重新调用四个评审 agent（默认只重新评估 critic）
	RerunAgentsOnRetry bool `yaml:"rerun_agents_on_retry"`
	// 后台评审 worker 数量
	Workers             int     `yaml:"workers"`
	NoveltyTopK         int     `yaml:"novelty_top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	EmbeddingCacheSize  int     `yaml:"embedding_cache_size"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig 解析 YAML 配置；${VAR} 会先用环境变量展开，密钥不必写进文件
func ParseConfig(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	// 先放默认值再覆盖：yaml 未出现的字段保持默认（max_retries 可以显式配成 0）
	config := Default()
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

const DefaultMaxRetries = 2

func Default() Config {
	return Config{
		Review: ReviewConfig{MaxRetries: DefaultMaxRetries},
	}
}

// ApplyDefaults 填充未设置的配置项
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "paper_review.db"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "azure"
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.ChatDeployment == "" {
		c.LLM.ChatDeployment = "gpt-4o-mini"
	}
	if c.LLM.ChatAPIVersion == "" {
		c.LLM.ChatAPIVersion = "2024-10-21"
	}
	if c.LLM.EmbeddingDeployment == "" {
		c.LLM.EmbeddingDeployment = "text-embedding-3-small"
	}
	if c.LLM.EmbeddingAPIVersion == "" {
		c.LLM.EmbeddingAPIVersion = "2024-10-21"
	}
	if c.LLM.GenAIModel == "" {
		c.LLM.GenAIModel = "gemini-2.5-flash"
	}
	if c.LLM.GenAIEmbeddingModel == "" {
		c.LLM.GenAIEmbeddingModel = "gemini-embedding-001"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}

	// max_retries=0 是合法值（不重试），只对负数兜底
	if c.Review.MaxRetries < 0 {
		c.Review.MaxRetries = 0
	}
	if c.Review.Workers <= 0 {
		c.Review.Workers = 2
	}
	if c.Review.NoveltyTopK <= 0 {
		c.Review.NoveltyTopK = 10
	}
	if c.Review.SimilarityThreshold <= 0 {
		c.Review.SimilarityThreshold = 0.80
	}
	if c.Review.EmbeddingCacheSize <= 0 {
		c.Review.EmbeddingCacheSize = 256
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	switch c.LLM.Provider {
	case "azure", "genai":
	default:
		return fmt.Errorf("不支持的 LLM provider: %s", c.LLM.Provider)
	}
	if c.Review.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold 必须在 (0,1] 之间: %v", c.Review.SimilarityThreshold)
	}
	return nil
}
