// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"voice-agent/pkg/log"
	"voice-agent/pkg/secrets"
)

// 规范默认值
const (
	DefaultMaxSteps       = 10
	DefaultShortTermBound = 100
	DefaultSearchK        = 3
	DefaultMaxDistance    = 0.8
	DefaultPort           = 8080
)

// DefaultKeywords 触发长期记忆提升的关键词
var DefaultKeywords = []string{"remember", "important", "save", "profile", "preference"}

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Model      ModelConfig      `mapstructure:"model"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Log        log.Config       `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Secrets    secrets.Config   `mapstructure:"secrets"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Timeout string `mapstructure:"timeout"`
}

// Addr 返回 host:port
func (c APIConfig) Addr() string {
	port := c.Port
	if port <= 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// GraphConfig 编排图配置
type GraphConfig struct {
	MaxSteps int `mapstructure:"max_steps"` // 单轮节点访问上限，<=0 使用 10
}

// MemoryConfig 记忆子系统配置
type MemoryConfig struct {
	ShortTermBound int      `mapstructure:"short_term_bound"` // 短期记忆上限，<=0 使用 100
	SearchK        int      `mapstructure:"search_k"`
	MaxDistance    float64  `mapstructure:"max_distance"`
	Keywords       []string `mapstructure:"keywords"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	KV         KVConfig     `mapstructure:"kv"`
	Checkpoint KVConfig     `mapstructure:"checkpoint"`
	Vector     VectorConfig `mapstructure:"vector"`
}

// KVConfig 键值 / checkpoint 存储配置
type KVConfig struct {
	Type     string `mapstructure:"type"`     // memory | postgres | redis
	DSN      string `mapstructure:"dsn"`      // Postgres 连接串
	Addr     string `mapstructure:"addr"`     // Redis 地址
	Password string `mapstructure:"password"` // Redis 密码
	DB       int    `mapstructure:"db"`       // Redis DB
	Prefix   string `mapstructure:"prefix"`   // Redis key 前缀
}

// VectorConfig 事实索引配置
type VectorConfig struct {
	Type       string `mapstructure:"type"` // memory | chromem | none
	Collection string `mapstructure:"collection"`
	Path       string `mapstructure:"path"` // chromem 持久化目录，为空时仅驻留内存
	Compress   bool   `mapstructure:"compress"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // openai | qwen | eino | ...
	Type        string  `mapstructure:"type"`     // http | eino，空为 http
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	Type      string      `mapstructure:"type"` // hash | openai
	BaseURL   string      `mapstructure:"base_url"`
	APIKey    string      `mapstructure:"api_key"`
	Model     string      `mapstructure:"model"`
	Dimension int         `mapstructure:"dimension"`
	Cache     CacheConfig `mapstructure:"cache"`
}

// CacheConfig embedding 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis | none
	TTL      string `mapstructure:"ttl"`  // 如 "24h"，空为不过期
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置；Port>0 时在独立端口暴露 /metrics
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// Defaults 返回填充规范默认值的配置
func Defaults() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 为未设置的字段填充默认值
func (c *Config) ApplyDefaults() {
	if c.API.Port <= 0 {
		c.API.Port = DefaultPort
	}
	if c.Graph.MaxSteps <= 0 {
		c.Graph.MaxSteps = DefaultMaxSteps
	}
	if c.Memory.ShortTermBound <= 0 {
		c.Memory.ShortTermBound = DefaultShortTermBound
	}
	if c.Memory.SearchK <= 0 {
		c.Memory.SearchK = DefaultSearchK
	}
	if c.Memory.MaxDistance <= 0 {
		c.Memory.MaxDistance = DefaultMaxDistance
	}
	if len(c.Memory.Keywords) == 0 {
		c.Memory.Keywords = append([]string(nil), DefaultKeywords...)
	}
	if c.Storage.KV.Type == "" {
		c.Storage.KV.Type = "memory"
	}
	if c.Storage.Checkpoint.Type == "" {
		c.Storage.Checkpoint.Type = "memory"
	}
	if c.Storage.Vector.Type == "" {
		c.Storage.Vector.Type = "memory"
	}
	if c.Model.Embedding.Type == "" {
		c.Model.Embedding.Type = "hash"
	}
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	config.ApplyDefaults()
	return &config, nil
}

// expandEnv 将 ${VAR} 形式替换为环境变量值；变量未设置时保持原值
func expandEnv(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	envVar := strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return value
}

// replaceEnvVars 替换配置中的环境变量
func replaceEnvVars(config *Config) {
	config.Model.LLM.APIKey = expandEnv(config.Model.LLM.APIKey)
	config.Model.Embedding.APIKey = expandEnv(config.Model.Embedding.APIKey)
	config.Storage.KV.DSN = expandEnv(config.Storage.KV.DSN)
	config.Storage.KV.Password = expandEnv(config.Storage.KV.Password)
	config.Storage.Checkpoint.DSN = expandEnv(config.Storage.Checkpoint.DSN)
	config.Storage.Checkpoint.Password = expandEnv(config.Storage.Checkpoint.Password)
	config.Model.Embedding.Cache.Password = expandEnv(config.Model.Embedding.Cache.Password)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）；VOICE_AGENT_CONFIG 可覆盖路径
func LoadAPIConfig() (*Config, error) {
	path := "configs/api.yaml"
	if p := os.Getenv("VOICE_AGENT_CONFIG"); p != "" {
		path = p
	}
	return LoadConfig(path)
}
