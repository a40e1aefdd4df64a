// =============================================================================
// 📦 AgentHive 配置
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.Load("config.yaml")
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 AgentHive 的完整配置结构
type Config struct {
	// Bus 消息总线配置
	Bus BusConfig `yaml:"bus"`

	// Debate 辩论引擎配置
	Debate DebateConfig `yaml:"debate"`

	// Request 请求处理配置
	Request RequestConfig `yaml:"request"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics"`
}

// BusConfig 消息总线配置
type BusConfig struct {
	// 投递历史上限（超出后裁剪为一半）
	HistoryLimit int `yaml:"history_limit"`
	// 投递 worker 的出队等待时长
	PopTimeout time.Duration `yaml:"pop_timeout"`
	// 发布速率上限（每秒消息数，0 表示不限流）
	PublishRateLimit float64 `yaml:"publish_rate_limit"`
	// 发布突发容量
	PublishBurst int `yaml:"publish_burst"`
}

// DebateConfig 辩论引擎配置
type DebateConfig struct {
	// 最大轮次
	MaxRounds int `yaml:"max_rounds"`
	// 参与者下限
	MinParticipants int `yaml:"min_participants"`
	// 参与者上限
	MaxParticipants int `yaml:"max_participants"`
	// 自动选人上限（manager 选择参与者时截断）
	SelectionCap int `yaml:"selection_cap"`
	// 单轮论证时限
	RoundTimeout time.Duration `yaml:"round_timeout"`
	// 投票时限
	VoteTimeout time.Duration `yaml:"vote_timeout"`
	// 共识阈值（consensus-score 判定）
	ConsensusThreshold float64 `yaml:"consensus_threshold"`
	// 投票方式: majority | weighted | consensus | ranked_choice
	VotingMethod string `yaml:"voting_method"`
}

// RequestConfig 请求处理配置
type RequestConfig struct {
	// 默认请求超时
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	// drain 轮询间隔
	DrainInterval time.Duration `yaml:"drain_interval"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug | info | warn | error
	Level string `yaml:"level"`
	// 是否使用开发模式输出
	Development bool `yaml:"development"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled"`
	// Prometheus namespace
	Namespace string `yaml:"namespace"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			HistoryLimit: 1000,
			PopTimeout:   100 * time.Millisecond,
			PublishBurst: 1,
		},
		Debate: DebateConfig{
			MaxRounds:          3,
			MinParticipants:    2,
			MaxParticipants:    7,
			SelectionCap:       5,
			RoundTimeout:       30 * time.Second,
			VoteTimeout:        15 * time.Second,
			ConsensusThreshold: 0.6,
			VotingMethod:       "majority",
		},
		Request: RequestConfig{
			DefaultTimeout: 30 * time.Second,
			DrainInterval:  50 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "agenthive",
		},
	}
}

// Load 加载配置：默认值 → YAML 文件（可选）→ 环境变量
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 应用环境变量覆盖（前缀 AGENTHIVE_）
func (c *Config) applyEnv() {
	if v := os.Getenv("AGENTHIVE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("AGENTHIVE_BUS_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Bus.HistoryLimit = n
		}
	}
	if v := os.Getenv("AGENTHIVE_DEBATE_MAX_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Debate.MaxRounds = n
		}
	}
	if v := os.Getenv("AGENTHIVE_DEBATE_CONSENSUS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Debate.ConsensusThreshold = f
		}
	}
	if v := os.Getenv("AGENTHIVE_REQUEST_DEFAULT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Request.DefaultTimeout = d
		}
	}
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.Bus.HistoryLimit <= 0 {
		return fmt.Errorf("bus.history_limit must be positive, got %d", c.Bus.HistoryLimit)
	}
	if c.Debate.MaxRounds <= 0 {
		return fmt.Errorf("debate.max_rounds must be positive, got %d", c.Debate.MaxRounds)
	}
	if c.Debate.MinParticipants < 2 {
		return fmt.Errorf("debate.min_participants must be at least 2, got %d", c.Debate.MinParticipants)
	}
	if c.Debate.MaxParticipants < c.Debate.MinParticipants {
		return fmt.Errorf("debate.max_participants %d below min_participants %d",
			c.Debate.MaxParticipants, c.Debate.MinParticipants)
	}
	if c.Debate.SelectionCap != 0 && c.Debate.SelectionCap < c.Debate.MinParticipants {
		return fmt.Errorf("debate.selection_cap %d below min_participants %d",
			c.Debate.SelectionCap, c.Debate.MinParticipants)
	}
	if c.Debate.ConsensusThreshold < 0 || c.Debate.ConsensusThreshold > 1 {
		return fmt.Errorf("debate.consensus_threshold must be in [0,1], got %f", c.Debate.ConsensusThreshold)
	}
	switch c.Debate.VotingMethod {
	case "majority", "weighted", "consensus", "ranked_choice":
	default:
		return fmt.Errorf("unknown debate.voting_method %q", c.Debate.VotingMethod)
	}
	if c.Request.DrainInterval <= 0 {
		return fmt.Errorf("request.drain_interval must be positive")
	}
	return nil
}
