package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了守护进程在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
	LLM       LLMConfig       `json:"llm"`
	Directory DirectoryConfig `json:"directory"`
	Chain     ChainConfig     `json:"chain"`
	RunStore  RunStoreConfig  `json:"run_store"`
	RunQueue  RunQueueConfig  `json:"run_queue"`
	Engine    EngineConfig    `json:"engine"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Alerting  AlertingConfig  `json:"alerting"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// LoggingConfig 控制全局日志与审计日志的输出。
type LoggingConfig struct {
	Level   string   `json:"level"`
	Format  string   `json:"format"`
	Outputs []string `json:"outputs"`
	Audit   struct {
		Enabled    bool   `json:"enabled"`
		Path       string `json:"path"`
		MaxSizeMB  int    `json:"max_size_mb"`
		MaxBackups int    `json:"max_backups"`
		MaxAgeDays int    `json:"max_age_days"`
	} `json:"audit"`
}

// LLMConfig 用于配置大模型规划服务的调用方式。
type LLMConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述 OpenAI 兼容接口所需的信息。API Key 可以直接
// 写在配置里，也可以指定一个环境变量名。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DirectoryConfig 描述目录服务（智能体档案库）的访问方式。
type DirectoryConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ChainConfig 描述合约执行服务的访问方式。
type ChainConfig struct {
	BaseURL        string `json:"base_url"`
	Network        string `json:"network"`
	NetworksFile   string `json:"networks_file"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RunStoreConfig 描述运行存储后端。
type RunStoreConfig struct {
	Driver  string `json:"driver"`
	DSN     string `json:"dsn"`
	Retries int    `json:"retries"`
}

// RunQueueConfig 描述运行队列后端。
type RunQueueConfig struct {
	Driver   string         `json:"driver"`
	Workers  int            `json:"workers"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 队列的连接参数。
type RedisConfig struct {
	Address          string `json:"address"`
	Password         string `json:"password"`
	DB               int    `json:"db"`
	Queue            string `json:"queue"`
	BlockWaitSeconds int    `json:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 队列的连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// EngineConfig 控制周期引擎的运行参数。
type EngineConfig struct {
	MaxCycles int `json:"max_cycles"`
}

// SchedulerConfig 控制定时触发器。
type SchedulerConfig struct {
	Enabled         bool     `json:"enabled"`
	AgentIDs        []string `json:"agent_ids"`
	IntervalSeconds int      `json:"interval_seconds"`
}

// Interval 返回调度间隔。
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// AlertingConfig 描述告警通知渠道。
type AlertingConfig struct {
	Email struct {
		To            []string `json:"to"`
		SubjectPrefix string   `json:"subject_prefix"`
	} `json:"email"`
	Slack struct {
		ChannelID string `json:"channel_id"`
	} `json:"slack"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(baseDir, "logs", "audit.log")
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}

	if c.Directory.BaseURL == "" {
		c.Directory.BaseURL = "http://localhost:3000"
	}

	if c.Chain.BaseURL == "" {
		c.Chain.BaseURL = "http://localhost:4000"
	}
	if c.Chain.NetworksFile != "" && !filepath.IsAbs(c.Chain.NetworksFile) {
		c.Chain.NetworksFile = filepath.Join(baseDir, c.Chain.NetworksFile)
	}

	if c.RunStore.Driver == "" {
		c.RunStore.Driver = "memory"
	}
	if c.RunStore.Retries <= 0 {
		c.RunStore.Retries = 3
	}

	if c.RunQueue.Driver == "" {
		c.RunQueue.Driver = "memory"
	}
	if c.RunQueue.Workers <= 0 {
		c.RunQueue.Workers = 4
	}

	if c.Scheduler.IntervalSeconds <= 0 {
		c.Scheduler.IntervalSeconds = 60
	}
}
