package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"zephyrus-agent/internal/api"
	"zephyrus-agent/internal/chain"
	"zephyrus-agent/internal/config"
	"zephyrus-agent/internal/directory"
	"zephyrus-agent/internal/llm"
	"zephyrus-agent/internal/llm/openai"
	"zephyrus-agent/internal/observability/alerting"
	"zephyrus-agent/internal/run"
	"zephyrus-agent/internal/runtime"
	"zephyrus-agent/pkg/logger"
)

// main 是 zephyrus 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runDaemon(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("zephyrusd 运行失败: %v", err)
	}
}

func runDaemon(ctx context.Context) error {
	configPath := os.Getenv("ZEPHYRUS_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "zephyrus.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	planner, err := createPlanner(cfg)
	if err != nil {
		return err
	}

	dir, err := directory.NewClient(directory.Config{
		BaseURL: cfg.Directory.BaseURL,
		Timeout: time.Duration(cfg.Directory.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	chainClient, err := createChainClient(cfg)
	if err != nil {
		return err
	}

	store, err := createStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.L().Warn("关闭运行存储失败", "error", err)
		}
	}()

	queue, err := createQueue(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.L().Warn("关闭运行队列失败", "error", err)
		}
	}()

	rt := runtime.New(dir, chainClient, planner, runtime.WithMaxCycles(cfg.Engine.MaxCycles))
	service := run.NewService(store, queue, cfg.RunStore.Retries)

	opts := []run.ProcessorOption{
		run.WithWorkerCount(cfg.RunQueue.Workers),
	}
	if dispatcher := createDispatcher(cfg); dispatcher != nil {
		opts = append(opts, run.WithAlertDispatcher(dispatcher))
	}
	processor := run.NewProcessor(rt, store, queue, queue, opts...)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("运行处理器异常退出", "error", err)
		}
	}()

	if cfg.Scheduler.Enabled && len(cfg.Scheduler.AgentIDs) > 0 {
		scheduler := run.NewScheduler(service, dir, cfg.Scheduler.AgentIDs, cfg.Scheduler.Interval())
		go func() {
			if err := scheduler.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("调度器异常退出", "error", err)
			}
		}()
	}

	server := api.NewServer(cfg.Server.Address, service)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// createPlanner 构造大模型规划客户端。provider 为 none 时返回 nil，
// 此时引擎只依靠确定性规则。
func createPlanner(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "none":
		return nil, nil
	case "", "openai":
		apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
		if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

// createChainClient 构造执行服务客户端，网络定义文件可覆盖入口地址。
func createChainClient(cfg *config.Config) (*chain.Client, error) {
	baseURL := cfg.Chain.BaseURL
	networkID := 0

	defs, err := chain.LoadNetworkDefinitions(cfg.Chain.NetworksFile)
	if err != nil {
		return nil, err
	}
	if cfg.Chain.Network != "" {
		if def, ok := defs.Resolve(cfg.Chain.Network); ok {
			networkID = def.ID
			if def.ExecutionURL != "" {
				baseURL = def.ExecutionURL
			}
		}
	}

	return chain.NewClient(chain.Config{
		BaseURL:   baseURL,
		NetworkID: networkID,
		Timeout:   time.Duration(cfg.Chain.TimeoutSeconds) * time.Second,
	})
}

func createStore(cfg *config.Config) (run.Store, error) {
	switch cfg.RunStore.Driver {
	case "", "memory":
		return run.NewMemoryStore(), nil
	case "mysql":
		return run.NewMySQLStore(cfg.RunStore.DSN)
	default:
		return nil, fmt.Errorf("未知的运行存储驱动: %s", cfg.RunStore.Driver)
	}
}

func createQueue(cfg *config.Config) (run.Queue, error) {
	switch cfg.RunQueue.Driver {
	case "", "memory":
		return run.NewMemoryQueue(1024), nil
	case "redis":
		return run.NewRedisQueue(run.RedisQueueConfig{
			Address:   cfg.RunQueue.Redis.Address,
			Password:  cfg.RunQueue.Redis.Password,
			DB:        cfg.RunQueue.Redis.DB,
			Queue:     cfg.RunQueue.Redis.Queue,
			BlockWait: time.Duration(cfg.RunQueue.Redis.BlockWaitSeconds) * time.Second,
		})
	case "rabbitmq":
		return run.NewRabbitMQQueue(run.RabbitMQConfig{
			URL:        cfg.RunQueue.RabbitMQ.URL,
			Queue:      cfg.RunQueue.RabbitMQ.Queue,
			Prefetch:   cfg.RunQueue.RabbitMQ.Prefetch,
			Durable:    cfg.RunQueue.RabbitMQ.Durable,
			AutoDelete: cfg.RunQueue.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的运行队列驱动: %s", cfg.RunQueue.Driver)
	}
}

// createDispatcher 按配置组装告警分发器。没有任何可用渠道时返回 nil。
func createDispatcher(cfg *config.Config) alerting.Dispatcher {
	var notifiers []alerting.Notifier
	if len(cfg.Alerting.Email.To) > 0 {
		notifiers = append(notifiers, &alerting.EmailNotifier{
			To:            cfg.Alerting.Email.To,
			SubjectPrefix: cfg.Alerting.Email.SubjectPrefix,
		})
	}
	if cfg.Alerting.Slack.ChannelID != "" {
		notifiers = append(notifiers, &alerting.SlackNotifier{
			ChannelID: cfg.Alerting.Slack.ChannelID,
		})
	}
	if len(notifiers) == 0 {
		return nil
	}
	return alerting.NewFanout(notifiers...)
}
