package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/chain"
	"zephyrus-agent/internal/directory"
	"zephyrus-agent/internal/engine"
	xerrors "zephyrus-agent/internal/errors"
	"zephyrus-agent/internal/executor"
	"zephyrus-agent/internal/llm"
	"zephyrus-agent/pkg/logger"
)

// 运行时负责把一次触发变成一次完整的周期运行：从目录服务装载
// 智能体档案、合约与函数目录，组装执行器与周期控制器并启动。

// Directory 是运行时需要的目录服务能力，由目录客户端实现。
type Directory interface {
	GetAgent(ctx context.Context, agentID string) (*agent.Agent, error)
	GetContract(ctx context.Context, contractID string) (*agent.Contract, error)
	GetFunctions(ctx context.Context, agentID string) (agent.Catalog, error)
	CreateExecutionLog(ctx context.Context, agentID string, entry directory.ExecutionLog) (string, error)
	UpdateExecutionLog(ctx context.Context, agentID, logID string, entry directory.ExecutionLog) error
}

// Runtime 为任意智能体执行计划-执行-反思周期。
type Runtime struct {
	directory Directory
	chain     executor.ChainCaller
	planner   llm.Client
	maxCycles int
	log       *slog.Logger
}

// Option 配置运行时。
type Option func(*Runtime)

// WithMaxCycles 覆盖默认周期上限。
func WithMaxCycles(n int) Option {
	return func(rt *Runtime) {
		if n > 0 {
			rt.maxCycles = n
		}
	}
}

// New 创建运行时。planner 可以为 nil，此时只有确定性规则可用。
func New(dir Directory, chainCaller executor.ChainCaller, planner llm.Client, opts ...Option) *Runtime {
	rt := &Runtime{
		directory: dir,
		chain:     chainCaller,
		planner:   planner,
		maxCycles: engine.DefaultMaxCycles,
		log:       logger.Named("runtime"),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Run 实现 run.Runner：装载档案并执行一次完整周期。智能体缺失或
// 未激活是不可重试的失败，周期内部的动作失败不会上抛。
func (rt *Runtime) Run(ctx context.Context, agentID string, trigger agent.Trigger) ([]agent.CycleResult, error) {
	ag, err := rt.directory.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if ag == nil {
		return nil, xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("智能体 %s 不存在", agentID))
	}
	if ag.Status != agent.StatusActive {
		return nil, xerrors.New(xerrors.CodeValidation,
			fmt.Sprintf("智能体 %s 当前状态为 %s，拒绝执行", agentID, ag.Status))
	}

	contract, err := rt.directory.GetContract(ctx, ag.ContractID)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, xerrors.New(xerrors.CodeConfiguration,
			fmt.Sprintf("智能体 %s 绑定的合约 %s 不存在", agentID, ag.ContractID))
	}

	catalog, err := rt.directory.GetFunctions(ctx, agentID)
	if err != nil {
		return nil, err
	}
	catalog = rt.reconcileCatalog(agentID, contract, catalog)

	exec := executor.New(ag, contract, rt.chain, rt.directory)
	controller := engine.NewController(
		ag,
		catalog,
		engine.NewDecision(rt.planner),
		engine.NewReflection(rt.planner),
		exec,
		engine.WithMaxCycles(rt.maxCycles),
	)

	rt.log.Info("开始执行周期",
		"agent_id", agentID,
		"trigger_type", trigger.Type,
		"functions", len(catalog.Enabled()),
	)
	results := controller.AnalyzeAndExecute(ctx, trigger)
	rt.log.Info("周期执行结束", "agent_id", agentID, "actions", len(results))
	return results, nil
}

// reconcileCatalog 用合约级 ABI 校正函数目录的声明类型：声明缺失时
// 按 ABI 的可变性补全，声明与 ABI 冲突时以 ABI 为准并告警。ABI 的
// 可变性决定调用路由与 gas 附带，错的声明会把写调用发到只读路由。
func (rt *Runtime) reconcileCatalog(agentID string, contract *agent.Contract, catalog agent.Catalog) agent.Catalog {
	if len(contract.ABI) == 0 {
		return catalog
	}
	for i := range catalog {
		kind, ok := chain.FunctionKind(contract.ABI, catalog[i].Name)
		if !ok {
			continue
		}
		switch {
		case catalog[i].Type == "":
			catalog[i].Type = kind
		case catalog[i].Type != kind:
			rt.log.Warn("函数声明类型与合约 ABI 不一致，以 ABI 为准",
				"agent_id", agentID,
				"function", catalog[i].Name,
				"declared", string(catalog[i].Type),
				"abi", string(kind),
			)
			catalog[i].Type = kind
		}
	}
	return catalog
}
