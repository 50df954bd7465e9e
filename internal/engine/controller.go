package engine

import (
	"context"
	"log/slog"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/pkg/logger"
)

// 周期控制器：驱动"计划-执行-反思"状态机，动作串行执行，单个动作
// 失败记录为错误结果而不中断周期。

// State 是控制器状态机的阶段标识，主要用于日志与运行记录。
type State string

const (
	StateInit       State = "INIT"
	StatePlanning   State = "PLANNING"
	StateExecuting  State = "EXECUTING"
	StateReflecting State = "REFLECTING"
	StateDone       State = "DONE"
)

const (
	// DefaultMaxCycles 是未配置时的周期上限。
	DefaultMaxCycles = 5
	// CycleCeiling 是触发器可以放宽到的绝对上限。
	CycleCeiling = 10
)

// ActionExecutor 把动作交给执行层。由 internal/executor 实现。
type ActionExecutor interface {
	Execute(ctx context.Context, fn agent.Function, params map[string]any, message string) (*agent.ExecutionResult, error)
}

// Controller 为单个智能体驱动一次完整运行。
type Controller struct {
	agent      *agent.Agent
	catalog    agent.Catalog
	decision   *Decision
	reflection *Reflection
	executor   ActionExecutor
	maxCycles  int
	log        *slog.Logger
}

// ControllerOption 配置控制器。
type ControllerOption func(*Controller)

// WithMaxCycles 覆盖默认周期上限，非法值被忽略。
func WithMaxCycles(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxCycles = n
		}
	}
}

// NewController 组装一次运行所需的全部引擎。
func NewController(ag *agent.Agent, catalog agent.Catalog, decision *Decision, reflection *Reflection, executor ActionExecutor, opts ...ControllerOption) *Controller {
	c := &Controller{
		agent:      ag,
		catalog:    catalog,
		decision:   decision,
		reflection: reflection,
		executor:   executor,
		maxCycles:  DefaultMaxCycles,
		log:        logger.Named("engine.controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AnalyzeAndExecute 运行完整的计划-执行-反思循环，返回按执行顺序
// 排列的周期结果。引擎层不抛错，这里也不返回 error。
func (c *Controller) AnalyzeAndExecute(ctx context.Context, trigger agent.Trigger) []agent.CycleResult {
	maxCycles := c.cycleBudget(trigger)
	results := make([]agent.CycleResult, 0, 4)
	var history []agent.HistoryEntry

	c.transition(StateInit, StatePlanning, 0)
	actions := c.decision.AnalyzeState(ctx, c.agent, c.catalog, trigger)
	if len(actions) == 0 {
		c.transition(StatePlanning, StateDone, 0)
		return results
	}

	for cycle := 1; cycle <= maxCycles; cycle++ {
		c.transition(StatePlanning, StateExecuting, cycle)
		for _, action := range actions {
			if outcome, ok := c.executeAction(ctx, action); ok {
				results = append(results, outcome)
				history = append(history, agent.HistoryEntry{
					Action:  action,
					Result:  outcome.Result,
					Message: action.Message,
				})
			}
		}

		if ctx.Err() != nil {
			c.log.Warn("上下文取消，提前结束运行", "agentId", c.agent.ID, "cycle", cycle)
			break
		}

		c.transition(StateExecuting, StateReflecting, cycle)
		actions = c.reflection.AnalyzeResults(ctx, c.agent, c.catalog, trigger, history)
		if len(actions) == 0 {
			break
		}
		if cycle == maxCycles {
			c.log.Warn("达到周期上限，放弃剩余动作",
				"agentId", c.agent.ID, "maxCycles", maxCycles, "remaining", len(actions))
		}
	}

	c.transition(StateReflecting, StateDone, 0)
	return results
}

// executeAction 执行单个动作。目录里找不到或被禁用的函数静默跳过，
// 执行失败记录为错误结果。
func (c *Controller) executeAction(ctx context.Context, action agent.Action) (agent.CycleResult, bool) {
	fn := c.catalog.Lookup(action.FunctionName)
	if fn == nil {
		c.log.Debug("动作指向不可用函数，跳过",
			"agentId", c.agent.ID, "function", action.FunctionName)
		return agent.CycleResult{}, false
	}

	outcome := agent.CycleResult{
		Function: fn.Name,
		Params:   agent.CloneParams(action.Params),
		Message:  action.Message,
	}
	result, err := c.executor.Execute(ctx, *fn, action.Params, action.Message)
	if err != nil {
		outcome.Error = err.Error()
		outcome.Result = &agent.ExecutionResult{Success: false, Error: err.Error()}
		return outcome, true
	}
	outcome.Result = result
	return outcome, true
}

// cycleBudget 计算本次运行的周期上限：触发器可以放宽，但不超过绝对
// 上限。
func (c *Controller) cycleBudget(trigger agent.Trigger) int {
	budget := c.maxCycles
	if trigger.MaxCycles > 0 {
		budget = trigger.MaxCycles
	}
	if budget > CycleCeiling {
		budget = CycleCeiling
	}
	return budget
}

func (c *Controller) transition(from, to State, cycle int) {
	c.log.Debug("状态切换", "agentId", c.agent.ID, "from", string(from), "to", string(to), "cycle", cycle)
}
