package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/chain"
	"zephyrus-agent/internal/directory"
	xerrors "zephyrus-agent/internal/errors"
	"zephyrus-agent/pkg/logger"
)

// 动作执行器：校验参数、解析 ABI、组装载荷并按函数类型分发到
// 执行服务的读写路由。执行日志是尽力而为的，日志失败只告警。

// ChainCaller 是执行服务客户端需要实现的最小接口。
type ChainCaller interface {
	Read(ctx context.Context, req chain.CallRequest) (*chain.CallResult, error)
	Write(ctx context.Context, req chain.CallRequest) (*chain.CallResult, error)
}

// LogWriter 写执行日志。由目录服务客户端实现。
type LogWriter interface {
	CreateExecutionLog(ctx context.Context, agentID string, entry directory.ExecutionLog) (string, error)
	UpdateExecutionLog(ctx context.Context, agentID, logID string, entry directory.ExecutionLog) error
}

// Executor 为单个智能体执行合约函数调用。
type Executor struct {
	agent    *agent.Agent
	contract *agent.Contract
	chain    ChainCaller
	logs     LogWriter
	log      *slog.Logger
}

// New 创建执行器。logs 可以为 nil，此时跳过执行日志。
func New(ag *agent.Agent, contract *agent.Contract, caller ChainCaller, logs LogWriter) *Executor {
	return &Executor{
		agent:    ag,
		contract: contract,
		chain:    caller,
		logs:     logs,
		log:      logger.Named("executor"),
	}
}

// Execute 执行单个合约函数调用。只有参数校验失败会在外呼之前返回
// 错误；外呼失败会在记录日志后原样返回给调用方。
func (e *Executor) Execute(ctx context.Context, fn agent.Function, params map[string]any, message string) (*agent.ExecutionResult, error) {
	if err := e.validate(fn, params); err != nil {
		return nil, err
	}

	inputs, abi, err := e.resolveABI(fn, params)
	if err != nil {
		return nil, err
	}

	req := chain.CallRequest{
		ContractAddress: e.contract.Address,
		ABI:             abi,
		FunctionName:    fn.Name,
		Inputs:          inputs,
	}
	if fn.Type.NeedsGas() {
		req.GasLimit = e.agent.GasLimit
		req.MaxPriorityFee = e.agent.MaxPriorityFee
	}

	logID := e.preLog(ctx, fn, params, message)

	var result *chain.CallResult
	if fn.Type == agent.FunctionRead {
		result, err = e.chain.Read(ctx, req)
	} else {
		result, err = e.chain.Write(ctx, req)
	}
	if err != nil {
		e.postLog(ctx, logID, fn, directory.ExecutionLog{
			Status: directory.LogStatusFailed,
			Error:  err.Error(),
		})
		return nil, err
	}

	outcome := &agent.ExecutionResult{
		Success:         result.Success,
		Data:            result.Data,
		Error:           result.Error,
		TransactionHash: result.TransactionHash,
	}
	status := directory.LogStatusSuccess
	if !outcome.Success {
		status = directory.LogStatusFailed
	}
	e.postLog(ctx, logID, fn, directory.ExecutionLog{
		Status: status,
		Result: outcome.Data,
		Error:  outcome.Error,
	})
	return outcome, nil
}

// validate 校验声明的规则键与 ABI 参数都已提供。完整的规则校验
// 由目录服务侧的校验器负责，这里只做存在性检查。
func (e *Executor) validate(fn agent.Function, params map[string]any) error {
	for key := range fn.ValidationRules {
		if _, ok := params[key]; !ok {
			return xerrors.New(xerrors.CodeValidation,
				fmt.Sprintf("函数 %s 缺少受校验参数 %s", fn.Name, key))
		}
	}
	return nil
}

// resolveABI 解析函数的输入顺序与下发的 ABI。两者都优先函数级声明，
// 缺失时回退到合约级 ABI；合约级回退时尽量只下发目标函数的条目。
func (e *Executor) resolveABI(fn agent.Function, params map[string]any) ([]any, []map[string]any, error) {
	order := fn.ABI
	if len(order) == 0 {
		order = chain.InputOrder(e.contract.ABI, fn.Name)
	}

	inputs := make([]any, 0, len(order))
	for _, param := range order {
		value, ok := params[param.Name]
		if !ok {
			return nil, nil, xerrors.New(xerrors.CodeValidation,
				fmt.Sprintf("函数 %s 缺少参数 %s", fn.Name, param.Name))
		}
		inputs = append(inputs, value)
	}

	var abi []map[string]any
	if entry := buildABIEntry(fn); entry != nil {
		abi = []map[string]any{entry}
	} else if entry := chain.FunctionEntry(e.contract.ABI, fn.Name); entry != nil {
		abi = []map[string]any{entry}
	} else {
		abi = e.contract.ABI
	}
	if len(abi) == 0 {
		return nil, nil, xerrors.New(xerrors.CodeConfiguration,
			fmt.Sprintf("函数 %s 没有可用的 ABI", fn.Name))
	}
	return inputs, abi, nil
}

// buildABIEntry 用函数级声明拼出单条 ABI。
func buildABIEntry(fn agent.Function) map[string]any {
	if len(fn.ABI) == 0 {
		return nil
	}
	inputs := make([]map[string]any, 0, len(fn.ABI))
	for _, param := range fn.ABI {
		inputs = append(inputs, map[string]any{"name": param.Name, "type": param.Type})
	}
	mutability := "nonpayable"
	switch fn.Type {
	case agent.FunctionRead:
		mutability = "view"
	case agent.FunctionPayable:
		mutability = "payable"
	}
	return map[string]any{
		"type":            "function",
		"name":            fn.Name,
		"inputs":          inputs,
		"stateMutability": mutability,
	}
}

// preLog 尽力写入 pending 日志，返回日志 id，失败时返回空串。
func (e *Executor) preLog(ctx context.Context, fn agent.Function, params map[string]any, message string) string {
	if e.logs == nil {
		return ""
	}
	logID, err := e.logs.CreateExecutionLog(ctx, e.agent.ID, directory.ExecutionLog{
		FunctionName: fn.Name,
		Params:       params,
		Status:       directory.LogStatusPending,
		Message:      message,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		e.log.Warn("写入执行日志失败，继续执行",
			"agentId", e.agent.ID, "function", fn.Name, "error", err)
		return ""
	}
	return logID
}

// postLog 尽力更新日志状态，失败只告警。
func (e *Executor) postLog(ctx context.Context, logID string, fn agent.Function, entry directory.ExecutionLog) {
	if e.logs == nil || logID == "" {
		return
	}
	entry.FunctionName = fn.Name
	entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if err := e.logs.UpdateExecutionLog(ctx, e.agent.ID, logID, entry); err != nil {
		e.log.Warn("更新执行日志失败",
			"agentId", e.agent.ID, "function", fn.Name, "logId", logID, "error", err)
	}
}
