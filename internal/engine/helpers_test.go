package engine

import (
	"context"
	"sync"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/llm"
)

const (
	testOwner    = "0x1111111111111111111111111111111111111111"
	testMintAddr = "0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD"
)

func testCatalog() agent.Catalog {
	return agent.Catalog{
		{
			ID:      "fn-balance",
			Name:    "balanceOf",
			Type:    agent.FunctionRead,
			Enabled: true,
			ABI:     []agent.Param{{Name: "account", Type: "address"}},
		},
		{
			ID:      "fn-mint",
			Name:    "mint",
			Type:    agent.FunctionWrite,
			Enabled: true,
			ABI: []agent.Param{
				{Name: "to", Type: "address"},
				{Name: "amount", Type: "uint256"},
			},
		},
		{
			ID:      "fn-burn",
			Name:    "burn",
			Type:    agent.FunctionWrite,
			Enabled: false,
			ABI: []agent.Param{
				{Name: "from", Type: "address"},
				{Name: "amount", Type: "uint256"},
			},
		},
	}
}

func testAgent(description string) *agent.Agent {
	return &agent.Agent{
		ID:          "agent-1",
		ContractID:  "contract-1",
		Name:        "token-keeper",
		Description: description,
		Status:      agent.StatusActive,
		Owner:       testOwner,
	}
}

// stubPlanner 记录收到的请求并返回预置回复。
type stubPlanner struct {
	mu    sync.Mutex
	resp  *llm.Response
	err   error
	calls int
	last  llm.Request
}

func (s *stubPlanner) Plan(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

// scriptedExecutor 按预置脚本返回结果，并记录每次调用。
type scriptedExecutor struct {
	mu      sync.Mutex
	results map[string][]*agent.ExecutionResult
	errs    map[string]error
	calls   []executedCall
}

type executedCall struct {
	Function string
	Params   map[string]any
	Message  string
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{
		results: make(map[string][]*agent.ExecutionResult),
		errs:    make(map[string]error),
	}
}

func (e *scriptedExecutor) script(function string, result *agent.ExecutionResult) {
	e.results[function] = append(e.results[function], result)
}

func (e *scriptedExecutor) Execute(_ context.Context, fn agent.Function, params map[string]any, message string) (*agent.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, executedCall{Function: fn.Name, Params: agent.CloneParams(params), Message: message})
	if err := e.errs[fn.Name]; err != nil {
		return nil, err
	}
	queue := e.results[fn.Name]
	if len(queue) == 0 {
		return &agent.ExecutionResult{Success: true}, nil
	}
	next := queue[0]
	e.results[fn.Name] = queue[1:]
	return next, nil
}

func (e *scriptedExecutor) callsFor(function string) []executedCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []executedCall
	for _, call := range e.calls {
		if call.Function == function {
			out = append(out, call)
		}
	}
	return out
}
