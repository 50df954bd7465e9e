package engine

import (
	"context"
	"errors"
	"testing"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/llm"
)

func newTestController(ag *agent.Agent, catalog agent.Catalog, planner llm.Client, exec ActionExecutor, opts ...ControllerOption) *Controller {
	return NewController(ag, catalog, NewDecision(planner), NewReflection(planner), exec, opts...)
}

// 完整的"低于阈值则铸币"流程：读余额、铸币、复核，且只铸一次。
func TestAnalyzeAndExecuteMintFlow(t *testing.T) {
	ag := testAgent("mint 5000000 tokens to " + testMintAddr + " if balance less than 5")
	exec := newScriptedExecutor()
	exec.script("balanceOf", &agent.ExecutionResult{Success: true, Data: "0"})
	exec.script("mint", &agent.ExecutionResult{Success: true, TransactionHash: "0xfeed"})
	exec.script("balanceOf", &agent.ExecutionResult{Success: true, Data: "5000000"})

	controller := newTestController(ag, testCatalog(), &stubPlanner{err: errors.New("unused")}, exec)
	results := controller.AnalyzeAndExecute(context.Background(), agent.Trigger{Type: agent.TriggerManual})

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3: %+v", len(results), results)
	}
	if results[0].Function != "balanceOf" || results[1].Function != "mint" || results[2].Function != "balanceOf" {
		t.Fatalf("unexpected sequence %+v", results)
	}
	if mints := exec.callsFor("mint"); len(mints) != 1 {
		t.Fatalf("mint calls = %d, want exactly 1", len(mints))
	} else if mints[0].Params["to"] != testMintAddr || mints[0].Params["amount"] != "5000000" {
		t.Fatalf("mint params = %v", mints[0].Params)
	}
	if results[0].Params["account"] != testOwner {
		t.Fatalf("balance read params = %v", results[0].Params)
	}
}

// 余额已达标时只读一次就结束。
func TestAnalyzeAndExecuteStopsWhenHealthy(t *testing.T) {
	ag := testAgent("mint 5000000 tokens to " + testMintAddr + " if balance less than 5")
	exec := newScriptedExecutor()
	exec.script("balanceOf", &agent.ExecutionResult{Success: true, Data: "9"})

	controller := newTestController(ag, testCatalog(), &stubPlanner{err: errors.New("unused")}, exec)
	results := controller.AnalyzeAndExecute(context.Background(), agent.Trigger{Type: agent.TriggerManual})

	if len(results) != 1 || results[0].Function != "balanceOf" {
		t.Fatalf("unexpected results %+v", results)
	}
	if len(exec.callsFor("mint")) != 0 {
		t.Fatal("mint must not run when balance is above threshold")
	}
}

// 指向禁用函数的动作被静默跳过，不产生结果也不报错。
func TestAnalyzeAndExecuteSkipsDisabledFunction(t *testing.T) {
	ag := testAgent("keep the treasury healthy")
	planner := &stubPlanner{resp: &llm.Response{Content: `{"function_name":"burn","message":"shrink supply"}`}}
	exec := newScriptedExecutor()

	controller := newTestController(ag, testCatalog(), planner, exec)
	results := controller.AnalyzeAndExecute(context.Background(), agent.Trigger{Type: agent.TriggerScheduled})

	if len(results) != 0 {
		t.Fatalf("disabled function must yield no results, got %+v", results)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("executor must not be reached, got %+v", exec.calls)
	}
}

// 模型彻底不可用时整次运行安静结束。
func TestAnalyzeAndExecuteModelOutage(t *testing.T) {
	ag := testAgent("keep the treasury healthy")
	exec := newScriptedExecutor()

	controller := newTestController(ag, testCatalog(), &stubPlanner{err: errors.New("provider down")}, exec)
	results := controller.AnalyzeAndExecute(context.Background(), agent.Trigger{Type: agent.TriggerScheduled})

	if len(results) != 0 {
		t.Fatalf("model outage must end the run cleanly, got %+v", results)
	}
}

// 执行失败被记录为错误结果，周期继续而不是中断。
func TestAnalyzeAndExecuteRecordsActionError(t *testing.T) {
	ag := testAgent("mint 100 tokens to " + testMintAddr)
	exec := newScriptedExecutor()
	exec.errs["mint"] = errors.New("execution reverted")

	controller := newTestController(ag, testCatalog(), &stubPlanner{err: errors.New("unused")}, exec)
	results := controller.AnalyzeAndExecute(context.Background(), agent.Trigger{Type: agent.TriggerManual})

	if len(results) == 0 {
		t.Fatal("failed action must still produce a result")
	}
	if results[0].Error == "" || results[0].Result.Success {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

// 反思引擎永远有新动作时，运行仍在周期上限内终止。
func TestAnalyzeAndExecuteBoundedTermination(t *testing.T) {
	ag := testAgent("check the balance forever")
	// 每次都返回一个新的读动作，人为制造不收敛的计划。
	planner := &loopingPlanner{}
	exec := newScriptedExecutor()

	controller := newTestController(ag, testCatalog(), planner, exec, WithMaxCycles(3))
	results := controller.AnalyzeAndExecute(context.Background(), agent.Trigger{Type: agent.TriggerTest})

	if len(results) != 3 {
		t.Fatalf("results = %d, want exactly maxCycles executions", len(results))
	}
}

// 触发器可以放宽周期数，但不能超过绝对上限。
func TestCycleBudget(t *testing.T) {
	controller := newTestController(testAgent("x"), testCatalog(), nil, newScriptedExecutor())

	if got := controller.cycleBudget(agent.Trigger{}); got != DefaultMaxCycles {
		t.Fatalf("default budget = %d", got)
	}
	if got := controller.cycleBudget(agent.Trigger{MaxCycles: 8}); got != 8 {
		t.Fatalf("trigger budget = %d", got)
	}
	if got := controller.cycleBudget(agent.Trigger{MaxCycles: 99}); got != CycleCeiling {
		t.Fatalf("budget above ceiling = %d, want %d", got, CycleCeiling)
	}
}

// loopingPlanner 每次规划都坚持再读一次余额。
type loopingPlanner struct{}

func (p *loopingPlanner) Plan(context.Context, llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: `{"function_name":"balanceOf","parameters":{},"message":"again"}`}, nil
}
