package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/llm"
)

func balanceRead(data any) agent.HistoryEntry {
	return agent.HistoryEntry{
		Action: agent.Action{
			FunctionName: "balanceOf",
			Params:       map[string]any{"account": testOwner},
		},
		Result: &agent.ExecutionResult{Success: true, Data: data},
	}
}

func mintEntry(to string) agent.HistoryEntry {
	return agent.HistoryEntry{
		Action: agent.Action{
			FunctionName: "mint",
			Params:       map[string]any{"to": to, "amount": "5000000"},
		},
		Result: &agent.ExecutionResult{Success: true, TransactionHash: "0xfeed"},
	}
}

func TestAnalyzeResultsMintsBelowThreshold(t *testing.T) {
	planner := &stubPlanner{}
	engine := NewReflection(planner)
	ag := testAgent("mint 5000000 tokens to " + testMintAddr + " if balance less than 5")
	history := []agent.HistoryEntry{balanceRead("0")}

	actions := engine.AnalyzeResults(context.Background(), ag, testCatalog(), agent.Trigger{}, history)
	if len(actions) != 1 || actions[0].FunctionName != "mint" {
		t.Fatalf("unexpected actions %+v", actions)
	}
	if actions[0].Params["to"] != testMintAddr {
		t.Fatalf("to = %v", actions[0].Params["to"])
	}
	if actions[0].Params["amount"] != "5000000" {
		t.Fatalf("amount = %v, want description amount", actions[0].Params["amount"])
	}
	if planner.calls != 0 {
		t.Fatal("threshold rule must not consult the model")
	}
}

func TestAnalyzeResultsNoMintAboveThreshold(t *testing.T) {
	engine := NewReflection(&stubPlanner{err: errors.New("unused")})
	ag := testAgent("mint 5000000 tokens to " + testMintAddr + " if balance less than 5")
	history := []agent.HistoryEntry{balanceRead("9")}

	actions := engine.AnalyzeResults(context.Background(), ag, testCatalog(), agent.Trigger{}, history)
	if len(actions) != 0 {
		t.Fatalf("balance above threshold must end the run, got %+v", actions)
	}
}

// 链服务返回十六进制编码的余额时同样参与阈值比较。
func TestAnalyzeResultsHexBalance(t *testing.T) {
	engine := NewReflection(&stubPlanner{err: errors.New("unused")})
	ag := testAgent("mint 5000000 tokens to " + testMintAddr + " if balance less than 5")

	// 0x4c4b40 = 5000000，高于阈值。
	actions := engine.AnalyzeResults(context.Background(), ag, testCatalog(), agent.Trigger{},
		[]agent.HistoryEntry{balanceRead("0x4c4b40")})
	if len(actions) != 0 {
		t.Fatalf("hex balance above threshold must end the run, got %+v", actions)
	}

	actions = engine.AnalyzeResults(context.Background(), ag, testCatalog(), agent.Trigger{},
		[]agent.HistoryEntry{balanceRead("0x0")})
	if len(actions) != 1 || actions[0].FunctionName != "mint" {
		t.Fatalf("hex zero balance must trigger the mint, got %+v", actions)
	}
}

func TestAnalyzeResultsRecheckAfterMint(t *testing.T) {
	engine := NewReflection(&stubPlanner{err: errors.New("unused")})
	ag := testAgent("mint 5000000 tokens to " + testMintAddr + " if balance less than 5")
	history := []agent.HistoryEntry{
		balanceRead("0"),
		mintEntry(testMintAddr),
	}

	actions := engine.AnalyzeResults(context.Background(), ag, testCatalog(), agent.Trigger{}, history)
	if len(actions) != 1 || actions[0].FunctionName != "balanceOf" {
		t.Fatalf("want a balance re-check, got %+v", actions)
	}
	if actions[0].Params["account"] != testOwner {
		t.Fatalf("re-check must reuse the original read params, got %v", actions[0].Params)
	}
}

func TestAnalyzeResultsNeverMintsTwice(t *testing.T) {
	engine := NewReflection(&stubPlanner{err: errors.New("unused")})
	ag := testAgent("mint 5000000 tokens to " + testMintAddr + " if balance less than 5")
	history := []agent.HistoryEntry{
		balanceRead("0"),
		mintEntry(testMintAddr),
		balanceRead("0"),
		balanceRead("0"),
	}

	actions := engine.AnalyzeResults(context.Background(), ag, testCatalog(), agent.Trigger{}, history)
	for _, action := range actions {
		if action.FunctionName == "mint" {
			t.Fatalf("mint must not repeat after a confirmed re-check: %+v", actions)
		}
	}
}

func TestAnalyzeResultsPendingReadFromDescription(t *testing.T) {
	engine := NewReflection(&stubPlanner{})
	catalog := append(testCatalog(), agent.Function{
		ID:      "fn-domain",
		Name:    "DOMAIN_SEPARATOR",
		Type:    agent.FunctionRead,
		Enabled: true,
	})
	ag := testAgent("read DOMAIN_SEPARATOR and report it")

	actions := engine.AnalyzeResults(context.Background(), ag, catalog, agent.Trigger{}, nil)
	if len(actions) != 1 || actions[0].FunctionName != "DOMAIN_SEPARATOR" {
		t.Fatalf("unexpected actions %+v", actions)
	}

	history := []agent.HistoryEntry{{
		Action: actions[0],
		Result: &agent.ExecutionResult{Success: true, Data: "0xbeef"},
	}}
	again := engine.AnalyzeResults(context.Background(), ag, catalog, agent.Trigger{}, history)
	for _, action := range again {
		if action.FunctionName == "DOMAIN_SEPARATOR" {
			t.Fatal("pending read must not repeat once executed")
		}
	}
}

func TestAnalyzeResultsPendingMintTarget(t *testing.T) {
	engine := NewReflection(&stubPlanner{})
	ag := testAgent("mint 100 tokens to " + testMintAddr)

	actions := engine.AnalyzeResults(context.Background(), ag, testCatalog(), agent.Trigger{}, nil)
	if len(actions) != 1 || actions[0].FunctionName != "mint" {
		t.Fatalf("unexpected actions %+v", actions)
	}

	history := []agent.HistoryEntry{mintEntry(testMintAddr)}
	again := engine.AnalyzeResults(context.Background(), ag, testCatalog(), agent.Trigger{}, history)
	if len(again) != 0 {
		t.Fatalf("minted target must not come back as pending, got %+v", again)
	}
}

func TestAnalyzeResultsModelFallbackBatch(t *testing.T) {
	planner := &stubPlanner{
		resp: &llm.Response{ToolCalls: []llm.ToolCall{{
			Name:      toolExecuteFunctions,
			Arguments: json.RawMessage(`{"functions":[{"function_name":"balanceOf","message":"verify"}]}`),
		}}},
	}
	engine := NewReflection(planner)
	ag := testAgent("keep the treasury healthy")
	history := []agent.HistoryEntry{mintEntry(testMintAddr)}

	actions := engine.AnalyzeResults(context.Background(), ag, testCatalog(), agent.Trigger{}, history)
	if planner.calls != 1 {
		t.Fatalf("planner calls = %d, want 1", planner.calls)
	}
	if len(actions) != 1 || actions[0].FunctionName != "balanceOf" {
		t.Fatalf("unexpected actions %+v", actions)
	}
}

func TestAnalyzeResultsModelFailureReturnsPending(t *testing.T) {
	engine := NewReflection(&stubPlanner{err: errors.New("provider down")})
	ag := testAgent("keep the treasury healthy")
	history := []agent.HistoryEntry{mintEntry(testMintAddr)}

	actions := engine.AnalyzeResults(context.Background(), ag, testCatalog(), agent.Trigger{}, history)
	if len(actions) != 0 {
		t.Fatalf("model failure must fall back to pending tasks, got %+v", actions)
	}
}
