package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/llm"
)

func TestAnalyzeStateBalanceCheckFirst(t *testing.T) {
	planner := &stubPlanner{}
	engine := NewDecision(planner)
	ag := testAgent("mint 5000000 tokens to " + testMintAddr + " if balance less than 5")

	actions := engine.AnalyzeState(context.Background(), ag, testCatalog(), agent.Trigger{Type: agent.TriggerManual})
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions))
	}
	if actions[0].FunctionName != "balanceOf" {
		t.Fatalf("function = %s, want balanceOf", actions[0].FunctionName)
	}
	if actions[0].Params["account"] != testOwner {
		t.Fatalf("account = %v, want owner", actions[0].Params["account"])
	}
	if planner.calls != 0 {
		t.Fatal("deterministic rule must not consult the model")
	}
}

func TestAnalyzeStateDirectMint(t *testing.T) {
	planner := &stubPlanner{}
	engine := NewDecision(planner)
	ag := testAgent("mint 100 tokens to " + testMintAddr)

	actions := engine.AnalyzeState(context.Background(), ag, testCatalog(), agent.Trigger{Type: agent.TriggerManual})
	if len(actions) != 1 || actions[0].FunctionName != "mint" {
		t.Fatalf("unexpected actions %+v", actions)
	}
	if actions[0].Params["to"] != testMintAddr {
		t.Fatalf("to = %v", actions[0].Params["to"])
	}
	if planner.calls != 0 {
		t.Fatal("deterministic rule must not consult the model")
	}
}

func TestAnalyzeStateFallsBackToModel(t *testing.T) {
	planner := &stubPlanner{
		resp: &llm.Response{ToolCalls: []llm.ToolCall{{
			Name:      toolExecuteFunction,
			Arguments: json.RawMessage(`{"function_name":"balanceOf","message":"inspect"}`),
		}}},
	}
	engine := NewDecision(planner)
	ag := testAgent("keep an eye on the treasury and act sensibly")

	actions := engine.AnalyzeState(context.Background(), ag, testCatalog(), agent.Trigger{Type: agent.TriggerScheduled})
	if planner.calls != 1 {
		t.Fatalf("planner calls = %d, want 1", planner.calls)
	}
	if len(actions) != 1 || actions[0].FunctionName != "balanceOf" {
		t.Fatalf("unexpected actions %+v", actions)
	}
	if !strings.Contains(planner.last.User, "Function catalog") {
		t.Fatal("request must include the function catalog")
	}
	if strings.Contains(planner.last.User, `"burn"`) {
		t.Fatal("disabled functions must not be offered to the model")
	}
}

func TestAnalyzeStateModelFailureYieldsEmpty(t *testing.T) {
	planner := &stubPlanner{err: errors.New("provider down")}
	engine := NewDecision(planner)
	ag := testAgent("keep an eye on the treasury")

	actions := engine.AnalyzeState(context.Background(), ag, testCatalog(), agent.Trigger{Type: agent.TriggerScheduled})
	if len(actions) != 0 {
		t.Fatalf("model failure must degrade to no actions, got %+v", actions)
	}
}

func TestAnalyzeStateUsesTriggerParams(t *testing.T) {
	engine := NewDecision(nil)
	ag := testAgent("mint tokens to the requested address")
	trigger := agent.Trigger{
		Type: agent.TriggerWebSocket,
		ExtractedParams: map[string]any{
			"address": testMintAddr,
			"amount":  "250",
		},
	}

	actions := engine.AnalyzeState(context.Background(), ag, testCatalog(), trigger)
	if len(actions) != 1 || actions[0].FunctionName != "mint" {
		t.Fatalf("unexpected actions %+v", actions)
	}
	if actions[0].Params["to"] != testMintAddr || actions[0].Params["amount"] != "250" {
		t.Fatalf("params = %v", actions[0].Params)
	}
}
