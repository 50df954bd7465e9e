package engine

import (
	"encoding/json"
	"testing"

	"zephyrus-agent/internal/llm"
)

func TestParseActionsSingleToolCall(t *testing.T) {
	resp := &llm.Response{
		ToolCalls: []llm.ToolCall{{
			Name:      toolExecuteFunction,
			Arguments: json.RawMessage(`{"function_name":"mint","parameters":{"to":"` + testMintAddr + `","amount":"100"},"message":"mint it"}`),
		}},
	}

	actions := ParseActions(resp, testCatalog())
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions))
	}
	if actions[0].FunctionName != "mint" || actions[0].Message != "mint it" {
		t.Fatalf("unexpected action %+v", actions[0])
	}
	if actions[0].Params["amount"] != "100" {
		t.Fatalf("amount = %v", actions[0].Params["amount"])
	}
}

func TestParseActionsBatchToolCall(t *testing.T) {
	resp := &llm.Response{
		ToolCalls: []llm.ToolCall{{
			Name: toolExecuteFunctions,
			Arguments: json.RawMessage(`{"functions":[
				{"function_name":"balanceOf","parameters":{"account":"` + testOwner + `"}},
				{"function_name":"mint","parameters":{"to":"` + testMintAddr + `"},"message":"top up"}
			]}`),
		}},
	}

	actions := ParseActions(resp, testCatalog())
	if len(actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(actions))
	}
	if actions[0].FunctionName != "balanceOf" || actions[1].FunctionName != "mint" {
		t.Fatalf("unexpected order: %+v", actions)
	}
	if actions[0].Message == "" {
		t.Fatal("missing message must be synthesized")
	}
}

func TestParseActionsEmbeddedJSON(t *testing.T) {
	resp := &llm.Response{
		Content: "Here is my plan: {\"function_name\":\"balanceOf\",\"parameters\":{\"account\":\"" + testOwner + "\"}} done.",
	}

	actions := ParseActions(resp, testCatalog())
	if len(actions) != 1 || actions[0].FunctionName != "balanceOf" {
		t.Fatalf("unexpected actions %+v", actions)
	}
}

func TestParseActionsEmbeddedBatchJSON(t *testing.T) {
	resp := &llm.Response{
		Content: `I will run these: {"functions":[{"function_name":"balanceOf"},{"function_name":"mint"}]}`,
	}

	actions := ParseActions(resp, testCatalog())
	if len(actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(actions))
	}
}

func TestParseActionsRegexFallback(t *testing.T) {
	resp := &llm.Response{
		Content: "You should call mint for " + testMintAddr + " right away.",
	}

	actions := ParseActions(resp, testCatalog())
	if len(actions) != 1 || actions[0].FunctionName != "mint" {
		t.Fatalf("unexpected actions %+v", actions)
	}
	if actions[0].Params["to"] != testMintAddr {
		t.Fatalf("to = %v, want nearby address", actions[0].Params["to"])
	}
}

func TestParseActionsDropsUnknownAndDisabled(t *testing.T) {
	resp := &llm.Response{
		ToolCalls: []llm.ToolCall{
			{Name: toolExecuteFunction, Arguments: json.RawMessage(`{"function_name":"selfDestruct"}`)},
			{Name: toolExecuteFunction, Arguments: json.RawMessage(`{"function_name":"burn"}`)},
			{Name: toolExecuteFunction, Arguments: json.RawMessage(`{"function_name":"mint"}`)},
		},
	}

	actions := ParseActions(resp, testCatalog())
	if len(actions) != 1 || actions[0].FunctionName != "mint" {
		t.Fatalf("unknown and disabled functions must be dropped, got %+v", actions)
	}
}

func TestParseActionsNilAndEmpty(t *testing.T) {
	if actions := ParseActions(nil, testCatalog()); len(actions) != 0 {
		t.Fatalf("nil response must yield no actions, got %+v", actions)
	}
	if actions := ParseActions(&llm.Response{Content: "no plan today"}, testCatalog()); len(actions) != 0 {
		t.Fatalf("irrelevant text must yield no actions, got %+v", actions)
	}
}
