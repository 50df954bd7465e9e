package engine

import (
	"testing"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/agent/parser"
)

func TestCompleteParamsFillsAddressAndAmount(t *testing.T) {
	fn := agent.Function{
		Name: "transfer",
		ABI: []agent.Param{
			{Name: "to", Type: "address"},
			{Name: "amount", Type: "uint256"},
		},
	}
	extraction := parser.Extraction{
		Addresses: []string{testMintAddr},
		Amounts:   []string{"100"},
	}

	params := CompleteParams(fn, extraction, "", nil)
	if params["to"] != testMintAddr {
		t.Fatalf("to = %v, want %s", params["to"], testMintAddr)
	}
	if params["amount"] != "100" {
		t.Fatalf("amount = %v, want 100", params["amount"])
	}
}

func TestCompleteParamsMintTakesSecondAmount(t *testing.T) {
	fn := agent.Function{
		Name: "mint",
		ABI: []agent.Param{
			{Name: "to", Type: "address"},
			{Name: "amount", Type: "uint256"},
		},
	}
	extraction := parser.Extraction{
		Addresses: []string{testMintAddr},
		Amounts:   []string{"5000000", "5"},
	}

	params := CompleteParams(fn, extraction, "", nil)
	if params["amount"] != "5" {
		t.Fatalf("amount = %v, want second extracted amount", params["amount"])
	}
}

func TestCompleteParamsNeverOverwrites(t *testing.T) {
	fn := agent.Function{
		Name: "transfer",
		ABI: []agent.Param{
			{Name: "to", Type: "address"},
			{Name: "amount", Type: "uint256"},
		},
	}
	extraction := parser.Extraction{
		Addresses: []string{testMintAddr},
		Amounts:   []string{"100"},
	}
	given := map[string]any{"to": testOwner}

	params := CompleteParams(fn, extraction, "", given)
	if params["to"] != testOwner {
		t.Fatalf("to = %v, existing value must be kept", params["to"])
	}
	if given["amount"] != nil {
		t.Fatal("input map must not be mutated")
	}
}

func TestCompleteParamsBoolFromDescription(t *testing.T) {
	fn := agent.Function{
		Name: "setPaused",
		ABI:  []agent.Param{{Name: "paused", Type: "bool"}},
	}

	params := CompleteParams(fn, parser.Extraction{}, "set paused to true when triggered", nil)
	if params["paused"] != true {
		t.Fatalf("paused = %v, want true", params["paused"])
	}

	params = CompleteParams(fn, parser.Extraction{}, "keep paused disabled at all times", nil)
	if params["paused"] != false {
		t.Fatalf("paused = %v, want false", params["paused"])
	}

	params = CompleteParams(fn, parser.Extraction{}, "nothing relevant here", nil)
	if _, ok := params["paused"]; ok {
		t.Fatal("paused must stay unset without a nearby keyword")
	}
}

func TestCompleteParamsIgnoresUnrelatedNames(t *testing.T) {
	fn := agent.Function{
		Name: "approve",
		ABI: []agent.Param{
			{Name: "spender", Type: "address"},
			{Name: "deadline", Type: "uint256"},
		},
	}
	extraction := parser.Extraction{
		Addresses: []string{testMintAddr},
		Amounts:   []string{"100"},
	}

	params := CompleteParams(fn, extraction, "", nil)
	if len(params) != 0 {
		t.Fatalf("params = %v, unrelated names must not be filled", params)
	}
}
