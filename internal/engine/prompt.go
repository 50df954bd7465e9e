package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/llm"
)

// 提示词与工具定义。决策引擎使用单动作工具，反思引擎使用批量工具。

const decisionSystemPrompt = `You are an autonomous smart-contract agent planner.
You receive the agent description, its current contract state, the trigger that
woke it up, and the catalog of callable contract functions with their ABIs.
Decide which contract function to call next. Always respond through the
execute_contract_function tool. Only use functions from the catalog. Reads
before writes when a condition must be checked first.`

const reflectionSystemPrompt = `You are an autonomous smart-contract agent reviewing
the results of the actions it just executed. You receive the agent description,
the trigger, the function catalog and the full execution history of this run.
Decide which contract functions, if any, still need to be called to satisfy the
description. Respond through the execute_contract_functions tool with the full
remaining batch, or with an empty functions list when nothing is pending. Never
repeat a write that already succeeded for the same target.`

func singleActionTool() llm.Tool {
	return llm.Tool{
		Name:        toolExecuteFunction,
		Description: "Execute one contract function on behalf of the agent.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"function_name": map[string]any{
					"type":        "string",
					"description": "Name of the contract function to call.",
				},
				"parameters": map[string]any{
					"type":        "object",
					"description": "Arguments keyed by ABI parameter name.",
				},
				"message": map[string]any{
					"type":        "string",
					"description": "Short human-readable reason for the call.",
				},
			},
			"required": []string{"function_name", "message"},
		},
	}
}

func batchActionTool() llm.Tool {
	single := singleActionTool()
	return llm.Tool{
		Name:        toolExecuteFunctions,
		Description: "Execute a batch of contract functions, in order.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"functions": map[string]any{
					"type":  "array",
					"items": single.Parameters,
				},
			},
			"required": []string{"functions"},
		},
	}
}

func buildDecisionRequest(ag *agent.Agent, catalog agent.Catalog, trigger agent.Trigger) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Agent description:\n%s\n\n", ag.Description)
	fmt.Fprintf(&b, "Contract state:\n%s\n\n", marshalSection(ag.ContractState))
	fmt.Fprintf(&b, "Trigger:\n%s\n\n", marshalSection(trigger))
	fmt.Fprintf(&b, "Function catalog:\n%s\n", marshalSection(catalogSummary(catalog)))
	return llm.Request{
		System: decisionSystemPrompt,
		User:   b.String(),
		Tools:  []llm.Tool{singleActionTool()},
	}
}

func buildReflectionRequest(ag *agent.Agent, catalog agent.Catalog, trigger agent.Trigger, history []agent.HistoryEntry) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Agent description:\n%s\n\n", ag.Description)
	fmt.Fprintf(&b, "Trigger:\n%s\n\n", marshalSection(trigger))
	fmt.Fprintf(&b, "Function catalog:\n%s\n\n", marshalSection(catalogSummary(catalog)))
	fmt.Fprintf(&b, "Execution history:\n%s\n", marshalSection(history))
	return llm.Request{
		System: reflectionSystemPrompt,
		User:   b.String(),
		Tools:  []llm.Tool{batchActionTool()},
	}
}

// catalogSummary 只暴露启用函数的必要字段，避免提示词里混入内部状态。
func catalogSummary(catalog agent.Catalog) []map[string]any {
	enabled := catalog.Enabled()
	summary := make([]map[string]any, 0, len(enabled))
	for _, fn := range enabled {
		summary = append(summary, map[string]any{
			"name": fn.Name,
			"type": string(fn.Type),
			"abi":  fn.ABI,
		})
	}
	return summary
}

func marshalSection(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
