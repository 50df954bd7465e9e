package engine

import (
	"context"
	"log/slog"
	"strings"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/agent/parser"
	"zephyrus-agent/internal/llm"
	"zephyrus-agent/pkg/logger"
)

// Decision 决策引擎：优先走描述驱动的确定性规则，规则覆盖不了的
// 场景才咨询模型。任何失败都不向外抛错，最多退回空动作列表。
type Decision struct {
	client llm.Client
	log    *slog.Logger
}

// NewDecision 创建决策引擎。client 可以为 nil，此时只剩确定性规则。
func NewDecision(client llm.Client) *Decision {
	return &Decision{
		client: client,
		log:    logger.Named("engine.decision"),
	}
}

// AnalyzeState 根据智能体当前状态规划首批动作。
func (d *Decision) AnalyzeState(ctx context.Context, ag *agent.Agent, catalog agent.Catalog, trigger agent.Trigger) []agent.Action {
	extraction := d.extraction(ag, trigger)

	if actions := d.heuristicActions(ag, catalog, extraction); len(actions) > 0 {
		d.log.Debug("确定性规则命中", "agentId", ag.ID, "actions", len(actions))
		return actions
	}

	if d.client == nil {
		return nil
	}
	resp, err := d.client.Plan(ctx, buildDecisionRequest(ag, catalog, trigger))
	if err != nil {
		d.log.Warn("模型规划失败，退回确定性规则", "agentId", ag.ID, "error", err)
		return nil
	}
	return ParseActions(resp, catalog)
}

// extraction 优先使用触发器携带的抽取结果，否则现场解析描述。
func (d *Decision) extraction(ag *agent.Agent, trigger agent.Trigger) parser.Extraction {
	if len(trigger.ExtractedParams) > 0 {
		return extractionFromParams(trigger.ExtractedParams, ag.Description)
	}
	return parser.Extract(ag.Description)
}

// heuristicActions 实现两条确定性规则：
//  1. 描述要求先查余额时，规划一次 balance 读调用；
//  2. 描述只要求铸币且不要求先查时，直接规划 mint。
func (d *Decision) heuristicActions(ag *agent.Agent, catalog agent.Catalog, extraction parser.Extraction) []agent.Action {
	wantsBalance := extraction.Behaviors.Has(parser.BehaviorCheck) || extraction.Behaviors.Has(parser.BehaviorBalance)
	wantsMint := extraction.Behaviors.Has(parser.BehaviorMint)

	if wantsBalance {
		if fn := findEnabled(catalog, "balance", agent.FunctionRead); fn != nil {
			params := make(map[string]any)
			for _, param := range fn.ABI {
				if param.Type == "address" {
					params[param.Name] = ag.Owner
				}
			}
			return []agent.Action{{
				FunctionName: fn.Name,
				Params:       params,
				Message:      "先读取余额，确认是否满足执行条件",
			}}
		}
	}

	if wantsMint && !wantsBalance {
		if fn := findEnabled(catalog, "mint", ""); fn != nil {
			params := CompleteParams(*fn, extraction, ag.Description, nil)
			return []agent.Action{{
				FunctionName: fn.Name,
				Params:       params,
				Message:      "按描述直接执行铸币",
			}}
		}
	}
	return nil
}

// findEnabled 在目录里找名字包含关键字的启用函数，可选按类型过滤。
func findEnabled(catalog agent.Catalog, keyword string, fnType agent.FunctionType) *agent.Function {
	for _, fn := range catalog.Enabled() {
		if !strings.Contains(strings.ToLower(fn.Name), keyword) {
			continue
		}
		if fnType != "" && fn.Type != fnType {
			continue
		}
		found := fn
		return &found
	}
	return nil
}

// extractionFromParams 把触发器预抽取的参数还原成抽取结果，行为与
// 条件仍从描述解析，保证两条路径语义一致。
func extractionFromParams(params map[string]any, description string) parser.Extraction {
	base := parser.Extract(description)
	if addr, ok := params["address"].(string); ok && addr != "" {
		base.Addresses = prepend(base.Addresses, addr)
	}
	if amount, ok := params["amount"].(string); ok && amount != "" {
		base.Amounts = prepend(base.Amounts, amount)
	}
	return base
}

func prepend(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append([]string{value}, values...)
}
