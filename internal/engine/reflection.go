package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/agent/parser"
	"zephyrus-agent/internal/llm"
	"zephyrus-agent/pkg/logger"
)

// Reflection 反思引擎：对照描述与执行历史推导剩余动作。推导顺序为
// 待办任务、阈值规则、模型兜底；模型失败时退回待办任务结果。
type Reflection struct {
	client llm.Client
	log    *slog.Logger
}

// NewReflection 创建反思引擎。client 可以为 nil。
func NewReflection(client llm.Client) *Reflection {
	return &Reflection{
		client: client,
		log:    logger.Named("engine.reflection"),
	}
}

// AnalyzeResults 评估本周期的执行结果，返回下一批动作。返回空表示
// 运行可以结束。错误不外抛。
func (r *Reflection) AnalyzeResults(ctx context.Context, ag *agent.Agent, catalog agent.Catalog, trigger agent.Trigger, history []agent.HistoryEntry) []agent.Action {
	pending := r.pendingTasks(ag, catalog, trigger, history)
	if len(pending) > 0 && !trigger.CompleteAllTasks {
		r.log.Debug("存在待办任务", "agentId", ag.ID, "pending", len(pending))
		return pending
	}

	if actions := r.thresholdActions(ag, catalog, trigger, history); len(actions) > 0 {
		return actions
	}

	if r.client == nil {
		return pending
	}
	resp, err := r.client.Plan(ctx, buildReflectionRequest(ag, catalog, trigger, history))
	if err != nil {
		r.log.Warn("模型反思失败，退回待办任务", "agentId", ag.ID, "error", err)
		return pending
	}
	return ParseActions(resp, catalog)
}

// pendingTasks 从描述中推导还没执行过的任务：
//  1. 描述里点名、目录中启用的读函数，若历史中从未调用则补读；
//  2. 描述里出现的地址，若从未对其铸币则补一次 mint。
// 去重以函数名加目标地址为键，保证同一任务不会重复产出。
func (r *Reflection) pendingTasks(ag *agent.Agent, catalog agent.Catalog, trigger agent.Trigger, history []agent.HistoryEntry) []agent.Action {
	executed := make(map[string]bool, len(history))
	mintedTo := make(map[string]bool)
	for _, entry := range history {
		executed[entry.Action.FunctionName] = true
		if strings.Contains(strings.ToLower(entry.Action.FunctionName), "mint") {
			if to := addressParam(entry.Action.Params); to != "" {
				mintedTo[strings.ToLower(to)] = true
			}
		}
	}

	extraction := parser.Extract(ag.Description)
	var pending []agent.Action

	for _, fn := range catalog.Enabled() {
		if fn.Type != agent.FunctionRead || executed[fn.Name] {
			continue
		}
		if !strings.Contains(ag.Description, fn.Name) {
			continue
		}
		pending = append(pending, agent.Action{
			FunctionName: fn.Name,
			Params:       CompleteParams(fn, extraction, ag.Description, nil),
			Message:      fmt.Sprintf("描述要求读取 %s，补充执行", fn.Name),
		})
	}

	// 描述带有可解析的余额条件时，铸币由阈值规则接管，这里只补无条件
	// 的铸币目标，避免绕过条件直接增发。
	conditionGoverned := parser.Threshold(ag.Description) != "" &&
		(extraction.Behaviors.Has(parser.BehaviorBalance) || extraction.Behaviors.Has(parser.BehaviorCheck))

	mintFn := findEnabled(catalog, "mint", "")
	if mintFn != nil && !conditionGoverned && extraction.Behaviors.Has(parser.BehaviorMint) {
		for _, addr := range extraction.Addresses {
			if mintedTo[strings.ToLower(addr)] {
				continue
			}
			scoped := extraction
			scoped.Addresses = []string{addr}
			params := CompleteParams(*mintFn, scoped, ag.Description, nil)
			if amount := mintAmount(ag, trigger); amount != "" {
				params[amountParamName(*mintFn)] = amount
			}
			pending = append(pending, agent.Action{
				FunctionName: mintFn.Name,
				Params:       params,
				Message:      fmt.Sprintf("描述要求向 %s 铸币，尚未执行", addr),
			})
		}
	}
	return pending
}

// thresholdActions 实现余额阈值规则。最后一条历史是成功的余额读取
// 时比较观测值与阈值：低于阈值且本次运行尚未铸过币则铸币，否则结束。
// 最后一条是成功的铸币时补一次余额复核确认效果。整条规则保证一次
// 运行最多铸币一次，防止无限增发。
func (r *Reflection) thresholdActions(ag *agent.Agent, catalog agent.Catalog, trigger agent.Trigger, history []agent.HistoryEntry) []agent.Action {
	if len(history) == 0 {
		return nil
	}
	threshold := thresholdValue(ag, trigger)
	if threshold == nil {
		return nil
	}
	last := history[len(history)-1]
	if last.Result == nil || !last.Result.Success {
		return nil
	}
	lowered := strings.ToLower(last.Action.FunctionName)

	if strings.Contains(lowered, "mint") {
		if recheck := rereadBalance(catalog, history, "铸币已提交，再次读取余额确认效果"); recheck.FunctionName != "" {
			return []agent.Action{recheck}
		}
		return nil
	}
	if !strings.Contains(lowered, "balance") {
		return nil
	}
	observed := balanceValue(last.Result.Data)
	if observed == nil {
		return nil
	}
	if observed.Cmp(threshold) >= 0 {
		return nil
	}

	for _, entry := range history {
		if strings.Contains(strings.ToLower(entry.Action.FunctionName), "mint") {
			// 已铸过一次且复核仍低于阈值，交还上层终止。
			return nil
		}
	}

	mintFn := findEnabled(catalog, "mint", "")
	if mintFn == nil {
		return nil
	}
	extraction := parser.Extract(ag.Description)
	params := CompleteParams(*mintFn, extraction, ag.Description, nil)
	if amount := mintAmount(ag, trigger); amount != "" {
		params[amountParamName(*mintFn)] = amount
	} else {
		params[amountParamName(*mintFn)] = halfOf(threshold)
	}
	return []agent.Action{{
		FunctionName: mintFn.Name,
		Params:       params,
		Message:      fmt.Sprintf("余额 %s 低于阈值 %s，执行铸币", observed, threshold),
	}}
}

// mintAmount 取铸币数量：优先描述中明确写出的数量，其次触发器携带
// 的参数。
func mintAmount(ag *agent.Agent, trigger agent.Trigger) string {
	if amount := parser.MintAmount(ag.Description); amount != "" {
		return amount
	}
	if raw, ok := trigger.ExtractedParams["amount"].(string); ok && raw != "" {
		return raw
	}
	return ""
}

// thresholdValue 解析阈值：描述优先，触发器参数兜底。
func thresholdValue(ag *agent.Agent, trigger agent.Trigger) *big.Int {
	if raw := parser.Threshold(ag.Description); raw != "" {
		if v, ok := new(big.Int).SetString(raw, 10); ok {
			return v
		}
	}
	if raw, ok := trigger.ExtractedParams["threshold"].(string); ok {
		if v, ok := new(big.Int).SetString(raw, 10); ok {
			return v
		}
	}
	return nil
}

// balanceValue 从读调用结果里解析数值。链服务可能返回十进制或
// 0x 前缀的十六进制字符串、数字，或带 result 字段的对象。
func balanceValue(data any) *big.Int {
	switch v := data.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
			if n, err := hexutil.DecodeBig(trimmed); err == nil {
				return n
			}
			return nil
		}
		if n, ok := new(big.Int).SetString(trimmed, 10); ok {
			return n
		}
	case float64:
		n, _ := big.NewFloat(v).Int(nil)
		return n
	case int:
		return big.NewInt(int64(v))
	case int64:
		return big.NewInt(v)
	case map[string]any:
		for _, key := range []string{"result", "value", "balance", "data"} {
			if inner, ok := v[key]; ok {
				if n := balanceValue(inner); n != nil {
					return n
				}
			}
		}
	case []any:
		if len(v) > 0 {
			return balanceValue(v[0])
		}
	}
	return nil
}

// rereadBalance 构造一次余额复核动作，参数优先沿用历史中最近一次
// 余额读取。
func rereadBalance(catalog agent.Catalog, history []agent.HistoryEntry, message string) agent.Action {
	for i := len(history) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(history[i].Action.FunctionName), "balance") {
			return agent.Action{
				FunctionName: history[i].Action.FunctionName,
				Params:       agent.CloneParams(history[i].Action.Params),
				Message:      message,
			}
		}
	}
	if fn := findEnabled(catalog, "balance", agent.FunctionRead); fn != nil {
		return agent.Action{FunctionName: fn.Name, Params: map[string]any{}, Message: message}
	}
	return agent.Action{}
}

func halfOf(threshold *big.Int) string {
	half := new(big.Int).Rsh(threshold, 1)
	if half.Sign() == 0 {
		half = big.NewInt(1)
	}
	return half.String()
}

// addressParam 取动作参数里第一个形如地址的值。
func addressParam(params map[string]any) string {
	for _, key := range []string{"to", "recipient", "account", "owner"} {
		if raw, ok := params[key].(string); ok && strings.HasPrefix(raw, "0x") {
			return raw
		}
	}
	return ""
}

// amountParamName 返回函数 ABI 中数量参数的名字，默认 amount。
func amountParamName(fn agent.Function) string {
	for _, param := range fn.ABI {
		if isIntegerType(param.Type) && amountParamNames[strings.ToLower(param.Name)] {
			return param.Name
		}
	}
	return "amount"
}
