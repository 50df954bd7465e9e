package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/llm"
)

// 模型输出解析：优先工具调用，其次正文中嵌入的 JSON，最后退化为
// 正则抽取。解析失败不报错，返回空动作列表。

const (
	toolExecuteFunction  = "execute_contract_function"
	toolExecuteFunctions = "execute_contract_functions"
)

var (
	jsonObjectRe   = regexp.MustCompile(`(?s)\{.*\}`)
	jsonArrayRe    = regexp.MustCompile(`(?s)\[.*\]`)
	fallbackAddrRe = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
)

// ParseActions 将一次模型回复解析为动作列表。不在目录中或被禁用的
// 函数名会被静默丢弃，message 缺失时自动合成。
func ParseActions(resp *llm.Response, catalog agent.Catalog) []agent.Action {
	if resp == nil {
		return nil
	}

	var actions []agent.Action
	for _, call := range resp.ToolCalls {
		actions = append(actions, actionsFromToolCall(call)...)
	}
	if len(actions) == 0 && resp.Content != "" {
		actions = actionsFromContent(resp.Content)
	}
	if len(actions) == 0 && resp.Content != "" {
		actions = actionsFromText(resp.Content, catalog)
	}

	filtered := make([]agent.Action, 0, len(actions))
	for _, action := range actions {
		if action.FunctionName == "" || catalog.Lookup(action.FunctionName) == nil {
			continue
		}
		if action.Message == "" {
			action.Message = fmt.Sprintf("执行合约函数 %s", action.FunctionName)
		}
		if action.Params == nil {
			action.Params = make(map[string]any)
		}
		filtered = append(filtered, action)
	}
	return filtered
}

func actionsFromToolCall(call llm.ToolCall) []agent.Action {
	switch call.Name {
	case toolExecuteFunction:
		if action, ok := decodeAction(call.Arguments); ok {
			return []agent.Action{action}
		}
	case toolExecuteFunctions:
		var batch struct {
			Functions []json.RawMessage `json:"functions"`
		}
		if err := json.Unmarshal(call.Arguments, &batch); err != nil {
			return nil
		}
		actions := make([]agent.Action, 0, len(batch.Functions))
		for _, raw := range batch.Functions {
			if action, ok := decodeAction(raw); ok {
				actions = append(actions, action)
			}
		}
		return actions
	}
	return nil
}

// actionsFromContent 从正文中提取嵌入的 JSON 动作。模型偶尔不用工具
// 而把结果写进文本，这里兜住这种形态。
func actionsFromContent(content string) []agent.Action {
	if raw := jsonObjectRe.FindString(content); raw != "" {
		var batch struct {
			Functions []json.RawMessage `json:"functions"`
		}
		if err := json.Unmarshal([]byte(raw), &batch); err == nil && len(batch.Functions) > 0 {
			actions := make([]agent.Action, 0, len(batch.Functions))
			for _, entry := range batch.Functions {
				if action, ok := decodeAction(entry); ok {
					actions = append(actions, action)
				}
			}
			if len(actions) > 0 {
				return actions
			}
		}
		if action, ok := decodeAction(json.RawMessage(raw)); ok {
			return []agent.Action{action}
		}
	}
	if raw := jsonArrayRe.FindString(content); raw != "" {
		var entries []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &entries); err == nil {
			actions := make([]agent.Action, 0, len(entries))
			for _, entry := range entries {
				if action, ok := decodeAction(entry); ok {
					actions = append(actions, action)
				}
			}
			if len(actions) > 0 {
				return actions
			}
		}
	}
	return nil
}

// actionsFromText 是最后的兜底：按目录里的函数名扫描正文，就近取
// 地址作为 to 参数。
func actionsFromText(content string, catalog agent.Catalog) []agent.Action {
	lowered := strings.ToLower(content)
	var actions []agent.Action
	for _, fn := range catalog.Enabled() {
		if !strings.Contains(lowered, strings.ToLower(fn.Name)) {
			continue
		}
		params := make(map[string]any)
		if addr := fallbackAddrRe.FindString(content); addr != "" {
			for _, param := range fn.ABI {
				if param.Type == "address" {
					params[param.Name] = addr
					break
				}
			}
		}
		actions = append(actions, agent.Action{FunctionName: fn.Name, Params: params})
	}
	return actions
}

func decodeAction(raw json.RawMessage) (agent.Action, bool) {
	var action agent.Action
	if err := json.Unmarshal(raw, &action); err != nil || action.FunctionName == "" {
		return agent.Action{}, false
	}
	return action, true
}
