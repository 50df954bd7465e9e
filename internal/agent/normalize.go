package agent

import (
	"fmt"
	"strings"

	xerrors "zephyrus-agent/internal/errors"
)

// 目录服务历史上同时返回过 camelCase 与 snake_case 两种键名。
// 统一在本文件的边界适配里消解，下游只见到类型化结构体。

// AgentFromMap 将目录服务返回的原始对象归一化为 Agent。
// 缺失 agentId 或 contractId 视为配置错误。
func AgentFromMap(data map[string]any) (*Agent, error) {
	if data == nil {
		return nil, xerrors.New(xerrors.CodeConfiguration, "智能体数据为空")
	}
	ag := &Agent{
		ID:             pickString(data, "agentId", "agent_id"),
		ContractID:     pickString(data, "contractId", "contract_id"),
		Name:           pickString(data, "name"),
		Description:    pickString(data, "description"),
		Status:         pickString(data, "status"),
		GasLimit:       pickString(data, "gasLimit", "gas_limit"),
		MaxPriorityFee: pickString(data, "maxPriorityFee", "max_priority_fee"),
		Owner:          pickString(data, "owner"),
		ContractState:  pickMap(data, "contractState", "contract_state"),
		CreatedAt:      pickString(data, "createdAt", "created_at"),
		UpdatedAt:      pickString(data, "updatedAt", "updated_at"),
	}
	if ag.ID == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "智能体缺少 agentId")
	}
	if ag.ContractID == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("智能体 %s 缺少 contractId", ag.ID))
	}
	return ag, nil
}

// FunctionFromMap 将目录服务返回的原始对象归一化为 Function。
func FunctionFromMap(data map[string]any) (*Function, error) {
	if data == nil {
		return nil, xerrors.New(xerrors.CodeConfiguration, "函数数据为空")
	}
	fn := &Function{
		ID:              pickString(data, "functionId", "function_id"),
		AgentID:         pickString(data, "agentId", "agent_id"),
		Name:            pickString(data, "functionName", "function_name"),
		Signature:       pickString(data, "functionSignature", "function_signature"),
		Type:            FunctionType(strings.ToLower(pickString(data, "functionType", "function_type"))),
		Enabled:         pickBool(data, true, "isEnabled", "is_enabled"),
		ValidationRules: pickMap(data, "validationRules", "validation_rules"),
		ABI:             pickParams(data, "abi"),
	}
	if fn.Name == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "函数缺少 functionName")
	}
	switch fn.Type {
	case FunctionRead, FunctionWrite, FunctionPayable:
	default:
		return nil, xerrors.New(xerrors.CodeConfiguration,
			fmt.Sprintf("函数 %s 的类型 %q 不受支持", fn.Name, fn.Type))
	}
	return fn, nil
}

// ContractFromMap 将目录服务返回的原始对象归一化为 Contract。
func ContractFromMap(data map[string]any) (*Contract, error) {
	if data == nil {
		return nil, xerrors.New(xerrors.CodeConfiguration, "合约数据为空")
	}
	// 个别接口会把合约包在单元素数组里返回。
	if wrapped, ok := data["contract"].(map[string]any); ok {
		data = wrapped
	}
	contract := &Contract{
		ID:      pickString(data, "contractId", "contract_id"),
		Name:    pickString(data, "name"),
		Address: pickString(data, "address", "contractAddress", "contract_address"),
		ABI:     pickABI(data, "abi"),
	}
	if contract.Address == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "合约缺少 address")
	}
	return contract, nil
}

// ScheduleFromMap 将目录服务返回的原始对象归一化为 Schedule。
func ScheduleFromMap(data map[string]any) *Schedule {
	if data == nil {
		return nil
	}
	return &Schedule{
		ID:             pickString(data, "scheduleId", "schedule_id"),
		AgentID:        pickString(data, "agentId", "agent_id"),
		Type:           pickString(data, "scheduleType", "schedule_type"),
		CronExpression: pickString(data, "cronExpression", "cron_expression"),
		Active:         pickBool(data, true, "isActive", "is_active"),
		NextExecution:  pickString(data, "nextExecution", "next_execution"),
	}
}

func pickString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if raw, ok := data[key]; ok {
			switch v := raw.(type) {
			case string:
				if v != "" {
					return v
				}
			case fmt.Stringer:
				return v.String()
			case float64:
				return fmt.Sprintf("%v", v)
			}
		}
	}
	return ""
}

func pickBool(data map[string]any, fallback bool, keys ...string) bool {
	for _, key := range keys {
		if raw, ok := data[key]; ok {
			if b, ok := raw.(bool); ok {
				return b
			}
		}
	}
	return fallback
}

func pickMap(data map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if raw, ok := data[key]; ok {
			if m, ok := raw.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// pickParams 解析函数级 ABI 的有序参数表。支持两种历史形态：
// 直接的参数数组，或带 inputs 字段的单函数 ABI 对象。
func pickParams(data map[string]any, key string) []Param {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil
	}
	if obj, ok := raw.(map[string]any); ok {
		if inputs, ok := obj["inputs"].([]any); ok {
			return paramsFromList(inputs)
		}
		return nil
	}
	if list, ok := raw.([]any); ok {
		return paramsFromList(list)
	}
	return nil
}

func paramsFromList(list []any) []Param {
	params := make([]Param, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		params = append(params, Param{
			Name: pickString(entry, "name", "paramName", "param_name"),
			Type: pickString(entry, "type", "paramType", "param_type"),
		})
	}
	return params
}

// pickABI 解析合约级 ABI。裸的单函数对象会被包装成数组。
func pickABI(data map[string]any, key string) []map[string]any {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case []any:
		abi := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if entry, ok := item.(map[string]any); ok {
				abi = append(abi, entry)
			}
		}
		return abi
	case []map[string]any:
		return v
	case map[string]any:
		return []map[string]any{v}
	default:
		return nil
	}
}
