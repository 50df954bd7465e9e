package chain

import (
	"encoding/json"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"

	"zephyrus-agent/internal/agent"
)

// FunctionKind 根据合约级 ABI 判断函数的调用方式。
// view/pure 视为读函数，payable 需要附带转账，其余为写函数。
func FunctionKind(contractABI []map[string]any, name string) (agent.FunctionType, bool) {
	parsed, err := parseABI(contractABI)
	if err != nil {
		return "", false
	}
	method, ok := parsed.Methods[name]
	if !ok {
		return "", false
	}
	switch method.StateMutability {
	case "view", "pure":
		return agent.FunctionRead, true
	case "payable":
		return agent.FunctionPayable, true
	default:
		return agent.FunctionWrite, true
	}
}

// InputOrder 从合约级 ABI 解析指定函数的有序输入参数，
// 供函数级 ABI 缺失时回退使用。
func InputOrder(contractABI []map[string]any, name string) []agent.Param {
	parsed, err := parseABI(contractABI)
	if err != nil {
		return nil
	}
	method, ok := parsed.Methods[name]
	if !ok {
		return nil
	}
	params := make([]agent.Param, 0, len(method.Inputs))
	for _, input := range method.Inputs {
		params = append(params, agent.Param{
			Name: input.Name,
			Type: input.Type.String(),
		})
	}
	return params
}

// FunctionEntry 返回 ABI 中指定函数的条目，不存在时返回 nil。
func FunctionEntry(contractABI []map[string]any, name string) map[string]any {
	for _, item := range contractABI {
		kind, _ := item["type"].(string)
		if kind != "" && kind != "function" {
			continue
		}
		if itemName, _ := item["name"].(string); itemName == name {
			return item
		}
	}
	return nil
}

func parseABI(contractABI []map[string]any) (gethabi.ABI, error) {
	encoded, err := json.Marshal(contractABI)
	if err != nil {
		return gethabi.ABI{}, err
	}
	return gethabi.JSON(strings.NewReader(string(encoded)))
}
