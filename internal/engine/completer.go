package engine

import (
	"regexp"
	"strings"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/internal/agent/parser"
)

// 参数补全只填充缺失的键，上游引擎已给出的值永远不被覆盖。

var (
	addressParamNames = map[string]bool{
		"to": true, "account": true, "owner": true, "recipient": true,
	}
	amountParamNames = map[string]bool{
		"amount": true, "value": true, "quantity": true,
	}
	trueKeywordRe  = regexp.MustCompile(`\b(?:true|enabled?|activate|yes|on)\b`)
	falseKeywordRe = regexp.MustCompile(`\b(?:false|disabled?|deactivate|no|off)\b`)
)

// CompleteParams 依据函数 ABI 与描述抽取结果补全缺失的参数。
func CompleteParams(fn agent.Function, extraction parser.Extraction, description string, params map[string]any) map[string]any {
	completed := agent.CloneParams(params)
	if completed == nil {
		completed = make(map[string]any)
	}

	for _, param := range fn.ABI {
		if _, exists := completed[param.Name]; exists {
			continue
		}
		lowered := strings.ToLower(param.Name)
		switch {
		case param.Type == "address" && addressParamNames[lowered]:
			if addr := extraction.FirstAddress(); addr != "" {
				completed[param.Name] = addr
			}
		case isIntegerType(param.Type) && amountParamNames[lowered]:
			if amount := amountForFunction(fn.Name, extraction); amount != "" {
				completed[param.Name] = amount
			}
		case param.Type == "bool":
			if value, ok := boolNear(description, param.Name); ok {
				completed[param.Name] = value
			}
		}
	}
	return completed
}

// amountForFunction 返回应填入的数量。约定：名为 mint 的函数在存在
// 多个数量时取第二个，其余函数取第一个。
func amountForFunction(functionName string, extraction parser.Extraction) string {
	if strings.EqualFold(functionName, "mint") && len(extraction.Amounts) > 1 {
		return extraction.AmountAt(1)
	}
	return extraction.AmountAt(0)
}

func isIntegerType(abiType string) bool {
	return strings.HasPrefix(abiType, "uint") || strings.HasPrefix(abiType, "int")
}

// boolNear 在参数名附近寻找布尔同义词，取距离最近者。
func boolNear(description, paramName string) (bool, bool) {
	lowered := strings.ToLower(description)
	idx := strings.Index(lowered, strings.ToLower(paramName))
	if idx < 0 {
		return false, false
	}

	windowStart := idx - 48
	if windowStart < 0 {
		windowStart = 0
	}
	windowEnd := idx + len(paramName) + 48
	if windowEnd > len(lowered) {
		windowEnd = len(lowered)
	}
	window := lowered[windowStart:windowEnd]
	center := idx - windowStart

	best := -1
	var bestValue bool
	scan := func(re *regexp.Regexp, value bool) {
		for _, loc := range re.FindAllStringIndex(window, -1) {
			distance := loc[0] - center
			if distance < 0 {
				distance = -distance
			}
			if best < 0 || distance < best {
				best = distance
				bestValue = value
			}
		}
	}
	scan(trueKeywordRe, true)
	scan(falseKeywordRe, false)

	if best < 0 {
		return false, false
	}
	return bestValue, true
}
