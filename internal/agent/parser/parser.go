// Package parser 从智能体的自由文本描述中做确定性的模式抽取。
// 抽取结果供参数补全与决策启发式使用；相同输入必须得到相同输出。
package parser

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Behavior 是描述文本中可识别的目标行为。
type Behavior string

const (
	BehaviorCheck   Behavior = "check"
	BehaviorBalance Behavior = "balance"
	BehaviorMint    Behavior = "mint"
	BehaviorRepeat  Behavior = "repeat"
)

// BehaviorSet 是识别出的行为集合。
type BehaviorSet map[Behavior]bool

// Has 判断集合内是否包含指定行为。
func (s BehaviorSet) Has(b Behavior) bool {
	return s[b]
}

// Extraction 是对一段描述文本的完整抽取结果。
type Extraction struct {
	// Addresses 按首次出现顺序保存所有合法的 20 字节十六进制地址。
	Addresses []string
	// Amounts 按优先级保存数字字面量：紧邻关键词的数字优先于孤立数字，
	// 跨层级去重。以字符串保存以免超出 uint64。
	Amounts    []string
	Behaviors  BehaviorSet
	Conditions []string
}

// FirstAddress 返回首个地址，不存在时返回空串。
func (e Extraction) FirstAddress() string {
	if len(e.Addresses) == 0 {
		return ""
	}
	return e.Addresses[0]
}

// AmountAt 返回第 idx 个数量，越界时返回空串。
func (e Extraction) AmountAt(idx int) string {
	if idx < 0 || idx >= len(e.Amounts) {
		return ""
	}
	return e.Amounts[idx]
}

var (
	addressRe = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
	// 关键词邻近的数量优先级最高。
	keywordAmountRe = regexp.MustCompile(`(?i)(?:mint|less than|menos de)\s+(?:\D{0,16}?)?(\d+)`)
	atATimeRe       = regexp.MustCompile(`(?i)(\d+)\s+(?:\w+\s+)?at a time`)
	bareAmountRe    = regexp.MustCompile(`\b\d+\b`)
	conditionRe     = regexp.MustCompile(`(?i)\b(?:if|when|si|cuando)\b\s+([^,.;\n]+)`)
)

var behaviorVocabulary = map[Behavior][]string{
	BehaviorCheck:   {"check", "verify", "verifica", "comprueba"},
	BehaviorBalance: {"balance", "saldo"},
	BehaviorMint:    {"mint", "create", "crea"},
	BehaviorRepeat:  {"repeat", "loop", "until", "repite", "hasta"},
}

// Extract 对描述文本做一次完整抽取。纯函数，无副作用。
func Extract(description string) Extraction {
	return Extraction{
		Addresses:  extractAddresses(description),
		Amounts:    extractAmounts(description),
		Behaviors:  extractBehaviors(description),
		Conditions: extractConditions(description),
	}
}

var (
	mintAmountRe = regexp.MustCompile(`(?i)mint\s+(?:\D{0,16}?)?(\d+)`)
	thresholdRe  = regexp.MustCompile(`(?i)(?:less than|menos de|below)\s+(\d+)`)
)

// MintAmount 返回紧邻 mint 关键词的数量，未出现时返回空串。
func MintAmount(text string) string {
	stripped := addressRe.ReplaceAllString(text, " ")
	if match := mintAmountRe.FindStringSubmatch(stripped); match != nil {
		return match[1]
	}
	return ""
}

// Threshold 返回描述中的比较阈值（less than/below 之后的数字）。
func Threshold(text string) string {
	stripped := addressRe.ReplaceAllString(text, " ")
	if match := thresholdRe.FindStringSubmatch(stripped); match != nil {
		return match[1]
	}
	return ""
}

func extractAddresses(text string) []string {
	seen := make(map[string]bool)
	var addresses []string
	for _, match := range addressRe.FindAllString(text, -1) {
		if !common.IsHexAddress(match) {
			continue
		}
		if seen[match] {
			continue
		}
		seen[match] = true
		addresses = append(addresses, match)
	}
	return addresses
}

func extractAmounts(text string) []string {
	// 地址中的十六进制数字会干扰数量匹配，先剔除。
	stripped := addressRe.ReplaceAllString(text, " ")

	seen := make(map[string]bool)
	var amounts []string
	add := func(value string) {
		if value == "" || seen[value] {
			return
		}
		seen[value] = true
		amounts = append(amounts, value)
	}

	for _, match := range keywordAmountRe.FindAllStringSubmatch(stripped, -1) {
		add(match[1])
	}
	for _, match := range atATimeRe.FindAllStringSubmatch(stripped, -1) {
		add(match[1])
	}
	for _, match := range bareAmountRe.FindAllString(stripped, -1) {
		add(match)
	}
	return amounts
}

func extractBehaviors(text string) BehaviorSet {
	lowered := strings.ToLower(text)
	behaviors := make(BehaviorSet)
	for behavior, keywords := range behaviorVocabulary {
		for _, keyword := range keywords {
			if strings.Contains(lowered, keyword) {
				behaviors[behavior] = true
				break
			}
		}
	}
	return behaviors
}

func extractConditions(text string) []string {
	var conditions []string
	for _, match := range conditionRe.FindAllStringSubmatch(text, -1) {
		clause := strings.TrimSpace(match[1])
		if clause != "" {
			conditions = append(conditions, clause)
		}
	}
	return conditions
}
