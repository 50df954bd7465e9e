package llm

import (
	"context"
	"encoding/json"
)

// Message 是一条对话消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool 描述一个可供大模型调用的函数契约。
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall 是大模型返回的一次工具调用，Arguments 为原始 JSON。
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Request 描述一次规划请求：系统与用户提示词加上工具契约。
type Request struct {
	System string
	User   string
	Tools  []Tool
}

// Response 是大模型的规划输出。优先消费 ToolCalls，
// 仅当其为空时才回退解析 Content 自由文本。
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Client 定义了调用大模型规划服务的统一接口。
type Client interface {
	Plan(ctx context.Context, req Request) (*Response, error)
}
