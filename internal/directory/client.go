package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"zephyrus-agent/internal/agent"
	xerrors "zephyrus-agent/internal/errors"
	"zephyrus-agent/pkg/retry"
)

const defaultTimeout = 15 * time.Second

// Config 描述目录服务的访问方式。
type Config struct {
	BaseURL string
	Timeout time.Duration
	// WriteRetry 控制日志等写接口的重试策略。零值使用默认策略。
	WriteRetry retry.Policy
}

// ExecutionLog 是一条执行日志记录。
type ExecutionLog struct {
	ID           string         `json:"logId,omitempty"`
	AgentID      string         `json:"agentId,omitempty"`
	FunctionName string         `json:"functionName"`
	Params       map[string]any `json:"parameters,omitempty"`
	Status       string         `json:"status"`
	Result       any            `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	Message      string         `json:"message,omitempty"`
	Timestamp    string         `json:"timestamp,omitempty"`
}

const (
	LogStatusPending = "pending"
	LogStatusSuccess = "success"
	LogStatusFailed  = "failed"
)

// Client 是智能体目录服务的 REST 客户端。
// 目录服务是智能体、函数、排程与日志的权威存储。
type Client struct {
	baseURL    string
	httpClient *http.Client
	writeRetry retry.Policy
}

// NewClient 创建目录服务客户端。
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "目录服务地址不能为空")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	writeRetry := cfg.WriteRetry
	if writeRetry.ShouldRetry == nil {
		writeRetry.ShouldRetry = xerrors.RetryableError
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		writeRetry: writeRetry,
	}, nil
}

// GetAgent 按 ID 加载智能体档案。未找到时返回 (nil, nil)。
func (c *Client) GetAgent(ctx context.Context, agentID string) (*agent.Agent, error) {
	raw, err := c.getMap(ctx, fmt.Sprintf("/agents/%s", agentID))
	if err != nil || raw == nil {
		return nil, err
	}
	return agent.AgentFromMap(raw)
}

// GetContract 加载合约定义。未找到时返回 (nil, nil)。
func (c *Client) GetContract(ctx context.Context, contractID string) (*agent.Contract, error) {
	raw, err := c.getMap(ctx, fmt.Sprintf("/contracts/%s", contractID))
	if err != nil || raw == nil {
		return nil, err
	}
	return agent.ContractFromMap(raw)
}

// GetFunctions 加载智能体的函数目录。
func (c *Client) GetFunctions(ctx context.Context, agentID string) (agent.Catalog, error) {
	body, err := c.get(ctx, fmt.Sprintf("/agents/%s/functions", agentID))
	if err != nil || body == nil {
		return nil, err
	}
	var rawList []map[string]any
	if err := json.Unmarshal(body, &rawList); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalCall, err, "解析函数列表失败")
	}
	catalog := make(agent.Catalog, 0, len(rawList))
	for _, raw := range rawList {
		fn, err := agent.FunctionFromMap(raw)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, *fn)
	}
	return catalog, nil
}

// GetSchedule 加载智能体的排程配置。未配置时返回 (nil, nil)。
func (c *Client) GetSchedule(ctx context.Context, agentID string) (*agent.Schedule, error) {
	raw, err := c.getMap(ctx, fmt.Sprintf("/agents/%s/schedule", agentID))
	if err != nil || raw == nil {
		return nil, err
	}
	return agent.ScheduleFromMap(raw), nil
}

// UpdateAgent 以 PATCH 更新智能体档案（如刷新 contractState）。
func (c *Client) UpdateAgent(ctx context.Context, agentID string, fields map[string]any) error {
	return retry.Do(ctx, c.writeRetry, func(ctx context.Context) error {
		_, err := c.send(ctx, http.MethodPatch, fmt.Sprintf("/agents/%s", agentID), fields)
		return err
	})
}

// CreateExecutionLog 创建一条执行日志并返回目录服务分配的日志 ID。
// ID 显式返回给调用方，由调用方自行传递，客户端不保留任何状态。
func (c *Client) CreateExecutionLog(ctx context.Context, agentID string, entry ExecutionLog) (string, error) {
	entry.AgentID = agentID
	var logID string
	err := retry.Do(ctx, c.writeRetry, func(ctx context.Context) error {
		body, err := c.send(ctx, http.MethodPost, fmt.Sprintf("/agents/%s/logs", agentID), entry)
		if err != nil {
			return err
		}
		var created map[string]any
		if len(body) > 0 {
			if err := json.Unmarshal(body, &created); err == nil {
				for _, key := range []string{"logId", "log_id", "id"} {
					if id, ok := created[key].(string); ok && id != "" {
						logID = id
						break
					}
				}
			}
		}
		return nil
	})
	return logID, err
}

// UpdateExecutionLog 按显式日志 ID 更新状态与结果。
func (c *Client) UpdateExecutionLog(ctx context.Context, agentID, logID string, entry ExecutionLog) error {
	if strings.TrimSpace(logID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "日志 ID 不能为空")
	}
	return retry.Do(ctx, c.writeRetry, func(ctx context.Context) error {
		_, err := c.send(ctx, http.MethodPatch, fmt.Sprintf("/agents/%s/logs/%s", agentID, logID), entry)
		return err
	})
}

func (c *Client) getMap(ctx context.Context, path string) (map[string]any, error) {
	body, err := c.get(ctx, path)
	if err != nil || body == nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		// 个别接口会把单个对象包在数组里返回。
		var list []map[string]any
		if listErr := json.Unmarshal(body, &list); listErr == nil && len(list) > 0 {
			return list[0], nil
		}
		return nil, xerrors.Wrap(xerrors.CodeExternalCall, err, "解析目录服务响应失败")
	}
	return raw, nil
}

// get 返回响应体；404 返回 (nil, nil)，由调用方按未找到处理。
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalCall, err, "构建目录服务请求失败")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalCall, err, "请求目录服务失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.New(xerrors.CodeExternalCall,
			fmt.Sprintf("目录服务返回状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) send(ctx context.Context, method, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化目录服务请求失败")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalCall, err, "构建目录服务请求失败")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalCall, err, "请求目录服务失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.New(xerrors.CodeExternalCall,
			fmt.Sprintf("目录服务返回状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return io.ReadAll(resp.Body)
}
