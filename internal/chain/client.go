package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xerrors "zephyrus-agent/internal/errors"
)

const defaultTimeout = 30 * time.Second

// Config 描述合约执行服务的访问方式。
type Config struct {
	BaseURL   string
	NetworkID int
	Timeout   time.Duration
}

// CallRequest 是发往执行服务的调用载荷。读调用不携带 gas 字段。
type CallRequest struct {
	ContractAddress string           `json:"contractAddress"`
	ABI             []map[string]any `json:"abi"`
	FunctionName    string           `json:"functionName"`
	Inputs          []any            `json:"inputs"`
	GasLimit        string           `json:"gasLimit,omitempty"`
	MaxPriorityFee  string           `json:"maxPriorityFee,omitempty"`
	NetworkID       int              `json:"networkId,omitempty"`
}

// CallResult 是执行服务返回的统一结果。
type CallResult struct {
	Success         bool   `json:"success"`
	Data            any    `json:"data,omitempty"`
	Error           string `json:"error,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// Client 通过 REST 将合约调用转交给执行服务。
// 交易签名与提交发生在执行服务内部，本客户端不触碰私钥。
type Client struct {
	baseURL    string
	networkID  int
	httpClient *http.Client
}

// NewClient 创建执行服务客户端。
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "执行服务地址不能为空")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	networkID := cfg.NetworkID
	if networkID == 0 {
		networkID = DefaultNetworkID
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		networkID:  networkID,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Read 调用只读路由。
func (c *Client) Read(ctx context.Context, req CallRequest) (*CallResult, error) {
	return c.dispatch(ctx, "/contracts/read", req)
}

// Write 调用写入路由。
func (c *Client) Write(ctx context.Context, req CallRequest) (*CallResult, error) {
	return c.dispatch(ctx, "/contracts/write", req)
}

func (c *Client) dispatch(ctx context.Context, route string, req CallRequest) (*CallResult, error) {
	if req.NetworkID == 0 {
		req.NetworkID = c.networkID
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalCall, err, "序列化执行请求失败")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalCall, err, "构建执行请求失败")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalCall, err,
			fmt.Sprintf("调用执行服务 %s 失败", route))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.New(xerrors.CodeExternalCall,
			fmt.Sprintf("执行服务返回状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var result CallResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalCall, err, "解析执行服务响应失败")
	}
	return &result, nil
}
