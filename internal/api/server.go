package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"zephyrus-agent/internal/agent"
	xerrors "zephyrus-agent/internal/errors"
	"zephyrus-agent/internal/run"
	"zephyrus-agent/pkg/logger"
)

// Server 负责暴露 WebSocket 与 REST 接口，供外部驱动智能体执行。
type Server struct {
	addr        string
	runs        *run.Service
	waitTimeout time.Duration
	upgrader    websocket.Upgrader
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, runs *run.Service) *Server {
	return &Server{
		addr:        addr,
		runs:        runs,
		waitTimeout: 2 * time.Minute,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 执行服务部署在内网，历史客户端不携带 Origin。
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler 返回完整路由，便于测试时挂到 httptest 服务器上。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunByID)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.L().Info("API 服务已启动", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// envelope 是 WebSocket 的统一应答格式。
type envelope struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// inbound 覆盖历史客户端的三种消息布局：agent_id 可能在顶层、
// 嵌在 data 对象里，或者藏在 data 字符串化的 JSON 里。
type inbound struct {
	Type    string          `json:"type"`
	AgentID string          `json:"agent_id"`
	Data    json.RawMessage `json:"data"`
}

func (m inbound) agentID() string {
	if m.AgentID != "" {
		return m.AgentID
	}
	if len(m.Data) == 0 {
		return ""
	}
	var obj struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.Unmarshal(m.Data, &obj); err == nil && obj.AgentID != "" {
		return obj.AgentID
	}
	var text string
	if err := json.Unmarshal(m.Data, &text); err == nil {
		if err := json.Unmarshal([]byte(text), &obj); err == nil {
			return obj.AgentID
		}
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("WebSocket 升级失败", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	logger.L().Info("新的 WebSocket 连接", "remote", r.RemoteAddr)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.L().Warn("WebSocket 连接异常断开", "remote", r.RemoteAddr, "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.send(conn, envelope{Type: "error", Data: map[string]any{"message": "消息不是合法的 JSON"}})
			continue
		}

		switch msg.Type {
		case "execute", "websocket_execution":
			s.handleExecution(r.Context(), conn, msg)
		default:
			s.send(conn, envelope{Type: "error", Data: map[string]any{
				"message": fmt.Sprintf("无法识别的消息类型: %s", msg.Type),
			}})
		}
	}
}

// handleExecution 处理一次单条执行请求：先回执 started，执行完成后
// 回执 completed。消息在连接的读循环里同步处理，天然避免了并发写。
func (s *Server) handleExecution(ctx context.Context, conn *websocket.Conn, msg inbound) {
	agentID := msg.agentID()
	if agentID == "" {
		s.send(conn, envelope{Type: "error", Data: map[string]any{
			"success": false,
			"error":   "执行请求缺少 agent_id",
		}})
		return
	}

	s.send(conn, envelope{Type: "execution_response", Data: map[string]any{
		"success": true,
		"message": fmt.Sprintf("开始执行智能体 %s", agentID),
		"status":  "started",
	}})

	completed := map[string]any{
		"status":   "completed",
		"agent_id": agentID,
	}
	record, err := s.execute(ctx, agentID)
	switch {
	case err != nil:
		completed["success"] = false
		completed["error"] = err.Error()
	case record.Status == run.StatusSucceeded:
		completed["success"] = true
		completed["results"] = record.Results
		completed["execution_count"] = len(record.Results)
		if len(record.Results) == 0 {
			completed["message"] = "本次周期没有执行任何动作"
		}
	default:
		completed["success"] = false
		completed["error"] = record.LastError
	}
	s.send(conn, envelope{Type: "execution_response", Data: completed})
}

// execute 提交一次 WebSocket 触发的运行并等待其终态。
func (s *Server) execute(ctx context.Context, agentID string) (*run.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	defer cancel()

	record, err := s.runs.Submit(ctx, run.SubmitRequest{
		AgentID: agentID,
		Trigger: agent.Trigger{Type: agent.TriggerWebSocket},
	})
	if err != nil {
		return nil, err
	}
	return s.runs.WaitUntilCompleted(ctx, record.ID, 0)
}

func (s *Server) send(conn *websocket.Conn, env envelope) {
	if err := conn.WriteJSON(env); err != nil {
		logger.L().Warn("WebSocket 应答失败", "error", err)
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// submitPayload 是 REST 提交运行的请求体。
type submitPayload struct {
	ID      string        `json:"id,omitempty"`
	AgentID string        `json:"agent_id"`
	Trigger agent.Trigger `json:"trigger"`
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req submitPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	record, err := s.runs.Submit(r.Context(), run.SubmitRequest{
		ID:      req.ID,
		AgentID: req.AgentID,
		Trigger: req.Trigger,
	})
	if err != nil {
		if xerrors.CodeOf(err) == run.CodeRunValidation {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, record)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	opts := []run.ListOption{}
	query := r.URL.Query()
	if agentID := query.Get("agent_id"); agentID != "" {
		opts = append(opts, run.WithAgentID(agentID))
	}
	if raw := query.Get("status"); raw != "" {
		statuses := make([]run.Status, 0, 4)
		for _, status := range strings.Split(raw, ",") {
			statuses = append(statuses, run.Status(strings.TrimSpace(status)))
		}
		opts = append(opts, run.WithStatuses(statuses...))
	}
	if raw := query.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			opts = append(opts, run.WithLimit(limit))
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			opts = append(opts, run.WithOffset(offset))
		}
	}

	records, err := s.runs.List(r.Context(), opts...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "无效的运行 ID", http.StatusBadRequest)
		return
	}

	record, err := s.runs.Get(r.Context(), id)
	if err != nil {
		if run.IsRunError(err, run.CodeRunNotFound) {
			http.Error(w, "运行不存在", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	opts := []run.ListOption{}
	if agentID := r.URL.Query().Get("agent_id"); agentID != "" {
		opts = append(opts, run.WithAgentID(agentID))
	}

	stats, err := s.runs.Stats(r.Context(), opts...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
