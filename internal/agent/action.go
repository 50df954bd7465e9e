package agent

// Action 是一次拟执行的合约函数调用，由决策或反思引擎产出。
type Action struct {
	FunctionName string         `json:"function_name"`
	Params       map[string]any `json:"parameters"`
	// Message 是面向用户的意图说明，解析时若缺失会被合成。
	Message string `json:"message,omitempty"`
}

// ExecutionResult 保存单个动作的执行结果。
type ExecutionResult struct {
	Success         bool   `json:"success"`
	Data            any    `json:"data,omitempty"`
	Error           string `json:"error,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// HistoryEntry 是执行历史中的一条记录。历史只追加、不修改，
// 并在每次反思调用时整体传入。
type HistoryEntry struct {
	Action  Action           `json:"action"`
	Result  *ExecutionResult `json:"result,omitempty"`
	Message string           `json:"message,omitempty"`
}

// CycleResult 是一次周期运行对外输出的单条记录。
type CycleResult struct {
	Function string           `json:"function"`
	Params   map[string]any   `json:"params"`
	Result   *ExecutionResult `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
	Message  string           `json:"message"`
}

// Trigger 是启动一次"计划-执行-反思"运行的事件记录。
type Trigger struct {
	Type             string         `json:"trigger_type"`
	Timestamp        string         `json:"timestamp"`
	ExecutionID      string         `json:"execution_id"`
	CompleteAllTasks bool           `json:"complete_all_tasks,omitempty"`
	MaxCycles        int            `json:"max_cycles,omitempty"`
	ExtractedParams  map[string]any `json:"extracted_params,omitempty"`
}

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerWebSocket = "websocket"
	TriggerTest      = "test"
)

// CloneParams 返回参数表的浅拷贝，避免引擎间共享可变状态。
func CloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	cloned := make(map[string]any, len(params))
	for key, value := range params {
		cloned[key] = value
	}
	return cloned
}
