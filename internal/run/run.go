package run

import (
	stdErrors "errors"

	"zephyrus-agent/internal/agent"
	xerrors "zephyrus-agent/internal/errors"
)

// Status 表示一次运行在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run 描述一次排队执行的智能体运行：一次完整的计划-执行-反思周期。
type Run struct {
	ID         string              `json:"id"`
	AgentID    string              `json:"agent_id"`
	Trigger    agent.Trigger       `json:"trigger"`
	Status     Status              `json:"status"`
	Attempts   int                 `json:"attempts"`
	MaxRetries int                 `json:"max_retries"`
	LastError  string              `json:"last_error,omitempty"`
	ErrorCode  string              `json:"error_code,omitempty"`
	Results    []agent.CycleResult `json:"results,omitempty"`
	CreatedAt  int64               `json:"created_at"`
	UpdatedAt  int64               `json:"updated_at"`
}

var (
	// ErrRunNotFound 表示指定的运行不存在。
	ErrRunNotFound = xerrors.New(CodeRunNotFound, "run not found")
	// ErrRunConflict 表示运行在当前状态下无法进行所请求的操作。
	ErrRunConflict = xerrors.New(CodeRunConflict, "run conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrRunCompleted 表示运行已经成功完成。
	ErrRunCompleted = xerrors.New(CodeRunCompleted, "run already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrRunExhausted 表示运行的重试次数已经耗尽。
	ErrRunExhausted = xerrors.New(CodeRunExhausted, "run retries exhausted", xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeRunNotFound   xerrors.Code = "RUN_NOT_FOUND"
	CodeRunConflict   xerrors.Code = "RUN_CONFLICT"
	CodeRunCompleted  xerrors.Code = "RUN_COMPLETED"
	CodeRunExhausted  xerrors.Code = "RUN_RETRIES_EXHAUSTED"
	CodeRunValidation xerrors.Code = "RUN_VALIDATION_FAILED"
	CodeRunPublish    xerrors.Code = "RUN_PUBLISH_FAILED"
	CodeRunProcessing xerrors.Code = "RUN_PROCESSING_FAILED"
)

func init() {
	xerrors.Register(CodeRunNotFound, xerrors.Attributes{
		Message:   "run not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeRunConflict, xerrors.Attributes{
		Message:   "run conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeRunCompleted, xerrors.Attributes{
		Message:   "run already completed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeRunExhausted, xerrors.Attributes{
		Message:   "run retries exhausted",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeRunValidation, xerrors.Attributes{
		Message:   "run validation failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeRunPublish, xerrors.Attributes{
		Message:   "failed to publish run",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeRunProcessing, xerrors.Attributes{
		Message:   "run execution failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
}

// IsRunError 判断错误是否为统一运行错误。
func IsRunError(err error, target xerrors.Code) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, ErrRunNotFound) {
		return target == CodeRunNotFound
	}
	if stdErrors.Is(err, ErrRunConflict) {
		return target == CodeRunConflict
	}
	if stdErrors.Is(err, ErrRunCompleted) {
		return target == CodeRunCompleted
	}
	if stdErrors.Is(err, ErrRunExhausted) {
		return target == CodeRunExhausted
	}
	return false
}

// IsValidStatus 检查给定的运行状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func cloneRun(r *Run) *Run {
	clone := *r
	if r.Results != nil {
		clone.Results = make([]agent.CycleResult, len(r.Results))
		copy(clone.Results, r.Results)
	}
	clone.Trigger.ExtractedParams = agent.CloneParams(r.Trigger.ExtractedParams)
	return &clone
}

func hasResults(r *Run) bool {
	return r != nil && len(r.Results) > 0
}
