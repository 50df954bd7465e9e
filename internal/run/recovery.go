package run

import (
	"context"

	"zephyrus-agent/internal/agent"
)

// RecoveryHandler 定义了运行执行失败时的补偿策略。
type RecoveryHandler interface {
	// Recover 尝试根据失败原因进行补偿或降级。
	// 返回的结果将作为降级结果写入运行；若返回 nil 则继续按失败流程处理。
	Recover(ctx context.Context, r *Run, cause error) ([]agent.CycleResult, error)
}
