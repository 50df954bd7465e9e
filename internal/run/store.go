package run

import (
	"context"

	"zephyrus-agent/internal/agent"
	xerrors "zephyrus-agent/internal/errors"
)

// Store 抽象了运行状态的持久化接口。
type Store interface {
	Create(ctx context.Context, r *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	Claim(ctx context.Context, id string) (*Run, error)
	MarkSucceeded(ctx context.Context, id string, results []agent.CycleResult) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, terminal bool) error
	List(ctx context.Context, opts ListOptions) ([]*Run, error)
	Stats(ctx context.Context, opts ListOptions) (RunStats, error)
	Close() error
}
