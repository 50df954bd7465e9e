package run

import (
	"context"
	"log/slog"
	"time"

	"zephyrus-agent/internal/agent"
	"zephyrus-agent/pkg/logger"
)

// ScheduleSource 提供调度所需的智能体档案与排程信息。
// 由目录服务客户端实现。
type ScheduleSource interface {
	GetAgent(ctx context.Context, agentID string) (*agent.Agent, error)
	GetSchedule(ctx context.Context, agentID string) (*agent.Schedule, error)
}

// Scheduler 按固定间隔为启用排程的智能体提交运行。
type Scheduler struct {
	service  *Service
	source   ScheduleSource
	agentIDs []string
	interval time.Duration
	log      *slog.Logger
}

// NewScheduler 创建调度器。interval 非法时使用一分钟。
func NewScheduler(service *Service, source ScheduleSource, agentIDs []string, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		service:  service,
		source:   source,
		agentIDs: agentIDs,
		interval: interval,
		log:      logger.Named("run.scheduler"),
	}
}

// Start 阻塞运行调度循环，直到上下文取消。
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("调度器启动", "agents", len(s.agentIDs), "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, agentID := range s.agentIDs {
		if err := s.submitIfDue(ctx, agentID); err != nil {
			s.log.Warn("排程提交失败", "agent_id", agentID, "error", err)
		}
	}
}

// submitIfDue 在智能体处于激活状态、排程启用且没有在途运行时提交
// 一次 scheduled 运行。
func (s *Scheduler) submitIfDue(ctx context.Context, agentID string) error {
	ag, err := s.source.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	if ag == nil || ag.Status != agent.StatusActive {
		return nil
	}
	schedule, err := s.source.GetSchedule(ctx, agentID)
	if err != nil {
		return err
	}
	if schedule == nil || !schedule.Active {
		return nil
	}

	inflight, err := s.service.List(ctx,
		WithAgentID(agentID),
		WithStatuses(StatusPending, StatusRunning),
		WithLimit(1),
	)
	if err != nil {
		return err
	}
	if len(inflight) > 0 {
		s.log.Debug("存在在途运行，跳过本轮排程", "agent_id", agentID)
		return nil
	}

	r, err := s.service.Submit(ctx, SubmitRequest{
		AgentID: agentID,
		Trigger: agent.Trigger{Type: agent.TriggerScheduled},
	})
	if err != nil {
		return err
	}
	s.log.Info("排程运行已提交", "agent_id", agentID, "run_id", r.ID)
	return nil
}
