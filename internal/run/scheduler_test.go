package run

import (
	"context"
	"testing"

	"zephyrus-agent/internal/agent"
)

type stubSource struct {
	agent    *agent.Agent
	schedule *agent.Schedule
}

func (s *stubSource) GetAgent(context.Context, string) (*agent.Agent, error) {
	return s.agent, nil
}

func (s *stubSource) GetSchedule(context.Context, string) (*agent.Schedule, error) {
	return s.schedule, nil
}

func TestSchedulerSubmitsForActiveAgent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	service := NewService(store, queue, 3)

	source := &stubSource{
		agent:    &agent.Agent{ID: "agent-1", Status: agent.StatusActive},
		schedule: &agent.Schedule{ID: "sch-1", AgentID: "agent-1", Active: true},
	}
	scheduler := NewScheduler(service, source, []string{"agent-1"}, 0)

	if err := scheduler.submitIfDue(ctx, "agent-1"); err != nil {
		t.Fatalf("submitIfDue: %v", err)
	}
	runs, err := service.List(ctx, WithAgentID("agent-1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 || runs[0].Trigger.Type != agent.TriggerScheduled {
		t.Fatalf("unexpected runs %+v", runs)
	}

	// 已有在途运行时不重复提交。
	if err := scheduler.submitIfDue(ctx, "agent-1"); err != nil {
		t.Fatalf("second submitIfDue: %v", err)
	}
	runs, _ = service.List(ctx, WithAgentID("agent-1"))
	if len(runs) != 1 {
		t.Fatalf("expected no duplicate submission, got %d runs", len(runs))
	}
}

func TestSchedulerSkipsInactive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	service := NewService(store, queue, 3)

	source := &stubSource{
		agent:    &agent.Agent{ID: "agent-1", Status: "paused"},
		schedule: &agent.Schedule{ID: "sch-1", AgentID: "agent-1", Active: true},
	}
	scheduler := NewScheduler(service, source, []string{"agent-1"}, 0)

	if err := scheduler.submitIfDue(ctx, "agent-1"); err != nil {
		t.Fatalf("submitIfDue: %v", err)
	}
	runs, _ := service.List(ctx)
	if len(runs) != 0 {
		t.Fatalf("inactive agent must not be scheduled, got %+v", runs)
	}

	source.agent.Status = agent.StatusActive
	source.schedule.Active = false
	if err := scheduler.submitIfDue(ctx, "agent-1"); err != nil {
		t.Fatalf("submitIfDue: %v", err)
	}
	runs, _ = service.List(ctx)
	if len(runs) != 0 {
		t.Fatalf("disabled schedule must not be submitted, got %+v", runs)
	}
}
