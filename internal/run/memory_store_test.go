package run

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"zephyrus-agent/internal/agent"
)

func TestMemoryStoreClaimLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	r := &Run{ID: "r1", AgentID: "agent-1", Status: StatusPending, MaxRetries: 2}
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Run{ID: "r1", AgentID: "agent-1", Status: StatusPending}); !stdErrors.Is(err, ErrRunConflict) {
		t.Fatalf("duplicate create err = %v", err)
	}

	claimed, err := store.Claim(ctx, "r1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("claimed = %+v", claimed)
	}

	// 运行中的运行不能被再次领取。
	if _, err := store.Claim(ctx, "r1"); !stdErrors.Is(err, ErrRunConflict) {
		t.Fatalf("second claim err = %v", err)
	}

	results := []agent.CycleResult{{Function: "balanceOf", Message: "done"}}
	if err := store.MarkSucceeded(ctx, "r1", results); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	if _, err := store.Claim(ctx, "r1"); !stdErrors.Is(err, ErrRunCompleted) {
		t.Fatalf("claim after success err = %v", err)
	}

	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusSucceeded || len(got.Results) != 1 {
		t.Fatalf("got = %+v", got)
	}
}

func TestMemoryStoreClaimExhausted(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &Run{ID: "r1", AgentID: "agent-1", Status: StatusPending, MaxRetries: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Claim(ctx, "r1"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := store.MarkFailed(ctx, "r1", CodeRunProcessing, "boom", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if _, err := store.Claim(ctx, "r1"); !stdErrors.Is(err, ErrRunExhausted) {
		t.Fatalf("claim err = %v, want exhausted", err)
	}
}

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Minute)

	runs := []*Run{
		{ID: "r1", AgentID: "agent-1", Status: StatusPending, MaxRetries: 3},
		{ID: "r2", AgentID: "agent-1", Status: StatusPending, MaxRetries: 3},
		{ID: "r3", AgentID: "agent-2", Status: StatusPending, MaxRetries: 3},
	}
	for _, r := range runs {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("create run %s: %v", r.ID, err)
		}
	}

	if err := store.MarkFailed(ctx, "r2", CodeRunProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "r3", []agent.CycleResult{{Function: "mint"}}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	store.mu.Lock()
	store.runs["r1"].UpdatedAt = base.Unix()
	store.runs["r2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.runs["r3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "r3" {
		t.Fatalf("unexpected list: %+v", all)
	}

	byAgent, err := store.List(ctx, buildListOptions([]ListOption{WithAgentID("agent-1")}))
	if err != nil {
		t.Fatalf("list by agent: %v", err)
	}
	if len(byAgent) != 2 {
		t.Fatalf("expected 2 runs for agent-1, got %d", len(byAgent))
	}

	failed, err := store.List(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed)}))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "r2" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	withResults, err := store.List(ctx, buildListOptions([]ListOption{WithResultPresence(true)}))
	if err != nil {
		t.Fatalf("list with result: %v", err)
	}
	if len(withResults) != 1 || withResults[0].ID != "r3" {
		t.Fatalf("unexpected result list: %+v", withResults)
	}

	recent, err := store.List(ctx, buildListOptions([]ListOption{WithUpdatedSince(base.Add(15 * time.Second))}))
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 runs to match since filter, got %d", len(recent))
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	runs := []*Run{
		{ID: "a", AgentID: "agent-1", Status: StatusPending, MaxRetries: 3},
		{ID: "b", AgentID: "agent-1", Status: StatusPending, MaxRetries: 3},
		{ID: "c", AgentID: "agent-2", Status: StatusPending, MaxRetries: 3},
	}
	for _, r := range runs {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("create run %s: %v", r.ID, err)
		}
	}

	if err := store.MarkFailed(ctx, "b", CodeRunProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "c", []agent.CycleResult{{Function: "mint"}}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	byAgent, err := store.Stats(ctx, buildListOptions([]ListOption{WithAgentID("agent-1")}))
	if err != nil {
		t.Fatalf("stats by agent: %v", err)
	}
	if byAgent.Total != 2 || byAgent.Succeeded != 0 {
		t.Fatalf("unexpected agent stats: %+v", byAgent)
	}

	withoutResults, err := store.Stats(ctx, buildListOptions([]ListOption{WithResultPresence(false)}))
	if err != nil {
		t.Fatalf("stats without result: %v", err)
	}
	if withoutResults.Total != 2 {
		t.Fatalf("unexpected stats without result: %+v", withoutResults)
	}
}
