package run

import (
	"strings"
	"time"
)

// SortOrder 控制列表结果的排序方向。
type SortOrder int

const (
	// SortByUpdatedDesc 按更新时间倒序，最新的在前。
	SortByUpdatedDesc SortOrder = iota
	// SortByUpdatedAsc 按更新时间正序，最旧的在前。
	SortByUpdatedAsc
)

// ListOptions 控制查询存储时的过滤与分页。
type ListOptions struct {
	Limit      int
	Offset     int
	AgentID    string
	Statuses   []Status
	UpdatedGTE int64
	UpdatedLTE int64
	HasResult  *bool
	Order      SortOrder
}

func (opts *ListOptions) applyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Statuses != nil {
		opts.Statuses = normalizeStatuses(opts.Statuses)
	}
	if opts.Order != SortByUpdatedAsc {
		opts.Order = SortByUpdatedDesc
	}
	opts.AgentID = strings.TrimSpace(opts.AgentID)
}

// ListOption 修改 ListOptions。
type ListOption func(*ListOptions)

// WithLimit 限制返回的运行数量。
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) {
		opts.Limit = limit
	}
}

// WithOffset 跳过前 n 条匹配的运行。
func WithOffset(offset int) ListOption {
	return func(opts *ListOptions) {
		opts.Offset = offset
	}
}

// WithAgentID 只返回指定智能体的运行。
func WithAgentID(agentID string) ListOption {
	return func(opts *ListOptions) {
		opts.AgentID = agentID
	}
}

// WithStatuses 按状态过滤。
func WithStatuses(statuses ...Status) ListOption {
	return func(opts *ListOptions) {
		opts.Statuses = append(opts.Statuses[:0], statuses...)
	}
}

// WithUpdatedSince 过滤在给定时间之后（含）更新过的运行。
func WithUpdatedSince(ts time.Time) ListOption {
	return func(opts *ListOptions) {
		if ts.IsZero() {
			opts.UpdatedGTE = 0
			return
		}
		opts.UpdatedGTE = ts.Unix()
	}
}

// WithUpdatedUntil 过滤在给定时间之前（含）更新过的运行。
func WithUpdatedUntil(ts time.Time) ListOption {
	return func(opts *ListOptions) {
		if ts.IsZero() {
			opts.UpdatedLTE = 0
			return
		}
		opts.UpdatedLTE = ts.Unix()
	}
}

// WithResultPresence 按是否已有周期结果过滤。
func WithResultPresence(hasResult bool) ListOption {
	return func(opts *ListOptions) {
		opts.HasResult = new(bool)
		*opts.HasResult = hasResult
	}
}

// WithSortOrder 改变返回顺序。
func WithSortOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) {
		opts.Order = order
	}
}

func buildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

func normalizeStatuses(input []Status) []Status {
	if len(input) == 0 {
		return nil
	}
	seen := make(map[Status]struct{}, len(input))
	result := make([]Status, 0, len(input))
	for _, status := range input {
		if !IsValidStatus(status) {
			continue
		}
		if _, ok := seen[status]; ok {
			continue
		}
		seen[status] = struct{}{}
		result = append(result, status)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
