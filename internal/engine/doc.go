// Package engine implements the plan-execute-reflect cycle that drives an
// autonomous agent: a decision engine that turns agent state into contract
// actions, a reflection engine that inspects execution history for follow-up
// work, and a controller that bounds the whole loop.
package engine
