// Package todo implements the per-session task-list surface consumed by
// todo_write/todo_read and injected into the L3 ReAct prompt on every step.
package todo

import (
	"context"
	"encoding/json"
	"time"
)

// Item is a single task-list entry. Status is one of "pending",
// "in_progress", "completed".
type Item struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// Normalize coerces an Item to its canonical form: defaults Priority to
// "medium" when unset, and defaults Status to "pending" when unset.
func (it Item) Normalize() Item {
	if it.Priority == "" {
		it.Priority = "medium"
	}
	if it.Status == "" {
		it.Status = "pending"
	}
	return it
}

// Counts summarizes a todo list by status, used in todo_read's response.
type Counts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

func countItems(items []Item) Counts {
	var c Counts
	for _, it := range items {
		switch it.Status {
		case "pending":
			c.Pending++
		case "in_progress":
			c.InProgress++
		case "completed":
			c.Completed++
		}
	}
	return c
}

// Snapshot renders items as the JSON array string todo_write/todo_read and
// the prompt-injection block both embed.
func Snapshot(items []Item) string {
	if items == nil {
		items = []Item{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

// Store is the persistence surface the core depends on: one key per
// session, TTL-bounded. The shipped implementation is in-memory; a
// production deployment swaps in a Redis-backed Store satisfying the same
// interface without touching any caller.
type Store interface {
	// Get returns the current items for sessionID, or nil if none are set
	// or the entry has expired. An empty sessionID always returns nil,
	// nil (a sub-agent's disabled Todo scope never reads a real list).
	Get(ctx context.Context, sessionID string) ([]Item, error)

	// Set overwrites the session's item list and resets its TTL. An empty
	// sessionID is a no-op (Testable Property #6: a sub-agent's Set never
	// leaks into a session-scoped list).
	Set(ctx context.Context, sessionID string, items []Item) error
}

// ttl is the fixed expiry for a session's todo list.
const ttl = 7 * 24 * time.Hour
