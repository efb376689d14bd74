package stream

import (
	"time"

	"github.com/google/uuid"
	"github.com/ralphctl/ralph/internal/types"
)

// Tree reconstructs the subagent call tree for a single iteration from
// a sequence of normalized StructuredEvents (spec.md §4.1 "Subagent
// tree reconstruction"). Parent/child links are call_ids, never
// pointers, per SPEC_FULL.md's arena-with-stable-ids design note.
type Tree struct {
	nodes   map[string]*types.SubagentNode
	order   []string // call_ids in first-seen order, for deterministic iteration
	running []string // stack of currently-open call_ids, most recent last
}

// NewTree constructs an empty Tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[string]*types.SubagentNode)}
}

// Apply folds one StructuredEvent into the tree, returning a
// ParseError if the event is an unmatched result (spec.md invariant 1:
// "either a prior spawn event... exists, or a ParseError is emitted").
func (t *Tree) Apply(ev StructuredEvent) *ParseError {
	switch ev.Kind {
	case StructuredSpawn:
		t.spawn(ev)
	case StructuredResult:
		return t.result(ev)
	}
	return nil
}

func (t *Tree) spawn(ev StructuredEvent) {
	callID := ev.CallID
	if callID == "" {
		callID = uuid.New().String()
	}
	if _, exists := t.nodes[callID]; exists {
		// Duplicate spawn for the same call_id: ignore rather than
		// clobber the original, matching the "never panic" philosophy.
		return
	}

	var parentID string
	depth := 0
	if n := len(t.running); n > 0 {
		parentID = t.running[n-1]
		depth = t.nodes[parentID].Depth + 1
	}

	node := &types.SubagentNode{
		ID:        callID,
		Tool:      ev.Tool,
		Status:    types.SubagentRunning,
		SpawnedAt: ev.TS,
		ParentID:  parentID,
		Depth:     depth,
	}
	if len(ev.Input) > 0 {
		if d, ok := ev.Input["description"].(string); ok {
			node.Description = d
		}
	}

	t.nodes[callID] = node
	t.order = append(t.order, callID)
	if parentID != "" {
		parent := t.nodes[parentID]
		parent.Children = append(parent.Children, callID)
	}
	t.running = append(t.running, callID)
}

func (t *Tree) result(ev StructuredEvent) *ParseError {
	node, ok := t.nodes[ev.CallID]
	if !ok || node.Status != types.SubagentRunning {
		return &ParseError{Raw: ev.CallID, Reason: "result with no matching running spawn"}
	}

	end := ev.TS
	node.EndedAt = &end
	node.DurationMS = end.Sub(node.SpawnedAt).Milliseconds()
	node.Output = ev.Output
	if ev.IsError {
		node.Status = types.SubagentError
		node.ErrorReason = "tool reported failure"
	} else {
		node.Status = types.SubagentCompleted
	}

	t.removeRunning(ev.CallID)
	return nil
}

func (t *Tree) removeRunning(callID string) {
	filtered := t.running[:0]
	for _, id := range t.running {
		if id != callID {
			filtered = append(filtered, id)
		}
	}
	t.running = filtered
}

// Close force-closes every node still running at end-of-iteration,
// marking it error/"incomplete" per spec.md §4.1.
func (t *Tree) Close() {
	now := time.Now()
	for _, id := range t.running {
		node := t.nodes[id]
		node.Status = types.SubagentError
		node.ErrorReason = "incomplete"
		end := now
		node.EndedAt = &end
		node.DurationMS = end.Sub(node.SpawnedAt).Milliseconds()
	}
	t.running = nil
}

// Nodes returns every node in first-spawn order. The slice is fresh,
// but its pointers are the tree's own nodes, not copies: callers must
// not retain them across iterations, and Children slices are shared
// for read access.
func (t *Tree) Nodes() []*types.SubagentNode {
	out := make([]*types.SubagentNode, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.nodes[id])
	}
	return out
}

// Node looks up a single node by call_id.
func (t *Tree) Node(callID string) (*types.SubagentNode, bool) {
	n, ok := t.nodes[callID]
	return n, ok
}
