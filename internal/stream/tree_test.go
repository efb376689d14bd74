package stream

import (
	"testing"
	"time"

	"github.com/ralphctl/ralph/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeSpawnAttachesToRunningAncestor(t *testing.T) {
	tr := NewTree()
	now := time.Now()

	require.Nil(t, tr.Apply(StructuredEvent{Kind: StructuredSpawn, CallID: "a", Tool: "Task", TS: now}))
	require.Nil(t, tr.Apply(StructuredEvent{Kind: StructuredSpawn, CallID: "b", Tool: "Bash", TS: now}))

	a, ok := tr.Node("a")
	require.True(t, ok)
	b, ok := tr.Node("b")
	require.True(t, ok)

	assert.Equal(t, 0, a.Depth)
	assert.Equal(t, "", a.ParentID)
	assert.Equal(t, 1, b.Depth)
	assert.Equal(t, "a", b.ParentID)
	assert.Equal(t, []string{"b"}, a.Children)
}

func TestTreeResultClosesNode(t *testing.T) {
	tr := NewTree()
	now := time.Now()
	tr.Apply(StructuredEvent{Kind: StructuredSpawn, CallID: "a", Tool: "Task", TS: now})

	perr := tr.Apply(StructuredEvent{Kind: StructuredResult, CallID: "a", Output: "done", TS: now.Add(time.Second)})
	assert.Nil(t, perr)

	a, _ := tr.Node("a")
	assert.Equal(t, types.SubagentCompleted, a.Status)
	assert.Equal(t, "done", a.Output)
	require.NotNil(t, a.EndedAt)
}

func TestTreeUnmatchedResultIsParseError(t *testing.T) {
	tr := NewTree()
	perr := tr.Apply(StructuredEvent{Kind: StructuredResult, CallID: "ghost", TS: time.Now()})
	require.NotNil(t, perr)
}

func TestTreeOrphanedSpawnForceClosedOnCloseIncomplete(t *testing.T) {
	tr := NewTree()
	tr.Apply(StructuredEvent{Kind: StructuredSpawn, CallID: "a", Tool: "Task", TS: time.Now()})
	tr.Close()

	a, _ := tr.Node("a")
	assert.Equal(t, types.SubagentError, a.Status)
	assert.Equal(t, "incomplete", a.ErrorReason)
}

func TestTreeNoCyclesChildAfterParentInOrder(t *testing.T) {
	tr := NewTree()
	now := time.Now()
	tr.Apply(StructuredEvent{Kind: StructuredSpawn, CallID: "a", Tool: "Task", TS: now})
	tr.Apply(StructuredEvent{Kind: StructuredSpawn, CallID: "b", Tool: "Bash", TS: now})
	tr.Apply(StructuredEvent{Kind: StructuredResult, CallID: "b", TS: now})
	tr.Apply(StructuredEvent{Kind: StructuredSpawn, CallID: "c", Tool: "Read", TS: now})

	nodes := tr.Nodes()
	seen := map[string]bool{}
	for _, n := range nodes {
		if n.ParentID != "" {
			assert.True(t, seen[n.ParentID], "parent %s must precede child %s", n.ParentID, n.ID)
		}
		seen[n.ID] = true
	}
	// after b closed, c should attach back to a (b is no longer "running")
	c, _ := tr.Node("c")
	assert.Equal(t, "a", c.ParentID)
}
