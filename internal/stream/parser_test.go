package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParserChunkedMalformedLine implements spec.md §8 scenario 5.
func TestParserChunkedMalformedLine(t *testing.T) {
	input := []byte("garbage-prefix{\"type\":\"assistant\",\"message\":{\"content\":[{\"type\":\"tool_use\",\"id\":\"c1\",\"name\":\"Read\"}]}}\n{bad json\n{\"type\":\"result\"}\n")

	p := NewParser(DialectA)
	p.Feed(input)
	p.Finish()

	var kinds []LineKind
	for {
		e, ok := p.Next()
		if !ok {
			break
		}
		kinds = append(kinds, e.Kind)
	}

	require.Len(t, kinds, 3)
	assert.Equal(t, KindStructured, kinds[0])
	assert.Equal(t, KindParseError, kinds[1])
	assert.Equal(t, KindStructured, kinds[2])
}

// TestParserIsPureReplay implements spec.md §8's round-trip property:
// replaying a captured raw stream through the parser yields the exact
// same event sequence.
func TestParserIsPureReplay(t *testing.T) {
	input := []byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"c1","name":"Task"}]}}` + "\n" +
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"c1","content":"ok"}]}}` + "\n")

	run := func() []LineKind {
		p := NewParser(DialectA)
		p.Feed(input)
		p.Finish()
		var kinds []LineKind
		for {
			e, ok := p.Next()
			if !ok {
				break
			}
			kinds = append(kinds, e.Kind)
		}
		return kinds
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
}

func TestParserEmptyLinesDropped(t *testing.T) {
	p := NewParser(DialectA)
	p.Feed([]byte("\n\n"))
	p.Finish()
	_, ok := p.Next()
	assert.False(t, ok)
}

func TestParserDialectBTreeReflectsOneCompletedChild(t *testing.T) {
	// spec.md §8 scenario 4.
	line := []byte(`{"type":"message.part.updated","properties":{"part":{"type":"tool-invocation","id":"call_5","toolName":"Task","args":{},"state":{"status":"completed","output":"ok"}}}}` + "\n")

	p := NewParser(DialectB)
	p.Feed(line)
	p.Finish()

	var structuredCount int
	for {
		e, ok := p.Next()
		if !ok {
			break
		}
		if e.Kind == KindStructured {
			structuredCount++
		}
	}
	assert.Equal(t, 2, structuredCount)

	nodes := p.Tree().Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "completed", string(nodes[0].Status))
}
