package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Dialect identifies which vendor wire format a line decoder expects.
// Grounded on spec.md §4.1's three named dialects and the teacher's
// own Claude-Code/Amp field-name differences in
// internal/executor/agent.go.
type Dialect string

const (
	// DialectA is "Claude-like": message.content[] blocks, tool_use/tool_result.
	DialectA Dialect = "claude-like"
	// DialectB is "OpenCode-like": part.type nested shape, SSE-derived.
	DialectB Dialect = "opencode-like"
	// DialectC is "Droid-like": a minor field-rename variant of A.
	DialectC Dialect = "droid-like"
)

// Decoder turns one pre-cleaned JSON line into zero or more normalized
// StructuredEvents (zero for transport noise/metadata-only lines, one
// per tool_use/text or tool_result block for A/C message lines, two
// for Dialect B's combined spawn+result synthesis, one otherwise).
type Decoder func(raw []byte) ([]StructuredEvent, error)

// DecoderFor returns the line decoder for a given dialect.
func DecoderFor(d Dialect) Decoder {
	switch d {
	case DialectA:
		return decodeDialectA
	case DialectB:
		return decodeDialectB
	case DialectC:
		return decodeDialectC
	default:
		return decodeDialectA
	}
}

// --- Dialect A: Claude-like -------------------------------------------------
//
// {"type":"assistant","message":{"content":[{"type":"tool_use","id":"call_1","name":"Task","input":{...}}]}}
// {"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"call_1","content":"...","is_error":false}]}}
// {"type":"result","is_error":false,"result":"...","duration_ms":1234}

type dialectAContentBlock struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	Text      string          `json:"text,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type dialectAMessage struct {
	Content []dialectAContentBlock `json:"content,omitempty"`
}

type dialectAEnvelope struct {
	Type      string          `json:"type"`
	Message   dialectAMessage `json:"message,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Result    string          `json:"result,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
}

func decodeDialectA(raw []byte) ([]StructuredEvent, error) {
	return decodeAFamily(raw, DialectA)
}

// decodeAFamily implements the shared A/C decode; C differs only in
// field naming at the edges (handled by normalizeDroidFields) per spec.md
// §4.1's "treat as a variant of A".
func decodeAFamily(raw []byte, dialect Dialect) ([]StructuredEvent, error) {
	var env dialectAEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("dialect %s: %w", dialect, err)
	}

	now := time.Now()
	var events []StructuredEvent

	switch env.Type {
	case "assistant":
		for _, block := range env.Message.Content {
			switch block.Type {
			case "tool_use":
				events = append(events, StructuredEvent{
					Kind: StructuredSpawn, Vendor: dialect,
					Tool: block.Name, CallID: block.ID, Input: block.Input, TS: now,
				})
			case "text":
				events = append(events, StructuredEvent{
					Kind: StructuredText, Vendor: dialect, Text: block.Text, TS: now,
				})
			}
		}
	case "user":
		for _, block := range env.Message.Content {
			if block.Type != "tool_result" {
				continue
			}
			events = append(events, StructuredEvent{
				Kind: StructuredResult, Vendor: dialect,
				CallID: block.ToolUseID, Output: string(block.Content), IsError: block.IsError, TS: now,
			})
		}
	case "result":
		events = append(events, StructuredEvent{
			Kind: StructuredOther, Vendor: dialect,
			Output: env.Result, IsError: env.IsError, TS: now,
		})
	case "system":
		events = append(events, StructuredEvent{Kind: StructuredOther, Vendor: dialect, TS: now})
	default:
		// Unrecognized but well-formed envelope: surface as "other" rather
		// than a parse error, matching the teacher's permissive handling
		// of forward-compatible system event subtypes.
		events = append(events, StructuredEvent{Kind: StructuredOther, Vendor: dialect, TS: now})
	}

	return events, nil
}

// --- Dialect C: Droid-like ("minor field renames" of A) --------------------
//
// Droid-like output is structurally identical to A but vendors tend to
// rename `name`→`tool_name` and `tool_use_id`→`call_id` at the edges.
// gjson lets us normalize field names before falling back to the A
// decoder rather than duplicating its whole switch.

func decodeDialectC(raw []byte) ([]StructuredEvent, error) {
	normalized := normalizeDroidFields(raw)
	return decodeAFamily(normalized, DialectC)
}

// normalizeDroidFields rewrites `tool_name`/`call_id` to the Claude-like
// `name`/`id`/`tool_use_id` aliases so decodeAFamily can decode a droid
// line without a second typed envelope. gjson locates the renamed
// fields inside message.content[]; sjson performs the in-place rewrite
// on the raw bytes so the untouched remainder of the line (whatever
// other fields a droid build adds) survives unchanged.
func normalizeDroidFields(raw []byte) []byte {
	if !gjson.ValidBytes(raw) {
		return raw
	}
	out := raw
	content := gjson.GetBytes(raw, "message.content")
	if !content.IsArray() {
		return out
	}
	content.ForEach(func(idx, block gjson.Result) bool {
		i := idx.Int()
		if toolName := block.Get("tool_name"); toolName.Exists() {
			out, _ = sjson.SetBytes(out, fmt.Sprintf("message.content.%d.name", i), toolName.String())
			out, _ = sjson.DeleteBytes(out, fmt.Sprintf("message.content.%d.tool_name", i))
		}
		if callID := block.Get("call_id"); callID.Exists() {
			field := "id"
			if block.Get("type").String() == "tool_result" {
				field = "tool_use_id"
			}
			out, _ = sjson.SetBytes(out, fmt.Sprintf("message.content.%d.%s", i, field), callID.String())
			out, _ = sjson.DeleteBytes(out, fmt.Sprintf("message.content.%d.call_id", i))
		}
		return true
	})
	return out
}

// --- Dialect B: OpenCode-like ------------------------------------------------
//
// {"type":"message.part.updated","properties":{"part":{"type":"tool-invocation","id":"call_1","toolName":"Task","args":{...},"state":{"status":"completed","output":"..."}}}}
// {"type":"session.status","properties":{"status":{"type":"idle"}}}

func decodeDialectB(raw []byte) ([]StructuredEvent, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("dialect %s: invalid json", DialectB)
	}
	root := gjson.ParseBytes(raw)
	eventType := root.Get("type").String()
	props := root.Get("properties")
	now := time.Now()

	switch eventType {
	case "message.updated", "session.idle", "server.connected", "server.heartbeat":
		return nil, nil

	case "message.part.updated":
		part := props.Get("part")
		if !part.Exists() {
			return nil, nil
		}
		switch part.Get("type").String() {
		case "text":
			if delta := props.Get("delta"); delta.Exists() && delta.String() != "" {
				return []StructuredEvent{{Kind: StructuredText, Vendor: DialectB, Text: delta.String(), TS: now}}, nil
			}
			return []StructuredEvent{{Kind: StructuredText, Vendor: DialectB, Text: part.Get("text").String(), TS: now}}, nil

		case "tool-invocation":
			callID := part.Get("id").String()
			tool := part.Get("toolName").String()
			var input map[string]any
			if args := part.Get("args"); args.IsObject() {
				input = map[string]any{}
				_ = json.Unmarshal([]byte(args.Raw), &input)
			}
			spawn := StructuredEvent{Kind: StructuredSpawn, Vendor: DialectB, Tool: tool, CallID: callID, Input: input, TS: now}

			// Dialect B may carry the result inline on the same line
			// (spec.md §4.1: "spawn and completion ... may arrive
			// together"). Synthesize spawn-then-result so downstream
			// consumers always see two events, spawn strictly first.
			state := part.Get("state")
			status := state.Get("status").String()
			if status == "completed" || status == "error" {
				result := StructuredEvent{
					Kind: StructuredResult, Vendor: DialectB, CallID: callID,
					Output: state.Get("output").String(), IsError: status == "error", TS: now,
				}
				return []StructuredEvent{spawn, result}, nil
			}
			return []StructuredEvent{spawn}, nil

		case "tool-result":
			return []StructuredEvent{{
				Kind: StructuredResult, Vendor: DialectB,
				CallID: part.Get("id").String(), Output: part.Get("result").String(),
				IsError: part.Get("isError").Bool(), TS: now,
			}}, nil

		case "step-start", "step-finish", "reasoning":
			return []StructuredEvent{{Kind: StructuredOther, Vendor: DialectB, TS: now}}, nil

		default:
			return nil, nil
		}

	case "session.status":
		status := props.Get("status")
		return []StructuredEvent{{Kind: StructuredOther, Vendor: DialectB, Text: status.Get("type").String(), TS: now}}, nil

	default:
		return []StructuredEvent{{Kind: StructuredOther, Vendor: DialectB, TS: now}}, nil
	}
}
