package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/ralphctl/ralph/internal/events"
	"github.com/ralphctl/ralph/internal/types"
)

// displayEvents renders each event on sub as a two-line console entry:
// an emoji/timestamp/summary line and a gray metadata line, grounded
// on the teacher's event_display.go format but switching on Ralph's
// typed Event payloads rather than a generic data map.
func displayEvents(sub *events.Subscriber) {
	gray := color.New(color.FgHiBlack)
	for ev := range sub.Events() {
		emoji, summary := formatEvent(ev)
		if summary == "" {
			continue
		}
		ts := ev.Timestamp.Format("15:04:05")
		fmt.Printf("%s [%s] %s\n", emoji, ts, summary)
		if meta := eventMetadata(ev); meta != "" {
			fmt.Printf("  %s\n", gray.Sprint(meta))
		} else {
			fmt.Println()
		}
	}
}

func formatEvent(ev events.Event) (emoji, summary string) {
	switch ev.Type {
	case events.EventStateChanged:
		p := ev.StateChanged
		return "🔁", fmt.Sprintf("state %s -> %s", p.From.Kind, p.To.Kind)
	case events.EventIterationStarted:
		p := ev.IterationStarted
		return "🚀", fmt.Sprintf("iteration %d started (task %s)", p.Number, p.TaskID)
	case events.EventOutputAppended:
		return "", ""
	case events.EventSubagentSpawned:
		p := ev.SubagentSpawned
		return "🔧", fmt.Sprintf("subagent %s spawned: %s", p.Node.ID, p.Node.Tool)
	case events.EventSubagentUpdated:
		p := ev.SubagentUpdated
		return "⏳", fmt.Sprintf("subagent %s: %s", p.Node.ID, p.Node.Status)
	case events.EventSubagentFinished:
		p := ev.SubagentFinished
		return "✅", fmt.Sprintf("subagent %s finished: %s", p.Node.ID, p.Node.Status)
	case events.EventDetectorFired:
		p := ev.DetectorFired
		return detectorEmoji(p.Detector), fmt.Sprintf("detector %s fired: %s", p.Detector, p.Detail)
	case events.EventIterationFinished:
		p := ev.IterationFinished
		return outcomeEmoji(p.Outcome), fmt.Sprintf("iteration %d finished: %s", p.Number, p.Outcome)
	case events.EventTaskUpdated:
		p := ev.TaskUpdated
		return "📌", fmt.Sprintf("task %s -> %s", p.TaskID, p.Status)
	case events.EventFatalError:
		p := ev.FatalError
		red := color.New(color.FgRed, color.Bold)
		return "🔥", red.Sprint(fmt.Sprintf("fatal (%s): %s", p.Kind, p.Message))
	default:
		return "•", string(ev.Type)
	}
}

func detectorEmoji(k events.DetectorKind) string {
	switch k {
	case events.DetectorCompletion:
		return "🏁"
	case events.DetectorRateLimit:
		return "⏱️"
	case events.DetectorFatal:
		return "❌"
	default:
		return "•"
	}
}

func outcomeEmoji(o types.IterationOutcome) string {
	switch o {
	case types.OutcomeCompleted:
		return "✅"
	case types.OutcomeInterrupted:
		return "⏹️"
	case types.OutcomeError:
		return "❌"
	case types.OutcomeRateLimited:
		return "⏱️"
	case types.OutcomeNoTask:
		return "💤"
	default:
		return "•"
	}
}

func eventMetadata(ev events.Event) string {
	var fields []string
	switch ev.Type {
	case events.EventSubagentSpawned, events.EventSubagentUpdated, events.EventSubagentFinished:
		var node types.SubagentNode
		switch ev.Type {
		case events.EventSubagentSpawned:
			node = ev.SubagentSpawned.Node
		case events.EventSubagentUpdated:
			node = ev.SubagentUpdated.Node
		case events.EventSubagentFinished:
			node = ev.SubagentFinished.Node
		}
		if node.Description != "" {
			fields = append(fields, node.Description)
		}
		fields = append(fields, fmt.Sprintf("depth=%d", node.Depth))
		if node.ErrorReason != "" {
			fields = append(fields, "error="+node.ErrorReason)
		}
	case events.EventDetectorFired:
		if ev.DetectorFired.RetryAfter > 0 {
			fields = append(fields, "retry_after="+ev.DetectorFired.RetryAfter.String())
		}
	case events.EventFatalError:
		if ev.FatalError.Hint != "" {
			fields = append(fields, "hint="+ev.FatalError.Hint)
		}
	}
	return strings.Join(fields, " | ")
}
