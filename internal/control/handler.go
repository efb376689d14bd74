package control

import (
	"fmt"

	"github.com/ralphctl/ralph/internal/engine"
)

// EngineHandler adapts an Engine to the onCommand callback NewServer
// expects, translating each control.Command.Type into the matching
// Engine method.
func EngineHandler(e *engine.Engine) func(Command) (map[string]interface{}, error) {
	return func(cmd Command) (map[string]interface{}, error) {
		switch cmd.Type {
		case "pause":
			e.Pause(cmd.Force)
			return nil, nil
		case "resume":
			e.Resume()
			return nil, nil
		case "stop":
			e.Stop()
			return nil, nil
		case "continue":
			e.ContinueExecution()
			return nil, nil
		case "status":
			return statusData(e), nil
		default:
			return nil, fmt.Errorf("control: unknown command %q", cmd.Type)
		}
	}
}

func statusData(e *engine.Engine) map[string]interface{} {
	state := e.State()
	hist := e.History()
	data := map[string]interface{}{
		"state":            string(state.Kind),
		"iterations_run":   len(hist),
		"iteration_number": state.IterationNumber,
	}
	if state.Kind == "error" {
		data["error_kind"] = string(state.ErrKind)
		data["error_message"] = state.ErrMsg
	}
	return data
}
