package orchestrator

import (
	"github.com/avramakis/hivemind/internal/node"
	"github.com/avramakis/hivemind/internal/protocol"
	"github.com/avramakis/hivemind/internal/task"
)

// capabilityFor maps a task type to the capability a candidate node
// must declare. Gateway traffic and node housekeeping can go to any
// online node.
func capabilityFor(t task.Type) (node.Capability, bool) {
	switch t {
	case task.TypeInference:
		return node.CapInference, true
	case task.TypeVoiceTranscribe:
		return node.CapVoice, true
	case task.TypeSkillExecute:
		return node.CapSkills, true
	case task.TypeMemorySync:
		return node.CapMemory, true
	case task.TypeWebSearch:
		return node.CapSearch, true
	case task.TypeCronSchedule:
		return node.CapCron, true
	default:
		// gateway_send, gateway_fetch, health_check, node_command
		return "", false
	}
}

// pathFor maps a task type to the node HTTP path it dispatches on.
func pathFor(t task.Type) string {
	switch t {
	case task.TypeInference:
		return "/agent"
	case task.TypeGatewaySend:
		return "/gateway/send"
	case task.TypeGatewayFetch:
		return "/gateway/fetch"
	case task.TypeVoiceTranscribe:
		return "/voice/transcribe"
	case task.TypeSkillExecute:
		return "/skills/invoke"
	case task.TypeMemorySync:
		return "/memory/push"
	case task.TypeWebSearch:
		return "/search"
	case task.TypeCronSchedule:
		return "/cron"
	case task.TypeHealthCheck:
		return "/ping"
	default: // node_command
		return "/agent"
	}
}

// buildMessage constructs the wire envelope for a task bound to target.
func (o *Orchestrator) buildMessage(t *task.Task, target string) *protocol.Message {
	switch t.Type {
	case task.TypeInference:
		return protocol.NewInferenceRequest(o.coordID, target,
			stringField(t.Input, "prompt"), stringField(t.Input, "model"))
	case task.TypeGatewaySend:
		return protocol.NewGatewayMessage(o.coordID, target,
			stringField(t.Input, "platform"),
			stringField(t.Input, "recipient"),
			stringField(t.Input, "text"))
	case task.TypeGatewayFetch:
		return protocol.New(protocol.TypeGatewayRelay, o.coordID, target, t.Input)
	case task.TypeVoiceTranscribe:
		return protocol.NewVoiceTranscribeRequest(o.coordID, target,
			stringField(t.Input, "audio"), stringField(t.Input, "format"))
	case task.TypeSkillExecute:
		return protocol.NewSkillInvoke(o.coordID, target,
			stringField(t.Input, "skill"), mapField(t.Input, "args"))
	case task.TypeMemorySync:
		return protocol.NewMemoryPush(o.coordID, target, entriesField(t.Input))
	default:
		// web_search, cron_schedule, health_check, node_command travel
		// as a generic task dispatch.
		return protocol.NewTaskDispatch(o.coordID, target, t.ID, string(t.Type), t.Input)
	}
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func entriesField(m map[string]any) []map[string]any {
	switch v := m["entries"].(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, e := range v {
			if em, ok := e.(map[string]any); ok {
				out = append(out, em)
			}
		}
		return out
	default:
		return nil
	}
}
